package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// encryptFrame mirrors the server-side transform: PKCS#7 pad, AES-256-CBC
// encrypt with a fixed IV, prepend the IV, base64 the whole thing.
func encryptFrame(t *testing.T, plaintext []byte, secret string) []byte {
	t.Helper()

	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	iv := []byte("0123456789abcdef")
	block, err := aes.NewCipher(padKey(secret))
	if err != nil {
		t.Fatalf("cipher init: %v", err)
	}
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	raw := append(append([]byte{}, iv...), encrypted...)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out
}

func deflateFrame(t *testing.T, plaintext []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(plaintext); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("deflate close: %v", err)
	}
	return buf.Bytes()
}

func TestFrameReaderPassthrough(t *testing.T) {
	fr := NewFrameReader("", false)
	in := []byte(`{"s":3}`)
	out, err := fr.Unwrap(in)
	if err != nil {
		t.Fatalf("Unwrap() error = %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("Unwrap() = %q, want %q", out, in)
	}
}

func TestFrameReaderDecrypt(t *testing.T) {
	const secret = "my-secret"
	plaintext := []byte(`{"s":1,"d":{"code":0,"session_id":"x"}}`)

	fr := NewFrameReader(secret, false)
	out, err := fr.Unwrap(encryptFrame(t, plaintext, secret))
	if err != nil {
		t.Fatalf("Unwrap() error = %v", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Errorf("Unwrap() = %q, want %q", out, plaintext)
	}
}

func TestFrameReaderDecryptAndInflate(t *testing.T) {
	const secret = "k"
	plaintext := []byte(`{"s":0,"d":{},"sn":9}`)

	fr := NewFrameReader(secret, true)
	wrapped := encryptFrame(t, deflateFrame(t, plaintext), secret)
	out, err := fr.Unwrap(wrapped)
	if err != nil {
		t.Fatalf("Unwrap() error = %v", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Errorf("Unwrap() = %q, want %q", out, plaintext)
	}
}

func TestFrameReaderBadFrames(t *testing.T) {
	fr := NewFrameReader("secret", false)

	tests := []struct {
		name  string
		input []byte
	}{
		{"not_base64", []byte("!!!not base64!!!")},
		{"too_short", []byte(base64.StdEncoding.EncodeToString([]byte("short")))},
		{"unaligned", []byte(base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize+5)))},
		{"empty_ciphertext", []byte(base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize)))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fr.Unwrap(tc.input); err == nil {
				t.Error("Unwrap() expected error, got nil")
			}
		})
	}
}

func TestPadKey(t *testing.T) {
	key := padKey("abc")
	if len(key) != encryptKeySize {
		t.Fatalf("len(key) = %d, want %d", len(key), encryptKeySize)
	}
	if string(key[:3]) != "abc" {
		t.Errorf("key prefix = %q, want %q", key[:3], "abc")
	}
	for i := 3; i < encryptKeySize; i++ {
		if key[i] != '0' {
			t.Fatalf("key[%d] = %q, want '0'", i, key[i])
		}
	}

	// Oversized secrets are truncated.
	long := padKey("0123456789012345678901234567890123456789")
	if len(long) != encryptKeySize {
		t.Errorf("len(long) = %d, want %d", len(long), encryptKeySize)
	}
}
