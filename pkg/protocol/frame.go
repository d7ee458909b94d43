package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Frame transform errors.
var (
	ErrFrameTooShort = errors.New("protocol: encrypted frame shorter than IV")
	ErrBadPadding    = errors.New("protocol: invalid block padding")
)

// encryptKeySize is the AES-256 key length. The configured secret is
// zero-padded (with '0' characters, matching the platform convention) or
// truncated to this size.
const encryptKeySize = 32

// FrameReader applies the negotiated per-frame transforms to inbound gateway
// frames: base64 + AES-256-CBC decryption when an encrypt key is configured,
// then zlib inflation when compression was requested at gateway pull time.
// The zero value passes frames through untouched.
type FrameReader struct {
	key      []byte // nil when encryption is off
	compress bool
}

// NewFrameReader builds a frame reader for a session. encryptKey may be
// empty; compress mirrors the compress=1 gateway query parameter.
func NewFrameReader(encryptKey string, compress bool) *FrameReader {
	var key []byte
	if encryptKey != "" {
		key = padKey(encryptKey)
	}
	return &FrameReader{key: key, compress: compress}
}

// Unwrap converts one raw frame into plaintext JSON. Failures are scoped to
// the frame: the caller logs and drops, the session stays up.
func (fr *FrameReader) Unwrap(data []byte) ([]byte, error) {
	var err error
	if fr.key != nil {
		data, err = fr.decrypt(data)
		if err != nil {
			return nil, err
		}
	}
	if fr.compress {
		data, err = inflate(data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// decrypt base64-decodes the frame, splits off the 16-byte IV, and runs
// AES-256-CBC over the remainder, stripping PKCS#7 padding.
func (fr *FrameReader) decrypt(data []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return nil, fmt.Errorf("protocol: base64 frame: %w", err)
	}
	raw = raw[:n]

	if len(raw) < aes.BlockSize {
		return nil, ErrFrameTooShort
	}
	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("protocol: ciphertext length %d not block-aligned", len(ciphertext))
	}

	block, err := aes.NewCipher(fr.key)
	if err != nil {
		return nil, fmt.Errorf("protocol: cipher init: %w", err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	return stripPadding(plain)
}

// padKey normalizes the configured secret to the AES-256 key length,
// right-padding with '0' characters as the platform specifies.
func padKey(secret string) []byte {
	key := make([]byte, encryptKeySize)
	n := copy(key, secret)
	for i := n; i < encryptKeySize; i++ {
		key[i] = '0'
	}
	return key
}

// stripPadding removes PKCS#7 padding from a decrypted block sequence.
func stripPadding(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrBadPadding
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-pad], nil
}

// inflate decompresses one zlib-deflated frame.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("protocol: zlib frame: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("protocol: inflate frame: %w", err)
	}
	return out, nil
}
