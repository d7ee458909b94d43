package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantOp  OpCode
		wantSN  int64
		hasSN   bool
		wantErr bool
	}{
		{
			name:   "event_with_sequence",
			input:  `{"s":0,"d":{"channel_type":"GROUP"},"sn":17}`,
			wantOp: OpEvent,
			wantSN: 17,
			hasSN:  true,
		},
		{
			name:   "hello",
			input:  `{"s":1,"d":{"code":0,"session_id":"abc"}}`,
			wantOp: OpHello,
		},
		{
			name:   "pong",
			input:  `{"s":3}`,
			wantOp: OpPong,
		},
		{
			name:   "reconnect",
			input:  `{"s":5,"d":{"code":40107}}`,
			wantOp: OpReconnect,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "not json",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatal("DecodeEnvelope() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeEnvelope() error = %v", err)
			}
			if env.Op != tc.wantOp {
				t.Errorf("Op = %v, want %v", env.Op, tc.wantOp)
			}
			if env.HasSequence() != tc.hasSN {
				t.Errorf("HasSequence() = %v, want %v", env.HasSequence(), tc.hasSN)
			}
			if tc.hasSN && *env.Sequence != tc.wantSN {
				t.Errorf("Sequence = %d, want %d", *env.Sequence, tc.wantSN)
			}
		})
	}
}

func TestDecodeHello(t *testing.T) {
	h, err := DecodeHello(json.RawMessage(`{"code":0,"session_id":"s-1"}`))
	if err != nil {
		t.Fatalf("DecodeHello() error = %v", err)
	}
	if !h.OK() {
		t.Error("OK() = false, want true")
	}
	if h.SessionID != "s-1" {
		t.Errorf("SessionID = %q, want %q", h.SessionID, "s-1")
	}

	h, err = DecodeHello(json.RawMessage(`{"code":40103}`))
	if err != nil {
		t.Fatalf("DecodeHello() error = %v", err)
	}
	if h.OK() {
		t.Error("OK() = true for code 40103, want false")
	}
}

func TestDecodeReconnect(t *testing.T) {
	r := DecodeReconnect(json.RawMessage(`{"code":40107}`))
	if r.Code != ResumeSessionExpired {
		t.Errorf("Code = %d, want %d", r.Code, ResumeSessionExpired)
	}

	// A reconnect without a payload is still a reconnect command.
	r = DecodeReconnect(nil)
	if r.Code != 0 {
		t.Errorf("Code = %d, want 0", r.Code)
	}
}

func TestEncodePing(t *testing.T) {
	var got struct {
		Op OpCode `json:"s"`
		SN int64  `json:"sn"`
	}
	if err := json.Unmarshal(EncodePing(42), &got); err != nil {
		t.Fatalf("unmarshal ping: %v", err)
	}
	if got.Op != OpPing {
		t.Errorf("s = %v, want %v", got.Op, OpPing)
	}
	if got.SN != 42 {
		t.Errorf("sn = %d, want 42", got.SN)
	}
}

func TestOpCodeString(t *testing.T) {
	tests := []struct {
		op   OpCode
		want string
	}{
		{OpEvent, "Event"},
		{OpHello, "Hello"},
		{OpPing, "Ping"},
		{OpPong, "Pong"},
		{OpReconnect, "Reconnect"},
		{OpResumeAck, "ResumeAck"},
		{OpCode(99), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.op.String(); got != tc.want {
			t.Errorf("OpCode(%d).String() = %q, want %q", int(tc.op), got, tc.want)
		}
	}
}
