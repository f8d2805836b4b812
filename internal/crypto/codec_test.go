package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestSessionCodec_RoundTrip(t *testing.T) {
	codec, err := NewSessionCodec("test-secret")
	if err != nil {
		t.Fatalf("NewSessionCodec failed: %v", err)
	}

	payloads := []string{
		`{"homeAccountId":"abc.def"}`,
		"",
		"short",
		string(bytes.Repeat([]byte("x"), 4096)),
	}

	for _, p := range payloads {
		token, err := codec.Encrypt([]byte(p))
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		got, err := codec.Decrypt(token)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if string(got) != p {
			t.Errorf("round trip mismatch: got %q, want %q", got, p)
		}
	}
}

func TestSessionCodec_FreshNoncePerEncryption(t *testing.T) {
	codec, _ := NewSessionCodec("test-secret")

	t1, _ := codec.Encrypt([]byte("same payload"))
	t2, _ := codec.Encrypt([]byte("same payload"))
	if t1 == t2 {
		t.Error("expected distinct tokens for repeated encryptions")
	}
}

func TestSessionCodec_TamperedToken(t *testing.T) {
	codec, _ := NewSessionCodec("test-secret")
	token, _ := codec.Encrypt([]byte(`{"homeAccountId":"abc.def"}`))

	raw, _ := hex.DecodeString(token)
	// Flip one bit at every byte position; decryption must fail cleanly each time.
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01
		_, err := codec.Decrypt(hex.EncodeToString(mutated))
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("byte %d: expected ErrInvalidToken, got %v", i, err)
		}
	}
}

func TestSessionCodec_WrongKey(t *testing.T) {
	codec1, _ := NewSessionCodec("secret-one")
	codec2, _ := NewSessionCodec("secret-two")

	token, _ := codec1.Encrypt([]byte("payload"))
	if _, err := codec2.Decrypt(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken with wrong key, got %v", err)
	}
}

func TestSessionCodec_MalformedInput(t *testing.T) {
	codec, _ := NewSessionCodec("test-secret")

	inputs := []string{"", "not-hex!", "abcd", hex.EncodeToString(make([]byte, 31))}
	for _, in := range inputs {
		if _, err := codec.Decrypt(in); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Decrypt(%q): expected ErrInvalidToken, got %v", in, err)
		}
	}
}
