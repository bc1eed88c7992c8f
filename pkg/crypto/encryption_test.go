package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte("k"), KeySize)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey(), 1)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	ct, err := enc.Encrypt("super-secret-api-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !strings.HasPrefix(ct, "ENC[v1]:") {
		t.Fatalf("missing version prefix: %s", ct)
	}
	if strings.Contains(ct, "super-secret") {
		t.Fatal("ciphertext leaks plaintext")
	}

	pt, err := enc.Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "super-secret-api-key" {
		t.Fatalf("unexpected plaintext %q", pt)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	enc, _ := NewEncryptor(testKey(), 1)
	a, _ := enc.Encrypt("same")
	b, _ := enc.Encrypt("same")
	if a == b {
		t.Fatal("identical ciphertext for repeated plaintext")
	}
}

func TestNewEncryptorRejectsShortKey(t *testing.T) {
	if _, err := NewEncryptor([]byte("short"), 1); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	enc, _ := NewEncryptor(testKey(), 1)
	ct, _ := enc.Encrypt("value")

	other, _ := NewEncryptor(bytes.Repeat([]byte("x"), KeySize), 1)
	if _, err := other.Decrypt(ct); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	enc, _ := NewEncryptor(testKey(), 1)
	for _, in := range []string{"", "plain", "ENC[v1]:!!!", "ENC[v1]:AAAA"} {
		if _, err := enc.Decrypt(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestParseVersion(t *testing.T) {
	enc, _ := NewEncryptor(testKey(), 3)
	ct, _ := enc.Encrypt("value")
	if got := ParseVersion(ct); got != 3 {
		t.Fatalf("expected version 3, got %d", got)
	}
	if got := ParseVersion("garbage"); got != 0 {
		t.Fatalf("expected 0 for garbage, got %d", got)
	}
}
