package webhook

import (
	"strings"
	"testing"
)

func TestSignAndVerify(t *testing.T) {
	secret := "test-secret-key"
	payload := []byte(`{"type":"transcription.completed","data":{}}`)

	sig := Sign(secret, payload)
	if !strings.HasPrefix(sig, "sha256=") {
		t.Errorf("signature should start with 'sha256=', got %q", sig)
	}
	if !Verify(secret, payload, sig) {
		t.Error("Verify should return true for valid signature")
	}
	if Verify("wrong-secret", payload, sig) {
		t.Error("Verify should return false for wrong secret")
	}
	if Verify(secret, []byte("tampered"), sig) {
		t.Error("Verify should return false for tampered payload")
	}
}

func TestSignWithoutSecret(t *testing.T) {
	if sig := Sign("", []byte("x")); sig != "" {
		t.Errorf("Sign without secret = %q", sig)
	}
	if Verify("", []byte("x"), "") {
		t.Error("Verify without secret should fail")
	}
}
