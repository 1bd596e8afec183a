package identity

import (
	"strings"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	if err == nil {
		t.Fatal("NewTokenService() should reject short secrets")
	}
}

func TestGenerateAndValidate(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("ext_abc")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a three-part JWT", token)
	}

	externalID, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if externalID != "ext_abc" {
		t.Errorf("subject = %q, want %q", externalID, "ext_abc")
	}
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Validate("this.is.garbage"); err == nil {
		t.Fatal("Validate() should reject a garbage token")
	}
}

func TestValidate_Expired(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("ext_abc", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}
	if _, err := ts.Validate(token); err == nil {
		t.Fatal("Validate() should reject an expired token")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts := newTestTokenService(t)
	other, err := NewTokenService("another-secret-with-16+-chars")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, _ := ts.Generate("ext_abc")
	if _, err := other.Validate(token); err == nil {
		t.Fatal("Validate() should reject a token signed with a different secret")
	}
}
