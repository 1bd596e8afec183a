package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/codelove/codelove/internal/apperror"
	"github.com/codelove/codelove/internal/identity"
	"github.com/codelove/codelove/internal/model"
)

func validForm() RegistrationForm {
	return RegistrationForm{
		Handle:    "newbie",
		Email:     "new@x.com",
		Password:  "hunter2hunter2",
		FirstName: "New",
		LastName:  "Bie",
	}
}

func TestRegister_MissingFieldsNoIO(t *testing.T) {
	svc, repo, provider := newTestAccountService(t)

	tests := []struct {
		name string
		form RegistrationForm
	}{
		{"no handle", RegistrationForm{Email: "a@x.com", Password: "longenough"}},
		{"no email", RegistrationForm{Handle: "someone", Password: "longenough"}},
		{"no password", RegistrationForm{Handle: "someone", Email: "a@x.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := svc.Register(context.Background(), tt.form)
			if result.Success {
				t.Fatal("Register() should fail on missing required fields")
			}
			if result.Message == "" {
				t.Error("failure should carry a message")
			}
		})
	}

	if repo.findByHandleCalls != 0 || repo.createCalls != 0 || provider.listCalls != 0 || provider.createCalls != 0 {
		t.Error("missing-field validation must short-circuit before any I/O")
	}
}

func TestRegister_InvalidHandleNoIO(t *testing.T) {
	svc, _, provider := newTestAccountService(t)

	form := validForm()
	form.Handle = "al" // below minimum length

	result := svc.Register(context.Background(), form)
	if result.Success {
		t.Fatal("Register() should reject an invalid handle")
	}
	if provider.listCalls != 0 || provider.createCalls != 0 {
		t.Error("invalid handle must be rejected before any provider call")
	}
}

func TestRegister_LocalHandleConflict(t *testing.T) {
	svc, repo, provider := newTestAccountService(t)
	repo.add(model.User{Email: "a@x.com", Handle: "alice"})

	result := svc.Register(context.Background(), RegistrationForm{
		Handle: "alice", Email: "b@x.com", Password: "longenough",
	})

	if result.Success {
		t.Fatal("Register() should fail when the handle is taken locally")
	}
	if result.Message != "Username already taken" {
		t.Errorf("Message = %q, want %q", result.Message, "Username already taken")
	}
	if result.Field != "handle" {
		t.Errorf("Field = %q, want %q", result.Field, "handle")
	}
	if provider.listCalls != 0 || provider.createCalls != 0 {
		t.Error("local conflict must short-circuit before any provider call")
	}
}

func TestRegister_LocalEmailConflict(t *testing.T) {
	svc, repo, _ := newTestAccountService(t)
	repo.add(model.User{Email: "taken@x.com", Handle: "someone"})

	result := svc.Register(context.Background(), RegistrationForm{
		Handle: "different", Email: "taken@x.com", Password: "longenough",
	})

	if result.Message != "Email already registered" {
		t.Errorf("Message = %q, want %q", result.Message, "Email already registered")
	}
	if result.Field != "email" {
		t.Errorf("Field = %q, want %q", result.Field, "email")
	}
}

func TestRegister_HandleConflictWinsOverEmail(t *testing.T) {
	svc, repo, _ := newTestAccountService(t)
	// One record matching both keys: handle takes priority in the message.
	repo.add(model.User{Email: "both@x.com", Handle: "bothuser"})

	result := svc.Register(context.Background(), RegistrationForm{
		Handle: "bothuser", Email: "both@x.com", Password: "longenough",
	})
	if result.Message != "Username already taken" {
		t.Errorf("Message = %q, want handle conflict to win", result.Message)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	svc, repo, _ := newTestAccountService(t)
	repo.add(model.User{Email: "dup@x.com", Handle: "dupuser"})

	form := RegistrationForm{Handle: "fresh", Email: "dup@x.com", Password: "longenough"}

	first := svc.Register(context.Background(), form)
	second := svc.Register(context.Background(), form)

	if first.Success || second.Success {
		t.Fatal("both attempts should fail with a conflict")
	}
	if first.Message != second.Message {
		t.Errorf("messages differ across identical calls: %q vs %q", first.Message, second.Message)
	}
	if len(repo.users) != 1 {
		t.Errorf("store has %d records, want 1 — no duplicates on repeat registration", len(repo.users))
	}
}

func TestRegister_ExternalHandleConflict(t *testing.T) {
	svc, _, provider := newTestAccountService(t)
	provider.byHandle["newbie"] = identity.Identity{ID: "ext_1", Handle: "newbie"}

	result := svc.Register(context.Background(), validForm())

	if result.Success {
		t.Fatal("Register() should fail when the handle exists at the provider")
	}
	if result.Message == "Username already taken" {
		t.Error("external conflict should be distinguishable from the local conflict message")
	}
	if !strings.Contains(result.Message, "taken") {
		t.Errorf("Message = %q should still say the name is taken", result.Message)
	}
	if provider.createCalls != 0 {
		t.Error("no account may be created after an external conflict")
	}
}

func TestRegister_LocalCheckFailureFailsClosed(t *testing.T) {
	svc, repo, provider := newTestAccountService(t)
	repo.findErr = errors.New("connection reset")

	result := svc.Register(context.Background(), validForm())
	if result.Success {
		t.Fatal("Register() must fail closed when the local check fails")
	}
	if provider.createCalls != 0 {
		t.Error("no account may be created when the conflict check could not run")
	}
}

func TestRegister_ProviderMessagePassedVerbatim(t *testing.T) {
	svc, _, provider := newTestAccountService(t)
	provider.createErr = apperror.ValidationFailed("password", "Passwords must be 8 characters or more.")

	result := svc.Register(context.Background(), validForm())

	if result.Success {
		t.Fatal("Register() should surface the provider rejection")
	}
	if result.Message != "Passwords must be 8 characters or more." {
		t.Errorf("Message = %q; provider validation messages are shown verbatim", result.Message)
	}
	if result.Field != "password" {
		t.Errorf("Field = %q, want %q", result.Field, "password")
	}
}

func TestRegister_ProviderTransportFailureIsGeneric(t *testing.T) {
	svc, _, provider := newTestAccountService(t)
	provider.createErr = errors.New("dial tcp: i/o timeout")

	result := svc.Register(context.Background(), validForm())
	if result.Success {
		t.Fatal("Register() should fail on provider transport errors")
	}
	if strings.Contains(result.Message, "i/o timeout") {
		t.Error("transport errors must be normalized, not leaked to the user")
	}
}

func TestRegister_Success(t *testing.T) {
	svc, repo, provider := newTestAccountService(t)

	result := svc.Register(context.Background(), validForm())

	if !result.Success {
		t.Fatalf("Register() failed: %s", result.Message)
	}
	if result.PendingID == "" {
		t.Error("success should carry the pending signup id")
	}
	if provider.createCalls != 1 {
		t.Errorf("provider createCalls = %d, want 1", provider.createCalls)
	}
	if provider.sendCalls != 1 {
		t.Errorf("provider sendCalls = %d, want 1 — verification must be triggered", provider.sendCalls)
	}
	if len(repo.users) != 0 {
		t.Error("no local record may exist before email verification completes")
	}
	// Name fields must reach the provider.
	if got := provider.createdSignups[0]; got.FirstName != "New" || got.LastName != "Bie" {
		t.Errorf("signup name fields = %q %q, want New Bie", got.FirstName, got.LastName)
	}
}

// =========================================================================
// VERIFICATION TESTS
// =========================================================================

func TestConfirmVerification_WrongCodeRetryable(t *testing.T) {
	svc, _, provider := newTestAccountService(t)
	provider.verification = &identity.Verification{Complete: false}

	result := svc.ConfirmVerification(context.Background(), "pend_1", "000000")

	if result.Success {
		t.Fatal("a rejected code must not succeed")
	}
	if result.Message != "Invalid verification code." {
		t.Errorf("Message = %q, want %q", result.Message, "Invalid verification code.")
	}
	if result.SessionToken != "" {
		t.Error("no session may be issued for a rejected code")
	}
}

func TestConfirmVerification_SuccessReconcilesSynchronously(t *testing.T) {
	svc, repo, provider := newTestAccountService(t)
	provider.verification = &identity.Verification{Complete: true, SessionToken: "sess-token"}
	provider.sessionIdentity = &identity.Identity{
		ID: "ext_1", Email: "new@x.com", Handle: "newbie", FirstName: "New", LastName: "Bie",
	}

	result := svc.ConfirmVerification(context.Background(), "pend_1", "123456")

	if !result.Success {
		t.Fatalf("ConfirmVerification() failed: %s", result.Message)
	}
	if result.SessionToken != "sess-token" {
		t.Errorf("SessionToken = %q, want %q", result.SessionToken, "sess-token")
	}
	if result.Reconcile.Outcome != ReconcileCreated {
		t.Errorf("Reconcile.Outcome = %q, want %q — the local record must exist before success", result.Reconcile.Outcome, ReconcileCreated)
	}
	if len(repo.users) != 1 {
		t.Errorf("store has %d records, want 1", len(repo.users))
	}
}

func TestConfirmVerification_ReconcileFailureDoesNotBlockSession(t *testing.T) {
	svc, repo, provider := newTestAccountService(t)
	provider.verification = &identity.Verification{Complete: true, SessionToken: "sess-token"}
	provider.sessionIdentity = &identity.Identity{ID: "ext_1", Email: "new@x.com", Handle: "newbie"}
	repo.createErr = errors.New("disk full")

	result := svc.ConfirmVerification(context.Background(), "pend_1", "123456")

	if !result.Success {
		t.Fatal("the verified session must survive a reconcile failure")
	}
	if result.Reconcile.Outcome != ReconcileFailed {
		t.Errorf("Reconcile.Outcome = %q, want %q", result.Reconcile.Outcome, ReconcileFailed)
	}
}

func TestConfirmVerification_ProviderFailure(t *testing.T) {
	svc, _, provider := newTestAccountService(t)
	provider.confirmErr = errors.New("provider down")

	result := svc.ConfirmVerification(context.Background(), "pend_1", "123456")
	if result.Success {
		t.Fatal("provider failure must not succeed")
	}
}

func TestConfirmVerification_EmptyInputsNoIO(t *testing.T) {
	svc, _, provider := newTestAccountService(t)

	result := svc.ConfirmVerification(context.Background(), "", "")
	if result.Success {
		t.Fatal("empty inputs must fail")
	}
	if provider.confirmCalls != 0 {
		t.Error("empty inputs must not reach the provider")
	}
}
