package services

import (
	"context"
	"errors"
	"testing"

	"github.com/PR1MKO/iktato-backend/internal/actor"
)

func TestLoginAndTokenRoundTrip(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	user, err := te.auth.RegisterUser(ctx, "szakerto1", "titok123", "Dr. Teszt", "drteszt", "szakértő")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != "expert" {
		t.Fatalf("stored role = %q, want canonical expert", user.Role)
	}

	token, _, err := te.auth.Login(ctx, "szakerto1", "titok123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	authedCtx, err := te.auth.SetContextFromToken(ctx, token)
	if err != nil {
		t.Fatalf("set context: %v", err)
	}
	act, ok := actor.FromContext(authedCtx)
	if !ok {
		t.Fatal("no actor in authed context")
	}
	if act.UserID != user.ID || act.Role != "expert" {
		t.Fatalf("actor = %+v, want user %d role expert", act, user.ID)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	if _, err := te.auth.RegisterUser(ctx, "iroda1", "jo-jelszo", "", "", "iroda"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := te.auth.Login(ctx, "iroda1", "rossz"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	te := newTestEnv(t)
	_, err := te.auth.RegisterUser(context.Background(), "valaki", "x12345", "", "", "varázsló")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	if _, err := te.auth.RegisterUser(ctx, "iroda1", "x12345", "", "", "office"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := te.auth.RegisterUser(ctx, "iroda1", "y12345", "", "", "office"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}
