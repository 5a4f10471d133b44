package httpapi

import (
	"testing"
	"time"

	"esnafpos/internal/domain"
	"esnafpos/internal/store/memory"
)

func TestLoginAndParseToken(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("test-secret-key-test-secret-key!", time.Hour, repo)

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	repo := memory.NewSeeded()
	issuer := NewAuthManager("secret-one-secret-one-secret-one!", time.Hour, repo)
	verifier := NewAuthManager("secret-two-secret-two-secret-two!", time.Hour, repo)

	resp, err := issuer.Login(domain.LoginRequest{Username: "kasiyer", Password: "kasiyer123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token from other secret to be rejected")
	}
	if _, err := verifier.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}

func TestCreateCashierValidation(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("test-secret-key-test-secret-key!", time.Hour, repo)

	if _, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "ab", Password: "longenough"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "newcashier", Password: "123"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}

	cashier, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "NewCashier", Password: "gizli-sifre"})
	if err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	if cashier.Username != "newcashier" || cashier.Role != "cashier" {
		t.Fatalf("unexpected cashier: %+v", cashier)
	}

	if _, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "newcashier", Password: "gizli-sifre"}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}

	resp, err := auth.Login(domain.LoginRequest{Username: "newcashier", Password: "gizli-sifre"})
	if err != nil {
		t.Fatalf("new cashier login failed: %v", err)
	}
	if resp.Role != "cashier" {
		t.Fatalf("expected cashier role, got %s", resp.Role)
	}
}
