package util

import (
	"errors"
	"testing"
	"time"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Minute)

	token, err := signer.Issue("abc123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if err := signer.Validate("abc123", token); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
}

func TestTokenSigner_WrongCode(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Minute)

	token, err := signer.Issue("abc123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if err := signer.Validate("other", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for another code, got %v", err)
	}
}

func TestTokenSigner_Tampered(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Minute)

	token, err := signer.Issue("abc123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	tampered := "A" + token[1:]
	if err := signer.Validate("abc123", tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestTokenSigner_Expired(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), -time.Minute)

	token, err := signer.Issue("abc123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if err := signer.Validate("abc123", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenSigner_MissingSecret(t *testing.T) {
	signer := NewTokenSigner(nil, time.Minute)

	if _, err := signer.Issue("abc123"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
