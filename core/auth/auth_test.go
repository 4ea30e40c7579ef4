package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("open sesame")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPasswordHash("open sesame", hash) {
		t.Error("correct passphrase rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("wrong passphrase accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, expires, err := issuer.GenerateToken("terminal")
	if err != nil {
		t.Fatal(err)
	}
	if !expires.After(time.Now()) {
		t.Errorf("expires = %v", expires)
	}
	claims, err := issuer.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Client != "terminal" || claims.Subject == "" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenRejected(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, _, _ := issuer.GenerateToken("a")

	if _, err := NewIssuer("other", time.Hour).ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret err = %v", err)
	}

	expired := NewIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired err = %v", err)
	}
	if _, err := issuer.ParseToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage err = %v", err)
	}
}
