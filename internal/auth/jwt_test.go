package auth

import (
	"testing"
	"time"

	"wallet-ledger/config"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Minute, Issuer: "wallet-ledger"}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 7, "ADMIN")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	claims, err := ParseAccessToken(cfg, tok)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != 7 || claims.Role != "ADMIN" {
		t.Fatalf("claims want 7/ADMIN got %d/%s", claims.UserID, claims.Role)
	}
}

func TestParseRejectsWrongSecretAndExpired(t *testing.T) {
	cfg := testJWTConfig()
	tok, _ := GenerateAccessToken(cfg, 7, "USER")

	other := testJWTConfig()
	other.AccessSecret = "other"
	if _, err := ParseAccessToken(other, tok); err != ErrInvalidToken {
		t.Fatalf("wrong secret want ErrInvalidToken got %v", err)
	}

	expired := testJWTConfig()
	expired.AccessExpiry = -time.Minute
	old, _ := GenerateAccessToken(expired, 7, "USER")
	if _, err := ParseAccessToken(cfg, old); err != ErrInvalidToken {
		t.Fatalf("expired want ErrInvalidToken got %v", err)
	}
}

func TestParseRejectsForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()
	foreign := testJWTConfig()
	foreign.Issuer = "someone-else"
	tok, _ := GenerateAccessToken(foreign, 7, "USER")
	if _, err := ParseAccessToken(cfg, tok); err != ErrInvalidToken {
		t.Fatalf("foreign issuer want ErrInvalidToken got %v", err)
	}
}
