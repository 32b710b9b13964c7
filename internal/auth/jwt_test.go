// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/cbd-importer/internal/config"
	"github.com/tomtom215/cbd-importer/internal/logging"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

//nolint:gochecknoinits // init silences logging for tests
func init() {
	logging.SetLevelString("disabled")
}

func testJWTConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		AuthMode:  AuthModeJWT,
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	}
}

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
		wantTTL time.Duration
	}{
		{"valid secret", testJWTConfig(), false, time.Hour},
		{"default ttl", &config.SecurityConfig{JWTSecret: testSecret}, false, DefaultTokenTTL},
		{"custom ttl", &config.SecurityConfig{JWTSecret: testSecret, TokenTTL: 5 * time.Minute}, false, 5 * time.Minute},
		{"empty secret", &config.SecurityConfig{}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewJWTManager(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewJWTManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewJWTManager() unexpected error = %v", err)
			}
			if m.timeout != tt.wantTTL {
				t.Errorf("timeout = %v, want %v", m.timeout, tt.wantTTL)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager(t)

	token, err := m.GenerateToken("64b7f0c2a1e4")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "64b7f0c2a1e4" {
		t.Errorf("UserID = %q", claims.UserID)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Errorf("ExpiresAt = %v, want within an hour", claims.ExpiresAt)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	m := newTestManager(t)

	other, err := NewJWTManager(&config.SecurityConfig{JWTSecret: "another-secret-that-is-also-32-characters"})
	if err != nil {
		t.Fatal(err)
	}
	foreign, _ := other.GenerateToken("u1")

	expiredClaims := &Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte(testSecret))

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{UserID: "u1"}).SignedString([]byte(testSecret))

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"other hmac algorithm", hs512},
		{"alg none", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ValidateToken(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
