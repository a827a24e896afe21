// Package middleware provides HTTP middleware components for the monitoring API.
package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractAPIKey_XAPIKeyHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("X-Api-Key", "secret-key")

	apiKey, found := extractAPIKey(req)
	if !found {
		t.Fatal("extractAPIKey should return true when X-Api-Key header is present")
	}

	if apiKey != "secret-key" {
		t.Errorf("Expected %q, got %q", "secret-key", apiKey)
	}
}

func TestExtractAPIKey_AuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("Authorization", "Bearer secret-key")

	apiKey, found := extractAPIKey(req)
	if !found {
		t.Fatal("extractAPIKey should return true when Authorization header is present")
	}

	if apiKey != "secret-key" {
		t.Errorf("Expected %q, got %q", "secret-key", apiKey)
	}
}

func TestExtractAPIKey_XAPIKeyTakesPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("X-Api-Key", "from-header")
	req.Header.Set("Authorization", "Bearer from-bearer")

	apiKey, found := extractAPIKey(req)
	if !found || apiKey != "from-header" {
		t.Errorf("Expected %q, got %q (found=%v)", "from-header", apiKey, found)
	}
}

func TestExtractAPIKey_NoHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)

	if _, found := extractAPIKey(req); found {
		t.Error("extractAPIKey should return false when no headers are present")
	}
}

func TestExtractAPIKey_HeaderInjection(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("X-Api-Key", "key\r\nX-Injected: true")

	if _, found := extractAPIKey(req); found {
		t.Error("extractAPIKey should reject keys containing CR/LF")
	}
}

func TestAuthenticateKey_Success(t *testing.T) {
	handlerCalled := false
	next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
	})

	mw := AuthenticateKey("expected-key", testLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("X-Api-Key", "expected-key")
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("next handler should be called for a matching key")
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthenticateKey_MissingKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("next handler should not be called without a key")
		w.WriteHeader(http.StatusOK)
	})

	mw := AuthenticateKey("expected-key", testLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAuthenticateKey_WrongKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("next handler should not be called for a wrong key")
		w.WriteHeader(http.StatusOK)
	})

	mw := AuthenticateKey("expected-key", testLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("X-Api-Key", "wrong-key")
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected RFC 7807 content type, got %q", ct)
	}
}
