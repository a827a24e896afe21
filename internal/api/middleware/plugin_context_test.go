// Package middleware provides HTTP middleware components for the monitoring API.
package middleware

import (
	"context"
	"testing"
	"time"
)

// TestGetAuthContext_NotFound verifies that GetAuthContext returns an empty
// context and false when no auth context exists in the request context.
func TestGetAuthContext_NotFound(t *testing.T) {
	ctx := context.Background()
	authCtx, found := GetAuthContext(ctx)

	if found {
		t.Error("GetAuthContext should return false when context not found")
	}

	if !authCtx.AuthTime.IsZero() {
		t.Errorf("Expected zero AuthTime, got %v", authCtx.AuthTime)
	}
}

// TestSetAuthContext verifies that SetAuthContext stores the auth context and
// GetAuthContext retrieves it, without mutating the original context.
func TestSetAuthContext(t *testing.T) {
	ctx := context.Background()
	authTime := time.Now()

	newCtx := SetAuthContext(ctx, AuthContext{AuthTime: authTime})

	_, found := GetAuthContext(ctx)
	if found {
		t.Error("original context should not contain an auth context")
	}

	retrieved, found := GetAuthContext(newCtx)
	if !found {
		t.Fatal("new context should contain an auth context")
	}

	if !retrieved.AuthTime.Equal(authTime) {
		t.Errorf("Expected AuthTime %v, got %v", authTime, retrieved.AuthTime)
	}
}

// TestSetAuthContext_MultipleValues verifies that calling SetAuthContext
// again overwrites the previously stored value.
func TestSetAuthContext_MultipleValues(t *testing.T) {
	ctx := context.Background()

	first := time.Now()
	second := first.Add(time.Minute)

	ctx = SetAuthContext(ctx, AuthContext{AuthTime: first})
	ctx = SetAuthContext(ctx, AuthContext{AuthTime: second})

	retrieved, found := GetAuthContext(ctx)
	if !found {
		t.Fatal("context should contain an auth context")
	}

	if !retrieved.AuthTime.Equal(second) {
		t.Errorf("Expected AuthTime %v, got %v", second, retrieved.AuthTime)
	}
}
