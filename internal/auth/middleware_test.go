package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const ratingPath = "/features/gcpv/pub/78347/rating"

func newHandler(t *testing.T, secret []byte, seen *Role) http.Handler {
	t.Helper()
	policy := NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	mw := NewMiddleware(secret, policy)
	return mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = RoleFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddleware_NoTokenOnRatingUpdate(t *testing.T) {
	handler := newHandler(t, []byte("test-secret"), nil)

	req := httptest.NewRequest(http.MethodPut, ratingPath, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerForbiddenRatingUpdate(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer")
	handler := newHandler(t, secret, nil)

	req := httptest.NewRequest(http.MethodPut, ratingPath, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_EditorAllowedRatingUpdate(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "editor")
	var seen Role
	handler := newHandler(t, secret, &seen)

	req := httptest.NewRequest(http.MethodPut, ratingPath, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || seen != RoleEditor {
		t.Fatalf("expected 200 as editor, got %d role=%q", resp.Code, seen)
	}
}

func TestAuthMiddleware_FeaturesOpenToAnonymous(t *testing.T) {
	var seen Role = "unset"
	handler := newHandler(t, []byte("test-secret"), &seen)

	req := httptest.NewRequest(http.MethodPost, "/features", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || seen != "" {
		t.Fatalf("expected anonymous 200, got %d role=%q", resp.Code, seen)
	}
}

func TestAuthMiddleware_OptionalIdentityOnOpenRoute(t *testing.T) {
	secret := []byte("test-secret")
	var seen Role
	handler := newHandler(t, secret, &seen)

	req := httptest.NewRequest(http.MethodPost, "/features", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "admin"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || seen != RoleAdmin {
		t.Fatalf("expected admin identity, got %d role=%q", resp.Code, seen)
	}

	req = httptest.NewRequest(http.MethodPost, "/features", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, []byte("other-secret"), "admin"))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || seen != "" {
		t.Fatalf("invalid token should be ignored on open routes, got %d role=%q", resp.Code, seen)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler := newHandler(t, []byte("test-secret"), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAtLeast(RoleAdmin, RoleEditor) || RoleAtLeast(RoleViewer, RoleEditor) || RoleAtLeast("", RoleViewer) {
		t.Fatalf("unexpected role ordering")
	}
}

func mustToken(t *testing.T, secret []byte, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
