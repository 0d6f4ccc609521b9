package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/client-portal/portal/internal/auth"
	"github.com/gin-gonic/gin"
)

// newAuthRouter returns a router where GET /me echoes the resolved principal.
func newAuthRouter(codec *auth.TokenCodec, dir *fakeDirectory) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/me", AuthMiddleware(codec, dir), func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id": p.UserID,
			"email":   p.Email,
			"name":    p.Name,
			"role":    p.Role,
			"org":     p.CurrentOrganizationID,
		})
	})
	return r
}

func decodePrincipal(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	return out
}

func TestAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	codec := newTestCodec(t)
	dir := newFakeDirectory()
	r := newAuthRouter(codec, dir)

	headers := []struct {
		name  string
		value string
	}{
		{"missing", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"bearer without token", "Bearer "},
		{"bearer with spaces only", "Bearer    "},
		{"lowercase scheme", "bearer abc"},
	}
	for _, h := range headers {
		t.Run(h.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if h.value != "" {
				req.Header.Set("Authorization", h.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			expectDenied(t, w, http.StatusUnauthorized, auth.MsgTokenRequired)
		})
	}
	if dir.calls["account"] != 0 {
		t.Errorf("directory consulted %d times for missing tokens", dir.calls["account"])
	}
}

func TestAuthMiddleware_InvalidTokens(t *testing.T) {
	codec := newTestCodec(t)
	dir := newFakeDirectory().addAccount("u1", auth.RoleCustomer, true)
	r := newAuthRouter(codec, dir)

	other, err := auth.NewTokenCodec("another-secret-of-sufficient-size!")
	if err != nil {
		t.Fatalf("NewTokenCodec() error: %v", err)
	}
	past, err := auth.NewTokenCodec(testSecret, auth.WithClock(func() time.Time {
		return time.Now().Add(-auth.TokenTTL - time.Hour)
	}))
	if err != nil {
		t.Fatalf("NewTokenCodec() error: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "garbage"},
		{"wrong secret", issueToken(t, other, auth.Claims{UserID: "u1"})},
		{"expired", issueToken(t, past, auth.Claims{UserID: "u1"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(r, "/me", tt.token)
			expectDenied(t, w, http.StatusUnauthorized, auth.MsgInvalidToken)
		})
	}
}

func TestAuthMiddleware_AccountState(t *testing.T) {
	codec := newTestCodec(t)
	dir := newFakeDirectory().
		addAccount("active", auth.RoleCustomer, true).
		addAccount("disabled", auth.RoleAdmin, false)
	r := newAuthRouter(codec, dir)

	t.Run("inactive account is rejected with a valid token", func(t *testing.T) {
		w := doGet(r, "/me", issueToken(t, codec, auth.Claims{UserID: "disabled", Role: auth.RoleAdmin}))
		expectDenied(t, w, http.StatusUnauthorized, auth.MsgInvalidToken)
	})

	t.Run("deleted account is indistinguishable from a bad token", func(t *testing.T) {
		w := doGet(r, "/me", issueToken(t, codec, auth.Claims{UserID: "ghost"}))
		expectDenied(t, w, http.StatusUnauthorized, auth.MsgInvalidToken)
	})

	t.Run("active account passes", func(t *testing.T) {
		w := doGet(r, "/me", issueToken(t, codec, auth.Claims{UserID: "active"}))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
		}
	})
}

func TestAuthMiddleware_PrincipalReflectsLiveRecord(t *testing.T) {
	codec := newTestCodec(t)
	dir := newFakeDirectory().addAccount("u1", auth.RoleCustomer, true)
	r := newAuthRouter(codec, dir)

	// Token claims a stale admin role and old name.
	token := issueToken(t, codec, auth.Claims{
		UserID: "u1",
		Email:  "old@example.com",
		Role:   auth.RoleAdmin,
		Name:   "Old Name",
	})

	w := doGet(r, "/me", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decodePrincipal(t, w)
	if got["role"] != string(auth.RoleCustomer) {
		t.Errorf("role = %q, want live role customer", got["role"])
	}
	if got["name"] != "User u1" {
		t.Errorf("name = %q, want live name", got["name"])
	}
	if got["email"] != "u1@example.com" {
		t.Errorf("email = %q, want live email", got["email"])
	}
}

func TestAuthMiddleware_CurrentOrganization(t *testing.T) {
	codec := newTestCodec(t)

	t.Run("token claim wins over preference", func(t *testing.T) {
		dir := newFakeDirectory().addAccount("u1", auth.RoleCustomer, true)
		dir.preferences["u1"] = "org-pref"
		r := newAuthRouter(codec, dir)

		w := doGet(r, "/me", issueToken(t, codec, auth.Claims{UserID: "u1", CurrentOrganizationID: "org-claim"}))
		if got := decodePrincipal(t, w)["org"]; got != "org-claim" {
			t.Errorf("org = %q, want org-claim", got)
		}
		if dir.calls["preference"] != 0 {
			t.Error("preference should not be read when the token carries an organization")
		}
	})

	t.Run("preference used when claim absent", func(t *testing.T) {
		dir := newFakeDirectory().addAccount("u1", auth.RoleCustomer, true)
		dir.preferences["u1"] = "org-pref"
		r := newAuthRouter(codec, dir)

		w := doGet(r, "/me", issueToken(t, codec, auth.Claims{UserID: "u1"}))
		if got := decodePrincipal(t, w)["org"]; got != "org-pref" {
			t.Errorf("org = %q, want org-pref", got)
		}
	})

	t.Run("neither is not an error", func(t *testing.T) {
		dir := newFakeDirectory().addAccount("u1", auth.RoleCustomer, true)
		r := newAuthRouter(codec, dir)

		w := doGet(r, "/me", issueToken(t, codec, auth.Claims{UserID: "u1"}))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if got := decodePrincipal(t, w)["org"]; got != "" {
			t.Errorf("org = %q, want empty", got)
		}
	})
}

func TestAuthMiddleware_DirectoryFailureIs500(t *testing.T) {
	codec := newTestCodec(t)
	dir := newFakeDirectory()
	dir.err = errors.New("connection refused")
	r := newAuthRouter(codec, dir)

	w := doGet(r, "/me", issueToken(t, codec, auth.Claims{UserID: "u1"}))
	expectDenied(t, w, http.StatusInternalServerError, msgInternalError)
	if dir.calls["account"] != 1 {
		t.Errorf("account lookups = %d, want exactly 1 (no retries)", dir.calls["account"])
	}
}

func TestResolveIdentity_ErrorKinds(t *testing.T) {
	codec := newTestCodec(t)
	dir := newFakeDirectory().addAccount("u1", auth.RoleDeveloper, true)

	_, err := ResolveIdentity(context.Background(), codec, dir, "")
	if !auth.IsKind(err, auth.KindUnauthenticated) {
		t.Errorf("empty header: error = %v, want unauthenticated", err)
	}

	_, err = ResolveIdentity(context.Background(), codec, dir, "Bearer not-a-jwt")
	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Errorf("bad token: error = %v, want to wrap ErrTokenInvalid", err)
	}

	p, err := ResolveIdentity(context.Background(), codec, dir, "Bearer "+issueToken(t, codec, auth.Claims{UserID: "u1"}))
	if err != nil {
		t.Fatalf("ResolveIdentity() error: %v", err)
	}
	if p.Role != auth.RoleDeveloper || p.UserID != "u1" {
		t.Errorf("principal = %+v", p)
	}
}
