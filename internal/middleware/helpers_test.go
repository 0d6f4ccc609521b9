package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/directory"
	"github.com/gin-gonic/gin"
)

const testSecret = "test-jwt-secret-that-is-32-chars!!"

// fakeDirectory is an in-memory directory.Directory. err, when set, is
// returned from every lookup. calls counts lookups by operation.
type fakeDirectory struct {
	accounts    map[string]*directory.Account
	preferences map[string]string
	memberships map[string]*directory.Membership // key: orgID + "/" + userID
	projects    map[string]*directory.ProjectOwnership
	err         error
	calls       map[string]int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		accounts:    map[string]*directory.Account{},
		preferences: map[string]string{},
		memberships: map[string]*directory.Membership{},
		projects:    map[string]*directory.ProjectOwnership{},
		calls:       map[string]int{},
	}
}

func (f *fakeDirectory) addAccount(id string, role auth.Role, active bool) *fakeDirectory {
	f.accounts[id] = &directory.Account{
		ID:       id,
		Email:    id + "@example.com",
		Name:     "User " + id,
		Role:     role,
		IsActive: active,
	}
	return f
}

func (f *fakeDirectory) addMembership(orgID, userID string, role auth.Role, active bool) *fakeDirectory {
	f.memberships[orgID+"/"+userID] = &directory.Membership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		IsActive:       active,
	}
	return f
}

func (f *fakeDirectory) addProject(id, owner string, assignee *string) *fakeDirectory {
	f.projects[id] = &directory.ProjectOwnership{ProjectID: id, OwnerUserID: owner, AssignedDeveloperUserID: assignee}
	return f
}

func (f *fakeDirectory) GetAccount(_ context.Context, userID string) (*directory.Account, error) {
	f.calls["account"]++
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[userID], nil
}

func (f *fakeDirectory) GetOrganizationPreference(_ context.Context, userID string) (string, error) {
	f.calls["preference"]++
	if f.err != nil {
		return "", f.err
	}
	return f.preferences[userID], nil
}

func (f *fakeDirectory) GetMembership(_ context.Context, orgID, userID string) (*directory.Membership, error) {
	f.calls["membership"]++
	if f.err != nil {
		return nil, f.err
	}
	return f.memberships[orgID+"/"+userID], nil
}

func (f *fakeDirectory) GetProjectOwnership(_ context.Context, projectID string) (*directory.ProjectOwnership, error) {
	f.calls["project"]++
	if f.err != nil {
		return nil, f.err
	}
	return f.projects[projectID], nil
}

func newTestCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec(testSecret)
	if err != nil {
		t.Fatalf("NewTokenCodec() error: %v", err)
	}
	return codec
}

func issueToken(t *testing.T, codec *auth.TokenCodec, claims auth.Claims) string {
	t.Helper()
	token, err := codec.Issue(claims)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	return token
}

// withPrincipal injects a principal the way AuthMiddleware would.
func withPrincipal(p *auth.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			attachPrincipal(c, *p)
		}
		c.Next()
	}
}

// withOrganizationAccess injects membership the way RequireOrganizationAccess would.
func withOrganizationAccess(access *auth.OrganizationAccess) gin.HandlerFunc {
	return func(c *gin.Context) {
		if access != nil {
			attachOrganizationAccess(c, *access)
		}
		c.Next()
	}
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func doGet(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	if body.Status != "error" {
		t.Errorf("status field = %q, want error", body.Status)
	}
	return body.Message
}

func expectDenied(t *testing.T, w *httptest.ResponseRecorder, code int, message string) {
	t.Helper()
	if w.Code != code {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, code, w.Body.String())
	}
	if got := decodeError(t, w); got != message {
		t.Errorf("message = %q, want %q", got, message)
	}
}

func strPtr(s string) *string { return &s }
