package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-export-secret")

func TestIssueVerify(t *testing.T) {
	tok, err := Issue(testSecret, "warehouse", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := Verify(testSecret, tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "warehouse" {
		t.Errorf("expected subject warehouse, got %s", claims.Subject)
	}
	if claims.Scope != ScopeExport {
		t.Errorf("expected scope %s, got %s", ScopeExport, claims.Scope)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := Issue(testSecret, "warehouse", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Verify([]byte("other-secret"), tok); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestVerify_Expired(t *testing.T) {
	tok, err := Issue(testSecret, "warehouse", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Verify(testSecret, tok); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestVerify_Garbage(t *testing.T) {
	if _, err := Verify(testSecret, "not.a.token"); err == nil {
		t.Fatal("expected parse failure")
	}
}

func runMiddleware(t *testing.T, authorization string, scope string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(testSecret, scope)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return rec, handler(c)
}

func TestMiddleware_ValidToken(t *testing.T) {
	tok, err := Issue(testSecret, "warehouse", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec, err := runMiddleware(t, "Bearer "+tok, ScopeExport)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, "", ScopeExport)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_BadToken(t *testing.T) {
	_, err := runMiddleware(t, "Bearer garbage", ScopeExport)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_WrongScope(t *testing.T) {
	tok, err := Issue(testSecret, "warehouse", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = runMiddleware(t, "Bearer "+tok, "records:admin")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}
