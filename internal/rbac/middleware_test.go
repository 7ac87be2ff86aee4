package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"telecom-inbound/internal/auth"
)

func serve(t *testing.T, accountID, role, target string, allowed ...string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "svc", accountID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAccount(), RequireAnyRole(allowed...), func(c *gin.Context) {
		acct, _ := auth.AccountID(c.Request.Context())
		c.String(http.StatusOK, acct)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	w := serve(t, "", RoleAdmin, "/x?account_id=a9", RoleService)
	if w.Code != http.StatusOK || w.Body.String() != "a9" {
		t.Fatalf("expected admin to pick account, got %d %q", w.Code, w.Body.String())
	}
}

func TestRequireAnyRole_OperatorDeniedWhenNotAllowed(t *testing.T) {
	w := serve(t, "a1", RoleOperator, "/x", RoleService)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAccount(t *testing.T) {
	if w := serve(t, "", RoleService, "/x?account_id=a9", RoleService); w.Code != http.StatusUnauthorized {
		t.Fatalf("non-admin may not pick an account: %d", w.Code)
	}
	if w := serve(t, "", RoleAdmin, "/x", RoleService); w.Code != http.StatusUnauthorized {
		t.Fatalf("admin still needs an account: %d", w.Code)
	}
	if w := serve(t, "a1", RoleService, "/x?account_id=a9", RoleService); w.Body.String() != "a1" {
		t.Fatalf("token account must win: %q", w.Body.String())
	}
}
