package reconcile

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

func logoutRecorder(t *testing.T, withToken bool) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	if withToken {
		req = req.WithContext(utils.SetTokenInContext(req.Context(), "session-token"))
	}
	c.Request = req
	LogoutHandler()(c)
	c.Writer.WriteHeaderNow()
	return rec
}

func TestLogoutRequiresSession(t *testing.T) {
	rec := logoutRecorder(t, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	rec := logoutRecorder(t, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
