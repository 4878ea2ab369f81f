package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func newCSRFRouter(t *testing.T, cfg CSRFConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	r := gin.New()
	r.Use(CSRF(cfg, log, nil))
	r.GET("/resource", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/resource", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/webhooks/inbound", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r
}

func csrfCookie(t *testing.T, res *http.Response) *http.Cookie {
	t.Helper()

	for _, ck := range res.Cookies() {
		if ck.Name == CSRFCookieName {
			return ck
		}
	}

	return nil
}

func TestCSRFMintsCookieOnSafeRequest(t *testing.T) {
	r := newCSRFRouter(t, CSRFConfig{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resource", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	ck := csrfCookie(t, w.Result())
	if ck == nil {
		t.Fatal("expected csrf cookie to be minted")
	}
	if len(ck.Value) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(ck.Value))
	}
	if ck.HttpOnly {
		t.Error("cookie must be readable by the client, got HttpOnly")
	}
	if ck.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", ck.SameSite)
	}
}

func TestCSRFSecureFlagFollowsConfig(t *testing.T) {
	r := newCSRFRouter(t, CSRFConfig{Secure: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resource", nil))

	ck := csrfCookie(t, w.Result())
	if ck == nil {
		t.Fatal("expected csrf cookie")
	}
	if !ck.Secure {
		t.Error("expected Secure cookie when configured")
	}
}

func TestCSRFRejectsUnsafeWithoutToken(t *testing.T) {
	r := newCSRFRouter(t, CSRFConfig{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resource", nil))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "forbidden") {
		t.Errorf("body = %s, want forbidden error code", w.Body.String())
	}
}

func TestCSRFRejectsMismatchedToken(t *testing.T) {
	r := newCSRFRouter(t, CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/resource", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: strings.Repeat("a", 64)})
	req.Header.Set(CSRFHeaderName, strings.Repeat("b", 64))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestCSRFAllowsMatchingToken(t *testing.T) {
	r := newCSRFRouter(t, CSRFConfig{})

	token := strings.Repeat("a", 64)
	req := httptest.NewRequest(http.MethodPost, "/resource", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
	req.Header.Set(CSRFHeaderName, token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestCSRFExemptPathSkipsValidation(t *testing.T) {
	r := newCSRFRouter(t, CSRFConfig{ExemptPaths: []string{"/webhooks/"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/inbound", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for exempt path", w.Code)
	}
}

func TestCSRFDisabledBypassesValidation(t *testing.T) {
	r := newCSRFRouter(t, CSRFConfig{Disabled: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resource", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when disabled", w.Code)
	}
}
