package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/token-gate/internal/ui"
)

// browser はテスト用の簡易 Cookie 保持クライアントです。
type browser struct {
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, upstreamURL string) *browser {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reconciler, err := NewReconciler(Config{URL: upstreamURL}, nil, nil)
	if err != nil {
		t.Fatalf("NewReconciler returned error: %v", err)
	}
	handler, err := NewHandler(reconciler, HandlerOptions{LogoutButtonName: "Sign out"}, nil)
	if err != nil {
		t.Fatalf("NewHandler returned error: %v", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(ui.Templates())
	router.Use(sessions.Sessions(SessionCookieName, cookie.NewStore([]byte("test-secret"))))
	router.GET("/", handler.Page)
	router.POST("/login", handler.SubmitLogin)
	router.POST("/logout", handler.SubmitLogout)
	router.POST("/api/auth/login", handler.APILogin)
	router.POST("/api/auth/logout", handler.APILogout)
	router.GET("/api/auth/status", handler.APIStatus)
	router.GET("/api/protected/me", handler.RequireLogin(), handler.Me)

	return &browser{router: router, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postJSON(path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v body=%s", err, rec.Body.String())
	}
	return payload
}

func TestAPILoginStatusLogout(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, `{"access":"tok123","refresh":"r1"}`)
	b := newBrowser(t, upstream.server.URL)

	rec := b.postJSON("/api/auth/login", map[string]string{"username": "alice", "password": "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if c := b.cookies["access"]; c == nil || c.Value != "tok123" {
		t.Fatalf("access cookie not set: %#v", b.cookies)
	}
	if c := b.cookies["refresh"]; c == nil || c.Value != "r1" {
		t.Fatalf("refresh cookie not set: %#v", b.cookies)
	}
	if b.cookies["access"].MaxAge != int(DefaultCookieLifetime.Seconds()) {
		t.Fatalf("unexpected Max-Age: %d", b.cookies["access"].MaxAge)
	}

	rec = b.get("/api/auth/status")
	payload := decodeBody(t, rec)
	if payload["authenticated"] != true || payload["username"] != "alice" {
		t.Fatalf("unexpected status payload: %v", payload)
	}

	rec = b.get("/api/protected/me")
	if rec.Code != http.StatusOK {
		t.Fatalf("protected route status: %d", rec.Code)
	}

	rec = b.do(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected logout status: %d", rec.Code)
	}
	if _, ok := b.cookies["access"]; ok {
		t.Fatal("access cookie should be deleted on logout")
	}
	if _, ok := b.cookies["refresh"]; ok {
		t.Fatal("refresh cookie should be deleted on logout")
	}

	payload = decodeBody(t, b.get("/api/auth/status"))
	if payload["authenticated"] != false {
		t.Fatalf("unexpected status payload after logout: %v", payload)
	}
	if _, ok := payload["username"]; ok {
		t.Fatalf("username should be unset after logout: %v", payload)
	}
}

func TestAPILoginRejected(t *testing.T) {
	upstream := newUpstream(t, http.StatusUnauthorized, `{"detail":"bad credentials"}`)
	b := newBrowser(t, upstream.server.URL)

	rec := b.postJSON("/api/auth/login", map[string]string{"username": "alice", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["code"] != CodeUpstreamRejected {
		t.Fatalf("unexpected code: %v", payload["code"])
	}
	if _, ok := b.cookies["access"]; ok {
		t.Fatal("no token cookie expected after rejection")
	}
}

func TestAPILoginUpstreamError(t *testing.T) {
	upstream := newUpstream(t, http.StatusInternalServerError, `boom`)
	b := newBrowser(t, upstream.server.URL)

	rec := b.postJSON("/api/auth/login", map[string]string{"username": "alice", "password": "s3cret"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestAPILoginEmptyCredentials(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, `{"access":"tok123"}`)
	b := newBrowser(t, upstream.server.URL)

	rec := b.postForm("/api/auth/login", url.Values{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if payload := decodeBody(t, rec); payload["code"] != CodeInvalidInput {
		t.Fatalf("unexpected code: %v", payload["code"])
	}
	if n := upstream.calls.Load(); n != 0 {
		t.Fatalf("upstream called %d times, want 0", n)
	}
}

func TestRequireLoginRejectsAnonymous(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, `{}`)
	b := newBrowser(t, upstream.server.URL)

	rec := b.get("/api/protected/me")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestPageRendersLoginFormThenHome(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, `{"access":"tok123"}`)
	b := newBrowser(t, upstream.server.URL)

	rec := b.get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `id="JWTLogin"`) {
		t.Fatalf("expected login form, got %s", rec.Body.String())
	}

	rec = b.postForm("/login", url.Values{"username": {"alice"}, "password": {"s3cret"}, "location": {"sidebar"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?location=sidebar" {
		t.Fatalf("unexpected redirect: %s", loc)
	}

	rec = b.get("/?location=sidebar")
	body := rec.Body.String()
	if !strings.Contains(body, "Sign out") || !strings.Contains(body, "alice") {
		t.Fatalf("expected home page with logout button, got %s", body)
	}

	rec = b.postForm("/logout", url.Values{"location": {"main"}, "key": {"logout"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if _, ok := b.cookies["access"]; ok {
		t.Fatal("access cookie should be deleted on logout")
	}

	rec = b.get("/")
	if !strings.Contains(rec.Body.String(), `id="JWTLogin"`) {
		t.Fatal("expected login form after logout")
	}
}

func TestPageShowsLoginFailureMessage(t *testing.T) {
	upstream := newUpstream(t, http.StatusUnauthorized, `{}`)
	b := newBrowser(t, upstream.server.URL)

	b.postForm("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	rec := b.get("/")
	body := rec.Body.String()
	if !strings.Contains(body, "ユーザー名またはパスワードが正しくありません") {
		t.Fatalf("expected error message, got %s", body)
	}
	if !strings.Contains(body, `value="alice"`) {
		t.Fatalf("expected username to be kept in the form, got %s", body)
	}

	// フラッシュメッセージは一度だけ表示される
	rec = b.get("/")
	if strings.Contains(rec.Body.String(), "ユーザー名またはパスワードが正しくありません") {
		t.Fatal("flash message should be shown only once")
	}
}

func TestPageInvalidLocation(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, `{}`)
	b := newBrowser(t, upstream.server.URL)

	rec := b.get("/?location=footer")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestNewHandlerInvalidLocation(t *testing.T) {
	reconciler, err := NewReconciler(Config{URL: "http://upstream.invalid/token"}, nil, nil)
	if err != nil {
		t.Fatalf("NewReconciler returned error: %v", err)
	}
	_, err = NewHandler(reconciler, HandlerOptions{Location: "header"}, nil)
	if !IsKind(err, KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
