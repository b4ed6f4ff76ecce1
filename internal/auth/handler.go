package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/token-gate/internal/ui"
)

const (
	// SessionCookieName はセッションフラグを保持する署名付き Cookie の名前です。
	SessionCookieName = "tg_session"

	// ContextUserKey は、ハンドラー間でログイン済みユーザー名を共有するためのキーです。
	ContextUserKey = "auth.user"
	// ContextRequestIDKey はリクエスト ID を共有するためのキーです。
	ContextRequestIDKey = "request.id"

	pageTitle        = "token-gate"
	defaultLogoutKey = "logout"
)

// HandlerOptions は画面の表示設定です。
type HandlerOptions struct {
	Location         string // ログインフォーム / ログアウトボタンの既定表示位置
	LogoutButtonName string // ログアウトボタンのラベル
	LogoutKey        string // ログアウトボタンの要素キー
}

// Handler はログイン / ログアウト画面と JSON API のハンドラーをまとめた構造体です。
type Handler struct {
	reconciler   *Reconciler
	logger       *log.Logger
	location     ui.Location
	logoutButton string
	logoutKey    string
}

// NewHandler は Handler を作成します。
func NewHandler(r *Reconciler, opts HandlerOptions, logger *log.Logger) (*Handler, error) {
	if r == nil {
		return nil, errors.New("reconciler is nil")
	}
	if opts.Location == "" {
		opts.Location = string(ui.LocationMain)
	}
	location, err := ui.ParseLocation(opts.Location)
	if err != nil {
		return nil, newConfigError(CodeInvalidLocation, err.Error())
	}
	if opts.LogoutButtonName == "" {
		opts.LogoutButtonName = "Logout"
	}
	if opts.LogoutKey == "" {
		opts.LogoutKey = defaultLogoutKey
	}
	return &Handler{
		reconciler:   r,
		logger:       logger,
		location:     location,
		logoutButton: opts.LogoutButtonName,
		logoutKey:    opts.LogoutKey,
	}, nil
}

// StateFor はリクエストに紐づくセッションと Cookie をまとめて返します。
func (h *Handler) StateFor(c *gin.Context) *State {
	return &State{
		Session: sessions.Default(c),
		Cookies: NewGinCookies(c, h.reconciler.CookieOptions()),
	}
}

// Page は GET / のハンドラーです。描画のたびに認証状態を整合させます。
func (h *Handler) Page(c *gin.Context) {
	location, err := h.resolveLocation(c.Query("location"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	st := h.StateFor(c)
	flags := h.reconciler.Reconcile(st)
	session := sessions.Default(c)
	messages := flashMessages(session)

	if err := session.Save(); err != nil {
		h.renderError(c, fmt.Errorf("save session: %w", err))
		return
	}

	if flags.Status.Authenticated() {
		c.HTML(http.StatusOK, ui.HomeTemplate, ui.HomePage{
			Title:      pageTitle,
			Location:   location,
			Action:     "/logout",
			Username:   flags.Username,
			ButtonName: h.logoutButton,
			ButtonKey:  h.logoutKey,
			Messages:   messages,
		})
		return
	}

	c.HTML(http.StatusOK, ui.LoginTemplate, ui.LoginPage{
		Title:    pageTitle,
		Location: location,
		Action:   "/login",
		Username: flags.Username,
		Messages: messages,
	})
}

// SubmitLogin は POST /login（フォーム送信）のハンドラーです。
func (h *Handler) SubmitLogin(c *gin.Context) {
	location, err := h.resolveLocation(c.PostForm("location"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	username := c.PostForm("username")
	password := c.PostForm("password")

	st := h.StateFor(c)
	h.reconciler.RememberUsername(st, username)
	if err := h.reconciler.CheckCredentials(c.Request.Context(), st, username, password); err != nil {
		h.logf(c, "login failed user=%s: %v", username, err)
		sessions.Default(c).AddFlash(userMessage(err))
	} else {
		h.logf(c, "login succeeded user=%s", username)
	}

	if err := st.Session.Save(); err != nil {
		h.renderError(c, fmt.Errorf("save session: %w", err))
		return
	}
	c.Redirect(http.StatusSeeOther, pagePath(location))
}

// SubmitLogout は POST /logout（ログアウトボタン）のハンドラーです。
func (h *Handler) SubmitLogout(c *gin.Context) {
	location, err := h.resolveLocation(c.PostForm("location"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	st := h.StateFor(c)
	username := h.reconciler.Flags(st).Username
	h.reconciler.Logout(st)
	if err := st.Session.Save(); err != nil {
		h.renderError(c, fmt.Errorf("save session: %w", err))
		return
	}
	h.logf(c, "logout user=%s key=%s", username, c.PostForm("key"))
	c.Redirect(http.StatusSeeOther, pagePath(location))
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// APILogin は POST /api/auth/login のハンドラーです（JSON またはフォーム）。
func (h *Handler) APILogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeInvalidInput,
			"message": "username と password を送ってください",
		})
		return
	}

	st := h.StateFor(c)
	if err := h.reconciler.CheckCredentials(c.Request.Context(), st, req.Username, req.Password); err != nil {
		h.logf(c, "api login failed user=%s: %v", req.Username, err)
		respondWithError(c, err)
		return
	}

	if err := st.Session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの保存に失敗しました",
		})
		return
	}

	flags := h.reconciler.Flags(st)
	h.logf(c, "api login succeeded user=%s", req.Username)
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"username":      flags.Username,
		"cookies":       flags.CookieKeys,
	})
}

// APILogout は POST /api/auth/logout のハンドラーです。
func (h *Handler) APILogout(c *gin.Context) {
	st := h.StateFor(c)
	h.reconciler.Logout(st)
	if err := st.Session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの削除に失敗しました",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// APIStatus は GET /api/auth/status のハンドラーです。
func (h *Handler) APIStatus(c *gin.Context) {
	st := h.StateFor(c)
	flags := h.reconciler.Reconcile(st)
	if err := st.Session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの保存に失敗しました",
		})
		return
	}

	payload := gin.H{
		"authenticated": flags.Status.Authenticated(),
		"status":        flags.Status.String(),
	}
	if flags.HasUsername {
		payload["username"] = flags.Username
	}
	c.JSON(http.StatusOK, payload)
}

// Me は GET /api/protected/me のハンドラーです。RequireLogin の後に置きます。
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username": c.GetString(ContextUserKey),
		"tokenKey": h.reconciler.TokenKey(),
	})
}

func (h *Handler) resolveLocation(raw string) (ui.Location, error) {
	if raw == "" {
		return h.location, nil
	}
	location, err := ui.ParseLocation(raw)
	if err != nil {
		return "", newConfigError(CodeInvalidLocation, "表示位置は main または sidebar を指定してください")
	}
	return location, nil
}

func (h *Handler) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "サーバー内部でエラーが発生しました"
	var authErr *Error
	if errors.As(err, &authErr) {
		status = statusFor(authErr)
		message = authErr.Message
	}
	h.logf(c, "render error: %v", err)
	c.HTML(status, ui.ErrorTemplate, ui.ErrorPage{
		Title:    pageTitle,
		Messages: []string{message},
	})
}

func (h *Handler) logf(c *gin.Context, format string, args ...interface{}) {
	if h.logger == nil {
		return
	}
	h.logger.Printf("[%s] "+format, append([]interface{}{c.GetString(ContextRequestIDKey)}, args...)...)
}

func respondWithError(c *gin.Context, err error) {
	var authErr *Error
	if errors.As(err, &authErr) {
		c.JSON(statusFor(authErr), gin.H{
			"code":    authErr.Code,
			"message": authErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "INTERNAL_ERROR",
		"message": "サーバー内部でエラーが発生しました",
	})
}

func statusFor(err *Error) int {
	switch err.Kind {
	case KindInput, KindConfig:
		return http.StatusBadRequest
	case KindRequest:
		if err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return "ログインに失敗しました"
}

func flashMessages(session sessions.Session) []string {
	flashes := session.Flashes()
	messages := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if s, ok := f.(string); ok {
			messages = append(messages, s)
		}
	}
	return messages
}

func pagePath(location ui.Location) string {
	return "/?" + url.Values{"location": {string(location)}}.Encode()
}
