// Package auth はログイン状態（セッションフラグと Cookie）の整合を保つ機能を提供します。
//
// 上流の認証エンドポイントへ資格情報を送り、レスポンスの各フィールドを Cookie に保存します。
// 描画のたびに Reconcile を呼び、トークン Cookie の有無とセッションの認証状態を一致させます。
package auth

import (
	"context"
	"io"
	"log"
	"net/http"
	"sort"
	"time"
)

// detailLimit はエラー詳細として保持する上流レスポンス本文の最大長です。
const detailLimit = 512

// Reconciler はセッションフラグと Cookie を同期させます。
type Reconciler struct {
	cfg       Config
	submitter *Submitter
	now       func() time.Time
	logger    *log.Logger
}

// NewReconciler は Reconciler を作成します。client が nil の場合は既定のクライアントを使います。
func NewReconciler(cfg Config, client *http.Client, logger *log.Logger) (*Reconciler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Reconciler{
		cfg:       cfg,
		submitter: NewSubmitter(cfg, client),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// TokenKey は認証済みとみなす Cookie 名を返します。
func (r *Reconciler) TokenKey() string {
	return r.cfg.TokenKey
}

// CookieOptions はレスポンス Cookie に付与する属性を返します。
func (r *Reconciler) CookieOptions() CookieOptions {
	return r.cfg.Cookie
}

// CheckCookie はトークン Cookie の有無を認証状態としてセッションに記録し、その値を返します。
func (r *Reconciler) CheckCookie(st *State) bool {
	value, ok := st.Cookies.Get(r.cfg.TokenKey)
	authenticated := ok && value != ""
	setStatus(st.Session, authenticated)
	return authenticated
}

// CacheResponse はレスポンスの各フィールドを Cookie に書き込み、後で削除できるよう記録します。
func (r *Reconciler) CacheResponse(st *State, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	expiresAt := r.now().Add(r.cfg.CookieLifetime)
	for _, k := range keys {
		st.Cookies.Set(k, fields[k], expiresAt)
		trackCookieKey(st.Session, k)
	}
}

// CheckCredentials は資格情報を上流へ送信し、成功時にレスポンスを Cookie に保存します。
// 失敗時は *Error を返し、セッションと Cookie は変更しません。
func (r *Reconciler) CheckCredentials(ctx context.Context, st *State, username, password string) error {
	if username == "" || password == "" {
		return newInputError("ユーザー名とパスワードを入力してください")
	}

	resp, err := r.submitter.Submit(ctx, username, password)
	if err != nil {
		r.logf("auth request failed user=%s: %v", username, err)
		return newRequestError(CodeUpstreamUnreachable, "認証サーバーに接続できませんでした", 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readDetail(resp.Body)
		r.logf("auth rejected user=%s status=%d detail=%q", username, resp.StatusCode, detail)
		message := "認証サーバーがエラーを返しました"
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			message = "ユーザー名またはパスワードが正しくありません"
		}
		return newRequestError(CodeUpstreamRejected, message, resp.StatusCode, detail, nil)
	}

	fields, err := r.cfg.Parser.Parse(resp)
	if err != nil {
		r.logf("auth response unreadable user=%s: %v", username, err)
		return newRequestError(CodeInvalidResponse, "認証サーバーの応答を解釈できませんでした", resp.StatusCode, "", err)
	}

	r.CacheResponse(st, fields)
	setUsername(st.Session, username)
	setStatus(st.Session, true)
	return nil
}

// RememberUsername はフォームに入力されたユーザー名をセッションに保持します。
func (r *Reconciler) RememberUsername(st *State, username string) {
	setUsername(st.Session, username)
}

// Logout はトークン Cookie と記録済みの Cookie をすべて削除し、フラグを未設定に戻します。
func (r *Reconciler) Logout(st *State) {
	st.Cookies.Delete(r.cfg.TokenKey)
	for _, k := range readCookieKeys(st.Session) {
		st.Cookies.Delete(k)
	}
	resetFlags(st.Session)
}

// Reconcile は描画 1 回分の整合処理です。Cookie を確認した後のフラグを返します。
func (r *Reconciler) Reconcile(st *State) Flags {
	r.CheckCookie(st)
	return readFlags(st.Session)
}

// Flags は現在のセッションフラグを返します。
func (r *Reconciler) Flags(st *State) Flags {
	return readFlags(st.Session)
}

func (r *Reconciler) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func readDetail(body io.Reader) string {
	buf, _ := io.ReadAll(io.LimitReader(body, detailLimit))
	return string(buf)
}
