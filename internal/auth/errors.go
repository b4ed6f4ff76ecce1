package auth

import (
	"errors"
	"fmt"
)

// ErrorKind は認証処理の失敗種別を表します。
type ErrorKind string

const (
	// KindInput はユーザー名・パスワードの未入力です。
	KindInput ErrorKind = "input"
	// KindRequest は上流への通信失敗、または 2xx 以外の応答です。
	KindRequest ErrorKind = "request"
	// KindConfig は表示位置などの引数・設定の誤りです。
	KindConfig ErrorKind = "config"
)

// エラーコード（JSON レスポンスの "code" に使用）
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUpstreamRejected    = "UPSTREAM_REJECTED"
	CodeUpstreamUnreachable = "UPSTREAM_UNREACHABLE"
	CodeInvalidResponse     = "INVALID_UPSTREAM_RESPONSE"
	CodeInvalidLocation     = "INVALID_LOCATION"
	CodeInvalidConfig       = "INVALID_CONFIG"
)

// Error は認証処理の失敗理由を呼び出し側へ返すための型です。
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string

	// StatusCode は上流が返した HTTP ステータス（通信失敗時は 0）です。
	StatusCode int
	// Detail は上流のレスポンス本文（先頭のみ）です。
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind は err が指定種別の *Error かどうかを返します。
func IsKind(err error, kind ErrorKind) bool {
	var authErr *Error
	return errors.As(err, &authErr) && authErr.Kind == kind
}

func newInputError(message string) *Error {
	return &Error{Kind: KindInput, Code: CodeInvalidInput, Message: message}
}

func newRequestError(code, message string, status int, detail string, err error) *Error {
	return &Error{
		Kind:       KindRequest,
		Code:       code,
		Message:    message,
		StatusCode: status,
		Detail:     detail,
		Err:        err,
	}
}

func newConfigError(code, message string) *Error {
	return &Error{Kind: KindConfig, Code: code, Message: message}
}
