package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/token-gate/internal/config"
)

const (
	DefaultMethod         = http.MethodPost
	DefaultTokenKey       = "access"
	DefaultCookieLifetime = 15 * time.Minute
	DefaultTimeout        = 5 * time.Second
)

// Config は上流認証エンドポイントと Cookie の設定です。NewReconciler 後は変更されません。
type Config struct {
	URL     string
	Method  string
	Headers map[string]string
	// Parser が nil の場合は JSONParser を使います。
	Parser         ResponseParser
	TokenKey       string
	CookieLifetime time.Duration
	// Timeout が 0 の場合は DefaultTimeout、負数の場合は無制限です。
	Timeout time.Duration
	Cookie  CookieOptions
}

// NewConfig はアプリケーション設定から Config を組み立てます。
func NewConfig(cfg *config.Config) Config {
	timeout := time.Duration(cfg.AuthTimeoutSeconds) * time.Second
	if cfg.AuthTimeoutSeconds < 0 {
		timeout = -1
	}
	return Config{
		URL:            cfg.AuthURL,
		Method:         cfg.AuthMethod,
		Headers:        cfg.AuthHeaders,
		TokenKey:       cfg.AuthTokenKey,
		CookieLifetime: time.Duration(cfg.AuthCookieLifetimeMinutes) * time.Minute,
		Timeout:        timeout,
		Cookie: CookieOptions{
			Path:     "/",
			Secure:   cfg.GinMode == "release",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

func (c Config) withDefaults() Config {
	if c.Method == "" {
		c.Method = DefaultMethod
	}
	c.Method = strings.ToUpper(c.Method)
	if c.TokenKey == "" {
		c.TokenKey = DefaultTokenKey
	}
	if c.CookieLifetime <= 0 {
		c.CookieLifetime = DefaultCookieLifetime
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Parser == nil {
		c.Parser = JSONParser{}
	}
	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = v
	}
	c.Headers = headers
	return c
}

func (c Config) validate() error {
	if c.URL == "" {
		return newConfigError(CodeInvalidConfig, "認証エンドポイントの URL が設定されていません")
	}
	return nil
}
