// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port          string // APIサーバーのポート番号
	GinMode       string // Ginの実行モード (debug, release, test)
	SessionSecret string // セッション署名用の秘密鍵

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// 上流認証エンドポイント設定
	AuthURL                   string            // 資格情報の送信先URL
	AuthMethod                string            // HTTPメソッド
	AuthHeaders               map[string]string // 追加ヘッダー（JSONオブジェクトで指定）
	AuthTokenKey              string            // 認証済みとみなすレスポンスのフィールド名
	AuthCookieLifetimeMinutes int               // トークンCookieの有効期間（分）
	AuthTimeoutSeconds        int               // 上流リクエストのタイムアウト（秒、負数で無制限）

	// 画面設定
	LoginLocation    string // ログインフォームの表示位置 (main, sidebar)
	LogoutButtonName string // ログアウトボタンのラベル

	// 開発用トークン発行設定
	IssuerEnabled           bool   // /dev/token を有効にするか
	AppUsername             string // ログイン用ユーザー名
	AppPasswordHash         string // bcryptでハッシュ化されたパスワード
	IssuerSigningKey        string // JWT署名鍵 (HS256)
	IssuerAccessTTLMinutes  int    // アクセストークンの有効期間（分）
	IssuerRefreshTTLMinutes int    // リフレッシュトークンの有効期間（分）
	LimiterRedisURL         string // ログイン試行回数の保存先（空ならメモリ）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	headers, err := parseHeaders(getEnv("AUTH_HEADERS", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		// サーバー設定
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		SessionSecret: getEnv("SESSION_SECRET", ""),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// 上流認証エンドポイント設定
		AuthURL:                   getEnv("AUTH_URL", ""),
		AuthMethod:                strings.ToUpper(getEnv("AUTH_METHOD", "POST")),
		AuthHeaders:               headers,
		AuthTokenKey:              getEnv("AUTH_TOKEN_KEY", "access"),
		AuthCookieLifetimeMinutes: getEnvAsInt("AUTH_COOKIE_LIFETIME_MINUTES", 15),
		AuthTimeoutSeconds:        getEnvAsInt("AUTH_TIMEOUT_SECONDS", 5),

		// 画面設定
		LoginLocation:    getEnv("LOGIN_LOCATION", "main"),
		LogoutButtonName: getEnv("LOGOUT_BUTTON_NAME", "Logout"),

		// 開発用トークン発行設定
		IssuerEnabled:           getEnvAsBool("ISSUER_ENABLED", false),
		AppUsername:             getEnv("APP_USERNAME", ""),
		AppPasswordHash:         getEnv("APP_PASSWORD_HASH", ""),
		IssuerSigningKey:        getEnv("ISSUER_SIGNING_KEY", ""),
		IssuerAccessTTLMinutes:  getEnvAsInt("ISSUER_ACCESS_TTL_MINUTES", 15),
		IssuerRefreshTTLMinutes: getEnvAsInt("ISSUER_REFRESH_TTL_MINUTES", 24*60),
		LimiterRedisURL:         getEnv("LIMITER_REDIS_URL", ""),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.AuthURL == "" {
		return fmt.Errorf("AUTH_URL is required")
	}
	if u, err := url.Parse(c.AuthURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("AUTH_URL must be an absolute URL: %q", c.AuthURL)
	}
	if c.AuthTokenKey == "" {
		return fmt.Errorf("AUTH_TOKEN_KEY must not be empty")
	}
	if c.AuthCookieLifetimeMinutes <= 0 {
		return fmt.Errorf("AUTH_COOKIE_LIFETIME_MINUTES must be positive")
	}
	switch c.LoginLocation {
	case "main", "sidebar":
	default:
		return fmt.Errorf("LOGIN_LOCATION must be main or sidebar: %q", c.LoginLocation)
	}

	if c.IssuerEnabled {
		if c.AppUsername == "" {
			return fmt.Errorf("APP_USERNAME is required when ISSUER_ENABLED is set")
		}
		if c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required when ISSUER_ENABLED is set")
		}
		if c.IssuerSigningKey == "" {
			return fmt.Errorf("ISSUER_SIGNING_KEY is required when ISSUER_ENABLED is set")
		}
	}

	// ローカル開発ではセッション鍵は任意
	// 本番環境では厳格にチェックする
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.IssuerEnabled {
			return fmt.Errorf("ISSUER_ENABLED must not be set in release mode")
		}
	}

	return nil
}

// parseHeaders は AUTH_HEADERS の JSON オブジェクトを読み取ります。
func parseHeaders(raw string) (map[string]string, error) {
	headers := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return headers, nil
	}
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, fmt.Errorf("AUTH_HEADERS must be a JSON object of strings: %w", err)
	}
	return headers, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
