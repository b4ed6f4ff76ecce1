// Package main は token-gate サーバーのエントリーポイントです。
package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/token-gate/internal/auth"
	"github.com/yourusername/token-gate/internal/config"
	"github.com/yourusername/token-gate/internal/ui"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	logger := log.New(os.Stderr, "[token-gate] ", log.LstdFlags)

	router, err := newRouter(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting token-gate on %s (mode: %s, upstream: %s)", addr, cfg.GinMode, cfg.AuthURL)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newRouter はミドルウェアとルーティングを設定した gin.Engine を返します。
func newRouter(cfg *config.Config, logger *log.Logger) (*gin.Engine, error) {
	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	router.Use(requestID())
	router.SetHTMLTemplate(ui.Templates())

	// セッションストアの設定（開発時は署名鍵を自動生成）
	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		logger.Printf("SESSION_SECRET is empty; using an ephemeral key")
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	if err := setupRoutes(router, cfg, logger); err != nil {
		return nil, err
	}
	return router, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "token-gate",
		"version": "0.1.0",
	})
}

// setupRoutes は画面・API・開発用トークン発行の配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, logger *log.Logger) error {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	reconciler, err := auth.NewReconciler(auth.NewConfig(cfg), nil, logger)
	if err != nil {
		return err
	}
	handler, err := auth.NewHandler(reconciler, auth.HandlerOptions{
		Location:         cfg.LoginLocation,
		LogoutButtonName: cfg.LogoutButtonName,
	}, logger)
	if err != nil {
		return err
	}

	// 画面
	router.GET("/", handler.Page)
	router.POST("/login", handler.SubmitLogin)
	router.POST("/logout", handler.SubmitLogout)

	api := router.Group("/api")
	api.Use(cors.New(corsConfig(cfg)))
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", handler.APILogin)
			authRoutes.POST("/logout", handler.APILogout)
			authRoutes.GET("/status", handler.APIStatus)
		}

		protected := api.Group("/protected")
		protected.Use(handler.RequireLogin())
		{
			protected.GET("/me", handler.Me)
		}
	}

	if cfg.IssuerEnabled {
		tokenIssuer, err := setupIssuer(cfg, logger)
		if err != nil {
			return err
		}
		router.POST("/dev/token", tokenIssuer.Token)
		logger.Printf("development token issuer enabled at /dev/token")
	}
	return nil
}

func corsConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	return corsConfig
}
