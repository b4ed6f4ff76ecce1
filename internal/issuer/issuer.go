// Package issuer は開発用のトークン発行エンドポイントを提供します。
//
// token-gate 自身を上流認証エンドポイントとして使えるよう、
// 資格情報を bcrypt で検証して access / refresh の JWT を返します。
package issuer

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/token-gate/internal/attempts"
	"github.com/yourusername/token-gate/internal/config"
)

const issuerName = "token-gate"

// Claims は発行するトークンのクレームです。
type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer はトークン発行処理と状態をまとめた構造体です。
type Issuer struct {
	username     string
	passwordHash string
	signingKey   []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	limiter      attempts.Limiter
	now          func() time.Time
	logger       *log.Logger
}

// NewIssuer は Issuer を作成します。
func NewIssuer(cfg *config.Config, limiter attempts.Limiter, logger *log.Logger) (*Issuer, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if limiter == nil {
		return nil, errors.New("limiter is nil")
	}
	if cfg.AppUsername == "" {
		return nil, errors.New("APP_USERNAME が設定されていません")
	}
	if cfg.AppPasswordHash == "" {
		return nil, errors.New("APP_PASSWORD_HASH が設定されていません")
	}
	if cfg.IssuerSigningKey == "" {
		return nil, errors.New("ISSUER_SIGNING_KEY が設定されていません")
	}

	accessTTL := time.Duration(cfg.IssuerAccessTTLMinutes) * time.Minute
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := time.Duration(cfg.IssuerRefreshTTLMinutes) * time.Minute
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}

	return &Issuer{
		username:     cfg.AppUsername,
		passwordHash: cfg.AppPasswordHash,
		signingKey:   []byte(cfg.IssuerSigningKey),
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		limiter:      limiter,
		now:          time.Now,
		logger:       logger,
	}, nil
}

type tokenRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Token は POST /dev/token のハンドラーです。
func (i *Issuer) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "username と password を送ってください",
		})
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()
	retryAfter, err := i.limiter.CheckLock(ctx, ip)
	if err != nil {
		i.logf("check lock failed ip=%s: %v", ip, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "試行回数の確認に失敗しました",
		})
		return
	}
	if retryAfter > 0 {
		// Retry-After は秒数またはHTTP-Date形式が推奨されているため秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    "TOO_MANY_ATTEMPTS",
			"message": "一定時間後に再度お試しください",
		})
		return
	}

	if req.Username != i.username || !i.verifyPassword(req.Password) {
		remaining, err := i.limiter.RecordFailure(ctx, ip)
		if err != nil {
			i.logf("record failure failed ip=%s: %v", ip, err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":              "INVALID_CREDENTIALS",
			"message":           "ユーザー名またはパスワードが正しくありません",
			"remainingAttempts": remaining,
		})
		return
	}

	if err := i.limiter.Reset(ctx, ip); err != nil {
		i.logf("reset attempts failed ip=%s: %v", ip, err)
	}

	access, err := i.sign(req.Username, "access", i.accessTTL)
	if err != nil {
		i.tokenFailed(c, err)
		return
	}
	refresh, err := i.sign(req.Username, "refresh", i.refreshTTL)
	if err != nil {
		i.tokenFailed(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"access":  access,
		"refresh": refresh,
	})
}

func (i *Issuer) sign(subject, tokenType string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (i *Issuer) tokenFailed(c *gin.Context, err error) {
	i.logf("token generation failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "TOKEN_GENERATION_FAILED",
		"message": "トークンの生成に失敗しました",
	})
}

func (i *Issuer) verifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(i.passwordHash), []byte(password)) == nil
}

func (i *Issuer) logf(format string, args ...interface{}) {
	if i.logger != nil {
		i.logger.Printf(format, args...)
	}
}
