package main

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/token-gate/internal/auth"
)

const requestIDHeader = "X-Request-Id"

// requestID はリクエストごとに ID を採番し、レスポンスヘッダーとコンテキストに設定します。
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(auth.ContextRequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
