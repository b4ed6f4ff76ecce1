package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireLogin は認証状態を整合させ、未認証のリクエストを 401 で止めるミドルウェアを返します。
func (h *Handler) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := h.StateFor(c)
		flags := h.reconciler.Reconcile(st)
		if err := st.Session.Save(); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "SESSION_SAVE_FAILED",
				"message": "セッションの保存に失敗しました",
			})
			return
		}

		if !flags.Status.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "ログインが必要です",
			})
			return
		}

		c.Set(ContextUserKey, flags.Username)
		c.Next()
	}
}
