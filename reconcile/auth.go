package reconcile

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenHandler exchanges the operator credential for a session token.
// The credential is a single operator account configured via
// OPERATOR_USERNAME and OPERATOR_PASSWORD_HASH (bcrypt).
func TokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		username := strings.TrimSpace(os.Getenv("OPERATOR_USERNAME"))
		passwordHash := os.Getenv("OPERATOR_PASSWORD_HASH")
		if username == "" || passwordHash == "" {
			c.JSON(http.StatusConflict, gin.H{"error": "operator credential is not configured"})
			return
		}
		if req.Username != username || utils.ComparePassword(passwordHash, req.Password) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := utils.JwtGenerate(1, "operator")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
		if err != nil {
			lifespan = 24
		}
		if err := config.SetRedisValue("Token:"+token, username, time.Duration(lifespan)*time.Hour); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "reconcile", "TokenHandler", "cache session", nil, err)
		}

		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// LogoutHandler drops the caller's cached session. The underlying JWT
// still expires on its own lifespan.
func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "reconcile", "LogoutHandler", "revoke session", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not revoke session"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
