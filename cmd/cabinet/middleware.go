package main

import (
	"net/http"
	"strings"

	"github.com/driftworks/cabinet/pkg/auth"
	"github.com/driftworks/cabinet/pkg/config"
	"github.com/gin-gonic/gin"
)

const actorContextKey = "actor"

// authMiddleware resolves the acting identity from a bearer JWT or an API
// key and rejects anything else. The actor name lands in the gin context
// for handlers and the audit trail.
func authMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if actor, err := auth.ValidateToken(token, cfg.JWTSecret); err == nil {
				c.Set(actorContextKey, actor)
				c.Next()
				return
			}
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		if apiKey != "" && keyHashAllowed(cfg, auth.HashAPIKey(apiKey)) {
			c.Set(actorContextKey, "api-key")
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
	}
}

func keyHashAllowed(cfg *config.AuthConfig, hash string) bool {
	for _, allowed := range cfg.APIKeyHashes {
		if strings.EqualFold(allowed, hash) {
			return true
		}
	}
	return false
}

// getActor returns the authenticated actor name, or "anonymous" when the
// route runs without the auth middleware
func getActor(c *gin.Context) string {
	if actor, ok := c.Get(actorContextKey); ok {
		if name, ok := actor.(string); ok && name != "" {
			return name
		}
	}
	return "anonymous"
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-API-Key")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
