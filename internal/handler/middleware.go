package handler

import (
	"log"
	"strconv"
	"time"

	"marketbill/internal/model"

	"github.com/gin-gonic/gin"
)

const auditContextKey = "marketbill.audit"

// LoggerMiddleware logs one line per request.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware keeps a panicking handler from taking the process down.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware allows the storefront and admin SPA origins.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID, X-Actor-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AuditMiddleware builds the audit record for this request. Identity is
// resolved upstream (API gateway) and forwarded in X-Actor-ID; the record is
// passed explicitly into every mutating service call rather than living in
// ambient state.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, _ := strconv.ParseInt(c.GetHeader("X-Actor-ID"), 10, 64)
		c.Set(auditContextKey, model.AuditInfo{
			ActorID: actorID,
			IP:      c.ClientIP(),
			At:      time.Now(),
		})
		c.Next()
	}
}

// auditFrom extracts the audit record the middleware stored.
func auditFrom(c *gin.Context) model.AuditInfo {
	if v, ok := c.Get(auditContextKey); ok {
		if audit, ok := v.(model.AuditInfo); ok {
			return audit
		}
	}
	return model.AuditInfo{IP: c.ClientIP(), At: time.Now()}
}
