package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientCheck rejects requests whose self-reported browser or OS falls
// outside the allow lists. Clients send X-Client-Browser and X-Client-OS;
// requests without the headers pass through.
func ClientCheck(allowedBrowsers, allowedOS []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if b := c.GetHeader("X-Client-Browser"); b != "" && !listed(b, allowedBrowsers) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unsupported browser"})
			return
		}
		if o := c.GetHeader("X-Client-OS"); o != "" && !listed(o, allowedOS) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unsupported operating system"})
			return
		}
		c.Next()
	}
}

func listed(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
