package middleware

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS builds a permissive-but-scoped CORS policy for the desktop UI
// client, whose origins are configurable since (unlike the teacher's fixed
// local dev ports) the coordinator's UI may be served from any LAN host.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	if allowedOrigins != "" {
		parts := strings.Split(allowedOrigins, ",")
		origins = origins[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	})
}
