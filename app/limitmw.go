// app/limitmw.go
package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit 固定窗口限流，按客户端 IP 计数。
// 计数放 Redis，多实例部署共享同一窗口。
func RateLimit(rdb *redis.Client, window time.Duration, maxReqs int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rfl:rl:" + c.ClientIP()

		n, err := rdb.Incr(c, key).Result()
		if err != nil {
			// Redis 故障时放行，限流不是正确性保障
			c.Next()
			return
		}
		if n == 1 {
			rdb.Expire(c, key, window)
		}
		if n > maxReqs {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
