package handler

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"golang.org/x/time/rate"
	"paywave.com/pkg/middleware"
	"paywave.com/pkg/ratelimit"
)

// NewRouter 组装 gin 路由：请求ID -> recover -> 限流 -> 共享密钥
func NewRouter(secret string, h *WorkerHandler) *gin.Engine {
	r := gin.New()

	p := ginprometheus.NewPrometheus("gin")
	p.Use(r)

	r.Use(middleware.ReqId())
	r.Use(middleware.Recover())
	r.Use(cors.Default())

	// 触发端点没必要高并发，限个兜底值防误配的 cron 打爆
	store := ratelimit.NewStore(rate.Limit(10), 20, 10*time.Minute)
	store.StartJanitor(context.Background(), 5*time.Minute)
	r.Use(middleware.RateLimit(store))

	api := r.Group("/api/v1/settlement", middleware.SharedSecret(secret))
	{
		api.GET("/status", h.Status)
		api.POST("/run", h.Run)
	}

	return r
}
