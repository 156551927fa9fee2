package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"paywave.com/pkg/common"
	"paywave.com/pkg/logger"
	"paywave.com/pkg/xerr"
)

// 共享密钥凭证头，调度方(cron/运维脚本)每次调用都要带上
const HeaderWorkerSecret = "X-Worker-Secret"

// SharedSecret 校验共享密钥。失败统一返回 401，与其他错误严格区分。
func SharedSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderWorkerSecret)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logger.Warn(c, "unauthorized worker call",
				zap.String("request_id", common.RequestIDFromGin(c)),
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			common.Fail(c, http.StatusUnauthorized, xerr.Unauthorized, xerr.MapErrMsg(xerr.Unauthorized))
			c.Abort()
			return
		}
		c.Next()
	}
}
