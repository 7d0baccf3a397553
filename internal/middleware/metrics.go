package middleware

import (
	"time"

	"handv-deploy/internal/logger"
	"handv-deploy/services"

	"github.com/gin-gonic/gin"
)

/**
 * 请求统计中间件
 * @param {*services.Metrics} metrics - 指标集合
 * @description
 * - 按路由模板统计请求数与耗时，未匹配路由（静态文件回退）记为 "static"
 * - 以 debug 级别记录访问日志
 */
func MetricsMiddleware(metrics *services.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "static"
		}
		metrics.ObserveRequest(route, c.Writer.Status(), duration)
		logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), duration)
	}
}
