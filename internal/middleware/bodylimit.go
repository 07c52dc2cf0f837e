package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// 默认请求体大小限制
	DefaultBodyLimit = 10 * 1024 * 1024 // 10MB

	// 不同类型请求的限制
	SmallBodyLimit  = 1 * 1024 * 1024  // 1MB - 用于普通API请求
	UploadBodyLimit = 25 * 1024 * 1024 // 25MB - 用于附件上传
)

// BodySizeLimit 限制请求体大小的中间件
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 检查 Content-Length 头
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "Request body too large",
				"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes),
				"limit":   maxBytes,
				"size":    c.Request.ContentLength,
			})
			c.Abort()
			return
		}

		// 限制请求体读取大小
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		// 设置响应头，告知客户端最大允许的请求体大小
		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()
	}
}

// AttachmentBodyLimit 附件上传端点放宽到上传上限，其余端点走小限制
func AttachmentBodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()

		var limit int64
		switch path {
		case "/v1/communications/:id/attachments",
			"/v1/communications":
			limit = UploadBodyLimit
		default:
			limit = SmallBodyLimit
		}

		// 应用限制
		if c.Request.ContentLength > limit {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "Request body too large",
				"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", limit),
				"limit":   limit,
				"size":    c.Request.ContentLength,
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Header("X-Max-Body-Size", strconv.FormatInt(limit, 10))

		c.Next()
	}
}
