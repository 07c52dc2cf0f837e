package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"commtrack/backend/internal/domain"
)

// CaseClient 案件系统的 HTTP 出站客户端。
//
// 案件生命周期与实际传输由外部案件服务负责，这里只发出
// 带 HMAC-SHA256 签名的 JSON 请求。
type CaseClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	log        *zap.Logger
}

// NewCaseClient 创建案件系统客户端。
func NewCaseClient(baseURL, secret string, timeout time.Duration, log *zap.Logger) *CaseClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CaseClient{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// UpdateAddress 把案件的联系地址改为指定渠道。
func (c *CaseClient) UpdateAddress(ctx context.Context, caseID string, channel domain.ChannelKind) error {
	payload := map[string]interface{}{
		"channel": string(channel),
	}
	return c.post(ctx, fmt.Sprintf("/v1/cases/%s/address", caseID), payload)
}

// Submit 触发案件重新提交，snail 为真时走纸质邮寄兜底。
func (c *CaseClient) Submit(ctx context.Context, caseID string, snail bool) error {
	payload := map[string]interface{}{
		"snail": snail,
	}
	return c.post(ctx, fmt.Sprintf("/v1/cases/%s/submit", caseID), payload)
}

// post 发送签名 JSON 请求，非 2xx 响应视为失败。
func (c *CaseClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Commtrack-Signature", sign(body, c.secret))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("case service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("case service returned error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
		return fmt.Errorf("case service HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	c.log.Debug("case service call ok",
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// sign 生成请求体的 HMAC-SHA256 签名。
func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
