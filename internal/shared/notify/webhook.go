package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// WebhookNotifier 通用webhook通知客户端
// 将工作流事件以JSON POST到配置的回调地址（企业IM群机器人、集成总线等）
// =============================================================================

// WebhookNotifier webhook通知客户端
type WebhookNotifier struct {
	url        string       // 回调地址
	httpClient *http.Client // HTTP客户端
}

// NewWebhookNotifier 创建webhook通知客户端
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Notify 投递事件
// 非2xx响应视为投递失败，由调用方决定是否重试
func (n *WebhookNotifier) Notify(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	bodyBytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("序列化通知事件失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建通知请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送通知请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("通知回调返回异常状态: %d", resp.StatusCode)
	}

	return nil
}
