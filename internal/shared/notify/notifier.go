package notify

import (
	"context"
	"time"
)

// 工作流事件类型
const (
	EventPRSubmitted     = "pr.submitted"
	EventPRLevelApproved = "pr.level_approved"
	EventPRApproved      = "pr.approved"
	EventPRRejected      = "pr.rejected"
	EventPRConverted     = "pr.converted"
	EventPRCancelled     = "pr.cancelled"
	EventMatchCompleted  = "match.completed"
	EventMatchResolved   = "match.resolved"
)

// Event 工作流领域事件
// 通知投递尽力而为，失败不回滚业务状态
type Event struct {
	Type       string                 `json:"type"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	EntityCode string                 `json:"entity_code,omitempty"`
	Actor      string                 `json:"actor,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Notifier 通知接收端
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NopNotifier 空实现，未配置webhook时使用
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, ev Event) error {
	return nil
}
