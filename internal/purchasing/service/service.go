package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pharmalink/pharmalink/internal/directory/repository"
	purchasing "github.com/pharmalink/pharmalink/internal/purchasing/repository"
	"github.com/pharmalink/pharmalink/internal/shared/notify"
	"github.com/redis/go-redis/v9"
)

// 业务哨兵错误，handler层映射为对应HTTP状态
var (
	// ErrNoApprovalRule 金额区间没有可用的审批规则，或层级配置不连续
	ErrNoApprovalRule = errors.New("没有匹配的审批规则")
	// ErrStaleDecision 该审批层级已被他人处理
	ErrStaleDecision = errors.New("该审批层级已被处理")
	// ErrUnauthorizedApprover 操作人不在该层级的审批人范围内
	ErrUnauthorizedApprover = errors.New("无权审批该层级")
	// ErrInvalidState 单据当前状态不允许该操作
	ErrInvalidState = errors.New("当前状态不允许该操作")
	// ErrMatchInProgress 该采购订单正在执行对账
	ErrMatchInProgress = errors.New("该采购订单正在对账中")
)

// Services 服务集合
type Services struct {
	Rule        *RuleService
	Workflow    *WorkflowService
	Procurement *ProcurementService
	Match       *MatchService
}

// NewServices 创建服务集合
func NewServices(repos *purchasing.Repositories, dirRepos *repository.Repositories, rdb *redis.Client, notifier notify.Notifier) *Services {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}

	ruleSvc := NewRuleService(repos.Rule, dirRepos.User)

	return &Services{
		Rule:        ruleSvc,
		Workflow:    NewWorkflowService(repos, ruleSvc, notifier),
		Procurement: NewProcurementService(repos, dirRepos.Supplier),
		Match:       NewMatchService(repos, rdb, notifier),
	}
}

// generateID 生成32位主键
func generateID() string {
	return uuid.New().String()[:32]
}

// dispatchEvent 异步投递领域事件，失败只记日志
func dispatchEvent(notifier notify.Notifier, ev notify.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := notifier.Notify(ctx, ev); err != nil {
			log.Printf("[Notify] 投递事件失败 (type=%s entity=%s): %v", ev.Type, ev.EntityID, err)
		}
	}()
}
