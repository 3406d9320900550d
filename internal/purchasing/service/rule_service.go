package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	directory "github.com/pharmalink/pharmalink/internal/directory/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/pharmalink/pharmalink/internal/purchasing/repository"
)

// RuleService 审批规则服务
// 负责规则维护与审批链解析（金额 → 有序审批层级）
type RuleService struct {
	ruleRepo *repository.RuleRepository
	userRepo *directory.UserRepository
}

// NewRuleService 创建审批规则服务
func NewRuleService(ruleRepo *repository.RuleRepository, userRepo *directory.UserRepository) *RuleService {
	return &RuleService{ruleRepo: ruleRepo, userRepo: userRepo}
}

// ResolvedLevel 解析出的单个审批层级
// EligibleApprovers 为解析时刻的角色成员快照，后续人员变动不影响已提交的单据
type ResolvedLevel struct {
	Level             int
	RuleID            string
	ApproverID        *string
	ApproverRole      string
	EligibleApprovers []string
}

// Resolve 解析审批链
// 过滤生效规则（类型、币种、金额区间），按层级聚合；层级必须从1连续，
// 断档视为配置错误。同级多条命中时取priority最小者，再比创建时间早者
func (s *RuleService) Resolve(ctx context.Context, kind entity.EntityKind, amount decimal.Decimal, currency string) ([]ResolvedLevel, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: 实体类型 %q 无效", ErrNoApprovalRule, kind)
	}

	rules, err := s.ruleRepo.FindActive(ctx, kind, currency)
	if err != nil {
		return nil, fmt.Errorf("查询审批规则失败: %w", err)
	}

	// 按层级取第一条覆盖金额的规则（仓储已按 level, priority, created_at 排序）
	byLevel := make(map[int]*entity.ApprovalRule)
	for i := range rules {
		rule := &rules[i]
		if !rule.Covers(amount) {
			continue
		}
		if _, ok := byLevel[rule.Level]; !ok {
			byLevel[rule.Level] = rule
		}
	}

	if len(byLevel) == 0 {
		return nil, ErrNoApprovalRule
	}

	levels := make([]int, 0, len(byLevel))
	for lv := range byLevel {
		levels = append(levels, lv)
	}
	sort.Ints(levels)

	// 层级必须从1开始且连续，否则审批链有洞
	for i, lv := range levels {
		if lv != i+1 {
			return nil, fmt.Errorf("%w: 审批层级配置不连续（缺少第%d级）", ErrNoApprovalRule, i+1)
		}
	}

	resolved := make([]ResolvedLevel, 0, len(levels))
	for _, lv := range levels {
		rule := byLevel[lv]

		rl := ResolvedLevel{
			Level:        lv,
			RuleID:       rule.ID,
			ApproverID:   rule.ApproverID,
			ApproverRole: rule.ApproverRole,
		}

		// 指定审批人的层级只有这一个人；按角色的层级取当前角色成员快照
		if rule.ApproverID != nil {
			rl.EligibleApprovers = []string{*rule.ApproverID}
		} else {
			users, err := s.userRepo.FindActiveByRole(ctx, rule.ApproverRole)
			if err != nil {
				return nil, fmt.Errorf("查询角色[%s]成员失败: %w", rule.ApproverRole, err)
			}
			if len(users) == 0 {
				return nil, fmt.Errorf("%w: 角色[%s]没有可用审批人", ErrNoApprovalRule, rule.ApproverRole)
			}
			ids := make([]string, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			rl.EligibleApprovers = ids
		}

		resolved = append(resolved, rl)
	}

	return resolved, nil
}

// CreateRuleRequest 创建审批规则请求
type CreateRuleRequest struct {
	Name         string           `json:"name" binding:"required"`
	EntityKind   string           `json:"entity_kind" binding:"required"`
	MinAmount    decimal.Decimal  `json:"min_amount"`
	MaxAmount    *decimal.Decimal `json:"max_amount"`
	Currency     string           `json:"currency"`
	Level        int              `json:"level" binding:"required,min=1"`
	ApproverID   *string          `json:"approver_id"`
	ApproverRole string           `json:"approver_role"`
	Priority     int              `json:"priority"`
}

// UpdateRuleRequest 更新审批规则请求
type UpdateRuleRequest struct {
	Name         *string          `json:"name"`
	MinAmount    *decimal.Decimal `json:"min_amount"`
	MaxAmount    *decimal.Decimal `json:"max_amount"`
	Currency     *string          `json:"currency"`
	Level        *int             `json:"level"`
	ApproverID   *string          `json:"approver_id"`
	ApproverRole *string          `json:"approver_role"`
	Priority     *int             `json:"priority"`
	IsActive     *bool            `json:"is_active"`
}

// List 获取审批规则列表
func (s *RuleService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ApprovalRule, int64, error) {
	return s.ruleRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 获取审批规则详情
func (s *RuleService) Get(ctx context.Context, id string) (*entity.ApprovalRule, error) {
	return s.ruleRepo.FindByID(ctx, id)
}

// Create 创建审批规则
func (s *RuleService) Create(ctx context.Context, userID string, req *CreateRuleRequest) (*entity.ApprovalRule, error) {
	kind, err := entity.ParseEntityKind(req.EntityKind)
	if err != nil {
		return nil, err
	}

	if req.ApproverID == nil && req.ApproverRole == "" {
		return nil, fmt.Errorf("审批规则必须指定审批人或审批角色")
	}
	if req.MaxAmount != nil && req.MaxAmount.LessThanOrEqual(req.MinAmount) {
		return nil, fmt.Errorf("金额上界必须大于下界")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	rule := &entity.ApprovalRule{
		ID:           generateID(),
		Name:         req.Name,
		EntityKind:   kind,
		MinAmount:    req.MinAmount,
		MaxAmount:    req.MaxAmount,
		Currency:     currency,
		Level:        req.Level,
		ApproverID:   req.ApproverID,
		ApproverRole: req.ApproverRole,
		Priority:     req.Priority,
		IsActive:     true,
		CreatedBy:    userID,
	}

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("创建审批规则失败: %w", err)
	}

	return rule, nil
}

// Update 更新审批规则
func (s *RuleService) Update(ctx context.Context, id string, req *UpdateRuleRequest) (*entity.ApprovalRule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.MinAmount != nil {
		rule.MinAmount = *req.MinAmount
	}
	if req.MaxAmount != nil {
		rule.MaxAmount = req.MaxAmount
	}
	if req.Currency != nil {
		rule.Currency = *req.Currency
	}
	if req.Level != nil {
		if *req.Level < 1 {
			return nil, fmt.Errorf("审批层级必须大于等于1")
		}
		rule.Level = *req.Level
	}
	if req.ApproverID != nil {
		rule.ApproverID = req.ApproverID
	}
	if req.ApproverRole != nil {
		rule.ApproverRole = *req.ApproverRole
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if rule.MaxAmount != nil && rule.MaxAmount.LessThanOrEqual(rule.MinAmount) {
		return nil, fmt.Errorf("金额上界必须大于下界")
	}

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("更新审批规则失败: %w", err)
	}

	return rule, nil
}

// Deactivate 停用审批规则
// 已提交单据持有规则快照，停用不影响在途审批
func (s *RuleService) Deactivate(ctx context.Context, id string) error {
	return s.ruleRepo.Deactivate(ctx, id)
}
