package repository

import (
	"context"
	"errors"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"gorm.io/gorm"
)

// RuleRepository 审批规则仓库
type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// FindActive 查询指定实体类型与币种的全部生效规则
// 按 level, priority, created_at 排序，供解析器逐级消歧
func (r *RuleRepository) FindActive(ctx context.Context, kind entity.EntityKind, currency string) ([]entity.ApprovalRule, error) {
	var rules []entity.ApprovalRule
	err := r.db.WithContext(ctx).
		Where("entity_kind = ? AND currency = ? AND is_active = ?", kind, currency, true).
		Order("level ASC, priority ASC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

// FindAll 查询规则列表
func (r *RuleRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ApprovalRule, int64, error) {
	var rules []entity.ApprovalRule
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ApprovalRule{})

	if kind := filters["entity_kind"]; kind != "" {
		query = query.Where("entity_kind = ?", kind)
	}
	if currency := filters["currency"]; currency != "" {
		query = query.Where("currency = ?", currency)
	}
	if active := filters["is_active"]; active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("entity_kind ASC, level ASC, priority ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&rules).Error

	return rules, total, err
}

// FindByID 根据ID查找规则
func (r *RuleRepository) FindByID(ctx context.Context, id string) (*entity.ApprovalRule, error) {
	var rule entity.ApprovalRule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// Create 创建规则
func (r *RuleRepository) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// Update 更新规则
func (r *RuleRepository) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Deactivate 停用规则（保留历史，不物理删除）
func (r *RuleRepository) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&entity.ApprovalRule{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
