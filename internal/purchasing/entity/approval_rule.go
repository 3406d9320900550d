package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind 审批实体类型（封闭枚举，避免松散字符串匹配）
type EntityKind string

const (
	KindPurchaseRequest EntityKind = "purchase_request"
	KindPurchaseOrder   EntityKind = "purchase_order"
	KindVendorBill      EntityKind = "vendor_bill"
)

// Valid 检查是否为已知实体类型
func (k EntityKind) Valid() bool {
	switch k {
	case KindPurchaseRequest, KindPurchaseOrder, KindVendorBill:
		return true
	}
	return false
}

// ParseEntityKind 解析实体类型字符串
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("未知审批实体类型: %q", s)
	}
	return k, nil
}

// ApprovalRule 审批规则（按金额分级的审批链配置）
// 同一实体类型下各级规则构成审批阶梯；同级多条生效规则按priority取最小者
type ApprovalRule struct {
	ID         string     `json:"id" gorm:"primaryKey;size:32"`
	Name       string     `json:"name" gorm:"size:200;not null"`
	EntityKind EntityKind `json:"entity_kind" gorm:"size:50;not null;index:idx_rule_kind"`

	// 金额区间 [min, max)，max为空表示无上界
	MinAmount decimal.Decimal  `json:"min_amount" gorm:"type:decimal(15,4);not null;default:0"`
	MaxAmount *decimal.Decimal `json:"max_amount" gorm:"type:decimal(15,4)"`
	Currency  string           `json:"currency" gorm:"size:10;not null;default:USD"`

	Level int `json:"level" gorm:"not null"` // 审批层级，从1开始

	// 审批人：二选一，指定人优先于角色
	ApproverID   *string `json:"approver_id" gorm:"size:32"`
	ApproverRole string  `json:"approver_role" gorm:"size:50"`

	Priority int  `json:"priority" gorm:"default:0"` // 同级重叠规则的消歧优先级，小者优先
	IsActive bool `json:"is_active" gorm:"default:true;index"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ApprovalRule) TableName() string {
	return "pur_approval_rules"
}

// Covers 判断规则是否覆盖给定金额（区间为左闭右开）
func (r *ApprovalRule) Covers(amount decimal.Decimal) bool {
	if amount.LessThan(r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && amount.GreaterThanOrEqual(*r.MaxAmount) {
		return false
	}
	return true
}
