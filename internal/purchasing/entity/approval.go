package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 审批决定状态
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
	ApprovalStatusVoided   = "voided"
)

// PurchaseRequestApproval 采购申请审批记录
// 每个(PR, 层级)唯一一行；合格审批人集合在提交时快照，
// 流程中的角色变更不追溯影响已发放的审批权
type PurchaseRequestApproval struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	PRID   string `json:"pr_id" gorm:"size:32;not null;uniqueIndex:idx_pr_level"`
	Level  int    `json:"level" gorm:"not null;uniqueIndex:idx_pr_level"`
	RuleID string `json:"rule_id" gorm:"size:32;not null"`

	// 指定审批人（为空时按快照角色集合授权）
	ApproverID        *string        `json:"approver_id" gorm:"size:32"`
	ApproverRole      string         `json:"approver_role" gorm:"size:50"`
	EligibleApprovers datatypes.JSON `json:"eligible_approvers" gorm:"type:jsonb"` // []string 用户ID快照

	Status    string     `json:"status" gorm:"size:20;not null;default:pending;index"`
	DecidedBy *string    `json:"decided_by" gorm:"size:32"`
	DecidedAt *time.Time `json:"decided_at"`
	Comment   string     `json:"comment" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PurchaseRequestApproval) TableName() string {
	return "pur_pr_approvals"
}
