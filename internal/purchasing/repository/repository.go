package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 采购仓库集合
type Repositories struct {
	DB          *gorm.DB // 跨聚合事务入口
	Rule        *RuleRepository
	PR          *PRRepository
	PO          *PORepository
	Receipt     *ReceiptRepository
	Bill        *BillRepository
	Match       *MatchRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建采购仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Rule:        NewRuleRepository(db),
		PR:          NewPRRepository(db),
		PO:          NewPORepository(db),
		Receipt:     NewReceiptRepository(db),
		Bill:        NewBillRepository(db),
		Match:       NewMatchRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}
