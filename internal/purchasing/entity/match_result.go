package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 三单匹配结果状态
const (
	MatchStatusMatched          = "matched"
	MatchStatusQuantityMismatch = "quantity_mismatch"
	MatchStatusPriceMismatch    = "price_mismatch"
	MatchStatusMissingReceipt   = "missing_receipt"
	MatchStatusMissingBill      = "missing_bill"
	MatchStatusPending          = "pending"
)

// MatchResult PO/收货/账单三单匹配结果
// 每个(PO, GR?, Bill?)组合保留最后一次运行结果，重跑覆盖；
// 异常处理只做标注(resolved_*)，不改写分类状态
type MatchResult struct {
	ID     string  `json:"id" gorm:"primaryKey;size:32"`
	POID   string  `json:"po_id" gorm:"size:32;not null;uniqueIndex:idx_match_scope"`
	GRID   *string `json:"gr_id" gorm:"size:32;uniqueIndex:idx_match_scope"`
	BillID *string `json:"bill_id" gorm:"size:32;uniqueIndex:idx_match_scope"`

	Status string `json:"status" gorm:"size:30;not null;index"`

	// 汇总差异
	QuantityVariance decimal.Decimal `json:"quantity_variance" gorm:"type:decimal(15,4);default:0"`
	PriceVariance    decimal.Decimal `json:"price_variance" gorm:"type:decimal(15,4);default:0"`

	// 行级明细（[]matching.MatchLine 序列化存储，便于审计下钻）
	MatchDetails datatypes.JSON `json:"match_details" gorm:"type:jsonb"`

	// 异常标注
	ResolvedBy *string    `json:"resolved_by" gorm:"size:32"`
	ResolvedAt *time.Time `json:"resolved_at"`
	Notes      string     `json:"notes" gorm:"type:text"`

	MatchedAt time.Time `json:"matched_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MatchResult) TableName() string {
	return "pur_match_results"
}
