package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRequest 采购申请单
type PurchaseRequest struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	PRCode string `json:"pr_code" gorm:"size:32;uniqueIndex;not null"`
	Title  string `json:"title" gorm:"size:200;not null"`
	Status string `json:"status" gorm:"size:20;default:draft"` // draft/submitted/approved/rejected/converted/cancelled

	SupplierID *string `json:"supplier_id" gorm:"size:32;index"`

	// 金额
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,4);default:0"`
	Currency    string          `json:"currency" gorm:"size:10;default:USD"`

	// 转单
	ConvertedPOID *string `json:"converted_po_id" gorm:"size:32"`

	// 管理
	RequestedBy string     `json:"requested_by" gorm:"size:32;not null"`
	SubmittedAt *time.Time `json:"submitted_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Notes       string     `json:"notes" gorm:"type:text"`

	// 关联
	Items     []PRItem                  `json:"items,omitempty" gorm:"foreignKey:PRID"`
	Approvals []PurchaseRequestApproval `json:"approvals,omitempty" gorm:"foreignKey:PRID"`
}

func (PurchaseRequest) TableName() string {
	return "pur_purchase_requests"
}

// PR状态
const (
	PRStatusDraft     = "draft"
	PRStatusSubmitted = "submitted"
	PRStatusApproved  = "approved"
	PRStatusRejected  = "rejected"
	PRStatusConverted = "converted"
	PRStatusCancelled = "cancelled"
)

// PRItem 采购申请行项
type PRItem struct {
	ID   string `json:"id" gorm:"primaryKey;size:32"`
	PRID string `json:"pr_id" gorm:"size:32;not null;index"`

	ProductID   string `json:"product_id" gorm:"size:32;not null"`
	ProductCode string `json:"product_code" gorm:"size:50"`
	ProductName string `json:"product_name" gorm:"size:200;not null"`

	Quantity  decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	Unit      string          `json:"unit" gorm:"size:20;default:box"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(15,4);default:0"`
	LineTotal decimal.Decimal `json:"line_total" gorm:"type:decimal(15,4);default:0"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PRItem) TableName() string {
	return "pur_pr_items"
}
