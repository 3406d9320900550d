package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID         string  `json:"id" gorm:"primaryKey;size:32"`
	POCode     string  `json:"po_code" gorm:"size:32;uniqueIndex;not null"`
	SupplierID string  `json:"supplier_id" gorm:"size:32;not null;index"`
	PRID       *string `json:"pr_id" gorm:"size:32;index"`
	Status     string  `json:"status" gorm:"size:20;default:open"` // open/sent/received/closed/cancelled

	// 金额
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,4);default:0"`
	Currency    string          `json:"currency" gorm:"size:10;default:USD"`

	// 交期与条款
	ExpectedDate *time.Time `json:"expected_date"`
	PaymentTerms string     `json:"payment_terms" gorm:"size:100"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联
	Items []POItem `json:"items,omitempty" gorm:"foreignKey:POID"`
}

func (PurchaseOrder) TableName() string {
	return "pur_purchase_orders"
}

// PO状态
const (
	POStatusOpen      = "open"
	POStatusSent      = "sent"
	POStatusReceived  = "received"
	POStatusClosed    = "closed"
	POStatusCancelled = "cancelled"
)

// POItem 采购订单行项
type POItem struct {
	ID       string  `json:"id" gorm:"primaryKey;size:32"`
	POID     string  `json:"po_id" gorm:"size:32;not null;index"`
	PRItemID *string `json:"pr_item_id" gorm:"size:32"`

	ProductID   string `json:"product_id" gorm:"size:32;not null"`
	ProductCode string `json:"product_code" gorm:"size:50"`
	ProductName string `json:"product_name" gorm:"size:200;not null"`

	Quantity  decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	Unit      string          `json:"unit" gorm:"size:20;default:box"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(15,4);default:0"`
	LineTotal decimal.Decimal `json:"line_total" gorm:"type:decimal(15,4);default:0"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (POItem) TableName() string {
	return "pur_po_items"
}
