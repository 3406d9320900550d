package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorBill 供应商账单（OCR抽取服务写入，对账引擎消费）
type VendorBill struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	BillCode string `json:"bill_code" gorm:"size:32;uniqueIndex;not null"`
	POID     string `json:"po_id" gorm:"size:32;not null;index"`

	SupplierID string `json:"supplier_id" gorm:"size:32;index"`
	InvoiceNo  string `json:"invoice_no" gorm:"size:100"`

	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,4);default:0"`
	Currency    string          `json:"currency" gorm:"size:10;default:USD"`

	BillDate  *time.Time `json:"bill_date"`
	DueDate   *time.Time `json:"due_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Notes     string     `json:"notes" gorm:"type:text"`

	// 关联
	Items []BillItem `json:"items,omitempty" gorm:"foreignKey:BillID"`
}

func (VendorBill) TableName() string {
	return "pur_vendor_bills"
}

// BillItem 账单行项
type BillItem struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	BillID string `json:"bill_id" gorm:"size:32;not null;index"`

	ProductID string          `json:"product_id" gorm:"size:32;not null"`
	Quantity  decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	UnitCost  decimal.Decimal `json:"unit_cost" gorm:"type:decimal(15,4);not null"`
	LineTotal decimal.Decimal `json:"line_total" gorm:"type:decimal(15,4);default:0"`

	CreatedAt time.Time `json:"created_at"`
}

func (BillItem) TableName() string {
	return "pur_bill_items"
}
