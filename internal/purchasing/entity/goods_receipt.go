package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoodsReceipt 收货单
type GoodsReceipt struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	GRCode string `json:"gr_code" gorm:"size:32;uniqueIndex;not null"`
	POID   string `json:"po_id" gorm:"size:32;not null;index"`

	ReceivedAt time.Time `json:"received_at"`
	ReceivedBy string    `json:"received_by" gorm:"size:32"`
	WarehouseID string   `json:"warehouse_id" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联
	Items []GRItem `json:"items,omitempty" gorm:"foreignKey:GRID"`
}

func (GoodsReceipt) TableName() string {
	return "pur_goods_receipts"
}

// GRItem 收货行项
type GRItem struct {
	ID   string `json:"id" gorm:"primaryKey;size:32"`
	GRID string `json:"gr_id" gorm:"size:32;not null;index"`

	ProductID string          `json:"product_id" gorm:"size:32;not null"`
	Quantity  decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	Unit      string          `json:"unit" gorm:"size:20;default:box"`

	// 药品批次追溯
	BatchNo    string     `json:"batch_no" gorm:"size:50"`
	ExpiryDate *time.Time `json:"expiry_date"`

	CreatedAt time.Time `json:"created_at"`
}

func (GRItem) TableName() string {
	return "pur_gr_items"
}
