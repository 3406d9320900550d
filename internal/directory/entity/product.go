package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 药品档案
type Product struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	Code        string `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name        string `json:"name" gorm:"size:200;not null"`
	GenericName string `json:"generic_name" gorm:"size:200"`
	ATCCode     string `json:"atc_code" gorm:"size:20"` // WHO ATC分类编码
	DosageForm  string `json:"dosage_form" gorm:"size:50"` // tablet/capsule/injection/syrup
	Strength    string `json:"strength" gorm:"size:50"`
	Unit        string `json:"unit" gorm:"size:20;default:box"`

	// 监管信息
	RegistrationNo string `json:"registration_no" gorm:"size:100"` // 药品注册批准文号
	BatchManaged   bool   `json:"batch_managed" gorm:"default:true"`
	ColdChain      bool   `json:"cold_chain" gorm:"default:false"`

	// 价格参考
	ListPrice decimal.Decimal `json:"list_price" gorm:"type:decimal(15,4);default:0"`
	Currency  string          `json:"currency" gorm:"size:10;default:USD"`

	Status    string    `json:"status" gorm:"size:20;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "dir_products"
}
