package entity

import "time"

// Supplier 供应商（药品经销上游供方）
type Supplier struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	Code      string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name      string `json:"name" gorm:"size:200;not null"`
	ShortName string `json:"short_name" gorm:"size:50"`
	Category  string `json:"category" gorm:"size:50;not null"` // manufacturer/wholesaler/importer/other
	Status    string `json:"status" gorm:"size:20;default:active"`

	// 资质信息
	LicenseNo     string     `json:"license_no" gorm:"size:100"` // 药品经营许可证号
	GMPCertified  bool       `json:"gmp_certified" gorm:"default:false"`
	LicenseExpiry *time.Time `json:"license_expiry"`

	// 联系信息
	Country       string `json:"country" gorm:"size:50"`
	City          string `json:"city" gorm:"size:50"`
	Address       string `json:"address" gorm:"size:500"`
	ContactPerson string `json:"contact_person" gorm:"size:100"`
	ContactPhone  string `json:"contact_phone" gorm:"size:50"`
	ContactEmail  string `json:"contact_email" gorm:"size:100"`

	// 付款信息
	BankName     string `json:"bank_name" gorm:"size:200"`
	BankAccount  string `json:"bank_account" gorm:"size:50"`
	PaymentTerms string `json:"payment_terms" gorm:"size:100"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`
}

func (Supplier) TableName() string {
	return "dir_suppliers"
}

// 供应商状态
const (
	SupplierStatusActive    = "active"
	SupplierStatusSuspended = "suspended"
	SupplierStatusBlocked   = "blocked"
)
