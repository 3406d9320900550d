package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 主数据仓库集合
type Repositories struct {
	Supplier *SupplierRepository
	Product  *ProductRepository
	User     *UserRepository
}

// NewRepositories 创建主数据仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Supplier: NewSupplierRepository(db),
		Product:  NewProductRepository(db),
		User:     NewUserRepository(db),
	}
}
