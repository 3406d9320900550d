package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"gorm.io/gorm"
)

// BillRepository 供应商账单仓库
type BillRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

// FindByPO 查询PO关联的全部账单（含行项）
func (r *BillRepository) FindByPO(ctx context.Context, poID string) ([]entity.VendorBill, error) {
	var bills []entity.VendorBill
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("po_id = ?", poID).
		Order("created_at ASC").
		Find(&bills).Error
	return bills, err
}

// FindByID 根据ID查找账单
func (r *BillRepository) FindByID(ctx context.Context, id string) (*entity.VendorBill, error) {
	var bill entity.VendorBill
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bill, nil
}

// Create 创建账单
func (r *BillRepository) Create(ctx context.Context, bill *entity.VendorBill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

// GenerateCode 生成账单编码 VB-{year}-{4位}
func (r *BillRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("VB-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.VendorBill{}).
		Select("COALESCE(MAX(bill_code), '')").
		Where("bill_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "VB-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("VB-%s-%04d", year, seq), nil
}
