package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"gorm.io/gorm"
)

// ReceiptRepository 收货单仓库
type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// FindByPO 查询PO关联的全部收货单（含行项）
func (r *ReceiptRepository) FindByPO(ctx context.Context, poID string) ([]entity.GoodsReceipt, error) {
	var receipts []entity.GoodsReceipt
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("po_id = ?", poID).
		Order("received_at ASC").
		Find(&receipts).Error
	return receipts, err
}

// FindByID 根据ID查找收货单
func (r *ReceiptRepository) FindByID(ctx context.Context, id string) (*entity.GoodsReceipt, error) {
	var gr entity.GoodsReceipt
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&gr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &gr, nil
}

// Create 创建收货单
func (r *ReceiptRepository) Create(ctx context.Context, gr *entity.GoodsReceipt) error {
	return r.db.WithContext(ctx).Create(gr).Error
}

// GenerateCode 生成GR编码 GR-{year}-{4位}
func (r *ReceiptRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("GR-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.GoodsReceipt{}).
		Select("COALESCE(MAX(gr_code), '')").
		Where("gr_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "GR-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("GR-%s-%04d", year, seq), nil
}
