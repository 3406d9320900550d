package repository

import (
	"context"
	"errors"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"gorm.io/gorm"
)

// MatchRepository 三单匹配结果仓库
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// FindByID 根据ID查找匹配结果
func (r *MatchRepository) FindByID(ctx context.Context, id string) (*entity.MatchResult, error) {
	var result entity.MatchResult
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// FindByPO 查询PO的全部匹配结果
func (r *MatchRepository) FindByPO(ctx context.Context, poID string) ([]entity.MatchResult, error) {
	var results []entity.MatchResult
	err := r.db.WithContext(ctx).
		Where("po_id = ?", poID).
		Order("matched_at DESC").
		Find(&results).Error
	return results, err
}

// FindByScope 按(PO, GR?, Bill?)组合查找既有结果
func (r *MatchRepository) FindByScope(ctx context.Context, poID string, grID, billID *string) (*entity.MatchResult, error) {
	var result entity.MatchResult
	err := r.db.WithContext(ctx).
		Where("po_id = ? AND gr_id IS NOT DISTINCT FROM ? AND bill_id IS NOT DISTINCT FROM ?", poID, grID, billID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// Save 创建或覆盖匹配结果
func (r *MatchRepository) Save(ctx context.Context, result *entity.MatchResult) error {
	return r.db.WithContext(ctx).Save(result).Error
}

// FindUnresolved 查询未标注处理的异常结果
func (r *MatchRepository) FindUnresolved(ctx context.Context, page, pageSize int) ([]entity.MatchResult, int64, error) {
	var results []entity.MatchResult
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.MatchResult{}).
		Where("status <> ? AND resolved_at IS NULL", entity.MatchStatusMatched)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("matched_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&results).Error

	return results, total, err
}
