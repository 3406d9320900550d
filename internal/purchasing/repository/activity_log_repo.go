package repository

import (
	"context"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"gorm.io/gorm"
)

// ActivityLogRepository 采购操作日志仓库
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Append 追加日志
func (r *ActivityLogRepository) Append(ctx context.Context, log *entity.ActivityLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByEntity 查询实体的操作日志
func (r *ActivityLogRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]entity.ActivityLog, error) {
	var logs []entity.ActivityLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}
