package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"gorm.io/gorm"
)

// PRRepository 采购申请仓库
type PRRepository struct {
	db *gorm.DB
}

func NewPRRepository(db *gorm.DB) *PRRepository {
	return &PRRepository{db: db}
}

// FindAll 查询采购申请列表
func (r *PRRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseRequest, int64, error) {
	var items []entity.PurchaseRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseRequest{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if supplierID := filters["supplier_id"]; supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	if requestedBy := filters["requested_by"]; requestedBy != "" {
		query = query.Where("requested_by = ?", requestedBy)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("title ILIKE ? OR pr_code ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找采购申请（含行项与审批记录）
func (r *PRRepository) FindByID(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	var pr entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("level ASC")
		}).
		Where("id = ?", id).
		First(&pr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pr, nil
}

// Create 创建采购申请
func (r *PRRepository) Create(ctx context.Context, pr *entity.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

// Update 更新采购申请
func (r *PRRepository) Update(ctx context.Context, pr *entity.PurchaseRequest) error {
	return r.db.WithContext(ctx).Save(pr).Error
}

// FindApprovals 查询PR的审批记录（按层级）
func (r *PRRepository) FindApprovals(ctx context.Context, prID string) ([]entity.PurchaseRequestApproval, error) {
	var approvals []entity.PurchaseRequestApproval
	err := r.db.WithContext(ctx).
		Where("pr_id = ?", prID).
		Order("level ASC").
		Find(&approvals).Error
	return approvals, err
}

// FindApproval 查询PR指定层级的审批记录
func (r *PRRepository) FindApproval(ctx context.Context, prID string, level int) (*entity.PurchaseRequestApproval, error) {
	var approval entity.PurchaseRequestApproval
	err := r.db.WithContext(ctx).
		Where("pr_id = ? AND level = ?", prID, level).
		First(&approval).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &approval, nil
}

// FindPendingForApprover 查询某用户待处理的审批
// 指定审批人或出现在合格审批人快照中均可
func (r *PRRepository) FindPendingForApprover(ctx context.Context, userID string) ([]entity.PurchaseRequestApproval, error) {
	var approvals []entity.PurchaseRequestApproval
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.ApprovalStatusPending).
		Where("approver_id = ? OR eligible_approvers @> ?", userID, fmt.Sprintf("%q", userID)).
		Order("created_at ASC").
		Find(&approvals).Error
	return approvals, err
}

// GenerateCode 生成PR编码 PR-{year}-{4位}
func (r *PRRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("PR-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Select("COALESCE(MAX(pr_code), '')").
		Where("pr_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "PR-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("PR-%s-%04d", year, seq), nil
}
