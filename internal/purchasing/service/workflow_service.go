package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/pharmalink/pharmalink/internal/purchasing/repository"
	"github.com/pharmalink/pharmalink/internal/shared/notify"
)

// 审批决定
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// WorkflowService 采购申请审批流服务
// 管理PR的完整生命周期：草稿、提交、逐级审批、转采购订单、取消
type WorkflowService struct {
	repos    *repository.Repositories
	ruleSvc  *RuleService
	notifier notify.Notifier
}

// NewWorkflowService 创建审批流服务
func NewWorkflowService(repos *repository.Repositories, ruleSvc *RuleService, notifier notify.Notifier) *WorkflowService {
	return &WorkflowService{repos: repos, ruleSvc: ruleSvc, notifier: notifier}
}

// PRItemRequest 采购申请行项参数
type PRItemRequest struct {
	ProductID   string          `json:"product_id" binding:"required"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Notes       string          `json:"notes"`
}

// CreatePRRequest 创建采购申请参数
type CreatePRRequest struct {
	Title      string          `json:"title" binding:"required"`
	SupplierID *string         `json:"supplier_id"`
	Currency   string          `json:"currency"`
	Notes      string          `json:"notes"`
	Items      []PRItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdatePRRequest 更新采购申请参数（仅草稿可改）
type UpdatePRRequest struct {
	Title      *string         `json:"title"`
	SupplierID *string         `json:"supplier_id"`
	Currency   *string         `json:"currency"`
	Notes      *string         `json:"notes"`
	Items      []PRItemRequest `json:"items"`
}

// DecideRequest 审批决定参数
type DecideRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Comment  string `json:"comment"`
}

// ConvertRequest 转采购订单参数
type ConvertRequest struct {
	ExpectedDate *time.Time `json:"expected_date"`
	PaymentTerms string     `json:"payment_terms"`
	Notes        string     `json:"notes"`
}

// buildItems 构造行项并汇总金额
func buildItems(prID string, reqs []PRItemRequest) ([]entity.PRItem, decimal.Decimal, error) {
	total := decimal.Zero
	items := make([]entity.PRItem, 0, len(reqs))
	for i, it := range reqs {
		if it.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, decimal.Zero, fmt.Errorf("行项[%d]数量必须大于0", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("行项[%d]单价不能为负", i+1)
		}
		unit := it.Unit
		if unit == "" {
			unit = "box"
		}
		lineTotal := it.Quantity.Mul(it.UnitPrice)
		items = append(items, entity.PRItem{
			ID:          generateID(),
			PRID:        prID,
			ProductID:   it.ProductID,
			ProductCode: it.ProductCode,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Unit:        unit,
			UnitPrice:   it.UnitPrice,
			LineTotal:   lineTotal,
			SortOrder:   i,
			Notes:       it.Notes,
		})
		total = total.Add(lineTotal)
	}
	return items, total, nil
}

// Create 创建采购申请（草稿）
func (s *WorkflowService) Create(ctx context.Context, userID string, req *CreatePRRequest) (*entity.PurchaseRequest, error) {
	code, err := s.repos.PR.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成申请单号失败: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	prID := generateID()
	items, total, err := buildItems(prID, req.Items)
	if err != nil {
		return nil, err
	}

	pr := &entity.PurchaseRequest{
		ID:          prID,
		PRCode:      code,
		Title:       req.Title,
		Status:      entity.PRStatusDraft,
		SupplierID:  req.SupplierID,
		TotalAmount: total,
		Currency:    currency,
		RequestedBy: userID,
		Notes:       req.Notes,
		Items:       items,
	}

	if err := s.repos.PR.Create(ctx, pr); err != nil {
		return nil, fmt.Errorf("创建采购申请失败: %w", err)
	}

	return pr, nil
}

// Update 更新采购申请（仅草稿）
func (s *WorkflowService) Update(ctx context.Context, id string, req *UpdatePRRequest) (*entity.PurchaseRequest, error) {
	pr, err := s.repos.PR.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr.Status != entity.PRStatusDraft {
		return nil, fmt.Errorf("%w: 只有草稿可以修改（当前: %s）", ErrInvalidState, pr.Status)
	}

	if req.Title != nil {
		pr.Title = *req.Title
	}
	if req.SupplierID != nil {
		pr.SupplierID = req.SupplierID
	}
	if req.Currency != nil {
		pr.Currency = *req.Currency
	}
	if req.Notes != nil {
		pr.Notes = *req.Notes
	}

	err = s.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Items != nil {
			items, total, err := buildItems(pr.ID, req.Items)
			if err != nil {
				return err
			}
			if err := tx.Where("pr_id = ?", pr.ID).Delete(&entity.PRItem{}).Error; err != nil {
				return fmt.Errorf("清除旧行项失败: %w", err)
			}
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("写入行项失败: %w", err)
			}
			pr.TotalAmount = total
			pr.Items = items
		}
		if err := tx.Omit("Items", "Approvals").Save(pr).Error; err != nil {
			return fmt.Errorf("更新采购申请失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pr, nil
}

// List 获取采购申请列表
func (s *WorkflowService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseRequest, int64, error) {
	return s.repos.PR.FindAll(ctx, page, pageSize, filters)
}

// Get 获取采购申请详情
func (s *WorkflowService) Get(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	return s.repos.PR.FindByID(ctx, id)
}

// ListMyPending 获取我的待审批列表
func (s *WorkflowService) ListMyPending(ctx context.Context, userID string) ([]entity.PurchaseRequestApproval, error) {
	return s.repos.PR.FindPendingForApprover(ctx, userID)
}

// ListActivity 获取单据操作日志
func (s *WorkflowService) ListActivity(ctx context.Context, entityType, entityID string) ([]entity.ActivityLog, error) {
	return s.repos.ActivityLog.FindByEntity(ctx, entityType, entityID)
}

// Submit 提交采购申请进入审批
// 按总金额解析审批链，为每个层级落一条pending审批记录
func (s *WorkflowService) Submit(ctx context.Context, prID, userID string) (*entity.PurchaseRequest, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	if pr.Status != entity.PRStatusDraft {
		return nil, fmt.Errorf("%w: 只有草稿可以提交（当前: %s）", ErrInvalidState, pr.Status)
	}
	if len(pr.Items) == 0 {
		return nil, fmt.Errorf("%w: 采购申请没有行项", ErrInvalidState)
	}

	// 规则有洞直接拒绝提交，不落半截审批链
	levels, err := s.ruleSvc.Resolve(ctx, entity.KindPurchaseRequest, pr.TotalAmount, pr.Currency)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.PurchaseRequest{}).
			Where("id = ? AND status = ?", prID, entity.PRStatusDraft).
			Updates(map[string]interface{}{
				"status":       entity.PRStatusSubmitted,
				"submitted_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("更新申请状态失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: 申请已被其他操作处理", ErrInvalidState)
		}

		for _, lv := range levels {
			snapshot, err := json.Marshal(lv.EligibleApprovers)
			if err != nil {
				return fmt.Errorf("序列化审批人快照失败: %w", err)
			}
			approval := entity.PurchaseRequestApproval{
				ID:                generateID(),
				PRID:              prID,
				Level:             lv.Level,
				RuleID:            lv.RuleID,
				ApproverID:        lv.ApproverID,
				ApproverRole:      lv.ApproverRole,
				EligibleApprovers: datatypes.JSON(snapshot),
				Status:            entity.ApprovalStatusPending,
			}
			if err := tx.Create(&approval).Error; err != nil {
				return fmt.Errorf("创建第%d级审批记录失败: %w", lv.Level, err)
			}
		}

		return s.appendLog(tx, pr, "submit", entity.PRStatusDraft, entity.PRStatusSubmitted, userID,
			fmt.Sprintf("提交审批，共%d级", len(levels)))
	})
	if err != nil {
		return nil, err
	}

	pr.Status = entity.PRStatusSubmitted
	pr.SubmittedAt = &now

	dispatchEvent(s.notifier, notify.Event{
		Type:       notify.EventPRSubmitted,
		EntityType: "purchase_request",
		EntityID:   pr.ID,
		EntityCode: pr.PRCode,
		Actor:      userID,
		Message:    fmt.Sprintf("采购申请[%s]已提交审批", pr.PRCode),
		Metadata:   map[string]interface{}{"levels": len(levels), "total_amount": pr.TotalAmount.String()},
	})

	return pr, nil
}

// Decide 对指定层级作出审批决定
// 并发决定依赖单条带状态谓词的UPDATE，抢输的一方收到ErrStaleDecision
func (s *WorkflowService) Decide(ctx context.Context, prID string, level int, approverID string, req *DecideRequest) (*entity.PurchaseRequest, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	if pr.Status != entity.PRStatusSubmitted {
		return nil, fmt.Errorf("%w: 申请不在审批中（当前: %s）", ErrInvalidState, pr.Status)
	}

	approval, err := s.repos.PR.FindApproval(ctx, prID, level)
	if err != nil {
		return nil, err
	}

	// 授权检查不改任何状态
	if !approverAuthorized(approval, approverID) {
		return nil, ErrUnauthorizedApprover
	}

	now := time.Now()
	newStatus := entity.ApprovalStatusApproved
	if req.Decision == DecisionReject {
		newStatus = entity.ApprovalStatusRejected
	}

	var eventType, eventMsg string
	err = s.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.PurchaseRequestApproval{}).
			Where("pr_id = ? AND level = ? AND status = ?", prID, level, entity.ApprovalStatusPending).
			Updates(map[string]interface{}{
				"status":     newStatus,
				"decided_by": approverID,
				"decided_at": now,
				"comment":    req.Comment,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("更新审批记录失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleDecision
		}

		if req.Decision == DecisionReject {
			// 一票否决：剩余pending层级作废，不再等待
			if err := tx.Model(&entity.PurchaseRequestApproval{}).
				Where("pr_id = ? AND status = ?", prID, entity.ApprovalStatusPending).
				Updates(map[string]interface{}{
					"status":     entity.ApprovalStatusVoided,
					"updated_at": now,
				}).Error; err != nil {
				return fmt.Errorf("作废剩余审批层级失败: %w", err)
			}

			if err := tx.Model(&entity.PurchaseRequest{}).
				Where("id = ?", prID).
				Updates(map[string]interface{}{
					"status":     entity.PRStatusRejected,
					"updated_at": now,
				}).Error; err != nil {
				return fmt.Errorf("更新申请状态失败: %w", err)
			}

			pr.Status = entity.PRStatusRejected
			eventType = notify.EventPRRejected
			eventMsg = fmt.Sprintf("采购申请[%s]在第%d级被驳回", pr.PRCode, level)
			return s.appendLog(tx, pr, "decide", entity.PRStatusSubmitted, entity.PRStatusRejected, approverID,
				fmt.Sprintf("第%d级驳回: %s", level, req.Comment))
		}

		// 通过：若所有层级均已通过则整单通过
		var pendingCount int64
		if err := tx.Model(&entity.PurchaseRequestApproval{}).
			Where("pr_id = ? AND status = ?", prID, entity.ApprovalStatusPending).
			Count(&pendingCount).Error; err != nil {
			return fmt.Errorf("统计待审批层级失败: %w", err)
		}

		if pendingCount > 0 {
			eventType = notify.EventPRLevelApproved
			eventMsg = fmt.Sprintf("采购申请[%s]第%d级审批通过", pr.PRCode, level)
			return s.appendLog(tx, pr, "decide", entity.PRStatusSubmitted, entity.PRStatusSubmitted, approverID,
				fmt.Sprintf("第%d级通过: %s", level, req.Comment))
		}

		if err := tx.Model(&entity.PurchaseRequest{}).
			Where("id = ?", prID).
			Updates(map[string]interface{}{
				"status":      entity.PRStatusApproved,
				"approved_at": now,
				"updated_at":  now,
			}).Error; err != nil {
			return fmt.Errorf("更新申请状态失败: %w", err)
		}

		pr.Status = entity.PRStatusApproved
		pr.ApprovedAt = &now
		eventType = notify.EventPRApproved
		eventMsg = fmt.Sprintf("采购申请[%s]审批全部通过", pr.PRCode)
		return s.appendLog(tx, pr, "decide", entity.PRStatusSubmitted, entity.PRStatusApproved, approverID,
			fmt.Sprintf("第%d级通过，审批完成", level))
	})
	if err != nil {
		return nil, err
	}

	dispatchEvent(s.notifier, notify.Event{
		Type:       eventType,
		EntityType: "purchase_request",
		EntityID:   pr.ID,
		EntityCode: pr.PRCode,
		Actor:      approverID,
		Message:    eventMsg,
		Metadata:   map[string]interface{}{"level": level, "decision": req.Decision},
	})

	return pr, nil
}

// ConvertToOrder 将已批准的申请转为采购订单
// 幂等：已转换的申请直接返回既有订单，不再复制
func (s *WorkflowService) ConvertToOrder(ctx context.Context, prID, userID string, req *ConvertRequest) (*entity.PurchaseOrder, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}

	if pr.Status == entity.PRStatusConverted {
		if pr.ConvertedPOID == nil {
			return nil, fmt.Errorf("申请已转换但缺少订单引用")
		}
		return s.repos.PO.FindByID(ctx, *pr.ConvertedPOID)
	}
	if pr.Status != entity.PRStatusApproved {
		return nil, fmt.Errorf("%w: 只有已批准的申请可以转单（当前: %s）", ErrInvalidState, pr.Status)
	}
	if pr.SupplierID == nil {
		return nil, fmt.Errorf("%w: 申请未指定供应商，无法转单", ErrInvalidState)
	}

	poCode, err := s.repos.PO.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成订单编号失败: %w", err)
	}

	now := time.Now()
	poID := generateID()
	po := &entity.PurchaseOrder{
		ID:           poID,
		POCode:       poCode,
		SupplierID:   *pr.SupplierID,
		PRID:         &pr.ID,
		Status:       entity.POStatusOpen,
		TotalAmount:  pr.TotalAmount,
		Currency:     pr.Currency,
		ExpectedDate: req.ExpectedDate,
		PaymentTerms: req.PaymentTerms,
		CreatedBy:    userID,
		Notes:        req.Notes,
	}
	for i, it := range pr.Items {
		prItemID := it.ID
		po.Items = append(po.Items, entity.POItem{
			ID:          generateID(),
			POID:        poID,
			PRItemID:    &prItemID,
			ProductID:   it.ProductID,
			ProductCode: it.ProductCode,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
			SortOrder:   i,
		})
	}

	err = s.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 状态谓词防止并发重复转单
		res := tx.Model(&entity.PurchaseRequest{}).
			Where("id = ? AND status = ?", prID, entity.PRStatusApproved).
			Updates(map[string]interface{}{
				"status":          entity.PRStatusConverted,
				"converted_po_id": poID,
				"updated_at":      now,
			})
		if res.Error != nil {
			return fmt.Errorf("更新申请状态失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: 申请已被其他操作转换", ErrInvalidState)
		}

		if err := tx.Create(po).Error; err != nil {
			return fmt.Errorf("创建采购订单失败: %w", err)
		}

		return s.appendLog(tx, pr, "convert", entity.PRStatusApproved, entity.PRStatusConverted, userID,
			fmt.Sprintf("转为采购订单[%s]", poCode))
	})
	if err != nil {
		return nil, err
	}

	dispatchEvent(s.notifier, notify.Event{
		Type:       notify.EventPRConverted,
		EntityType: "purchase_request",
		EntityID:   pr.ID,
		EntityCode: pr.PRCode,
		Actor:      userID,
		Message:    fmt.Sprintf("采购申请[%s]已转为订单[%s]", pr.PRCode, poCode),
		Metadata:   map[string]interface{}{"po_id": poID, "po_code": poCode},
	})

	return po, nil
}

// Cancel 取消采购申请
// 仅草稿和审批中可取消；审批中的pending层级一并作废
func (s *WorkflowService) Cancel(ctx context.Context, prID, userID string) (*entity.PurchaseRequest, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	if pr.Status != entity.PRStatusDraft && pr.Status != entity.PRStatusSubmitted {
		return nil, fmt.Errorf("%w: 当前状态不允许取消（%s）", ErrInvalidState, pr.Status)
	}

	fromStatus := pr.Status
	now := time.Now()
	err = s.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.PurchaseRequest{}).
			Where("id = ? AND status IN ?", prID, []string{entity.PRStatusDraft, entity.PRStatusSubmitted}).
			Updates(map[string]interface{}{
				"status":     entity.PRStatusCancelled,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("更新申请状态失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: 申请已被其他操作处理", ErrInvalidState)
		}

		if err := tx.Model(&entity.PurchaseRequestApproval{}).
			Where("pr_id = ? AND status = ?", prID, entity.ApprovalStatusPending).
			Updates(map[string]interface{}{
				"status":     entity.ApprovalStatusVoided,
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("作废审批层级失败: %w", err)
		}

		return s.appendLog(tx, pr, "cancel", fromStatus, entity.PRStatusCancelled, userID, "取消采购申请")
	})
	if err != nil {
		return nil, err
	}

	pr.Status = entity.PRStatusCancelled

	dispatchEvent(s.notifier, notify.Event{
		Type:       notify.EventPRCancelled,
		EntityType: "purchase_request",
		EntityID:   pr.ID,
		EntityCode: pr.PRCode,
		Actor:      userID,
		Message:    fmt.Sprintf("采购申请[%s]已取消", pr.PRCode),
	})

	return pr, nil
}

// appendLog 在事务内追加操作日志
func (s *WorkflowService) appendLog(tx *gorm.DB, pr *entity.PurchaseRequest, action, from, to, operatorID, content string) error {
	logRow := entity.ActivityLog{
		ID:         generateID(),
		EntityType: "purchase_request",
		EntityID:   pr.ID,
		EntityCode: pr.PRCode,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Content:    content,
		OperatorID: operatorID,
	}
	if err := tx.Create(&logRow).Error; err != nil {
		return fmt.Errorf("写入操作日志失败: %w", err)
	}
	return nil
}

// approverAuthorized 判断操作人是否属于该层级的审批人
func approverAuthorized(approval *entity.PurchaseRequestApproval, approverID string) bool {
	if approval.ApproverID != nil && *approval.ApproverID == approverID {
		return true
	}
	var eligible []string
	if len(approval.EligibleApprovers) > 0 {
		if err := json.Unmarshal(approval.EligibleApprovers, &eligible); err != nil {
			return false
		}
	}
	for _, id := range eligible {
		if id == approverID {
			return true
		}
	}
	return false
}
