package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/pharmalink/pharmalink/internal/purchasing/matching"
	"github.com/pharmalink/pharmalink/internal/purchasing/repository"
	"github.com/pharmalink/pharmalink/internal/shared/notify"
)

// 对账锁：同一PO同时只允许一次对账运行
const (
	matchLockPrefix = "pharmalink:match:lock:"
	matchLockTTL    = 30 * time.Second
)

// MatchService 三单匹配与异常处理服务
type MatchService struct {
	repos    *repository.Repositories
	rdb      *redis.Client
	engine   *matching.Engine
	notifier notify.Notifier
}

// NewMatchService 创建对账服务
func NewMatchService(repos *repository.Repositories, rdb *redis.Client, notifier notify.Notifier) *MatchService {
	return &MatchService{
		repos:    repos,
		rdb:      rdb,
		engine:   matching.NewEngine(),
		notifier: notifier,
	}
}

// RunMatchRequest 对账运行参数
// GRID/BillID 可选：指定后只对该收货单/账单做匹配，否则聚合全部
type RunMatchRequest struct {
	GRID   *string `json:"gr_id"`
	BillID *string `json:"bill_id"`
}

// RunMatch 执行三单匹配
// 同一PO的并发运行由redis锁串行化；重跑覆盖上次结果并清除异常标注
func (s *MatchService) RunMatch(ctx context.Context, poID, userID string, req *RunMatchRequest) (*entity.MatchResult, error) {
	if req == nil {
		req = &RunMatchRequest{}
	}

	po, err := s.repos.PO.FindByID(ctx, poID)
	if err != nil {
		return nil, err
	}

	// 拿不到锁说明另一次运行在途，调用方稍后重试
	lockKey := matchLockPrefix + poID
	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, lockKey, userID, matchLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("获取对账锁失败: %w", err)
		}
		if !ok {
			return nil, ErrMatchInProgress
		}
		defer s.rdb.Del(context.Background(), lockKey)
	}

	input, err := s.buildInput(ctx, po, req)
	if err != nil {
		return nil, err
	}

	outcome := s.engine.Evaluate(*input)

	details, err := json.Marshal(outcome.Lines)
	if err != nil {
		return nil, fmt.Errorf("序列化匹配明细失败: %w", err)
	}

	now := time.Now()
	result, err := s.repos.Match.FindByScope(ctx, poID, req.GRID, req.BillID)
	if err != nil && err != repository.ErrNotFound {
		return nil, fmt.Errorf("查询既有匹配结果失败: %w", err)
	}
	if result == nil {
		result = &entity.MatchResult{
			ID:     generateID(),
			POID:   poID,
			GRID:   req.GRID,
			BillID: req.BillID,
		}
	}

	// 覆盖式重跑：分类和差异全部重算，上次的人工标注随之失效
	result.Status = outcome.Status
	result.QuantityVariance = outcome.QuantityVariance
	result.PriceVariance = outcome.PriceVariance
	result.MatchDetails = datatypes.JSON(details)
	result.ResolvedBy = nil
	result.ResolvedAt = nil
	result.Notes = ""
	result.MatchedAt = now

	err = s.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(result).Error; err != nil {
			return fmt.Errorf("保存匹配结果失败: %w", err)
		}
		logRow := entity.ActivityLog{
			ID:         generateID(),
			EntityType: "match_result",
			EntityID:   result.ID,
			EntityCode: po.POCode,
			Action:     "match",
			ToStatus:   result.Status,
			Content:    fmt.Sprintf("三单匹配完成: %s", result.Status),
			Metadata: entity.JSONB{
				"po_id":             poID,
				"quantity_variance": result.QuantityVariance.String(),
				"price_variance":    result.PriceVariance.String(),
			},
			OperatorID: userID,
		}
		if err := tx.Create(&logRow).Error; err != nil {
			return fmt.Errorf("写入操作日志失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dispatchEvent(s.notifier, notify.Event{
		Type:       notify.EventMatchCompleted,
		EntityType: "match_result",
		EntityID:   result.ID,
		EntityCode: po.POCode,
		Actor:      userID,
		Message:    fmt.Sprintf("订单[%s]对账完成: %s", po.POCode, result.Status),
		Metadata:   map[string]interface{}{"status": result.Status},
	})

	return result, nil
}

// buildInput 装配引擎输入
// 缺收货/缺账单不是错误，交给引擎归类；仅基础设施失败会中断
func (s *MatchService) buildInput(ctx context.Context, po *entity.PurchaseOrder, req *RunMatchRequest) (*matching.Input, error) {
	input := &matching.Input{}
	for _, it := range po.Items {
		input.POLines = append(input.POLines, matching.POLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	var receipts []entity.GoodsReceipt
	if req.GRID != nil {
		gr, err := s.repos.Receipt.FindByID(ctx, *req.GRID)
		if err != nil {
			return nil, fmt.Errorf("查询收货单失败: %w", err)
		}
		if gr.POID != po.ID {
			return nil, fmt.Errorf("%w: 收货单不属于该订单", ErrInvalidState)
		}
		receipts = []entity.GoodsReceipt{*gr}
	} else {
		var err error
		receipts, err = s.repos.Receipt.FindByPO(ctx, po.ID)
		if err != nil {
			return nil, fmt.Errorf("查询收货单失败: %w", err)
		}
	}
	for _, gr := range receipts {
		var lines []matching.ReceiptLine
		for _, it := range gr.Items {
			lines = append(lines, matching.ReceiptLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		input.Receipts = append(input.Receipts, lines)
	}

	var bills []entity.VendorBill
	if req.BillID != nil {
		bill, err := s.repos.Bill.FindByID(ctx, *req.BillID)
		if err != nil {
			return nil, fmt.Errorf("查询账单失败: %w", err)
		}
		if bill.POID != po.ID {
			return nil, fmt.Errorf("%w: 账单不属于该订单", ErrInvalidState)
		}
		bills = []entity.VendorBill{*bill}
	} else {
		var err error
		bills, err = s.repos.Bill.FindByPO(ctx, po.ID)
		if err != nil {
			return nil, fmt.Errorf("查询账单失败: %w", err)
		}
	}
	for _, bill := range bills {
		var lines []matching.BillLine
		for _, it := range bill.Items {
			lines = append(lines, matching.BillLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitCost: it.UnitCost})
		}
		input.Bills = append(input.Bills, lines)
	}

	return input, nil
}

// ListByPO 获取订单的匹配结果列表
func (s *MatchService) ListByPO(ctx context.Context, poID string) ([]entity.MatchResult, error) {
	if _, err := s.repos.PO.FindByID(ctx, poID); err != nil {
		return nil, err
	}
	return s.repos.Match.FindByPO(ctx, poID)
}

// ListUnresolved 获取未处理的异常匹配结果
func (s *MatchService) ListUnresolved(ctx context.Context, page, pageSize int) ([]entity.MatchResult, int64, error) {
	return s.repos.Match.FindUnresolved(ctx, page, pageSize)
}

// ResolveRequest 异常处理参数
type ResolveRequest struct {
	Notes string `json:"notes" binding:"required"`
}

// ResolveException 标注异常已处理
// 只做标注，分类状态保持引擎结论；matched的结果没有异常可处理
func (s *MatchService) ResolveException(ctx context.Context, matchResultID, resolverID string, req *ResolveRequest) (*entity.MatchResult, error) {
	result, err := s.repos.Match.FindByID(ctx, matchResultID)
	if err != nil {
		return nil, err
	}
	if result.Status == entity.MatchStatusMatched {
		return nil, fmt.Errorf("%w: 匹配一致的结果无需处理", ErrInvalidState)
	}
	if result.ResolvedAt != nil {
		return nil, fmt.Errorf("%w: 该异常已处理", ErrInvalidState)
	}

	now := time.Now()
	err = s.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.MatchResult{}).
			Where("id = ? AND resolved_at IS NULL", matchResultID).
			Updates(map[string]interface{}{
				"resolved_by": resolverID,
				"resolved_at": now,
				"notes":       req.Notes,
				"updated_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("更新匹配结果失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: 该异常已处理", ErrInvalidState)
		}

		logRow := entity.ActivityLog{
			ID:         generateID(),
			EntityType: "match_result",
			EntityID:   matchResultID,
			Action:     "resolve",
			FromStatus: result.Status,
			ToStatus:   result.Status,
			Content:    req.Notes,
			OperatorID: resolverID,
		}
		if err := tx.Create(&logRow).Error; err != nil {
			return fmt.Errorf("写入操作日志失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.ResolvedBy = &resolverID
	result.ResolvedAt = &now
	result.Notes = req.Notes

	dispatchEvent(s.notifier, notify.Event{
		Type:       notify.EventMatchResolved,
		EntityType: "match_result",
		EntityID:   result.ID,
		Actor:      resolverID,
		Message:    fmt.Sprintf("对账异常已处理: %s", result.Status),
	})

	return result, nil
}

var matchReportHeaders = []string{
	"商品ID", "订购数量", "收货数量", "开票数量", "订单单价", "账单单价", "数量差异", "价格差异", "结论",
}

// ExportVarianceReport 导出订单差异报告
// 每个匹配结果一个sheet，行级差异明细平铺
func (s *MatchService) ExportVarianceReport(ctx context.Context, poID string) (*excelize.File, string, error) {
	po, err := s.repos.PO.FindByID(ctx, poID)
	if err != nil {
		return nil, "", err
	}
	results, err := s.repos.Match.FindByPO(ctx, poID)
	if err != nil {
		return nil, "", fmt.Errorf("查询匹配结果失败: %w", err)
	}
	if len(results) == 0 {
		return nil, "", fmt.Errorf("%w: 订单尚未对账", ErrInvalidState)
	}

	f := excelize.NewFile()

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for idx, result := range results {
		sheet := fmt.Sprintf("匹配%d_%s", idx+1, result.Status)
		if idx == 0 {
			f.SetSheetName("Sheet1", sheet)
		} else {
			f.NewSheet(sheet)
		}

		for i, h := range matchReportHeaders {
			col, _ := excelize.ColumnNumberToName(i + 1)
			cell := col + "1"
			f.SetCellValue(sheet, cell, h)
			f.SetCellStyle(sheet, cell, cell, boldStyle)
		}

		var lines []matching.MatchLine
		if len(result.MatchDetails) > 0 {
			if err := json.Unmarshal(result.MatchDetails, &lines); err != nil {
				return nil, "", fmt.Errorf("解析匹配明细失败: %w", err)
			}
		}

		for rowIdx, line := range lines {
			row := rowIdx + 2
			conclusion := "一致"
			if !line.Matched {
				conclusion = line.Reason
			}
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line.ProductID)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), line.OrderedQty.String())
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), line.ReceivedQty.String())
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), line.BilledQty.String())
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), line.POUnitPrice.String())
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), line.BillUnitPrice.String())
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), line.QuantityVariance.String())
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), line.PriceVariance.String())
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), conclusion)
		}
	}

	filename := fmt.Sprintf("%s_对账差异_%s.xlsx", po.POCode, time.Now().Format("20060102"))
	return f, filename, nil
}
