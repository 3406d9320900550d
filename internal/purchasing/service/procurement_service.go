package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	direntity "github.com/pharmalink/pharmalink/internal/directory/entity"
	directory "github.com/pharmalink/pharmalink/internal/directory/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/pharmalink/pharmalink/internal/purchasing/repository"
)

// ProcurementService 采购订单与单据采集服务
// 管理订单查询、收货单录入、账单录入（账单行由票据抽取服务回写）
type ProcurementService struct {
	repos        *repository.Repositories
	supplierRepo *directory.SupplierRepository
}

// NewProcurementService 创建采购订单服务
func NewProcurementService(repos *repository.Repositories, supplierRepo *directory.SupplierRepository) *ProcurementService {
	return &ProcurementService{repos: repos, supplierRepo: supplierRepo}
}

// ListOrders 获取采购订单列表
func (s *ProcurementService) ListOrders(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	return s.repos.PO.FindAll(ctx, page, pageSize, filters)
}

// GetOrder 获取采购订单详情
func (s *ProcurementService) GetOrder(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return s.repos.PO.FindByID(ctx, id)
}

// GRItemRequest 收货行项参数
type GRItemRequest struct {
	ProductID  string          `json:"product_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Unit       string          `json:"unit"`
	BatchNo    string          `json:"batch_no"`
	ExpiryDate *time.Time      `json:"expiry_date"`
}

// CreateReceiptRequest 创建收货单参数
type CreateReceiptRequest struct {
	ReceivedAt  *time.Time      `json:"received_at"`
	WarehouseID string          `json:"warehouse_id"`
	Notes       string          `json:"notes"`
	Items       []GRItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateReceipt 为采购订单录入收货单
func (s *ProcurementService) CreateReceipt(ctx context.Context, poID, userID string, req *CreateReceiptRequest) (*entity.GoodsReceipt, error) {
	po, err := s.repos.PO.FindByID(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po.Status == entity.POStatusCancelled || po.Status == entity.POStatusClosed {
		return nil, fmt.Errorf("%w: 订单已关闭，不能收货（当前: %s）", ErrInvalidState, po.Status)
	}

	code, err := s.repos.Receipt.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成收货单号失败: %w", err)
	}

	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	grID := generateID()
	gr := &entity.GoodsReceipt{
		ID:          grID,
		GRCode:      code,
		POID:        poID,
		ReceivedAt:  receivedAt,
		ReceivedBy:  userID,
		WarehouseID: req.WarehouseID,
		Notes:       req.Notes,
	}
	for _, it := range req.Items {
		if it.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("收货数量必须大于0 (product=%s)", it.ProductID)
		}
		unit := it.Unit
		if unit == "" {
			unit = "box"
		}
		gr.Items = append(gr.Items, entity.GRItem{
			ID:         generateID(),
			GRID:       grID,
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			Unit:       unit,
			BatchNo:    it.BatchNo,
			ExpiryDate: it.ExpiryDate,
		})
	}

	if err := s.repos.Receipt.Create(ctx, gr); err != nil {
		return nil, fmt.Errorf("创建收货单失败: %w", err)
	}

	return gr, nil
}

// ListReceipts 获取订单的收货单列表
func (s *ProcurementService) ListReceipts(ctx context.Context, poID string) ([]entity.GoodsReceipt, error) {
	if _, err := s.repos.PO.FindByID(ctx, poID); err != nil {
		return nil, err
	}
	return s.repos.Receipt.FindByPO(ctx, poID)
}

// BillItemRequest 账单行项参数
type BillItemRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost" binding:"required"`
}

// CreateBillRequest 创建供应商账单参数
type CreateBillRequest struct {
	InvoiceNo string            `json:"invoice_no"`
	Currency  string            `json:"currency"`
	BillDate  *time.Time        `json:"bill_date"`
	DueDate   *time.Time        `json:"due_date"`
	Notes     string            `json:"notes"`
	Items     []BillItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateBill 为采购订单录入供应商账单
// 行项金额由本服务汇总，不信任上游抽取结果的合计
func (s *ProcurementService) CreateBill(ctx context.Context, poID, userID string, req *CreateBillRequest) (*entity.VendorBill, error) {
	po, err := s.repos.PO.FindByID(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po.Status == entity.POStatusCancelled {
		return nil, fmt.Errorf("%w: 订单已取消，不能录入账单", ErrInvalidState)
	}

	supplier, err := s.supplierRepo.FindByID(ctx, po.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("查询供应商失败: %w", err)
	}
	if supplier.Status == direntity.SupplierStatusBlocked {
		return nil, fmt.Errorf("%w: 供应商已被拉黑，不能录入账单", ErrInvalidState)
	}

	code, err := s.repos.Bill.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成账单编号失败: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = po.Currency
	}

	billID := generateID()
	total := decimal.Zero
	bill := &entity.VendorBill{
		ID:         billID,
		BillCode:   code,
		POID:       poID,
		SupplierID: po.SupplierID,
		InvoiceNo:  req.InvoiceNo,
		Currency:   currency,
		BillDate:   req.BillDate,
		DueDate:    req.DueDate,
		Notes:      req.Notes,
	}
	for _, it := range req.Items {
		if it.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("账单数量必须大于0 (product=%s)", it.ProductID)
		}
		if it.UnitCost.IsNegative() {
			return nil, fmt.Errorf("账单单价不能为负 (product=%s)", it.ProductID)
		}
		lineTotal := it.Quantity.Mul(it.UnitCost)
		bill.Items = append(bill.Items, entity.BillItem{
			ID:        generateID(),
			BillID:    billID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitCost:  it.UnitCost,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	bill.TotalAmount = total

	if err := s.repos.Bill.Create(ctx, bill); err != nil {
		return nil, fmt.Errorf("创建供应商账单失败: %w", err)
	}

	return bill, nil
}

// ListBills 获取订单的账单列表
func (s *ProcurementService) ListBills(ctx context.Context, poID string) ([]entity.VendorBill, error) {
	if _, err := s.repos.PO.FindByID(ctx, poID); err != nil {
		return nil, err
	}
	return s.repos.Bill.FindByPO(ctx, poID)
}
