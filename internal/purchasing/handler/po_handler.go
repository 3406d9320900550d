package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pharmalink/pharmalink/internal/purchasing/service"
)

// POHandler 采购订单与单据处理器
type POHandler struct {
	svc *service.ProcurementService
}

func NewPOHandler(svc *service.ProcurementService) *POHandler {
	return &POHandler{svc: svc}
}

// ListPOs 采购订单列表
// GET /api/v1/purchasing/purchase-orders?status=xxx&supplier_id=xxx
func (h *POHandler) ListPOs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":      c.Query("status"),
		"supplier_id": c.Query("supplier_id"),
		"search":      c.Query("search"),
	}

	items, total, err := h.svc.ListOrders(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取采购订单列表失败: "+err.Error())
		return
	}

	Success(c, listResponse(items, page, pageSize, total))
}

// GetPO 采购订单详情
// GET /api/v1/purchasing/purchase-orders/:id
func (h *POHandler) GetPO(c *gin.Context) {
	po, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "采购订单不存在")
		return
	}
	Success(c, po)
}

// CreateReceipt 录入收货单
// POST /api/v1/purchasing/purchase-orders/:id/receipts
func (h *POHandler) CreateReceipt(c *gin.Context) {
	var req service.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	gr, err := h.svc.CreateReceipt(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, gr)
}

// ListReceipts 订单收货单列表
// GET /api/v1/purchasing/purchase-orders/:id/receipts
func (h *POHandler) ListReceipts(c *gin.Context) {
	receipts, err := h.svc.ListReceipts(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, receipts)
}

// CreateBill 录入供应商账单
// POST /api/v1/purchasing/purchase-orders/:id/bills
func (h *POHandler) CreateBill(c *gin.Context) {
	var req service.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	bill, err := h.svc.CreateBill(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, bill)
}

// ListBills 订单账单列表
// GET /api/v1/purchasing/purchase-orders/:id/bills
func (h *POHandler) ListBills(c *gin.Context) {
	bills, err := h.svc.ListBills(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, bills)
}
