package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pharmalink/pharmalink/internal/purchasing/service"
)

// PRHandler 采购申请处理器
type PRHandler struct {
	svc *service.WorkflowService
}

func NewPRHandler(svc *service.WorkflowService) *PRHandler {
	return &PRHandler{svc: svc}
}

// ListPRs 采购申请列表
// GET /api/v1/purchasing/purchase-requests?status=xxx&supplier_id=xxx&search=xxx
func (h *PRHandler) ListPRs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":       c.Query("status"),
		"supplier_id":  c.Query("supplier_id"),
		"requested_by": c.Query("requested_by"),
		"search":       c.Query("search"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取采购申请列表失败: "+err.Error())
		return
	}

	Success(c, listResponse(items, page, pageSize, total))
}

// GetPR 采购申请详情
// GET /api/v1/purchasing/purchase-requests/:id
func (h *PRHandler) GetPR(c *gin.Context) {
	pr, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "采购申请不存在")
		return
	}
	Success(c, pr)
}

// CreatePR 创建采购申请
// POST /api/v1/purchasing/purchase-requests
func (h *PRHandler) CreatePR(c *gin.Context) {
	var req service.CreatePRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Created(c, pr)
}

// UpdatePR 更新采购申请（仅草稿）
// PUT /api/v1/purchasing/purchase-requests/:id
func (h *PRHandler) UpdatePR(c *gin.Context) {
	var req service.UpdatePRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, pr)
}

// SubmitPR 提交采购申请进入审批
// POST /api/v1/purchasing/purchase-requests/:id/submit
func (h *PRHandler) SubmitPR(c *gin.Context) {
	pr, err := h.svc.Submit(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// Decide 对指定审批层级作出决定
// POST /api/v1/purchasing/purchase-requests/:id/approvals/:level/decide
func (h *PRHandler) Decide(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil || level < 1 {
		BadRequest(c, "审批层级无效")
		return
	}

	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.Decide(c.Request.Context(), c.Param("id"), level, GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// ConvertPR 已批准申请转采购订单
// POST /api/v1/purchasing/purchase-requests/:id/convert
func (h *PRHandler) ConvertPR(c *gin.Context) {
	var req service.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.ConvertToOrder(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, po)
}

// CancelPR 取消采购申请
// POST /api/v1/purchasing/purchase-requests/:id/cancel
func (h *PRHandler) CancelPR(c *gin.Context) {
	pr, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// ListMyPending 我的待审批列表
// GET /api/v1/purchasing/approvals/pending
func (h *PRHandler) ListMyPending(c *gin.Context) {
	approvals, err := h.svc.ListMyPending(c.Request.Context(), GetUserID(c))
	if err != nil {
		InternalError(c, "获取待审批列表失败: "+err.Error())
		return
	}
	Success(c, approvals)
}

// ListActivity 采购申请操作日志
// GET /api/v1/purchasing/purchase-requests/:id/activity
func (h *PRHandler) ListActivity(c *gin.Context) {
	logs, err := h.svc.ListActivity(c.Request.Context(), "purchase_request", c.Param("id"))
	if err != nil {
		InternalError(c, "获取操作日志失败: "+err.Error())
		return
	}
	Success(c, logs)
}
