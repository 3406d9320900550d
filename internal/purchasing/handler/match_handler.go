package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pharmalink/pharmalink/internal/purchasing/service"
)

// MatchHandler 三单匹配处理器
type MatchHandler struct {
	svc *service.MatchService
}

func NewMatchHandler(svc *service.MatchService) *MatchHandler {
	return &MatchHandler{svc: svc}
}

// RunMatch 执行三单匹配
// POST /api/v1/purchasing/purchase-orders/:id/match
func (h *MatchHandler) RunMatch(c *gin.Context) {
	var req service.RunMatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "参数错误: "+err.Error())
			return
		}
	}

	result, err := h.svc.RunMatch(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// ListMatchResults 订单匹配结果列表
// GET /api/v1/purchasing/purchase-orders/:id/match-results
func (h *MatchHandler) ListMatchResults(c *gin.Context) {
	results, err := h.svc.ListByPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, results)
}

// ListUnresolved 未处理异常列表
// GET /api/v1/purchasing/match-results/unresolved
func (h *MatchHandler) ListUnresolved(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListUnresolved(c.Request.Context(), page, pageSize)
	if err != nil {
		InternalError(c, "获取异常列表失败: "+err.Error())
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// ResolveException 标注异常已处理
// POST /api/v1/purchasing/match-results/:id/resolve
func (h *MatchHandler) ResolveException(c *gin.Context) {
	var req service.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.ResolveException(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// ExportMatchReport 导出订单差异报告
// GET /api/v1/purchasing/purchase-orders/:id/match-report
func (h *MatchHandler) ExportMatchReport(c *gin.Context) {
	f, filename, err := h.svc.ExportVarianceReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
