package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pharmalink/pharmalink/internal/purchasing/service"
)

// RuleHandler 审批规则处理器
type RuleHandler struct {
	svc *service.RuleService
}

func NewRuleHandler(svc *service.RuleService) *RuleHandler {
	return &RuleHandler{svc: svc}
}

// ListRules 审批规则列表
// GET /api/v1/purchasing/approval-rules?entity_kind=xxx&is_active=true
func (h *RuleHandler) ListRules(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"entity_kind": c.Query("entity_kind"),
		"currency":    c.Query("currency"),
		"is_active":   c.Query("is_active"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取审批规则列表失败: "+err.Error())
		return
	}

	Success(c, listResponse(items, page, pageSize, total))
}

// GetRule 审批规则详情
// GET /api/v1/purchasing/approval-rules/:id
func (h *RuleHandler) GetRule(c *gin.Context) {
	rule, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "审批规则不存在")
		return
	}
	Success(c, rule)
}

// CreateRule 创建审批规则
// POST /api/v1/purchasing/approval-rules
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rule, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, rule)
}

// UpdateRule 更新审批规则
// PUT /api/v1/purchasing/approval-rules/:id
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	var req service.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rule, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, rule)
}

// DeactivateRule 停用审批规则
// DELETE /api/v1/purchasing/approval-rules/:id
func (h *RuleHandler) DeactivateRule(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, nil)
}
