package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	dirrepo "github.com/pharmalink/pharmalink/internal/directory/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/service"
)

// Handlers 采购处理器集合
type Handlers struct {
	Rule     *RuleHandler
	PR       *PRHandler
	PO       *POHandler
	Match    *MatchHandler
}

// NewHandlers 创建采购处理器集合
func NewHandlers(svcs *service.Services) *Handlers {
	return &Handlers{
		Rule:  NewRuleHandler(svcs.Rule),
		PR:    NewPRHandler(svcs.Workflow),
		PO:    NewPOHandler(svcs.Procurement),
		Match: NewMatchHandler(svcs.Match),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ServiceError 将服务层哨兵错误映射为HTTP响应
func ServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, dirrepo.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrUnauthorizedApprover):
		Forbidden(c, err.Error())
	case errors.Is(err, service.ErrStaleDecision),
		errors.Is(err, service.ErrMatchInProgress):
		Conflict(c, err.Error())
	case errors.Is(err, service.ErrNoApprovalRule),
		errors.Is(err, service.ErrInvalidState):
		BadRequest(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func listResponse(items interface{}, page, pageSize int, total int64) ListResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	}
}
