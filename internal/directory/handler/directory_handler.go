package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pharmalink/pharmalink/internal/directory/service"
)

// SupplierHandler 供应商处理器
type SupplierHandler struct {
	svc *service.SupplierService
}

func NewSupplierHandler(svc *service.SupplierService) *SupplierHandler {
	return &SupplierHandler{svc: svc}
}

// ListSuppliers 供应商列表
// GET /api/v1/directory/suppliers?status=xxx&category=xxx&search=xxx
func (h *SupplierHandler) ListSuppliers(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":   c.Query("status"),
		"category": c.Query("category"),
		"search":   c.Query("search"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取供应商列表失败: "+err.Error())
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// GetSupplier 供应商详情
// GET /api/v1/directory/suppliers/:id
func (h *SupplierHandler) GetSupplier(c *gin.Context) {
	supplier, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "供应商不存在")
		return
	}
	Success(c, supplier)
}

// CreateSupplier 创建供应商
// POST /api/v1/directory/suppliers
func (h *SupplierHandler) CreateSupplier(c *gin.Context) {
	var req service.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	supplier, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		InternalError(c, "创建供应商失败: "+err.Error())
		return
	}
	Created(c, supplier)
}

// ProductHandler 药品处理器
type ProductHandler struct {
	svc *service.ProductService
}

func NewProductHandler(svc *service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// ListProducts 药品列表
// GET /api/v1/directory/products?status=xxx&search=xxx
func (h *ProductHandler) ListProducts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":      c.Query("status"),
		"dosage_form": c.Query("dosage_form"),
		"search":      c.Query("search"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取药品列表失败: "+err.Error())
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// GetProduct 药品详情
// GET /api/v1/directory/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "药品不存在")
		return
	}
	Success(c, product)
}

// CreateProduct 创建药品档案
// POST /api/v1/directory/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	product, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		InternalError(c, "创建药品档案失败: "+err.Error())
		return
	}
	Created(c, product)
}

// UserHandler 用户目录处理器
type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// ListUsers 用户列表
// GET /api/v1/directory/users?role=xxx&status=xxx
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"role":   c.Query("role"),
		"status": c.Query("status"),
		"search": c.Query("search"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取用户列表失败: "+err.Error())
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// GetUser 用户详情
// GET /api/v1/directory/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "用户不存在")
		return
	}
	Success(c, user)
}

// CreateUser 创建用户
// POST /api/v1/directory/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		InternalError(c, "创建用户失败: "+err.Error())
		return
	}
	Created(c, user)
}
