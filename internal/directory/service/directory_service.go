package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmalink/pharmalink/internal/directory/entity"
	"github.com/pharmalink/pharmalink/internal/directory/repository"
)

// Services 主数据服务集合
type Services struct {
	Supplier *SupplierService
	Product  *ProductService
	User     *UserService
}

// NewServices 创建主数据服务集合
func NewServices(repos *repository.Repositories) *Services {
	return &Services{
		Supplier: NewSupplierService(repos.Supplier),
		Product:  NewProductService(repos.Product),
		User:     NewUserService(repos.User),
	}
}

func generateID() string {
	return uuid.New().String()[:32]
}

// SupplierService 供应商主数据服务
type SupplierService struct {
	repo *repository.SupplierRepository
}

// NewSupplierService 创建供应商服务
func NewSupplierService(repo *repository.SupplierRepository) *SupplierService {
	return &SupplierService{repo: repo}
}

// CreateSupplierRequest 创建供应商请求
type CreateSupplierRequest struct {
	Code          string     `json:"code" binding:"required"`
	Name          string     `json:"name" binding:"required"`
	ShortName     string     `json:"short_name"`
	Category      string     `json:"category" binding:"required,oneof=manufacturer wholesaler importer other"`
	LicenseNo     string     `json:"license_no"`
	GMPCertified  bool       `json:"gmp_certified"`
	LicenseExpiry *time.Time `json:"license_expiry"`
	Country       string     `json:"country"`
	City          string     `json:"city"`
	Address       string     `json:"address"`
	ContactPerson string     `json:"contact_person"`
	ContactPhone  string     `json:"contact_phone"`
	ContactEmail  string     `json:"contact_email"`
	BankName      string     `json:"bank_name"`
	BankAccount   string     `json:"bank_account"`
	PaymentTerms  string     `json:"payment_terms"`
	Notes         string     `json:"notes"`
}

// List 获取供应商列表
func (s *SupplierService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Supplier, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// Get 获取供应商详情
func (s *SupplierService) Get(ctx context.Context, id string) (*entity.Supplier, error) {
	return s.repo.FindByID(ctx, id)
}

// Create 创建供应商
func (s *SupplierService) Create(ctx context.Context, userID string, req *CreateSupplierRequest) (*entity.Supplier, error) {
	supplier := &entity.Supplier{
		ID:            generateID(),
		Code:          req.Code,
		Name:          req.Name,
		ShortName:     req.ShortName,
		Category:      req.Category,
		Status:        entity.SupplierStatusActive,
		LicenseNo:     req.LicenseNo,
		GMPCertified:  req.GMPCertified,
		LicenseExpiry: req.LicenseExpiry,
		Country:       req.Country,
		City:          req.City,
		Address:       req.Address,
		ContactPerson: req.ContactPerson,
		ContactPhone:  req.ContactPhone,
		ContactEmail:  req.ContactEmail,
		BankName:      req.BankName,
		BankAccount:   req.BankAccount,
		PaymentTerms:  req.PaymentTerms,
		CreatedBy:     userID,
		Notes:         req.Notes,
	}
	if err := s.repo.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("创建供应商失败: %w", err)
	}
	return supplier, nil
}

// ProductService 药品主数据服务
type ProductService struct {
	repo *repository.ProductRepository
}

// NewProductService 创建药品服务
func NewProductService(repo *repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// CreateProductRequest 创建药品请求
type CreateProductRequest struct {
	Code           string          `json:"code" binding:"required"`
	Name           string          `json:"name" binding:"required"`
	GenericName    string          `json:"generic_name"`
	ATCCode        string          `json:"atc_code"`
	DosageForm     string          `json:"dosage_form"`
	Strength       string          `json:"strength"`
	Unit           string          `json:"unit"`
	RegistrationNo string          `json:"registration_no"`
	BatchManaged   *bool           `json:"batch_managed"`
	ColdChain      bool            `json:"cold_chain"`
	ListPrice      decimal.Decimal `json:"list_price"`
	Currency       string          `json:"currency"`
}

// List 获取药品列表
func (s *ProductService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Product, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// Get 获取药品详情
func (s *ProductService) Get(ctx context.Context, id string) (*entity.Product, error) {
	return s.repo.FindByID(ctx, id)
}

// Create 创建药品档案
func (s *ProductService) Create(ctx context.Context, req *CreateProductRequest) (*entity.Product, error) {
	unit := req.Unit
	if unit == "" {
		unit = "box"
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	batchManaged := true
	if req.BatchManaged != nil {
		batchManaged = *req.BatchManaged
	}

	product := &entity.Product{
		ID:             generateID(),
		Code:           req.Code,
		Name:           req.Name,
		GenericName:    req.GenericName,
		ATCCode:        req.ATCCode,
		DosageForm:     req.DosageForm,
		Strength:       req.Strength,
		Unit:           unit,
		RegistrationNo: req.RegistrationNo,
		BatchManaged:   batchManaged,
		ColdChain:      req.ColdChain,
		ListPrice:      req.ListPrice,
		Currency:       currency,
		Status:         "active",
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("创建药品档案失败: %w", err)
	}
	return product, nil
}

// UserService 用户目录服务
type UserService struct {
	repo *repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Username   string `json:"username" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department"`
}

// List 获取用户列表
func (s *UserService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.User, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// Get 获取用户详情
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	return s.repo.FindByID(ctx, id)
}

// Create 创建用户
func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*entity.User, error) {
	user := &entity.User{
		ID:         generateID(),
		Username:   req.Username,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Role:       req.Role,
		Department: req.Department,
		Status:     entity.UserStatusActive,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, nil
}
