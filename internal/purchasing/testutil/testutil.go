package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	direntity "github.com/pharmalink/pharmalink/internal/directory/entity"
	"github.com/pharmalink/pharmalink/internal/middleware"
	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
)

const (
	TestSchema = "test_pharmalink"
	JWTSecret  = "pharmalink-jwt-secret-key-2025"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "pharmalink")
	password := getEnv("DB_PASSWORD", "pharmalink123")
	dbname := getEnv("DB_NAME", "pharmalink_erp")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&direntity.Supplier{},
		&direntity.Product{},
		&direntity.User{},
		&entity.ApprovalRule{},
		&entity.PurchaseRequest{},
		&entity.PRItem{},
		&entity.PurchaseRequestApproval{},
		&entity.PurchaseOrder{},
		&entity.POItem{},
		&entity.GoodsReceipt{},
		&entity.GRItem{},
		&entity.VendorBill{},
		&entity.BillItem{},
		&entity.MatchResult{},
		&entity.ActivityLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, role string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": userID + "@test.com",
		"role":  role,
		"iss":   "pharmalink-erp",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default procurement test user
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Buyer", "procurement")
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedUser creates a directory user
func SeedUser(t *testing.T, db *gorm.DB, id, name, role string) *direntity.User {
	t.Helper()
	user := &direntity.User{
		ID:       id,
		Username: "user_" + id,
		Name:     name,
		Email:    id + "@test.com",
		Role:     role,
		Status:   direntity.UserStatusActive,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

// SeedSupplier creates a supplier
func SeedSupplier(t *testing.T, db *gorm.DB, id, name string) *direntity.Supplier {
	t.Helper()
	supplier := &direntity.Supplier{
		ID:       id,
		Code:     "SUP-" + id,
		Name:     name,
		Category: "wholesaler",
		Status:   direntity.SupplierStatusActive,
	}
	if err := db.Create(supplier).Error; err != nil {
		t.Fatalf("Failed to seed supplier: %v", err)
	}
	return supplier
}

// SeedRule creates an active approval rule
func SeedRule(t *testing.T, db *gorm.DB, id string, level int, min string, max *string, role string) *entity.ApprovalRule {
	t.Helper()
	rule := &entity.ApprovalRule{
		ID:           id,
		Name:         fmt.Sprintf("rule-%s", id),
		EntityKind:   entity.KindPurchaseRequest,
		MinAmount:    decimal.RequireFromString(min),
		Currency:     "USD",
		Level:        level,
		ApproverRole: role,
		IsActive:     true,
	}
	if max != nil {
		m := decimal.RequireFromString(*max)
		rule.MaxAmount = &m
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("Failed to seed approval rule: %v", err)
	}
	return rule
}

// SeedPO creates an open purchase order with a single line
func SeedPO(t *testing.T, db *gorm.DB, id, supplierID, productID string, qty, price string) *entity.PurchaseOrder {
	t.Helper()
	quantity := decimal.RequireFromString(qty)
	unitPrice := decimal.RequireFromString(price)
	po := &entity.PurchaseOrder{
		ID:          id,
		POCode:      "PO-TEST-" + id,
		SupplierID:  supplierID,
		Status:      entity.POStatusOpen,
		TotalAmount: quantity.Mul(unitPrice),
		Currency:    "USD",
		CreatedBy:   "test-user-001",
		Items: []entity.POItem{
			{
				ID:          id + "-item1",
				POID:        id,
				ProductID:   productID,
				ProductName: "Test Product",
				Quantity:    quantity,
				Unit:        "box",
				UnitPrice:   unitPrice,
				LineTotal:   quantity.Mul(unitPrice),
			},
		},
	}
	if err := db.Create(po).Error; err != nil {
		t.Fatalf("Failed to seed purchase order: %v", err)
	}
	return po
}
