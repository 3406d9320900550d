package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dirrepo "github.com/pharmalink/pharmalink/internal/directory/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/pharmalink/pharmalink/internal/purchasing/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/service"
	"github.com/pharmalink/pharmalink/internal/purchasing/testutil"
)

func setupMatchTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	dirRepos := dirrepo.NewRepositories(db)
	svcs := service.NewServices(repos, dirRepos, nil, nil)
	h := NewHandlers(svcs)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1/purchasing")
	pos := api.Group("/purchase-orders")
	pos.POST("/:id/receipts", h.PO.CreateReceipt)
	pos.POST("/:id/bills", h.PO.CreateBill)
	pos.POST("/:id/match", h.Match.RunMatch)
	pos.GET("/:id/match-results", h.Match.ListMatchResults)
	matches := api.Group("/match-results")
	matches.GET("/unresolved", h.Match.ListUnresolved)
	matches.POST("/:id/resolve", h.Match.ResolveException)

	testutil.SeedSupplier(t, db, "sup-001", "华东医药供应链")
	testutil.SeedPO(t, db, "po-001", "sup-001", "prod-1", "100", "10")
	return db, router
}

func runMatch(t *testing.T, router *gin.Engine, poID, token string) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/purchasing/purchase-orders/"+poID+"/match", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("run match: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)["data"].(map[string]interface{})
}

func createReceipt(t *testing.T, router *gin.Engine, poID, token, productID, qty string) {
	t.Helper()
	body := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": qty, "batch_no": "B20260801"},
		},
	}
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/purchasing/purchase-orders/"+poID+"/receipts", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create receipt: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func createBill(t *testing.T, router *gin.Engine, poID, token, productID, qty, unitCost string) {
	t.Helper()
	body := map[string]interface{}{
		"invoice_no": "INV-001",
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": qty, "unit_cost": unitCost},
		},
	}
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/purchasing/purchase-orders/"+poID+"/bills", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create bill: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

// TestMatchClassificationProgression 补全单据的过程中分类逐步演进
func TestMatchClassificationProgression(t *testing.T) {
	db, router := setupMatchTest(t)
	token := testutil.DefaultTestToken()

	// 无收货无账单
	data := runMatch(t, router, "po-001", token)
	if data["status"] != entity.MatchStatusMissingReceipt {
		t.Fatalf("expected missing_receipt, got %v", data["status"])
	}

	// 有收货无账单
	createReceipt(t, router, "po-001", token, "prod-1", "100")
	data = runMatch(t, router, "po-001", token)
	if data["status"] != entity.MatchStatusMissingBill {
		t.Fatalf("expected missing_bill, got %v", data["status"])
	}

	// 三单齐全且一致
	createBill(t, router, "po-001", token, "prod-1", "100", "10")
	data = runMatch(t, router, "po-001", token)
	if data["status"] != entity.MatchStatusMatched {
		t.Fatalf("expected matched, got %v", data["status"])
	}

	// 全程同一范围，重跑覆盖而不是新增
	var count int64
	db.Model(&entity.MatchResult{}).Where("po_id = ?", "po-001").Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 match result row, got %d", count)
	}
}

// TestMatchQuantityMismatch 收货数量与订购不符
func TestMatchQuantityMismatch(t *testing.T) {
	_, router := setupMatchTest(t)
	token := testutil.DefaultTestToken()

	createReceipt(t, router, "po-001", token, "prod-1", "90")
	createBill(t, router, "po-001", token, "prod-1", "100", "10")

	data := runMatch(t, router, "po-001", token)
	if data["status"] != entity.MatchStatusQuantityMismatch {
		t.Fatalf("expected quantity_mismatch, got %v", data["status"])
	}
	if data["quantity_variance"] != "-10" {
		t.Fatalf("expected quantity variance -10, got %v", data["quantity_variance"])
	}
}

// TestMatchPriceMismatch 账单单价与订单不符
func TestMatchPriceMismatch(t *testing.T) {
	_, router := setupMatchTest(t)
	token := testutil.DefaultTestToken()

	createReceipt(t, router, "po-001", token, "prod-1", "100")
	createBill(t, router, "po-001", token, "prod-1", "100", "10.5")

	data := runMatch(t, router, "po-001", token)
	if data["status"] != entity.MatchStatusPriceMismatch {
		t.Fatalf("expected price_mismatch, got %v", data["status"])
	}
	if data["price_variance"] != "0.5" {
		t.Fatalf("expected price variance 0.5, got %v", data["price_variance"])
	}
}

// TestResolveException 异常标注为已处理，分类保持不变
func TestResolveException(t *testing.T) {
	db, router := setupMatchTest(t)
	token := testutil.DefaultTestToken()

	data := runMatch(t, router, "po-001", token)
	resultID := data["id"].(string)

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/match-results/"+resultID+"/resolve",
		map[string]interface{}{"notes": "供应商确认下周补发"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result entity.MatchResult
	db.Where("id = ?", resultID).First(&result)
	if result.Status != entity.MatchStatusMissingReceipt {
		t.Fatalf("expected status unchanged, got %s", result.Status)
	}
	if result.ResolvedAt == nil || result.ResolvedBy == nil {
		t.Fatal("expected resolution annotations to be set")
	}
	if result.Notes != "供应商确认下周补发" {
		t.Fatalf("unexpected notes: %s", result.Notes)
	}

	// 同一异常不能处理两次
	w2 := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/match-results/"+resultID+"/resolve",
		map[string]interface{}{"notes": "再次处理"}, token)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("second resolve: expected 400, got %d", w2.Code)
	}
}

// TestResolveRequiresNotes 处理说明必填
func TestResolveRequiresNotes(t *testing.T) {
	_, router := setupMatchTest(t)
	token := testutil.DefaultTestToken()

	data := runMatch(t, router, "po-001", token)
	resultID := data["id"].(string)

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/match-results/"+resultID+"/resolve",
		map[string]interface{}{}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without notes, got %d", w.Code)
	}
}

// TestResolveMatchedRejected 匹配一致的结果没有异常可处理
func TestResolveMatchedRejected(t *testing.T) {
	_, router := setupMatchTest(t)
	token := testutil.DefaultTestToken()

	createReceipt(t, router, "po-001", token, "prod-1", "100")
	createBill(t, router, "po-001", token, "prod-1", "100", "10")
	data := runMatch(t, router, "po-001", token)
	if data["status"] != entity.MatchStatusMatched {
		t.Fatalf("expected matched, got %v", data["status"])
	}

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/match-results/"+data["id"].(string)+"/resolve",
		map[string]interface{}{"notes": "不该有异常"}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 resolving matched result, got %d", w.Code)
	}
}

// TestRerunClearsResolution 重跑覆盖结果并使上次的人工标注失效
func TestRerunClearsResolution(t *testing.T) {
	db, router := setupMatchTest(t)
	token := testutil.DefaultTestToken()

	data := runMatch(t, router, "po-001", token)
	resultID := data["id"].(string)

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/match-results/"+resultID+"/resolve",
		map[string]interface{}{"notes": "已线下核对"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", w.Code)
	}

	runMatch(t, router, "po-001", token)

	var result entity.MatchResult
	db.Where("id = ?", resultID).First(&result)
	if result.ResolvedAt != nil || result.ResolvedBy != nil || result.Notes != "" {
		t.Fatalf("expected resolution cleared after rerun: %+v", result)
	}
}

// TestListUnresolved 未处理异常列表不含matched和已处理的结果
func TestListUnresolved(t *testing.T) {
	_, router := setupMatchTest(t)
	token := testutil.DefaultTestToken()

	data := runMatch(t, router, "po-001", token)
	resultID := data["id"].(string)

	w := testutil.DoRequest(router, http.MethodGet, "/api/v1/purchasing/match-results/unresolved", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("list unresolved: expected 200, got %d", w.Code)
	}
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 unresolved result, got %d", len(items))
	}

	testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/match-results/"+resultID+"/resolve",
		map[string]interface{}{"notes": "已处理"}, token)

	w2 := testutil.DoRequest(router, http.MethodGet, "/api/v1/purchasing/match-results/unresolved", nil, token)
	if items2, ok := testutil.ParseResponse(w2)["data"].(map[string]interface{})["items"].([]interface{}); ok && len(items2) != 0 {
		t.Fatalf("expected empty unresolved list, got %d", len(items2))
	}
}
