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

func setupWorkflowTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	dirRepos := dirrepo.NewRepositories(db)
	svcs := service.NewServices(repos, dirRepos, nil, nil)
	h := NewHandlers(svcs)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1/purchasing")
	prs := api.Group("/purchase-requests")
	prs.POST("", h.PR.CreatePR)
	prs.GET("/:id", h.PR.GetPR)
	prs.POST("/:id/submit", h.PR.SubmitPR)
	prs.POST("/:id/approvals/:level/decide", h.PR.Decide)
	prs.POST("/:id/convert", h.PR.ConvertPR)
	prs.POST("/:id/cancel", h.PR.CancelPR)
	api.GET("/approvals/pending", h.PR.ListMyPending)

	return db, router
}

// seedWorkflowFixtures 准备两级审批链和对应角色用户
func seedWorkflowFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()
	testutil.SeedSupplier(t, db, "sup-001", "华东医药供应链")
	testutil.SeedUser(t, db, "u-proc-1", "采购员甲", "procurement")
	testutil.SeedUser(t, db, "u-fin-1", "财务经理", "finance_manager")
	testutil.SeedRule(t, db, "rule-l1", 1, "0", nil, "procurement")
	testutil.SeedRule(t, db, "rule-l2", 2, "1000", nil, "finance_manager")
}

func createAndSubmitPR(t *testing.T, router *gin.Engine, token string) string {
	t.Helper()
	body := map[string]interface{}{
		"title":       "抗生素补货",
		"supplier_id": "sup-001",
		"items": []map[string]interface{}{
			{"product_id": "prod-1", "product_name": "阿莫西林胶囊", "quantity": "200", "unit_price": "12.5"},
		},
	}
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/purchasing/purchase-requests", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create PR: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	prID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w2 := testutil.DoRequest(router, http.MethodPost, "/api/v1/purchasing/purchase-requests/"+prID+"/submit", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("submit PR: expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	return prID
}

// TestSubmitMaterializesApprovals 提交后每个层级各有一条pending审批记录
func TestSubmitMaterializesApprovals(t *testing.T) {
	db, router := setupWorkflowTest(t)
	seedWorkflowFixtures(t, db)
	token := testutil.GenerateTestToken("u-proc-1", "采购员甲", "procurement")

	prID := createAndSubmitPR(t, router, token)

	var pr entity.PurchaseRequest
	db.Where("id = ?", prID).First(&pr)
	if pr.Status != entity.PRStatusSubmitted {
		t.Fatalf("expected status submitted, got %s", pr.Status)
	}
	if pr.SubmittedAt == nil {
		t.Fatal("expected submitted_at to be set")
	}

	// 总额2500触发两级审批
	var approvals []entity.PurchaseRequestApproval
	db.Where("pr_id = ?", prID).Order("level").Find(&approvals)
	if len(approvals) != 2 {
		t.Fatalf("expected 2 approval rows, got %d", len(approvals))
	}
	for i, a := range approvals {
		if a.Level != i+1 || a.Status != entity.ApprovalStatusPending {
			t.Fatalf("unexpected approval row: %+v", a)
		}
	}
}

// TestSubmitWithoutRule 没有覆盖规则时提交被拒绝且不留审批行
func TestSubmitWithoutRule(t *testing.T) {
	db, router := setupWorkflowTest(t)
	testutil.SeedSupplier(t, db, "sup-001", "华东医药供应链")
	token := testutil.DefaultTestToken()

	body := map[string]interface{}{
		"title":       "无规则申请",
		"supplier_id": "sup-001",
		"items": []map[string]interface{}{
			{"product_id": "prod-1", "product_name": "测试药品", "quantity": "1", "unit_price": "10"},
		},
	}
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/purchasing/purchase-requests", body, token)
	prID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w2 := testutil.DoRequest(router, http.MethodPost, "/api/v1/purchasing/purchase-requests/"+prID+"/submit", nil, token)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without rules, got %d: %s", w2.Code, w2.Body.String())
	}

	var pr entity.PurchaseRequest
	db.Where("id = ?", prID).First(&pr)
	if pr.Status != entity.PRStatusDraft {
		t.Fatalf("expected PR to stay draft, got %s", pr.Status)
	}
	var count int64
	db.Model(&entity.PurchaseRequestApproval{}).Where("pr_id = ?", prID).Count(&count)
	if count != 0 {
		t.Fatalf("expected no approval rows, got %d", count)
	}
}

// TestApproveAllLevels 全部层级通过后整单approved
func TestApproveAllLevels(t *testing.T) {
	db, router := setupWorkflowTest(t)
	seedWorkflowFixtures(t, db)
	requester := testutil.GenerateTestToken("u-proc-1", "采购员甲", "procurement")
	finance := testutil.GenerateTestToken("u-fin-1", "财务经理", "finance_manager")

	prID := createAndSubmitPR(t, router, requester)

	// 第1级通过，PR保持submitted
	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/1/decide",
		map[string]interface{}{"decision": "approve", "comment": "同意"}, requester)
	if w.Code != http.StatusOK {
		t.Fatalf("level 1 approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var pr entity.PurchaseRequest
	db.Where("id = ?", prID).First(&pr)
	if pr.Status != entity.PRStatusSubmitted {
		t.Fatalf("expected submitted after level 1, got %s", pr.Status)
	}

	// 第2级通过，整单approved
	w2 := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/2/decide",
		map[string]interface{}{"decision": "approve"}, finance)
	if w2.Code != http.StatusOK {
		t.Fatalf("level 2 approve: expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	db.Where("id = ?", prID).First(&pr)
	if pr.Status != entity.PRStatusApproved {
		t.Fatalf("expected approved, got %s", pr.Status)
	}
	if pr.ApprovedAt == nil {
		t.Fatal("expected approved_at to be set")
	}
}

// TestRejectShortCircuits 任一层级驳回即整单rejected，剩余层级作废
func TestRejectShortCircuits(t *testing.T) {
	db, router := setupWorkflowTest(t)
	seedWorkflowFixtures(t, db)
	requester := testutil.GenerateTestToken("u-proc-1", "采购员甲", "procurement")

	prID := createAndSubmitPR(t, router, requester)

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/1/decide",
		map[string]interface{}{"decision": "reject", "comment": "预算不足"}, requester)
	if w.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var pr entity.PurchaseRequest
	db.Where("id = ?", prID).First(&pr)
	if pr.Status != entity.PRStatusRejected {
		t.Fatalf("expected rejected, got %s", pr.Status)
	}

	var level2 entity.PurchaseRequestApproval
	db.Where("pr_id = ? AND level = ?", prID, 2).First(&level2)
	if level2.Status != entity.ApprovalStatusVoided {
		t.Fatalf("expected level 2 voided, got %s", level2.Status)
	}
}

// TestUnauthorizedApprover 不在合格集合内的用户审批被拒且无状态变化
func TestUnauthorizedApprover(t *testing.T) {
	db, router := setupWorkflowTest(t)
	seedWorkflowFixtures(t, db)
	requester := testutil.GenerateTestToken("u-proc-1", "采购员甲", "procurement")
	outsider := testutil.GenerateTestToken("u-outsider", "无关人员", "pharmacist")

	prID := createAndSubmitPR(t, router, requester)

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/1/decide",
		map[string]interface{}{"decision": "approve"}, outsider)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider, got %d: %s", w.Code, w.Body.String())
	}

	var approval entity.PurchaseRequestApproval
	db.Where("pr_id = ? AND level = ?", prID, 1).First(&approval)
	if approval.Status != entity.ApprovalStatusPending {
		t.Fatalf("expected level to stay pending, got %s", approval.Status)
	}
}

// TestDoubleDecideIsStale 同一层级第二次决定返回冲突
func TestDoubleDecideIsStale(t *testing.T) {
	db, router := setupWorkflowTest(t)
	seedWorkflowFixtures(t, db)
	requester := testutil.GenerateTestToken("u-proc-1", "采购员甲", "procurement")

	prID := createAndSubmitPR(t, router, requester)

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/1/decide",
		map[string]interface{}{"decision": "approve"}, requester)
	if w.Code != http.StatusOK {
		t.Fatalf("first decide: expected 200, got %d", w.Code)
	}

	w2 := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/1/decide",
		map[string]interface{}{"decision": "approve"}, requester)
	if w2.Code != http.StatusConflict {
		t.Fatalf("second decide: expected 409, got %d: %s", w2.Code, w2.Body.String())
	}

	// 第一次的决定不受影响
	var approval entity.PurchaseRequestApproval
	db.Where("pr_id = ? AND level = ?", prID, 1).First(&approval)
	if approval.Status != entity.ApprovalStatusApproved {
		t.Fatalf("expected first decision to stand, got %s", approval.Status)
	}
}

// TestConvertIdempotent 重复转单返回同一采购订单
func TestConvertIdempotent(t *testing.T) {
	db, router := setupWorkflowTest(t)
	seedWorkflowFixtures(t, db)
	requester := testutil.GenerateTestToken("u-proc-1", "采购员甲", "procurement")
	finance := testutil.GenerateTestToken("u-fin-1", "财务经理", "finance_manager")

	prID := createAndSubmitPR(t, router, requester)
	testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/1/decide",
		map[string]interface{}{"decision": "approve"}, requester)
	testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/2/decide",
		map[string]interface{}{"decision": "approve"}, finance)

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/convert",
		map[string]interface{}{"payment_terms": "net30"}, requester)
	if w.Code != http.StatusOK {
		t.Fatalf("convert: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	poID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 再次转单不复制，返回既有订单
	w2 := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/convert",
		map[string]interface{}{}, requester)
	if w2.Code != http.StatusOK {
		t.Fatalf("second convert: expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	poID2 := testutil.ParseResponse(w2)["data"].(map[string]interface{})["id"].(string)
	if poID != poID2 {
		t.Fatalf("expected same PO, got %s and %s", poID, poID2)
	}

	var count int64
	db.Model(&entity.PurchaseOrder{}).Where("pr_id = ?", prID).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 PO, got %d", count)
	}

	// 订单行继承申请行
	var items []entity.POItem
	db.Where("po_id = ?", poID).Find(&items)
	if len(items) != 1 {
		t.Fatalf("expected 1 PO item, got %d", len(items))
	}
}

// TestCancelVoidsPending 取消审批中的申请将pending层级作废
func TestCancelVoidsPending(t *testing.T) {
	db, router := setupWorkflowTest(t)
	seedWorkflowFixtures(t, db)
	requester := testutil.GenerateTestToken("u-proc-1", "采购员甲", "procurement")

	prID := createAndSubmitPR(t, router, requester)

	w := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/cancel", nil, requester)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var pr entity.PurchaseRequest
	db.Where("id = ?", prID).First(&pr)
	if pr.Status != entity.PRStatusCancelled {
		t.Fatalf("expected cancelled, got %s", pr.Status)
	}

	var count int64
	db.Model(&entity.PurchaseRequestApproval{}).
		Where("pr_id = ? AND status = ?", prID, entity.ApprovalStatusPending).Count(&count)
	if count != 0 {
		t.Fatalf("expected no pending approvals after cancel, got %d", count)
	}

	// 已取消的申请不能再审批
	w2 := testutil.DoRequest(router, http.MethodPost,
		"/api/v1/purchasing/purchase-requests/"+prID+"/approvals/1/decide",
		map[string]interface{}{"decision": "approve"}, requester)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 deciding cancelled PR, got %d", w2.Code)
	}
}

// TestListMyPending 待办列表按合格审批人过滤
func TestListMyPending(t *testing.T) {
	db, router := setupWorkflowTest(t)
	seedWorkflowFixtures(t, db)
	requester := testutil.GenerateTestToken("u-proc-1", "采购员甲", "procurement")
	finance := testutil.GenerateTestToken("u-fin-1", "财务经理", "finance_manager")

	createAndSubmitPR(t, router, requester)

	w := testutil.DoRequest(router, http.MethodGet, "/api/v1/purchasing/approvals/pending", nil, finance)
	if w.Code != http.StatusOK {
		t.Fatalf("pending list: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	items := testutil.ParseResponse(w)["data"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 pending approval for finance, got %d", len(items))
	}

	// 无关角色看不到待办
	outsider := testutil.GenerateTestToken("u-nobody", "药剂师", "pharmacist")
	w2 := testutil.DoRequest(router, http.MethodGet, "/api/v1/purchasing/approvals/pending", nil, outsider)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}
	if data := testutil.ParseResponse(w2)["data"]; data != nil {
		if len(data.([]interface{})) != 0 {
			t.Fatalf("expected empty pending list for outsider, got %v", data)
		}
	}

	// 提交后悬而未决的层级都在库里
	var count int64
	db.Model(&entity.PurchaseRequestApproval{}).
		Where("status = ?", entity.ApprovalStatusPending).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 pending approvals in total, got %d", count)
	}
}
