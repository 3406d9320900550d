package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	dirrepo "github.com/pharmalink/pharmalink/internal/directory/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/pharmalink/pharmalink/internal/purchasing/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/testutil"
)

func TestResolveSingleLevel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewRuleService(repos.Rule, dirrepo.NewRepositories(db).User)

	testutil.SeedUser(t, db, "u-proc-1", "采购员甲", "procurement")
	testutil.SeedRule(t, db, "r1", 1, "0", nil, "procurement")

	levels, err := svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("500"), "USD")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("expected 1 level, got %d", len(levels))
	}
	if levels[0].Level != 1 || levels[0].RuleID != "r1" {
		t.Fatalf("unexpected level: %+v", levels[0])
	}
	if len(levels[0].EligibleApprovers) != 1 || levels[0].EligibleApprovers[0] != "u-proc-1" {
		t.Fatalf("unexpected eligible set: %v", levels[0].EligibleApprovers)
	}
}

func TestResolveTieredLevels(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewRuleService(repos.Rule, dirrepo.NewRepositories(db).User)

	testutil.SeedUser(t, db, "u-proc-1", "采购员甲", "procurement")
	testutil.SeedUser(t, db, "u-fin-1", "财务经理", "finance_manager")
	testutil.SeedUser(t, db, "u-fin-2", "财务经理乙", "finance_manager")

	testutil.SeedRule(t, db, "r1", 1, "0", nil, "procurement")
	testutil.SeedRule(t, db, "r2", 2, "1000", nil, "finance_manager")

	// 金额低于第二级门槛：只有一级
	levels, err := svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("500"), "USD")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("expected 1 level for 500, got %d", len(levels))
	}

	// 金额触发两级，第二级合格审批人为角色全员快照
	levels, err = svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("5000"), "USD")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels for 5000, got %d", len(levels))
	}
	if len(levels[1].EligibleApprovers) != 2 {
		t.Fatalf("expected 2 eligible approvers at level 2, got %v", levels[1].EligibleApprovers)
	}
}

func TestResolveLevelGap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewRuleService(repos.Rule, dirrepo.NewRepositories(db).User)

	testutil.SeedUser(t, db, "u-proc-1", "采购员甲", "procurement")
	testutil.SeedUser(t, db, "u-gm-1", "总经理", "gm")

	// 第1级与第3级，缺第2级
	testutil.SeedRule(t, db, "r1", 1, "0", nil, "procurement")
	testutil.SeedRule(t, db, "r3", 3, "0", nil, "gm")

	_, err := svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("100"), "USD")
	if !errors.Is(err, ErrNoApprovalRule) {
		t.Fatalf("expected ErrNoApprovalRule for level gap, got %v", err)
	}
}

func TestResolveNoCoveringRule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewRuleService(repos.Rule, dirrepo.NewRepositories(db).User)

	testutil.SeedUser(t, db, "u-proc-1", "采购员甲", "procurement")
	max := "1000"
	testutil.SeedRule(t, db, "r1", 1, "0", &max, "procurement")

	// 区间为左闭右开，1000恰好越界
	_, err := svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("1000"), "USD")
	if !errors.Is(err, ErrNoApprovalRule) {
		t.Fatalf("expected ErrNoApprovalRule above max, got %v", err)
	}

	// 边界内正常解析
	if _, err := svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("999.99"), "USD"); err != nil {
		t.Fatalf("expected resolve within bound, got %v", err)
	}
}

func TestResolveCurrencyFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewRuleService(repos.Rule, dirrepo.NewRepositories(db).User)

	testutil.SeedUser(t, db, "u-proc-1", "采购员甲", "procurement")
	testutil.SeedRule(t, db, "r1", 1, "0", nil, "procurement") // USD

	_, err := svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("100"), "EUR")
	if !errors.Is(err, ErrNoApprovalRule) {
		t.Fatalf("expected ErrNoApprovalRule for other currency, got %v", err)
	}
}

func TestResolvePriorityDisambiguation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewRuleService(repos.Rule, dirrepo.NewRepositories(db).User)

	testutil.SeedUser(t, db, "u-proc-1", "采购员甲", "procurement")
	testutil.SeedUser(t, db, "u-fin-1", "财务经理", "finance_manager")

	// 同级两条重叠规则，priority小者胜出
	loser := testutil.SeedRule(t, db, "r-loser", 1, "0", nil, "finance_manager")
	loser.Priority = 10
	if err := db.Save(loser).Error; err != nil {
		t.Fatalf("update rule: %v", err)
	}
	testutil.SeedRule(t, db, "r-winner", 1, "0", nil, "procurement")

	levels, err := svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("100"), "USD")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if levels[0].RuleID != "r-winner" {
		t.Fatalf("expected lowest priority rule to win, got %s", levels[0].RuleID)
	}
}

func TestResolveIgnoresInactiveRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewRuleService(repos.Rule, dirrepo.NewRepositories(db).User)

	testutil.SeedUser(t, db, "u-proc-1", "采购员甲", "procurement")
	rule := testutil.SeedRule(t, db, "r1", 1, "0", nil, "procurement")
	if err := db.Model(rule).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate rule: %v", err)
	}

	_, err := svc.Resolve(context.Background(), entity.KindPurchaseRequest, decimal.RequireFromString("100"), "USD")
	if !errors.Is(err, ErrNoApprovalRule) {
		t.Fatalf("expected ErrNoApprovalRule with only inactive rules, got %v", err)
	}
}
