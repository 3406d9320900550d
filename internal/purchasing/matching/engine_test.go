package matching

import (
	"testing"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// 标准PO：产品P，100盒 @ 10.00
func samplePO() []POLine {
	return []POLine{{ProductID: "prod-P", Quantity: dec("100"), UnitPrice: dec("10.00")}}
}

func TestEvaluateMissingReceipt(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{POLines: samplePO()})

	if res.Status != entity.MatchStatusMissingReceipt {
		t.Fatalf("expected missing_receipt, got %s", res.Status)
	}
}

func TestEvaluateMissingBill(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		POLines:  samplePO(),
		Receipts: [][]ReceiptLine{{{ProductID: "prod-P", Quantity: dec("100")}}},
	})

	if res.Status != entity.MatchStatusMissingBill {
		t.Fatalf("expected missing_bill, got %s", res.Status)
	}
}

func TestEvaluateMatched(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		POLines:  samplePO(),
		Receipts: [][]ReceiptLine{{{ProductID: "prod-P", Quantity: dec("100")}}},
		Bills:    [][]BillLine{{{ProductID: "prod-P", Quantity: dec("100"), UnitCost: dec("10.00")}}},
	})

	if res.Status != entity.MatchStatusMatched {
		t.Fatalf("expected matched, got %s", res.Status)
	}
	if !res.QuantityVariance.IsZero() {
		t.Fatalf("expected zero quantity variance, got %s", res.QuantityVariance)
	}
	if !res.PriceVariance.IsZero() {
		t.Fatalf("expected zero price variance, got %s", res.PriceVariance)
	}
	if len(res.Lines) != 1 || !res.Lines[0].Matched {
		t.Fatalf("expected one matched line, got %+v", res.Lines)
	}
}

func TestEvaluateQuantityMismatch(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		POLines:  samplePO(),
		Receipts: [][]ReceiptLine{{{ProductID: "prod-P", Quantity: dec("90")}}},
		Bills:    [][]BillLine{{{ProductID: "prod-P", Quantity: dec("90"), UnitCost: dec("10.00")}}},
	})

	if res.Status != entity.MatchStatusQuantityMismatch {
		t.Fatalf("expected quantity_mismatch, got %s", res.Status)
	}
	if !res.QuantityVariance.Equal(dec("-10")) {
		t.Fatalf("expected quantity variance -10, got %s", res.QuantityVariance)
	}
	if res.Lines[0].Reason != ReasonQuantityVariance {
		t.Fatalf("expected line reason quantity_variance, got %q", res.Lines[0].Reason)
	}
}

func TestEvaluatePriceMismatch(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		POLines:  samplePO(),
		Receipts: [][]ReceiptLine{{{ProductID: "prod-P", Quantity: dec("100")}}},
		Bills:    [][]BillLine{{{ProductID: "prod-P", Quantity: dec("100"), UnitCost: dec("10.50")}}},
	})

	if res.Status != entity.MatchStatusPriceMismatch {
		t.Fatalf("expected price_mismatch, got %s", res.Status)
	}
	if !res.PriceVariance.Equal(dec("0.50")) {
		t.Fatalf("expected price variance 0.50, got %s", res.PriceVariance)
	}
	if !res.QuantityVariance.IsZero() {
		t.Fatalf("expected zero quantity variance, got %s", res.QuantityVariance)
	}
}

// 数量不符优先于价格不符
func TestEvaluateQuantityBeatsPrice(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		POLines:  samplePO(),
		Receipts: [][]ReceiptLine{{{ProductID: "prod-P", Quantity: dec("90")}}},
		Bills:    [][]BillLine{{{ProductID: "prod-P", Quantity: dec("90"), UnitCost: dec("10.50")}}},
	})

	if res.Status != entity.MatchStatusQuantityMismatch {
		t.Fatalf("expected quantity_mismatch, got %s", res.Status)
	}
}

// PO无行项但收货与账单存在 → 数据不足，pending
func TestEvaluatePendingWithoutPOLines(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		Receipts: [][]ReceiptLine{{}},
		Bills:    [][]BillLine{{}},
	})

	if res.Status != entity.MatchStatusPending {
		t.Fatalf("expected pending, got %s", res.Status)
	}
}

// 多张收货单/账单按产品累加
func TestEvaluateAggregatesAcrossDocuments(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		POLines: samplePO(),
		Receipts: [][]ReceiptLine{
			{{ProductID: "prod-P", Quantity: dec("60")}},
			{{ProductID: "prod-P", Quantity: dec("40")}},
		},
		Bills: [][]BillLine{
			{{ProductID: "prod-P", Quantity: dec("50"), UnitCost: dec("10.00")}},
			{{ProductID: "prod-P", Quantity: dec("50"), UnitCost: dec("10.00")}},
		},
	})

	if res.Status != entity.MatchStatusMatched {
		t.Fatalf("expected matched, got %s", res.Status)
	}
	if !res.Lines[0].ReceivedQty.Equal(dec("100")) {
		t.Fatalf("expected received 100, got %s", res.Lines[0].ReceivedQty)
	}
	if !res.Lines[0].BilledQty.Equal(dec("100")) {
		t.Fatalf("expected billed 100, got %s", res.Lines[0].BilledQty)
	}
}

// 多账单不同单价时按数量加权平均
func TestEvaluateWeightedBillPrice(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		POLines:  samplePO(),
		Receipts: [][]ReceiptLine{{{ProductID: "prod-P", Quantity: dec("100")}}},
		Bills: [][]BillLine{
			{{ProductID: "prod-P", Quantity: dec("50"), UnitCost: dec("9.00")}},
			{{ProductID: "prod-P", Quantity: dec("50"), UnitCost: dec("11.00")}},
		},
	})

	// (50*9 + 50*11) / 100 = 10.00
	if res.Status != entity.MatchStatusMatched {
		t.Fatalf("expected matched, got %s", res.Status)
	}
	if !res.Lines[0].BillUnitPrice.Equal(dec("10")) {
		t.Fatalf("expected weighted price 10, got %s", res.Lines[0].BillUnitPrice)
	}
}

// 账单出现PO以外的产品 → 数量差异
func TestEvaluateUnorderedProduct(t *testing.T) {
	e := NewEngine()
	res := e.Evaluate(Input{
		POLines:  samplePO(),
		Receipts: [][]ReceiptLine{{{ProductID: "prod-P", Quantity: dec("100")}, {ProductID: "prod-X", Quantity: dec("5")}}},
		Bills:    [][]BillLine{{{ProductID: "prod-P", Quantity: dec("100"), UnitCost: dec("10.00")}}},
	})

	if res.Status != entity.MatchStatusQuantityMismatch {
		t.Fatalf("expected quantity_mismatch, got %s", res.Status)
	}
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(res.Lines))
	}
}

// 容差内的差异判定为matched
func TestEvaluateWithinTolerance(t *testing.T) {
	e := &Engine{QtyTolerance: dec("1"), PriceTolerance: dec("0.05")}
	res := e.Evaluate(Input{
		POLines:  samplePO(),
		Receipts: [][]ReceiptLine{{{ProductID: "prod-P", Quantity: dec("99.5")}}},
		Bills:    [][]BillLine{{{ProductID: "prod-P", Quantity: dec("99.5"), UnitCost: dec("10.03")}}},
	})

	if res.Status != entity.MatchStatusMatched {
		t.Fatalf("expected matched within tolerance, got %s", res.Status)
	}
}

// 相同输入恒产出相同结果
func TestEvaluateDeterministic(t *testing.T) {
	e := NewEngine()
	in := Input{
		POLines: []POLine{
			{ProductID: "prod-B", Quantity: dec("10"), UnitPrice: dec("2.50")},
			{ProductID: "prod-A", Quantity: dec("20"), UnitPrice: dec("1.25")},
		},
		Receipts: [][]ReceiptLine{{
			{ProductID: "prod-A", Quantity: dec("20")},
			{ProductID: "prod-B", Quantity: dec("8")},
		}},
		Bills: [][]BillLine{{
			{ProductID: "prod-A", Quantity: dec("20"), UnitCost: dec("1.25")},
			{ProductID: "prod-B", Quantity: dec("8"), UnitCost: dec("2.50")},
		}},
	}

	first := e.Evaluate(in)
	for i := 0; i < 5; i++ {
		again := e.Evaluate(in)
		if again.Status != first.Status {
			t.Fatalf("status not deterministic: %s vs %s", first.Status, again.Status)
		}
		if len(again.Lines) != len(first.Lines) {
			t.Fatalf("line count not deterministic")
		}
		for j := range again.Lines {
			if again.Lines[j].ProductID != first.Lines[j].ProductID {
				t.Fatalf("line order not deterministic")
			}
		}
	}
	if first.Status != entity.MatchStatusQuantityMismatch {
		t.Fatalf("expected quantity_mismatch, got %s", first.Status)
	}
}
