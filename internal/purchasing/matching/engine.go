package matching

import (
	"sort"

	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/shopspring/decimal"
)

// 行级差异原因
const (
	ReasonQuantityVariance = "quantity_variance"
	ReasonPriceVariance    = "price_variance"
)

// POLine 采购订单行
type POLine struct {
	ProductID string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// ReceiptLine 收货行
type ReceiptLine struct {
	ProductID string
	Quantity  decimal.Decimal
}

// BillLine 账单行
type BillLine struct {
	ProductID string
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}

// Input 三单匹配输入：一个PO与其关联的收货单、账单行集
type Input struct {
	POLines  []POLine
	Receipts [][]ReceiptLine
	Bills    [][]BillLine
}

// MatchLine 行级匹配明细（序列化进MatchResult.MatchDetails）
type MatchLine struct {
	ProductID        string          `json:"product_id"`
	OrderedQty       decimal.Decimal `json:"ordered_qty"`
	ReceivedQty      decimal.Decimal `json:"received_qty"`
	BilledQty        decimal.Decimal `json:"billed_qty"`
	POUnitPrice      decimal.Decimal `json:"po_unit_price"`
	BillUnitPrice    decimal.Decimal `json:"bill_unit_price"`
	QuantityVariance decimal.Decimal `json:"quantity_variance"`
	PriceVariance    decimal.Decimal `json:"price_variance"`
	Matched          bool            `json:"matched"`
	Reason           string          `json:"reason,omitempty"`
}

// Result 三单匹配结果
type Result struct {
	Status           string          `json:"status"`
	QuantityVariance decimal.Decimal `json:"quantity_variance"`
	PriceVariance    decimal.Decimal `json:"price_variance"`
	Lines            []MatchLine     `json:"lines"`
}

// Engine 三单匹配引擎。容差默认为零；相同输入恒产出相同结果
type Engine struct {
	QtyTolerance   decimal.Decimal
	PriceTolerance decimal.Decimal
}

// NewEngine 创建零容差匹配引擎
func NewEngine() *Engine {
	return &Engine{}
}

// lineAgg 按产品聚合的中间量
type lineAgg struct {
	ordered     decimal.Decimal
	poPrice     decimal.Decimal
	received    decimal.Decimal
	billedQty   decimal.Decimal
	billedTotal decimal.Decimal
	onPO        bool
}

// Evaluate 对输入做三单匹配分类。分类按优先级短路：
// missing_receipt > missing_bill > quantity_mismatch > price_mismatch > matched > pending
func (e *Engine) Evaluate(in Input) Result {
	if len(in.Receipts) == 0 {
		return Result{Status: entity.MatchStatusMissingReceipt, Lines: e.buildLines(in)}
	}
	if len(in.Bills) == 0 {
		return Result{Status: entity.MatchStatusMissingBill, Lines: e.buildLines(in)}
	}

	lines := e.buildLines(in)

	var totalQtyVar, totalPriceVar decimal.Decimal
	qtyMismatch := false
	priceMismatch := false
	for _, l := range lines {
		totalQtyVar = totalQtyVar.Add(l.QuantityVariance)
		totalPriceVar = totalPriceVar.Add(l.PriceVariance)
		if l.QuantityVariance.Abs().GreaterThan(e.QtyTolerance) {
			qtyMismatch = true
		}
		if l.PriceVariance.Abs().GreaterThan(e.PriceTolerance) {
			priceMismatch = true
		}
	}

	res := Result{
		QuantityVariance: totalQtyVar,
		PriceVariance:    totalPriceVar,
		Lines:            lines,
	}

	switch {
	case qtyMismatch:
		res.Status = entity.MatchStatusQuantityMismatch
	case priceMismatch:
		res.Status = entity.MatchStatusPriceMismatch
	case len(in.POLines) > 0:
		res.Status = entity.MatchStatusMatched
	default:
		// PO无行项，数据不足以判定
		res.Status = entity.MatchStatusPending
	}
	return res
}

// buildLines 按产品聚合订购/收货/开票数量与单价，生成行级明细
func (e *Engine) buildLines(in Input) []MatchLine {
	aggs := make(map[string]*lineAgg)

	get := func(productID string) *lineAgg {
		a, ok := aggs[productID]
		if !ok {
			a = &lineAgg{}
			aggs[productID] = a
		}
		return a
	}

	for _, l := range in.POLines {
		a := get(l.ProductID)
		a.ordered = a.ordered.Add(l.Quantity)
		a.poPrice = l.UnitPrice
		a.onPO = true
	}
	for _, gr := range in.Receipts {
		for _, l := range gr {
			a := get(l.ProductID)
			a.received = a.received.Add(l.Quantity)
		}
	}
	for _, bill := range in.Bills {
		for _, l := range bill {
			a := get(l.ProductID)
			a.billedQty = a.billedQty.Add(l.Quantity)
			a.billedTotal = a.billedTotal.Add(l.UnitCost.Mul(l.Quantity))
		}
	}

	productIDs := make([]string, 0, len(aggs))
	for id := range aggs {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	lines := make([]MatchLine, 0, len(productIDs))
	for _, id := range productIDs {
		a := aggs[id]

		// 多张账单时按数量加权平均折算单价
		billPrice := decimal.Zero
		if a.billedQty.IsPositive() {
			billPrice = a.billedTotal.Div(a.billedQty)
		}

		qtyVar := a.received.Sub(a.ordered)
		priceVar := decimal.Zero
		if a.billedQty.IsPositive() {
			priceVar = billPrice.Sub(a.poPrice)
		}

		line := MatchLine{
			ProductID:        id,
			OrderedQty:       a.ordered,
			ReceivedQty:      a.received,
			BilledQty:        a.billedQty,
			POUnitPrice:      a.poPrice,
			BillUnitPrice:    billPrice,
			QuantityVariance: qtyVar,
			PriceVariance:    priceVar,
			Matched:          true,
		}
		if qtyVar.Abs().GreaterThan(e.QtyTolerance) {
			line.Matched = false
			line.Reason = ReasonQuantityVariance
		} else if priceVar.Abs().GreaterThan(e.PriceTolerance) {
			line.Matched = false
			line.Reason = ReasonPriceVariance
		}
		lines = append(lines, line)
	}
	return lines
}
