package poimport

import "github.com/shopspring/decimal"

var (
	// DefaultTaxPercent applies to imported orders unless overridden.
	DefaultTaxPercent = decimal.NewFromInt(8)
	hundred           = decimal.NewFromInt(100)
)

// moneyScale matches the NUMERIC(18, 4) columns totals are stored in.
const moneyScale = 4

// Totals are the derived money fields of a purchase order.
type Totals struct {
	Subtotal        decimal.Decimal
	TaxPercent      decimal.Decimal
	TaxAmount       decimal.Decimal
	ShippingCharges decimal.Decimal
	GrandTotal      decimal.Decimal
}

// LineTotal is quantity times unit price.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// ComputeTotals sums line totals and applies tax and shipping. Each item's
// total is recomputed from quantity and unit price, not read from TotalPrice.
// Subtotal and tax are rounded to four places before the grand total is
// summed, so the result equals what the database stores.
func ComputeTotals(items []PurchaseOrderItem, taxPercent, shipping decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(LineTotal(item.Quantity, item.UnitPrice))
	}
	subtotal = subtotal.Round(moneyScale)
	tax := subtotal.Mul(taxPercent).Div(hundred).Round(moneyScale)
	return Totals{
		Subtotal:        subtotal,
		TaxPercent:      taxPercent,
		TaxAmount:       tax,
		ShippingCharges: shipping,
		GrandTotal:      subtotal.Add(tax).Add(shipping),
	}
}
