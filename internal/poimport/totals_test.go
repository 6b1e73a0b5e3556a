package poimport

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotals(t *testing.T) {
	items := []PurchaseOrderItem{
		{Quantity: dec("2"), UnitPrice: dec("10")},
		{Quantity: dec("1"), UnitPrice: dec("5")},
	}

	got := ComputeTotals(items, DefaultTaxPercent, decimal.Zero)

	assert.True(t, got.Subtotal.Equal(dec("25")), got.Subtotal.String())
	assert.True(t, got.TaxAmount.Equal(dec("2.0")), got.TaxAmount.String())
	assert.True(t, got.GrandTotal.Equal(dec("27.0")), got.GrandTotal.String())
	assert.True(t, got.TaxPercent.Equal(dec("8")))
}

func TestComputeTotalsIgnoresStaleLineTotal(t *testing.T) {
	items := []PurchaseOrderItem{{Quantity: dec("3"), UnitPrice: dec("1.10"), TotalPrice: dec("999")}}

	got := ComputeTotals(items, dec("10"), dec("4.50"))

	assert.True(t, got.Subtotal.Equal(dec("3.30")))
	assert.True(t, got.TaxAmount.Equal(dec("0.33")))
	assert.True(t, got.GrandTotal.Equal(dec("8.13")))
}

func TestComputeTotalsEmpty(t *testing.T) {
	got := ComputeTotals(nil, DefaultTaxPercent, dec("12"))
	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.GrandTotal.Equal(dec("12")))
}

func TestComputeTotalsRoundsToStoredScale(t *testing.T) {
	items := []PurchaseOrderItem{{Quantity: dec("1"), UnitPrice: dec("1.2345")}}

	got := ComputeTotals(items, dec("8.125"), decimal.Zero)

	assert.Equal(t, "0.1003", got.TaxAmount.String())
	assert.Equal(t, "1.3348", got.GrandTotal.String())
}
