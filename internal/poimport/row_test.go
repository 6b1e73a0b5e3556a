package poimport

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRowNumericCoercion(t *testing.T) {
	for _, v := range []any{"abc", nil, "", "  ", true} {
		row := NormalizeRow(RawRow{"ItemQuantity": v, "ItemUnitPrice": v})
		assert.True(t, row.Quantity.IsZero(), "%#v", v)
		assert.True(t, row.UnitPrice.IsZero(), "%#v", v)
	}

	row := NormalizeRow(RawRow{"ItemQuantity": "12", "ItemUnitPrice": "$1,250.75"})
	assert.Equal(t, "12", row.Quantity.String())
	assert.Equal(t, "1250.75", row.UnitPrice.String())

	row = NormalizeRow(RawRow{"ItemQuantity": 3.0, "ItemUnitPrice": json.Number("4.25")})
	assert.Equal(t, "3", row.Quantity.String())
	assert.Equal(t, "4.25", row.UnitPrice.String())

	row = NormalizeRow(RawRow{"ItemUnitPrice": "(5.00)"})
	assert.Equal(t, "-5", row.UnitPrice.String())
}

func TestNormalizeRowDates(t *testing.T) {
	row := NormalizeRow(RawRow{"OrderDate": 45086.0})
	require.NotNil(t, row.OrderDate)
	assert.Equal(t, time.Date(2023, time.June, 9, 0, 0, 0, 0, time.UTC), *row.OrderDate)

	row = NormalizeRow(RawRow{"OrderDate": 45106.75})
	require.NotNil(t, row.OrderDate)
	assert.Equal(t, "2023-06-29", row.OrderDate.Format("2006-01-02"))

	row = NormalizeRow(RawRow{"OrderDate": "not a date"})
	assert.Nil(t, row.OrderDate)

	row = NormalizeRow(RawRow{"OrderDate": ""})
	assert.Nil(t, row.OrderDate)

	row = NormalizeRow(RawRow{"OrderDate": nil})
	assert.Nil(t, row.OrderDate)

	for _, s := range []string{"2023-06-09", "06/09/2023", "6/9/2023", "Jun 9, 2023", "09-Jun-2023", "45086"} {
		row = NormalizeRow(RawRow{"OrderDate": s})
		require.NotNil(t, row.OrderDate, s)
		assert.Equal(t, "2023-06-09", row.OrderDate.Format("2006-01-02"), s)
		assert.Equal(t, time.UTC, row.OrderDate.Location(), s)
	}
}

func TestSerialToDateBounds(t *testing.T) {
	_, ok := SerialToDate(0)
	assert.False(t, ok)
	_, ok = SerialToDate(-3)
	assert.False(t, ok)
	_, ok = SerialToDate(3_000_000)
	assert.False(t, ok)

	d, ok := SerialToDate(1)
	require.True(t, ok)
	assert.Equal(t, "1899-12-31", d.Format("2006-01-02"))
}

func TestNormalizeRowStrings(t *testing.T) {
	row := NormalizeRow(RawRow{
		"OrderNumber":     1001.0,
		"VendorName":      "  Acme Inc  ",
		"ItemName":        nil,
		"ItemDescription": "Hex Bolt M8",
	})
	assert.Equal(t, "1001", row.OrderNumber)
	assert.Equal(t, "Acme Inc", row.VendorName)
	assert.Equal(t, "", row.ItemName)
	assert.Equal(t, "Hex Bolt M8", row.ItemDescription)
}

func TestNormalizeRowHeaderAliases(t *testing.T) {
	row := NormalizeRow(RawRow{
		"po number":   "PO-7",
		"SUPPLIER":    "Globex",
		"PO_Date":     "2024-01-31",
		"Part Number": "ab-1",
		"Description": "Widget",
		"Qty":         "4",
		"Unit Price":  "2.5",
	})
	assert.Equal(t, "PO-7", row.OrderNumber)
	assert.Equal(t, "Globex", row.VendorName)
	require.NotNil(t, row.OrderDate)
	assert.Equal(t, "2024-01-31", row.OrderDate.Format("2006-01-02"))
	assert.Equal(t, "ab-1", row.ItemName)
	assert.Equal(t, "Widget", row.ItemDescription)
	assert.True(t, row.Quantity.Equal(decimal.NewFromInt(4)))
	assert.True(t, row.UnitPrice.Equal(decimal.RequireFromString("2.5")))
}

func TestNormalizeRowPrefersCanonicalHeader(t *testing.T) {
	row := NormalizeRow(RawRow{"Item": "fallback", "ItemName": "P-1"})
	assert.Equal(t, "P-1", row.ItemName)
}

func TestNormalizeRowEmpty(t *testing.T) {
	row := NormalizeRow(RawRow{})
	assert.Equal(t, ImportRow{Quantity: decimal.Zero, UnitPrice: decimal.Zero}, row)
}
