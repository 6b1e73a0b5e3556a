package poimport

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one spreadsheet row keyed by its header text. Values are
// strings, numbers (spreadsheet serials included) or nil.
type RawRow map[string]any

// ImportRow is the typed form of a RawRow. Quantity and UnitPrice are never
// nil; OrderDate is nil when the cell was blank or unparseable.
type ImportRow struct {
	OrderNumber     string
	VendorName      string
	OrderDate       *time.Time
	ItemName        string
	ItemDescription string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
}

type column int

const (
	colOrderNumber column = iota
	colVendorName
	colOrderDate
	colItemName
	colItemDescription
	colQuantity
	colUnitPrice
)

// columnAliases lists accepted headers per column in priority order, already
// in canonical form (see canonicalHeader).
var columnAliases = map[column][]string{
	colOrderNumber:     {"ordernumber", "ponumber", "orderno", "pono", "purchaseorder", "po"},
	colVendorName:      {"vendorname", "vendor", "suppliername", "supplier"},
	colOrderDate:       {"orderdate", "podate", "date"},
	colItemName:        {"itemname", "partnumber", "partno", "itemnumber", "item", "part"},
	colItemDescription: {"itemdescription", "description", "partdescription", "desc"},
	colQuantity:        {"itemquantity", "quantity", "qty"},
	colUnitPrice:       {"itemunitprice", "unitprice", "unitcost", "price"},
}

// excelEpoch is day zero for spreadsheet date serials.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxExcelSerial is 9999-12-31.
const maxExcelSerial = 2958465

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

var amountCleaner = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "", " ", "")

// NormalizeRow converts a raw row into an ImportRow. It never fails:
// malformed cells degrade to empty strings, zero and nil dates.
func NormalizeRow(raw RawRow) ImportRow {
	cells := canonicalCells(raw)
	pick := func(c column) any {
		for _, alias := range columnAliases[c] {
			if v, ok := cells[alias]; ok {
				return v
			}
		}
		return nil
	}
	return ImportRow{
		OrderNumber:     cellString(pick(colOrderNumber)),
		VendorName:      cellString(pick(colVendorName)),
		OrderDate:       cellDate(pick(colOrderDate)),
		ItemName:        cellString(pick(colItemName)),
		ItemDescription: cellString(pick(colItemDescription)),
		Quantity:        cellDecimal(pick(colQuantity)),
		UnitPrice:       cellDecimal(pick(colUnitPrice)),
	}
}

// canonicalCells rekeys the row by canonical header. When two headers collapse
// to the same key the lexically first original header wins.
func canonicalCells(raw RawRow) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cells := make(map[string]any, len(raw))
	for _, k := range keys {
		ck := canonicalHeader(k)
		if ck == "" {
			continue
		}
		if _, seen := cells[ck]; !seen {
			cells[ck] = raw[k]
		}
	}
	return cells
}

func canonicalHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch r {
		case ' ', '_', '-', '.', '#', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case time.Time:
		return t.UTC().Format("2006-01-02")
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func cellDecimal(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(t)
	case float32:
		return cellDecimal(float64(t))
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case json.Number:
		return parseAmount(t.String())
	case string:
		return parseAmount(t)
	default:
		return decimal.Zero
	}
}

func parseAmount(s string) decimal.Decimal {
	s = amountCleaner.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}

func cellDate(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return serialDate(t)
	case float32:
		return serialDate(float64(t))
	case int:
		return serialDate(float64(t))
	case int64:
		return serialDate(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return serialDate(f)
	case time.Time:
		if t.IsZero() {
			return nil
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	case string:
		return parseDate(t)
	default:
		return nil
	}
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return serialDate(f)
	}
	return nil
}

// SerialToDate converts a spreadsheet day serial to a UTC calendar date.
// The fractional (time of day) part is dropped.
func SerialToDate(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial <= 0 || serial > maxExcelSerial {
		return time.Time{}, false
	}
	return excelEpoch.AddDate(0, 0, int(math.Floor(serial))), true
}

func serialDate(serial float64) *time.Time {
	d, ok := SerialToDate(serial)
	if !ok {
		return nil
	}
	return &d
}
