package poimport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PartStore is the part persistence needed by PartResolver.
type PartStore interface {
	FindPartsByLowerNumbers(ctx context.Context, lowerNumbers []string) (map[string]Part, error)
	InsertPart(ctx context.Context, p Part) (Part, error)
}

// PartResolver looks up and creates parts referenced by a PO group. Part
// numbers match by case-insensitive equality only.
type PartResolver struct {
	now func() time.Time
}

// NewPartResolver builds a resolver using now for creation timestamps.
func NewPartResolver(now func() time.Time) PartResolver {
	if now == nil {
		now = time.Now
	}
	return PartResolver{now: now}
}

// Lookup returns existing parts keyed by lower-cased part number.
func (r PartResolver) Lookup(ctx context.Context, store PartStore, rows []ImportRow) (map[string]Part, error) {
	keys := distinctPartKeys(rows)
	if len(keys) == 0 {
		return map[string]Part{}, nil
	}
	found, err := store.FindPartsByLowerNumbers(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("poimport: find parts: %w", err)
	}
	if found == nil {
		found = map[string]Part{}
	}
	return found, nil
}

// EnsureParts inserts every distinct part number in rows that is missing from
// existing, using the first row mentioning it for name, description and
// price. Created parts are added to existing and returned in row order.
// Parts already present are not modified.
func (r PartResolver) EnsureParts(ctx context.Context, store PartStore, rows []ImportRow, existing map[string]Part, vendor Vendor, poNumber string, orderDate *time.Time) ([]Part, error) {
	var created []Part
	for _, row := range rows {
		key := strings.ToLower(row.ItemName)
		if key == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			continue
		}
		now := r.now()
		name := row.ItemDescription
		if name == "" {
			name = row.ItemName
		}
		vendorID := vendor.ID
		part := Part{
			PartNumber:     row.ItemName,
			PartName:       name,
			Description:    row.ItemDescription,
			LastVendorID:   &vendorID,
			LastVendorName: vendor.Name,
			LastPONumber:   poNumber,
			LastUnitPrice:  row.UnitPrice,
			LastPODate:     orderDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		saved, err := store.InsertPart(ctx, part)
		if err != nil {
			return nil, fmt.Errorf("poimport: insert part %q: %w", row.ItemName, err)
		}
		existing[key] = saved
		created = append(created, saved)
	}
	return created, nil
}

func distinctPartKeys(rows []ImportRow) []string {
	seen := make(map[string]struct{}, len(rows))
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		key := strings.ToLower(row.ItemName)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
