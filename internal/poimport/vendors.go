package poimport

import (
	"context"
	"fmt"
	"time"
)

// UnknownVendorName is used when item rows arrive without any vendor.
const UnknownVendorName = "Unknown"

// VendorWriter persists new vendors.
type VendorWriter interface {
	InsertVendor(ctx context.Context, v Vendor) (Vendor, error)
}

// VendorResolver maps a free-text vendor name to a vendor record using the
// batch's preloaded index, creating the vendor when nothing matches.
type VendorResolver struct {
	index *VendorIndex
	now   func() time.Time
}

// NewVendorResolver wraps an index snapshot.
func NewVendorResolver(index *VendorIndex, now func() time.Time) *VendorResolver {
	if now == nil {
		now = time.Now
	}
	return &VendorResolver{index: index, now: now}
}

// Resolve returns the matching vendor or inserts a new one. A nil vendor is
// returned for an empty name. created reports whether an insert happened.
// The index is left untouched; callers add created vendors once the
// surrounding transaction commits.
func (r *VendorResolver) Resolve(ctx context.Context, w VendorWriter, name string, orderDate *time.Time) (*Vendor, bool, error) {
	if name == "" {
		return nil, false, nil
	}
	if v, _, ok := r.index.Match(name); ok {
		return &v, false, nil
	}
	createdAt := r.now()
	if orderDate != nil {
		createdAt = *orderDate
	}
	v, err := w.InsertVendor(ctx, Vendor{Name: name, CreatedAt: createdAt, UpdatedAt: createdAt})
	if err != nil {
		return nil, false, fmt.Errorf("poimport: insert vendor %q: %w", name, err)
	}
	return &v, true, nil
}

// Remember adds a committed vendor to the batch index.
func (r *VendorResolver) Remember(v Vendor) {
	r.index.Add(v)
}
