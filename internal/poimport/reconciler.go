package poimport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the report bucket a group lands in.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// Group is the set of rows sharing one order number, in input order.
type Group struct {
	OrderNumber string
	Rows        []ImportRow
}

// VendorName is the first non-empty vendor name in the group.
func (g Group) VendorName() string {
	for _, r := range g.Rows {
		if r.VendorName != "" {
			return r.VendorName
		}
	}
	return ""
}

// OrderDate is the first known order date in the group.
func (g Group) OrderDate() *time.Time {
	for _, r := range g.Rows {
		if r.OrderDate != nil {
			return r.OrderDate
		}
	}
	return nil
}

// ItemRows returns the rows that name an item.
func (g Group) ItemRows() []ImportRow {
	items := make([]ImportRow, 0, len(g.Rows))
	for _, r := range g.Rows {
		if r.ItemName != "" {
			items = append(items, r)
		}
	}
	return items
}

// GroupOutcome describes what reconciling one group did.
type GroupOutcome struct {
	OrderNumber   string
	Action        Action
	Reason        string
	PurchaseOrder *PurchaseOrder
	Items         []PurchaseOrderItem
	CreatedVendor *Vendor
	CreatedParts  []Part
}

// GroupReconciler decides and applies the outcome for a single PO group.
type GroupReconciler struct {
	vendors    *VendorResolver
	parts      PartResolver
	taxPercent decimal.Decimal
	shipping   decimal.Decimal
	now        func() time.Time
}

// NewGroupReconciler wires the resolvers and the defaults used for new POs.
func NewGroupReconciler(vendors *VendorResolver, parts PartResolver, taxPercent, shipping decimal.Decimal, now func() time.Time) *GroupReconciler {
	if now == nil {
		now = time.Now
	}
	return &GroupReconciler{vendors: vendors, parts: parts, taxPercent: taxPercent, shipping: shipping, now: now}
}

// Reconcile runs the group through the decision table. Every write goes
// through tx; an error means the caller must roll the group back.
func (r *GroupReconciler) Reconcile(ctx context.Context, tx TxRepository, g Group) (GroupOutcome, error) {
	out := GroupOutcome{OrderNumber: g.OrderNumber}
	items := g.ItemRows()
	vendorName := g.VendorName()
	orderDate := g.OrderDate()

	if vendorName != "" && len(items) == 0 {
		v, created, err := r.vendors.Resolve(ctx, tx, vendorName, orderDate)
		if err != nil {
			return out, err
		}
		if created {
			out.CreatedVendor = v
		}
		return skip(out, ReasonVendorOnly), nil
	}

	if len(items) == 0 {
		return skip(out, ReasonNoLineItems), nil
	}

	if vendorName == "" {
		vendorName = UnknownVendorName
	}
	vendor, created, err := r.vendors.Resolve(ctx, tx, vendorName, orderDate)
	if err != nil {
		return out, err
	}
	if created {
		out.CreatedVendor = vendor
	}

	existing, err := r.parts.Lookup(ctx, tx, items)
	if err != nil {
		return out, err
	}
	hadParts := len(existing) > 0
	out.CreatedParts, err = r.parts.EnsureParts(ctx, tx, items, existing, *vendor, g.OrderNumber, orderDate)
	if err != nil {
		return out, err
	}
	if !hadParts {
		return skip(out, ReasonPartsOnly), nil
	}

	po, action, err := r.upsertHeader(ctx, tx, g.OrderNumber, vendor.ID, orderDate)
	if err != nil {
		return out, err
	}
	out.Action = action
	out.PurchaseOrder = &po

	// items is non-empty here, so every created or updated PO gets lines.
	lines := make([]PurchaseOrderItem, 0, len(items))
	for _, row := range items {
		item := PurchaseOrderItem{
			POID:       po.ID,
			LineNo:     len(lines) + 1,
			Quantity:   row.Quantity,
			UnitPrice:  row.UnitPrice,
			TotalPrice: LineTotal(row.Quantity, row.UnitPrice),
		}
		if part, ok := existing[strings.ToLower(row.ItemName)]; ok {
			id := part.ID
			item.PartID = &id
		}
		lines = append(lines, item)
	}
	if err := tx.InsertItems(ctx, lines); err != nil {
		return out, fmt.Errorf("poimport: insert items for %s: %w", g.OrderNumber, err)
	}
	out.Items = lines

	totals := ComputeTotals(lines, po.TaxPercent, po.ShippingCharges)
	if err := tx.UpdatePurchaseOrderTotals(ctx, po.ID, totals); err != nil {
		return out, fmt.Errorf("poimport: update totals for %s: %w", g.OrderNumber, err)
	}
	applyTotals(out.PurchaseOrder, totals)
	return out, nil
}

// upsertHeader updates the PO with this number, clearing its items, or
// inserts a new one.
func (r *GroupReconciler) upsertHeader(ctx context.Context, tx TxRepository, poNumber string, vendorID int64, orderDate *time.Time) (PurchaseOrder, Action, error) {
	now := r.now()
	po, err := tx.FindPurchaseOrderByNumber(ctx, poNumber)
	switch {
	case err == nil:
		if err := tx.DeleteItemsForPO(ctx, po.ID); err != nil {
			return PurchaseOrder{}, "", fmt.Errorf("poimport: delete items for %s: %w", poNumber, err)
		}
		update := POHeaderUpdate{VendorID: vendorID, OrderDate: orderDate, UpdatedAt: now}
		if err := tx.UpdatePurchaseOrder(ctx, po.ID, update); err != nil {
			return PurchaseOrder{}, "", fmt.Errorf("poimport: update po %s: %w", poNumber, err)
		}
		po.VendorID = vendorID
		po.OrderDate = orderDate
		po.UpdatedAt = now
		return po, ActionUpdated, nil
	case errors.Is(err, ErrNotFound):
		created, err := tx.InsertPurchaseOrder(ctx, PurchaseOrder{
			PONumber:        poNumber,
			VendorID:        vendorID,
			OrderDate:       orderDate,
			Status:          StatusImported,
			Subtotal:        decimal.Zero,
			TaxPercent:      r.taxPercent,
			TaxAmount:       decimal.Zero,
			ShippingCharges: r.shipping,
			GrandTotal:      r.shipping,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return PurchaseOrder{}, "", fmt.Errorf("poimport: insert po %s: %w", poNumber, err)
		}
		return created, ActionCreated, nil
	default:
		return PurchaseOrder{}, "", fmt.Errorf("poimport: find po %s: %w", poNumber, err)
	}
}

func skip(out GroupOutcome, reason string) GroupOutcome {
	out.Action = ActionSkipped
	out.Reason = reason
	return out
}

func applyTotals(po *PurchaseOrder, t Totals) {
	po.Subtotal = t.Subtotal
	po.TaxPercent = t.TaxPercent
	po.TaxAmount = t.TaxAmount
	po.ShippingCharges = t.ShippingCharges
	po.GrandTotal = t.GrandTotal
}
