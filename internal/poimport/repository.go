package poimport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partsdesk/partsdesk/internal/platform/db"
)

// TxRepository is the write surface used while reconciling one group.
type TxRepository interface {
	VendorWriter
	PartStore
	FindPurchaseOrderByNumber(ctx context.Context, poNumber string) (PurchaseOrder, error)
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, id int64, update POHeaderUpdate) error
	UpdatePurchaseOrderTotals(ctx context.Context, id int64, totals Totals) error
	DeleteItemsForPO(ctx context.Context, poID int64) error
	InsertItems(ctx context.Context, items []PurchaseOrderItem) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListVendors loads every vendor ordered by id.
func (r *Repository) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM vendors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// WithTx runs fn inside one transaction; any error rolls everything back.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertVendor(ctx context.Context, v Vendor) (Vendor, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO vendors (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		v.Name, v.CreatedAt, v.UpdatedAt,
	).Scan(&v.ID)
	if err != nil {
		return Vendor{}, mapPgError(err)
	}
	return v, nil
}

func (t *txRepo) FindPartsByLowerNumbers(ctx context.Context, lowerNumbers []string) (map[string]Part, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, part_number, part_name, description, last_vendor_id, last_vendor_name,
		       last_po_number, last_unit_price, last_po_date, created_at, updated_at
		FROM parts
		WHERE lower(part_number) = ANY($1)`, lowerNumbers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parts := make(map[string]Part, len(lowerNumbers))
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.PartNumber, &p.PartName, &p.Description, &p.LastVendorID,
			&p.LastVendorName, &p.LastPONumber, &p.LastUnitPrice, &p.LastPODate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		parts[strings.ToLower(p.PartNumber)] = p
	}
	return parts, rows.Err()
}

func (t *txRepo) InsertPart(ctx context.Context, p Part) (Part, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO parts (part_number, part_name, description, last_vendor_id, last_vendor_name,
		                   last_po_number, last_unit_price, last_po_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		p.PartNumber, p.PartName, p.Description, p.LastVendorID, p.LastVendorName,
		p.LastPONumber, p.LastUnitPrice, p.LastPODate, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return Part{}, mapPgError(err)
	}
	return p, nil
}

func (t *txRepo) FindPurchaseOrderByNumber(ctx context.Context, poNumber string) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := t.tx.QueryRow(ctx, `
		SELECT id, po_number, vendor_id, order_date, status, subtotal, tax_percent, tax_amount,
		       shipping_charges, grand_total, created_at, updated_at
		FROM purchase_orders
		WHERE po_number = $1
		FOR UPDATE`, poNumber,
	).Scan(&po.ID, &po.PONumber, &po.VendorID, &po.OrderDate, &status, &po.Subtotal, &po.TaxPercent,
		&po.TaxAmount, &po.ShippingCharges, &po.GrandTotal, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Status = POStatus(status)
	return po, nil
}

func (t *txRepo) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (po_number, vendor_id, order_date, status, subtotal, tax_percent,
		                             tax_amount, shipping_charges, grand_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		po.PONumber, po.VendorID, po.OrderDate, string(po.Status), po.Subtotal, po.TaxPercent,
		po.TaxAmount, po.ShippingCharges, po.GrandTotal, po.CreatedAt, po.UpdatedAt,
	).Scan(&po.ID)
	if err != nil {
		return PurchaseOrder{}, mapPgError(err)
	}
	return po, nil
}

func (t *txRepo) UpdatePurchaseOrder(ctx context.Context, id int64, update POHeaderUpdate) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE purchase_orders SET vendor_id = $1, order_date = $2, updated_at = $3 WHERE id = $4`,
		update.VendorID, update.OrderDate, update.UpdatedAt, id)
	return mapPgError(err)
}

func (t *txRepo) UpdatePurchaseOrderTotals(ctx context.Context, id int64, totals Totals) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE purchase_orders
		SET subtotal = $1, tax_percent = $2, tax_amount = $3, shipping_charges = $4, grand_total = $5
		WHERE id = $6`,
		totals.Subtotal, totals.TaxPercent, totals.TaxAmount, totals.ShippingCharges, totals.GrandTotal, id)
	return err
}

func (t *txRepo) DeleteItemsForPO(ctx context.Context, poID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE po_id = $1`, poID)
	return err
}

func (t *txRepo) InsertItems(ctx context.Context, items []PurchaseOrderItem) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO purchase_order_items (po_id, line_no, part_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			item.POID, item.LineNo, item.PartID, item.Quantity, item.UnitPrice, item.TotalPrice)
	}
	results := t.tx.SendBatch(ctx, batch)
	for range items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return mapPgError(err)
		}
	}
	return results.Close()
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
