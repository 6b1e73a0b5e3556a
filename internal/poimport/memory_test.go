package poimport

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/partsdesk/partsdesk/internal/platform/lock"
)

type memoryRepo struct {
	vendors  []Vendor
	parts    map[int64]Part
	pos      map[int64]PurchaseOrder
	items    map[int64][]PurchaseOrderItem
	nextID   int64
	listErr  error
	failPO   string
	txCount  int
	rollback int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		parts: make(map[int64]Part),
		pos:   make(map[int64]PurchaseOrder),
		items: make(map[int64][]PurchaseOrderItem),
	}
}

func (r *memoryRepo) ListVendors(ctx context.Context) ([]Vendor, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]Vendor(nil), r.vendors...), nil
}

// WithTx snapshots state and restores it when fn fails.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.txCount++
	snapshot := r.clone()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.rollback++
		r.restore(snapshot)
		return err
	}
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	c := &memoryRepo{
		vendors: append([]Vendor(nil), r.vendors...),
		parts:   make(map[int64]Part, len(r.parts)),
		pos:     make(map[int64]PurchaseOrder, len(r.pos)),
		items:   make(map[int64][]PurchaseOrderItem, len(r.items)),
		nextID:  r.nextID,
	}
	for k, v := range r.parts {
		c.parts[k] = v
	}
	for k, v := range r.pos {
		c.pos[k] = v
	}
	for k, v := range r.items {
		c.items[k] = append([]PurchaseOrderItem(nil), v...)
	}
	return c
}

func (r *memoryRepo) restore(c *memoryRepo) {
	r.vendors, r.parts, r.pos, r.items, r.nextID = c.vendors, c.parts, c.pos, c.items, c.nextID
}

func (r *memoryRepo) addVendor(name string) Vendor {
	r.nextID++
	v := Vendor{ID: r.nextID, Name: name}
	r.vendors = append(r.vendors, v)
	return v
}

func (r *memoryRepo) addPart(number string) Part {
	r.nextID++
	p := Part{ID: r.nextID, PartNumber: number, PartName: number, LastPONumber: "LEGACY"}
	r.parts[p.ID] = p
	return p
}

func (r *memoryRepo) poByNumber(number string) (PurchaseOrder, bool) {
	for _, po := range r.pos {
		if po.PONumber == number {
			return po, true
		}
	}
	return PurchaseOrder{}, false
}

func (r *memoryRepo) vendorNamed(name string) []Vendor {
	var out []Vendor
	for _, v := range r.vendors {
		if v.Name == name {
			out = append(out, v)
		}
	}
	return out
}

func (r *memoryRepo) partByNumber(number string) (Part, bool) {
	for _, p := range r.parts {
		if strings.EqualFold(p.PartNumber, number) {
			return p, true
		}
	}
	return Part{}, false
}

func (tx *memoryTx) nextID() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryTx) InsertVendor(ctx context.Context, v Vendor) (Vendor, error) {
	v.ID = tx.nextID()
	tx.repo.vendors = append(tx.repo.vendors, v)
	return v, nil
}

func (tx *memoryTx) FindPartsByLowerNumbers(ctx context.Context, lowerNumbers []string) (map[string]Part, error) {
	want := make(map[string]bool, len(lowerNumbers))
	for _, n := range lowerNumbers {
		want[n] = true
	}
	out := make(map[string]Part)
	for _, p := range tx.repo.parts {
		key := strings.ToLower(p.PartNumber)
		if want[key] {
			out[key] = p
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertPart(ctx context.Context, p Part) (Part, error) {
	for _, existing := range tx.repo.parts {
		if strings.EqualFold(existing.PartNumber, p.PartNumber) {
			return Part{}, ErrDuplicate
		}
	}
	p.ID = tx.nextID()
	tx.repo.parts[p.ID] = p
	return p, nil
}

func (tx *memoryTx) FindPurchaseOrderByNumber(ctx context.Context, poNumber string) (PurchaseOrder, error) {
	po, ok := tx.repo.poByNumber(poNumber)
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (tx *memoryTx) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	if _, ok := tx.repo.poByNumber(po.PONumber); ok {
		return PurchaseOrder{}, ErrDuplicate
	}
	po.ID = tx.nextID()
	tx.repo.pos[po.ID] = po
	return po, nil
}

func (tx *memoryTx) UpdatePurchaseOrder(ctx context.Context, id int64, update POHeaderUpdate) error {
	po, ok := tx.repo.pos[id]
	if !ok {
		return ErrNotFound
	}
	po.VendorID = update.VendorID
	po.OrderDate = update.OrderDate
	po.UpdatedAt = update.UpdatedAt
	tx.repo.pos[id] = po
	return nil
}

func (tx *memoryTx) UpdatePurchaseOrderTotals(ctx context.Context, id int64, totals Totals) error {
	po, ok := tx.repo.pos[id]
	if !ok {
		return ErrNotFound
	}
	applyTotals(&po, totals)
	tx.repo.pos[id] = po
	return nil
}

func (tx *memoryTx) DeleteItemsForPO(ctx context.Context, poID int64) error {
	delete(tx.repo.items, poID)
	return nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, items []PurchaseOrderItem) error {
	for _, item := range items {
		po := tx.repo.pos[item.POID]
		if tx.repo.failPO != "" && po.PONumber == tx.repo.failPO {
			return errors.New("constraint violation")
		}
		item.ID = tx.nextID()
		tx.repo.items[item.POID] = append(tx.repo.items[item.POID], item)
	}
	return nil
}

func (r *memoryRepo) itemsFor(poID int64) []PurchaseOrderItem {
	items := append([]PurchaseOrderItem(nil), r.items[poID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].LineNo < items[j].LineNo })
	return items
}

type stubLocker struct {
	err        error
	refreshErr error
	acquired   int
	released   int
	refreshed  int
}

func (l *stubLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lease, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return stubLease{l}, nil
}

type stubLease struct{ l *stubLocker }

func (s stubLease) Refresh(context.Context) error {
	if s.l.refreshErr != nil {
		return s.l.refreshErr
	}
	s.l.refreshed++
	return nil
}

func (s stubLease) Release(context.Context) error {
	s.l.released++
	return nil
}
