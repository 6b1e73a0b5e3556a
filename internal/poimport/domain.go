package poimport

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// POStatus is the lifecycle status stored on a purchase order.
type POStatus string

// StatusImported marks purchase orders created by the importer.
const StatusImported POStatus = "Imported"

// Vendor is a supplier record. Names are unique by normalized form only.
type Vendor struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Part is a catalog entry. The Last* fields reflect the most recent import
// sighting and are not an audit trail.
type Part struct {
	ID             int64
	PartNumber     string
	PartName       string
	Description    string
	LastVendorID   *int64
	LastVendorName string
	LastPONumber   string
	LastUnitPrice  decimal.Decimal
	LastPODate     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PurchaseOrder header. PONumber is the business key used for re-import.
type PurchaseOrder struct {
	ID              int64
	PONumber        string
	VendorID        int64
	OrderDate       *time.Time
	Status          POStatus
	Subtotal        decimal.Decimal
	TaxPercent      decimal.Decimal
	TaxAmount       decimal.Decimal
	ShippingCharges decimal.Decimal
	GrandTotal      decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PurchaseOrderItem is one line of a purchase order.
type PurchaseOrderItem struct {
	ID         int64
	POID       int64
	LineNo     int
	PartID     *int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// POHeaderUpdate holds the header fields rewritten when a PO is re-imported.
type POHeaderUpdate struct {
	VendorID  int64
	OrderDate *time.Time
	UpdatedAt time.Time
}

// JobState describes an asynchronous import run.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobStatus is what callers poll for while an async import runs.
type JobStatus struct {
	JobID     string    `json:"job_id"`
	State     JobState  `json:"state"`
	Report    *Report   `json:"report,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("poimport: not found")
	// ErrEmptyBatch is returned when the input carries no rows at all.
	ErrEmptyBatch = errors.New("poimport: empty batch")
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("poimport: invalid input")
	// ErrDuplicate wraps unique constraint violations.
	ErrDuplicate = errors.New("poimport: duplicate entry")
	// ErrImportRunning is returned when another batch holds the import lock.
	ErrImportRunning = errors.New("poimport: import already running")
	// ErrLockLost is returned with a partial report when the import lock
	// expired mid-batch; unprocessed groups were not started.
	ErrLockLost = errors.New("poimport: import lock lost")
)
