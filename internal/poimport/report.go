package poimport

import (
	"fmt"
	"time"
)

// Skip reasons surfaced in the report.
const (
	ReasonVendorOnly  = "vendor ensured only — no PO created"
	ReasonPartsOnly   = "parts created only — no PO created"
	ReasonNoLineItems = "no line items"
)

// Report is the result of one import batch.
type Report struct {
	BatchID    string       `json:"batch_id"`
	Created    int          `json:"created"`
	Updated    int          `json:"updated"`
	Skipped    int          `json:"skipped"`
	Summary    Summary      `json:"summary"`
	Errors     []GroupIssue `json:"errors"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Summary carries the batch-wide counters.
type Summary struct {
	TotalRows      int      `json:"total_rows"`
	DiscardedRows  int      `json:"discarded_rows"`
	UniquePOs      int      `json:"unique_pos"`
	Failed         int      `json:"failed"`
	VendorsCreated int      `json:"vendors_created"`
	VendorNames    []string `json:"vendor_names"`
	PartsCreated   int      `json:"parts_created"`
	PartNumbers    []string `json:"part_numbers"`
	DryRun         bool     `json:"dry_run,omitempty"`
	Cancelled      bool     `json:"cancelled,omitempty"`
	Unprocessed    int      `json:"unprocessed,omitempty"`
}

// GroupIssue records a skipped or failed PO group.
type GroupIssue struct {
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
}

// ReportBuilder accumulates group outcomes in processing order.
type ReportBuilder struct {
	report Report
}

// NewReportBuilder starts a report for the batch.
func NewReportBuilder(batchID string, startedAt time.Time, dryRun bool) *ReportBuilder {
	return &ReportBuilder{report: Report{
		BatchID:   batchID,
		StartedAt: startedAt,
		Errors:    []GroupIssue{},
		Summary: Summary{
			VendorNames: []string{},
			PartNumbers: []string{},
			DryRun:      dryRun,
		},
	}}
}

// Rows records input sizes.
func (b *ReportBuilder) Rows(total, discarded, groups int) {
	b.report.Summary.TotalRows = total
	b.report.Summary.DiscardedRows = discarded
	b.report.Summary.UniquePOs = groups
}

// Apply folds one committed group outcome into the report.
func (b *ReportBuilder) Apply(o GroupOutcome) {
	switch o.Action {
	case ActionCreated:
		b.report.Created++
	case ActionUpdated:
		b.report.Updated++
	default:
		b.report.Skipped++
		b.report.Errors = append(b.report.Errors, GroupIssue{OrderNumber: o.OrderNumber, Reason: o.Reason})
	}
	if o.CreatedVendor != nil {
		b.report.Summary.VendorsCreated++
		b.report.Summary.VendorNames = append(b.report.Summary.VendorNames, o.CreatedVendor.Name)
	}
	for _, p := range o.CreatedParts {
		b.report.Summary.PartsCreated++
		b.report.Summary.PartNumbers = append(b.report.Summary.PartNumbers, p.PartNumber)
	}
}

// Fail records a group whose work was rolled back.
func (b *ReportBuilder) Fail(orderNumber string, err error) {
	b.report.Summary.Failed++
	b.report.Errors = append(b.report.Errors, GroupIssue{
		OrderNumber: orderNumber,
		Reason:      fmt.Sprintf("failed: %v", err),
	})
}

// Cancel marks the batch as stopped early with n groups not started.
func (b *ReportBuilder) Cancel(unprocessed int) {
	b.report.Summary.Cancelled = true
	b.report.Summary.Unprocessed = unprocessed
}

// Build stamps the finish time and returns the report.
func (b *ReportBuilder) Build(finishedAt time.Time) Report {
	b.report.FinishedAt = finishedAt
	return b.report
}
