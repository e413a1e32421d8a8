// Package export writes claims and adjuster-workload reports as XLSX
// workbooks for handoff outside the triage system.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/store"
)

const maxExportClaims = 10000

// Exporter builds workbooks from the claim store.
type Exporter struct {
	store store.Store
}

// New creates an Exporter backed by the given store.
func New(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// WriteWorkbook writes a Summary, Claims, and Adjusters sheet to path.
func (e *Exporter) WriteWorkbook(ctx context.Context, path string) error {
	f := xlsx.NewFile()

	if err := e.addSummarySheet(ctx, f); err != nil {
		return err
	}
	if err := e.addClaimsSheet(ctx, f); err != nil {
		return err
	}
	if err := e.addAdjustersSheet(ctx, f); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func (e *Exporter) addSummarySheet(ctx context.Context, f *xlsx.File) error {
	metrics, err := e.store.Metrics(ctx)
	if err != nil {
		return eris.Wrap(err, "export: collect metrics")
	}
	flagged, err := e.store.ListFlagged(ctx)
	if err != nil {
		return eris.Wrap(err, "export: list flagged")
	}

	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	addRow(sheet, "Metric", "Value")
	addRow(sheet, "Total claims", fmt.Sprintf("%d", metrics.TotalClaims))
	addRow(sheet, "Assigned claims", fmt.Sprintf("%d", metrics.AssignedClaims))
	addRow(sheet, "Completed claims", fmt.Sprintf("%d", metrics.CompletedClaims))
	addRow(sheet, "Flagged claims", fmt.Sprintf("%d", len(flagged)))
	addRow(sheet, "Avg processing time (s)", fmt.Sprintf("%.2f", metrics.AvgProcessingTimeSeconds))
	return nil
}

func (e *Exporter) addClaimsSheet(ctx context.Context, f *xlsx.File) error {
	claims, err := e.store.ListClaims(ctx, store.ClaimFilter{Limit: maxExportClaims})
	if err != nil {
		return eris.Wrap(err, "export: list claims")
	}

	sheet, err := f.AddSheet("Claims")
	if err != nil {
		return eris.Wrap(err, "export: add claims sheet")
	}

	addRow(sheet,
		"Claim ID", "Status", "Source", "Incident Type", "Amount",
		"Severity", "Complexity", "Assigned To", "Priority",
		"Fraud Flags", "Created",
	)

	for i := range claims {
		cl := &claims[i]
		incidentType := ""
		amount := ""
		if cl.ExtractedData != nil {
			incidentType = string(cl.ExtractedData.IncidentType)
			if cl.ExtractedData.ClaimAmount != nil {
				amount = fmt.Sprintf("%.2f", *cl.ExtractedData.ClaimAmount)
			}
		}
		assignedTo := ""
		priority := ""
		if cl.RoutingDecision != nil {
			if cl.RoutingDecision.AssignedTo != nil {
				assignedTo = *cl.RoutingDecision.AssignedTo
			}
			priority = string(cl.RoutingDecision.Priority)
		}
		addRow(sheet,
			cl.ClaimID,
			string(cl.Status),
			cl.Source,
			incidentType,
			amount,
			fmt.Sprintf("%.0f", cl.Severity()),
			fmt.Sprintf("%.0f", cl.Complexity()),
			assignedTo,
			priority,
			flagTypes(cl.FraudFlags),
			cl.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}

func (e *Exporter) addAdjustersSheet(ctx context.Context, f *xlsx.File) error {
	adjusters, err := e.store.ListAdjusters(ctx, false)
	if err != nil {
		return eris.Wrap(err, "export: list adjusters")
	}

	sheet, err := f.AddSheet("Adjusters")
	if err != nil {
		return eris.Wrap(err, "export: add adjusters sheet")
	}

	addRow(sheet,
		"Adjuster ID", "Name", "Experience", "Specializations",
		"Workload", "Capacity", "Utilization", "Max Amount", "Available",
	)

	for _, a := range adjusters {
		utilization := ""
		if a.MaxConcurrentClaims > 0 {
			utilization = fmt.Sprintf("%.0f%%",
				float64(a.CurrentWorkload)/float64(a.MaxConcurrentClaims)*100)
		}
		addRow(sheet,
			a.AdjusterID,
			a.Name,
			string(a.ExperienceLevel),
			strings.Join(a.Specializations, ", "),
			fmt.Sprintf("%d", a.CurrentWorkload),
			fmt.Sprintf("%d", a.MaxConcurrentClaims),
			utilization,
			fmt.Sprintf("%.0f", a.MaxClaimAmount),
			fmt.Sprintf("%t", a.Available),
		)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func flagTypes(flags []model.FraudFlag) string {
	if len(flags) == 0 {
		return ""
	}
	types := make([]string, len(flags))
	for i, fl := range flags {
		types[i] = fl.Type
	}
	return strings.Join(types, ", ")
}
