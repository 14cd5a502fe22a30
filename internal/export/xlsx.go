// Package export writes analysis records to spreadsheets for the CCI team.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"convo-insights-go/internal/aggregator"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

const (
	recordsSheet = "Analyses"
	summarySheet = "Synthèse"
	timeLayout   = "2006-01-02 15:04"
)

var recordHeader = []interface{}{
	"Conversation", "Client", "Entreprise", "Service", "Complète", "Messages",
	"Début", "Fin", "Résumé", "Analyse de complétion", "Statut", "Champs en échec", "Mis à jour",
}

// WriteXLSX writes one row per record plus a summary sheet built from ins.
func WriteXLSX(w io.Writer, records []types.AnalysisRecord, ins aggregator.Insight) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("wrap style: %w", err)
	}

	if err := f.SetSheetRow(recordsSheet, "A1", &recordHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		row := []interface{}{
			r.ConversationID,
			optional(r.ClientName),
			optional(r.CompanyName),
			r.ServiceInterest.Label(),
			yesNo(r.IsCompleted),
			r.TotalMessages,
			r.ConversationStart.UTC().Format(timeLayout),
			r.ConversationEnd.UTC().Format(timeLayout),
			r.SummaryText(),
			r.CompletionRationale,
			string(r.Status),
			strings.Join(r.FailedFields, ", "),
			r.LastUpdated.UTC().Format(timeLayout),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(recordsSheet, cellRef, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(recordHeader), len(records)+1)
	if err := f.SetCellStyle(recordsSheet, "A1", "M1", bold); err != nil {
		return err
	}
	if len(records) > 0 {
		if err := f.SetCellStyle(recordsSheet, "I2", last, wrap); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(recordsSheet, "I", "J", 60); err != nil {
		return err
	}
	if err := f.SetPanes(recordsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if err := writeSummary(f, ins, bold); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, ins aggregator.Insight, bold int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Indicateur", "Valeur"},
		{"Conversations analysées", ins.Total},
		{"Conversations complètes", ins.Completed},
		{"Taux de complétion", percent(ins.CompletionRate)},
		{"Noms identifiés", percent(ins.NameCoverage)},
		{"Entreprises identifiées", percent(ins.CompanyCoverage)},
		{"Résumés disponibles", percent(ins.SummaryCoverage)},
		{"Messages par conversation", fmt.Sprintf("%.1f", ins.AvgMessages)},
		{"Analyses partielles", ins.Partial},
		{"Courtes marquées complètes", ins.ShortCompleted},
		{},
		{"Service", "Conversations", "Taux de complétion"},
	}
	for _, d := range taxonomy.All() {
		n := ins.ServiceCounts[string(d.Key)]
		if n == 0 {
			continue
		}
		rows = append(rows, []interface{}{d.Label, n, percent(ins.CompletionByService[string(d.Key)])})
	}
	for i, row := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cellRef, &row); err != nil {
			return fmt.Errorf("summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A12", "C12", bold); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "A", 32)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "oui"
	}
	return "non"
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}
