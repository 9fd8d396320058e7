// Package report renders analysis reports as spreadsheets: xlsx workbooks
// and Google Sheets tabs.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"resit/internal/core"
	"resit/internal/services"
)

// Sheet names of the exported workbook.
const (
	SheetDaily      = "Daily"
	SheetSummary    = "Summary"
	SheetCategories = "Categories"
)

// DailyHeader is the header row of the daily sheet.
var DailyHeader = []any{"Date", "Total", "Receipts", "Top merchant", "Top payment method"}

// DailyRows converts the days of rep to spreadsheet rows matching
// DailyHeader.
func DailyRows(rep services.Report) [][]any {
	rows := make([][]any, 0, len(rep.Days))
	for _, d := range rep.Days {
		rows = append(rows, []any{
			d.Date,
			money(d.Total),
			len(d.ReceiptIDs),
			d.TopMerchant,
			d.TopPaymentMethod,
		})
	}
	return rows
}

// SummaryRows lists range metrics as label/value pairs.
func SummaryRows(rep services.Report) [][]any {
	m := rep.Metrics
	peakDate, peakTotal := "", 0.0
	if m.PeakDay != nil {
		peakDate = m.PeakDay.Date
		peakTotal = money(m.PeakDay.Total)
	}
	rows := [][]any{
		{"From", displayBound(rep.From)},
		{"To", displayBound(rep.To)},
		{"Total spending", money(m.TotalSpending)},
		{"Receipts", m.TotalReceiptCount},
		{"Days with receipts", m.NumberOfDays},
		{"Average per receipt", money(m.AveragePerReceipt)},
		{"Average daily spend", money(m.AverageDailySpend)},
		{"Peak day", peakDate},
		{"Peak day total", peakTotal},
	}
	if rep.Currency != "" {
		rows = append(rows, []any{"Currency", rep.Currency})
	}
	return rows
}

// WriteXLSX writes a workbook with Daily, Summary and Categories sheets.
func WriteXLSX(w io.Writer, rep services.Report, breakdown core.CategoryBreakdown) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDaily); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetSummary, SheetCategories} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	daily := append([][]any{DailyHeader}, DailyRows(rep)...)
	if err := writeRows(f, SheetDaily, daily); err != nil {
		return err
	}
	if err := styleColumn(f, SheetDaily, "B", 2, len(daily), moneyStyle); err != nil {
		return err
	}

	if err := writeRows(f, SheetSummary, SummaryRows(rep)); err != nil {
		return err
	}

	categories := [][]any{{"Category", "Amount", "Percentage"}}
	for _, c := range breakdown.Categories {
		categories = append(categories, []any{c.Category, money(c.Amount), money(c.Percentage)})
	}
	categories = append(categories, []any{"Total", money(breakdown.GrandTotal), nil})
	if err := writeRows(f, SheetCategories, categories); err != nil {
		return err
	}
	if err := styleColumn(f, SheetCategories, "B", 2, len(categories), moneyStyle); err != nil {
		return err
	}

	for _, name := range []string{SheetDaily, SheetCategories} {
		if err := f.SetCellStyle(name, "A1", "E1", headerStyle); err != nil {
			return fmt.Errorf("style header %s: %w", name, err)
		}
	}
	if err := f.SetColWidth(SheetDaily, "A", "E", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName returns the download name of the workbook for rep.
func FileName(rep services.Report) string {
	if rep.Currency != "" {
		return fmt.Sprintf("receipts_%s_%s_%s.xlsx", fileBound(rep.From), fileBound(rep.To), rep.Currency)
	}
	return fmt.Sprintf("receipts_%s_%s.xlsx", fileBound(rep.From), fileBound(rep.To))
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func styleColumn(f *excelize.File, sheet, col string, from, to, style int) error {
	if to < from {
		return nil
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("%s%d", col, from), fmt.Sprintf("%s%d", col, to), style); err != nil {
		return fmt.Errorf("style %s!%s: %w", sheet, col, err)
	}
	return nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func displayBound(s string) string {
	if s == "" {
		return "open"
	}
	return s
}

func fileBound(s string) string {
	if s == "" {
		return "all"
	}
	return s
}
