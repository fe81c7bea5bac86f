// Package report renders learner progress as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/skillforge/internal/progression"
)

const (
	PlansSheet   = "Plans"
	ModulesSheet = "Modules"
)

var (
	planHeader   = []any{"Plan ID", "Topic", "Difficulty", "Completed", "Total", "State", "Credential ID", "Issued", "Created"}
	moduleHeader = []any{"Plan ID", "Topic", "Week", "Title", "Key Concepts", "State"}
)

// WriteProgress writes a workbook with one row per plan on the Plans sheet
// and one row per module on the Modules sheet.
func WriteProgress(w io.Writer, plans []progression.Plan) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PlansSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ModulesSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE6F1"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, PlansSheet, 1, planHeader); err != nil {
		return err
	}
	if err := writeRow(f, ModulesSheet, 1, moduleHeader); err != nil {
		return err
	}

	moduleRow := 2
	for i, p := range plans {
		credID, issued := "", ""
		if p.Credential != nil {
			credID = p.Credential.ID
			issued = p.Credential.IssueDate.Format("2006-01-02")
		}
		if err := writeRow(f, PlansSheet, i+2, []any{
			p.ID,
			p.Topic,
			string(p.Difficulty),
			len(p.Completed),
			len(p.Modules),
			string(progression.StateOfPlan(p)),
			credID,
			issued,
			p.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}); err != nil {
			return err
		}

		for _, n := range p.ModuleNumbers() {
			m, _ := p.Module(n)
			if err := writeRow(f, ModulesSheet, moduleRow, []any{
				p.ID,
				p.Topic,
				m.Number,
				m.Title,
				strings.Join(m.KeyConcepts, ", "),
				string(progression.StateOf(p, n)),
			}); err != nil {
				return err
			}
			moduleRow++
		}
	}

	for _, sheet := range []string{PlansSheet, ModulesSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return fmt.Errorf("freeze %s header: %w", sheet, err)
		}
	}
	if err := f.SetColWidth(PlansSheet, "A", "A", 38); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(PlansSheet, "B", "B", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(ModulesSheet, "D", "E", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
