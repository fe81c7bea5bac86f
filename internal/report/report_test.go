package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/skillforge/internal/curriculum"
	"github.com/p-n-ai/skillforge/internal/progression"
	"github.com/p-n-ai/skillforge/internal/report"
)

func TestWriteProgress(t *testing.T) {
	plans := []progression.Plan{
		{
			ID:         "plan-1",
			Topic:      "go concurrency",
			Difficulty: curriculum.Beginner,
			Modules: []curriculum.Module{
				{Number: 1, Title: "Goroutines", KeyConcepts: []string{"go keyword", "scheduler"}},
				{Number: 2, Title: "Channels"},
				{Number: 3, Title: "Select"},
			},
			Completed: []int{1},
			CreatedAt: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			ID:         "plan-2",
			Topic:      "sql basics",
			Difficulty: curriculum.Advanced,
			Modules:    []curriculum.Module{{Number: 1, Title: "SELECT"}},
			Completed:  []int{1},
			Credential: &progression.Credential{
				ID:        "SF-AAAA-BBBB-CCCC-DDDD",
				IssueDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
			CreatedAt: time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	if err := report.WriteProgress(&buf, plans); err != nil {
		t.Fatalf("WriteProgress() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(report.PlansSheet)
	if err != nil {
		t.Fatalf("GetRows(Plans) error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Plans rows = %d, want 3 (header + 2)", len(rows))
	}
	if rows[0][0] != "Plan ID" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "go concurrency" || rows[1][3] != "1" || rows[1][4] != "3" || rows[1][5] != "in_progress" {
		t.Errorf("plan-1 row = %v", rows[1])
	}
	if rows[2][5] != "certified" || rows[2][6] != "SF-AAAA-BBBB-CCCC-DDDD" || rows[2][7] != "2026-02-01" {
		t.Errorf("plan-2 row = %v", rows[2])
	}

	modules, err := f.GetRows(report.ModulesSheet)
	if err != nil {
		t.Fatalf("GetRows(Modules) error = %v", err)
	}
	if len(modules) != 5 {
		t.Fatalf("Modules rows = %d, want 5 (header + 4)", len(modules))
	}
	want := [][2]string{{"Goroutines", "passed"}, {"Channels", "available"}, {"Select", "locked"}, {"SELECT", "passed"}}
	for i, w := range want {
		row := modules[i+1]
		if row[3] != w[0] || row[5] != w[1] {
			t.Errorf("module row %d = %v, want title %q state %q", i+1, row, w[0], w[1])
		}
	}
	if modules[1][4] != "go keyword, scheduler" {
		t.Errorf("key concepts = %q", modules[1][4])
	}
}

func TestWriteProgress_NoPlans(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteProgress(&buf, nil); err != nil {
		t.Fatalf("WriteProgress() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(report.PlansSheet)
	if len(rows) != 1 {
		t.Errorf("Plans rows = %d, want header only", len(rows))
	}
}
