package analytics

import (
	"context"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/taleem/internal/curriculum"
)

// SubjectProgress is one row of a progress report.
type SubjectProgress struct {
	Subject    string   `json:"subject"`
	Mastery    float64  `json:"mastery"`
	WeakTopics []string `json:"weak_topics"`
}

// Report is a learner's dashboard for one class.
type Report struct {
	UserID      string             `json:"user_id"`
	Class       curriculum.Class   `json:"class"`
	Classes     []curriculum.Class `json:"classes"`
	Overall     float64            `json:"overall"`
	Subjects    []SubjectProgress  `json:"subjects"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// ProgressReport builds the dashboard for class. Overall preparation is the
// mean subject mastery. Subjects are listed weakest first so the learner
// sees where to focus.
func (s *Service) ProgressReport(ctx context.Context, userID string, class curriculum.Class) (Report, error) {
	classes, err := s.store.Classes(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("progress report: %w", err)
	}
	mastery, err := s.ComputeSubjectMastery(ctx, userID, class)
	if err != nil {
		return Report{}, fmt.Errorf("progress report: %w", err)
	}

	r := Report{
		UserID:      userID,
		Class:       class,
		Classes:     classes,
		Subjects:    make([]SubjectProgress, 0, len(mastery)),
		GeneratedAt: s.now(),
	}
	var sum float64
	for _, sm := range mastery {
		path := curriculum.SubjectPath{Board: class.Board, Grade: class.Grade, Subject: sm.Subject}
		weak, err := s.WeakestTopics(ctx, userID, path, 0)
		if err != nil {
			return Report{}, fmt.Errorf("progress report: %w", err)
		}
		r.Subjects = append(r.Subjects, SubjectProgress{Subject: sm.Subject, Mastery: sm.Percent, WeakTopics: weak})
		sum += sm.Percent
	}
	if len(mastery) > 0 {
		r.Overall = sum / float64(len(mastery))
	}

	slices.SortStableFunc(r.Subjects, func(a, b SubjectProgress) int {
		switch {
		case a.Mastery < b.Mastery:
			return -1
		case a.Mastery > b.Mastery:
			return 1
		}
		return strings.Compare(a.Subject, b.Subject)
	})
	return r, nil
}

const (
	summarySheet  = "Summary"
	subjectsSheet = "Subjects"
)

// WriteWorkbook writes r as an .xlsx workbook with a Summary sheet and a
// per-subject sheet.
func WriteWorkbook(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}
	if _, err := f.NewSheet(subjectsSheet); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("workbook: %w", err)
	}

	summary := [][]any{
		{"Learner", r.UserID},
		{"Class", r.Class.String()},
		{"Overall preparation (%)", round1(r.Overall)},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
	}
	for i, row := range summary {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}

	if err := setRow(f, subjectsSheet, 1, []any{"Subject", "Mastery (%)", "Weak topics"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(subjectsSheet, "A1", "C1", bold); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}
	for i, sp := range r.Subjects {
		row := []any{sp.Subject, round1(sp.Mastery), strings.Join(sp.WeakTopics, ", ")}
		if err := setRow(f, subjectsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(subjectsSheet, "A", "C", 28); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("workbook: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
