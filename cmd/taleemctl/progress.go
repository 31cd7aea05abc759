package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/p-n-ai/taleem/internal/analytics"
	"github.com/p-n-ai/taleem/internal/app"
	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/spf13/cobra"
)

func addClassFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "Learner user id")
	cmd.Flags().String("board", "", "Board (defaults to the learner's most recent class)")
	cmd.Flags().String("grade", "", "Grade (defaults to the learner's most recent class)")
	_ = cmd.MarkFlagRequired("user")
	cmd.MarkFlagsRequiredTogether("board", "grade")
}

// buildReport opens the app and builds the report for the flags on cmd.
func buildReport(ctx context.Context, cmd *cobra.Command) (analytics.Report, error) {
	user, _ := cmd.Flags().GetString("user")
	board, _ := cmd.Flags().GetString("board")
	grade, _ := cmd.Flags().GetString("grade")

	a, err := openApp(ctx, cmd)
	if err != nil {
		return analytics.Report{}, err
	}
	defer a.Close()

	class, err := a.ResolveClass(ctx, user, curriculum.Class{Board: board, Grade: grade})
	if errors.Is(err, app.ErrNoClass) {
		return analytics.Report{}, fmt.Errorf("%s has no quiz history; pass --board and --grade", user)
	}
	if err != nil {
		return analytics.Report{}, err
	}
	return a.Analytics.ProgressReport(ctx, user, class)
}

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show a learner's mastery and weak topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			r, err := buildReport(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			printReport(cmd.OutOrStdout(), r)
			return nil
		},
	}
	addClassFlags(cmd)
	cmd.Flags().Bool("json", false, "Print the report as JSON")
	return cmd
}

func printReport(w io.Writer, r analytics.Report) {
	fmt.Fprintf(w, "Learner:  %s\n", r.UserID)
	fmt.Fprintf(w, "Class:    %s\n", r.Class)
	fmt.Fprintf(w, "Overall:  %.1f%%\n\n", r.Overall)

	fmt.Fprintf(w, "%-24s  %8s  %s\n", "Subject", "Mastery", "Weak topics")
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, s := range r.Subjects {
		weak := strings.Join(s.WeakTopics, ", ")
		if weak == "" {
			weak = "-"
		}
		fmt.Fprintf(w, "%-24s  %7.1f%%  %s\n", s.Subject, s.Mastery, weak)
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a learner's progress as an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")

			r, err := buildReport(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := analytics.WriteWorkbook(f, r); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	addClassFlags(cmd)
	cmd.Flags().String("out", "progress.xlsx", "Output file")
	return cmd
}

// eventCounter is implemented by the SQL activity loggers.
type eventCounter interface {
	CountByType(ctx context.Context, userID string) (map[string]int, error)
}

func newActivityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Count a learner's recorded activity events by type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			counter, ok := a.Activity.(eventCounter)
			if !ok {
				return fmt.Errorf("activity log does not support counting")
			}
			counts, err := counter.CountByType(cmd.Context(), user)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(counts) == 0 {
				fmt.Fprintln(out, "No activity found.")
				return nil
			}
			types := make([]string, 0, len(counts))
			for t := range counts {
				types = append(types, t)
			}
			slices.Sort(types)
			for _, t := range types {
				fmt.Fprintf(out, "%-24s  %d\n", t, counts[t])
			}
			return nil
		},
	}
	cmd.Flags().String("user", "", "Learner user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
