package main

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/spf13/cobra"
)

func newCurriculumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curriculum",
		Short: "Inspect the loaded curriculum",
	}
	cmd.AddCommand(newBoardsCmd(), newTreeCmd(), newCountCmd())
	return cmd
}

func loadCatalog(cmd *cobra.Command) (*curriculum.Catalog, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return curriculum.Load(cfg.CurriculumPath)
}

func newBoardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List boards and their grades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			boards := c.Boards()
			if len(boards) == 0 {
				fmt.Fprintln(out, "No boards found.")
				return nil
			}
			for _, b := range boards {
				fmt.Fprintf(out, "%s: %s\n", b, strings.Join(c.Grades(b), ", "))
			}
			return nil
		},
	}
}

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the curriculum tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			only, _ := cmd.Flags().GetString("board")

			c, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range c.Boards() {
				if only != "" && b != only {
					continue
				}
				fmt.Fprintln(out, b)
				for _, g := range c.Grades(b) {
					fmt.Fprintf(out, "  %s\n", g)
					for _, s := range c.Subjects(b, g) {
						fmt.Fprintf(out, "    %s (%d topics)\n", s, c.CountTopics(b, g, s))
						for _, ch := range c.Chapters(b, g, s) {
							fmt.Fprintf(out, "      %s\n", ch)
							for _, t := range c.Topics(b, g, s, ch) {
								fmt.Fprintf(out, "        - %s\n", t)
							}
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().String("board", "", "Only print this board")
	return cmd
}

func newCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the topics in one subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board, _ := cmd.Flags().GetString("board")
			grade, _ := cmd.Flags().GetString("grade")
			subject, _ := cmd.Flags().GetString("subject")

			c, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.CountTopics(board, grade, subject))
			return nil
		},
	}
	cmd.Flags().String("board", "", "Board name")
	cmd.Flags().String("grade", "", "Grade name")
	cmd.Flags().String("subject", "", "Subject name")
	_ = cmd.MarkFlagRequired("board")
	_ = cmd.MarkFlagRequired("grade")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
