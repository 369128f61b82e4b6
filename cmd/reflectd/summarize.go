package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reflectd-dev/reflectd/internal/reflection"
	"github.com/reflectd-dev/reflectd/internal/summary"
)

func newSummarizeCmd() *cobra.Command {
	var userID string
	var week string

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate weekly insight summaries",
		Long: `Generate weekly insight summaries from stored reflection sessions.
Without --user, all known users are summarized.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			weekStart := reflection.WeekStart(time.Now().UTC().AddDate(0, 0, -7))
			if week != "" {
				parsed, err := time.ParseInLocation(reflection.DateFormat, week, time.UTC)
				if err != nil {
					return fmt.Errorf("--week must be YYYY-MM-DD: %w", err)
				}
				weekStart = reflection.WeekStart(parsed)
			}
			return runSummarize(userID, weekStart)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "summarize a single user")
	cmd.Flags().StringVarP(&week, "week", "w", "", "any date inside the target week (default: last week)")
	return cmd
}

func runSummarize(userID string, weekStart time.Time) error {
	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() { _ = st.Close() }()

	gen := buildGenerator(cfg, logger)
	summarizer := summary.New(gen, st, logger,
		summary.WithConcurrency(cfg.Summary.Concurrency))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if userID != "" {
		sum, err := summarizer.WeekFor(ctx, userID, weekStart)
		if errors.Is(err, summary.ErrNoSessions) {
			fmt.Printf("No sessions for %s in the week of %s.\n",
				userID, weekStart.Format(reflection.DateFormat))
			return nil
		}
		if err != nil {
			return err
		}
		printSummary(sum)
		return nil
	}

	n, err := summarizer.RunAll(ctx, weekStart)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d summaries for the week of %s.\n",
		n, weekStart.Format(reflection.DateFormat))
	return nil
}

func printSummary(sum *reflection.WeeklySummary) {
	fmt.Printf("Week of %s (%d sessions)\n", sum.WeekStart, sum.SessionCount)
	printList("Wins", sum.Wins)
	printList("Challenges", sum.Challenges)
	printList("Patterns", sum.Patterns)
	if sum.Advice != "" {
		fmt.Printf("\nAdvice: %s\n", sum.Advice)
	}
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
