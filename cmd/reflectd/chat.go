package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/reflectd-dev/reflectd/internal/engine"
	"github.com/reflectd-dev/reflectd/internal/reflection"
)

func newChatCmd() *cobra.Command {
	var userID string
	var date string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run today's reflection session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().UTC().Format(reflection.DateFormat)
			}
			return runChat(userID, date)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "local", "user id for the session")
	cmd.Flags().StringVarP(&date, "date", "d", "", "session date (YYYY-MM-DD, default today)")
	return cmd
}

func runChat(userID, date string) error {
	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() { _ = st.Close() }()

	gen := buildGenerator(cfg, logger)
	eng := engine.New(gen, st, logger,
		engine.WithMaxQuestions(cfg.MaxQuestions),
		engine.WithMaxDuration(cfg.SessionTimeout.Duration()))

	ctx := context.Background()

	rec, err := eng.Start(ctx, userID, date)
	if errors.Is(err, engine.ErrAlreadyStarted) {
		fmt.Printf("Resuming reflection for %s.\n\n", date)
		printTranscript(rec)
	} else if err != nil {
		return err
	} else {
		printMessage(rec.Messages[len(rec.Messages)-1])
	}

	if rec.State.Complete() {
		fmt.Println("\nToday's session is already complete. See you tomorrow.")
		return nil
	}

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Println("\nSession paused. Run chat again to pick it up.")
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		rec, err = eng.Submit(ctx, userID, date, input)
		if engine.IsValidationError(err) {
			continue
		}
		if err != nil {
			// The turn may still have completed in memory.
			logger.Warn("turn not persisted")
			if rec == nil {
				return err
			}
		}

		printMessage(rec.Messages[len(rec.Messages)-1])
		if rec.State.Complete() {
			return nil
		}
	}
}

func printTranscript(rec *reflection.Record) {
	for _, msg := range rec.Messages {
		printMessage(msg)
	}
}

func printMessage(msg reflection.Message) {
	label := "coach"
	if msg.Role == reflection.RoleUser {
		label = "you"
	}
	fmt.Printf("[%s] %s\n", label, msg.Content)
}
