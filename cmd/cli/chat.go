package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/core"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "start an interactive conversation",
		RunE:  runChat,
	}

	cmd.Flags().Bool("show-thinking", false, "print transient reasoning content")

	return cmd
}

// consoleSink streams output to the terminal. Deltas arrive only after they
// have been journaled.
type consoleSink struct {
	showThinking bool
}

func (s *consoleSink) Delta(text string) {
	fmt.Print(text)
}

func (s *consoleSink) Thinking(text string) {
	if s.showThinking {
		fmt.Fprint(os.Stderr, text)
	}
}

func (s *consoleSink) Final(core.Message) {
	fmt.Println()
}

func (s *consoleSink) Notice(text string) {
	fmt.Fprintln(os.Stderr, "* "+text)
}

func runChat(cmd *cobra.Command, _ []string) error {
	showThinking, _ := cmd.Flags().GetBool("show-thinking")

	rt, err := openRuntime(cmd, &consoleSink{showThinking: showThinking})
	if err != nil {
		return err
	}
	defer rt.close()

	// Fold in any stream the last run left behind before taking input.
	if err := rt.engine.Recover(); err != nil {
		return fmt.Errorf("crash recovery: %w", err)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			rt.engine.Cancel()
		}
	}()

	fmt.Printf("session %s (%s)\n", rt.session, rt.engine.Usage().FormatCompact())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/usage":
			fmt.Println(rt.engine.Usage().FormatCompact())
			continue
		}

		if err := rt.engine.Send(cmd.Context(), line); err != nil {
			reportTurnError(err)
		}
	}
}

func reportTurnError(err error) {
	var budgetErr *core.BudgetError
	switch {
	case errors.As(err, &budgetErr):
		fmt.Fprintf(os.Stderr, "context cannot fit: %v\n", err)
	case errors.Is(err, core.ErrSummarization):
		fmt.Fprintf(os.Stderr, "summarization failed, try again: %v\n", err)
	case errors.Is(err, core.ErrTransport):
		fmt.Fprintf(os.Stderr, "stream failed: %v\n", err)
	default:
		fmt.Fprintln(os.Stderr, err)
	}
}
