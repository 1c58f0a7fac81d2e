package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.llib.dev/frameless/pkg/errorkit"

	"go.llib.dev/sharedrt"
	"go.llib.dev/sharedrt/internal/demo/editor"
	"go.llib.dev/sharedrt/pkg/chain"
)

const ErrInvalidOperation errorkit.Error = "invalid edit operation"

type editReport struct {
	Path    string         `json:"path"`
	Text    string         `json:"text"`
	Denied  []string       `json:"denied,omitempty"`
	History []historyEntry `json:"history"`
}

type historyEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	State      string    `json:"state"`
	ExecutedAt time.Time `json:"executed_at"`
}

func editCmd(a *app) *cobra.Command {
	var (
		path     string
		initial  string
		readOnly []string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "edit [operation...]",
		Short: "Apply undoable edits to a document",
		Long: `Operations are applied in order:
  insert:POS:TEXT   insert TEXT at character position POS
  delete:POS:N      delete N characters from position POS
  undo              revert the last edit
  redo              apply the last reverted edit again`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt := sharedrt.New[string, *editor.Document](a.config)
			rt.Logger = a.logger
			rt.Metrics = a.metrics
			rt.Tracer = a.tracer
			rt.Store.Logger = a.logger
			rt.Store.Metrics = a.metrics
			rt.Guards = chain.New[sharedrt.Request[string], sharedrt.Verdict](editor.ReadOnly(readOnly...))
			rt.Guards.Name = "guards"
			rt.Guards.Metrics = a.metrics
			rt.Guards.Tracer = a.tracer
			defer func() { _ = rt.Close(ctx) }()

			e := editor.New(rt, func(context.Context, string) (string, error) { return initial, nil })
			defer e.Close()

			doc, err := e.Open(ctx, path)
			if err != nil {
				return err
			}

			report := editReport{Path: path}
			for _, op := range args {
				err := apply(ctx, e, doc, op)
				if errors.Is(err, sharedrt.ErrDenied) {
					report.Denied = append(report.Denied, op)
					continue
				}
				if err != nil {
					return err
				}
			}

			report.Text, err = doc.Text(ctx)
			if err != nil {
				return err
			}
			for _, entry := range e.History() {
				report.History = append(report.History, historyEntry{
					ID:         entry.Command.ID.String(),
					Name:       entry.Command.Name,
					State:      entry.Command.State().String(),
					ExecutedAt: entry.ExecutedAt,
				})
			}
			return printReport(cmd, report, asJSON)
		},
	}
	cmd.Flags().StringVar(&path, "path", "/tmp/untitled.txt", "document path")
	cmd.Flags().StringVar(&initial, "text", "", "initial document content")
	cmd.Flags().StringSliceVar(&readOnly, "read-only", nil, "path prefixes that can't be edited")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func apply(ctx context.Context, e *editor.Editor, doc *editor.Document, op string) error {
	parts := strings.SplitN(op, ":", 3)
	switch parts[0] {
	case "undo":
		_, err := e.Undo(ctx)
		return err
	case "redo":
		_, err := e.Redo(ctx)
		return err
	case "insert", "delete":
		if len(parts) != 3 {
			return ErrInvalidOperation.F("%q", op)
		}
		pos, err := strconv.Atoi(parts[1])
		if err != nil {
			return ErrInvalidOperation.F("position of %q", op)
		}
		if parts[0] == "insert" {
			return e.Insert(ctx, doc, pos, parts[2])
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return ErrInvalidOperation.F("length of %q", op)
		}
		return e.Delete(ctx, doc, pos, n)
	default:
		return ErrInvalidOperation.F("%q", op)
	}
}

func printReport(cmd *cobra.Command, report editReport, asJSON bool) error {
	w := cmd.OutOrStdout()
	if asJSON {
		return json.NewEncoder(w).Encode(report)
	}
	fmt.Fprintln(w, report.Text)
	for _, op := range report.Denied {
		fmt.Fprintf(w, "denied: %s\n", op)
	}
	for i, h := range report.History {
		fmt.Fprintf(w, "%d. %s\n", i+1, h.Name)
	}
	return nil
}
