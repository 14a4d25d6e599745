package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func newUndoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Inspect and apply the undo log",
		Long: `Every change to documents, metadata and attachments is recorded in the undo
log as the statement that reverses it. Undoing applies the newest entries
first and removes them from the log.`,
	}
	cmd.AddCommand(newUndoListCmd(a), newUndoApplyCmd(a), newUndoPruneCmd(a))
	return cmd
}

type undoView struct {
	ID        int64     `json:"id" yaml:"id"`
	Action    string    `json:"action" yaml:"action"`
	Table     string    `json:"table" yaml:"table"`
	Statement string    `json:"statement" yaml:"statement"`
	Params    []any     `json:"params" yaml:"params"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

func viewUndo(entries []*types.UndoEntry) []undoView {
	out := make([]undoView, 0, len(entries))
	for _, e := range entries {
		params := make([]any, len(e.Params))
		for i, p := range e.Params {
			if b, ok := p.([]byte); ok {
				p = fmt.Sprintf("<%d bytes>", len(b))
			}
			params[i] = p
		}
		out = append(out, undoView{
			ID:        e.ID,
			Action:    string(e.Action),
			Table:     e.Table,
			Statement: e.Statement,
			Params:    params,
			Timestamp: e.Timestamp,
		})
	}
	return out
}

func undoTable(w io.Writer, views []undoView) error {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10), v.Timestamp.Format(timeLayout), v.Action, v.Table,
		})
	}
	return table(w, []string{"ID", "TIME", "REVERSES", "TABLE"}, rows)
}

func newUndoListCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List undo-log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			entries, err := store.UndoLog().List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			views := viewUndo(entries)
			return a.emit(cmd, views, func(w io.Writer) error {
				if len(views) == 0 {
					_, err := fmt.Fprintln(w, "Undo log is empty.")
					return err
				}
				return undoTable(w, views)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries (0 for all)")
	return cmd
}

func newUndoApplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply [n]",
		Short: "Undo the newest n changes (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 1 {
					return fmt.Errorf("%w: n must be a positive integer, got %q", types.ErrInvalidData, args[0])
				}
				n = v
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			undone, err := store.UndoLog().Undo(cmd.Context(), n)
			if err != nil {
				return err
			}
			views := viewUndo(undone)
			return a.emit(cmd, views, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Undid %d entries\n", len(views))
				return err
			})
		},
	}
}

func newUndoPruneCmd(a *app) *cobra.Command {
	var maxBytes int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop undo-log entries larger than a size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			n, err := store.UndoLog().Prune(cmd.Context(), maxBytes)
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]int64{"pruned": n}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Pruned %d entries\n", n)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&maxBytes, "bytes", 0, "size above which entries are dropped (0 uses undo_prune_bytes)")
	return cmd
}
