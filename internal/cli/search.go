package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bibliothecula/internal/indexer"
	"github.com/mesh-intelligence/bibliothecula/internal/scanner"
	"github.com/mesh-intelligence/bibliothecula/internal/tasks"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles, authors and full text",
		Long: `Search the full-text index. The query uses FTS5 syntax: bare terms match
any column, "title:" and "authors:" restrict a term to one column, a
trailing "*" matches a prefix, and OR, AND and NOT combine terms.

Example:
  bibl search 'authors:stevenson'
  bibl search 'pirat* OR treasure'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			docs, err := store.Search().Query(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			views := viewDocuments(docs)
			return a.emit(cmd, views, func(w io.Writer) error {
				if len(views) == 0 {
					_, err := fmt.Fprintln(w, "No matches.")
					return err
				}
				return table(w, []string{"ID", "MODIFIED", "TITLE"}, documentRows(views))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (0 for all)")
	return cmd
}

type indexReport struct {
	Documents map[string]indexer.Result `json:"documents,omitempty" yaml:"documents,omitempty"`
	Tasks     []tasks.Status            `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

func newIndexCmd(a *app) *cobra.Command {
	var (
		force   bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "index [document-id...]",
		Short: "Extract the full text of stored files into the search index",
		Long: `Extract text from each document's stored files and attach it under the
full-text role. Without arguments every document is indexed by a pool of
background tasks. Documents that already have full text are skipped unless
--force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.indexer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var report indexReport
			if len(args) > 0 {
				report.Documents = make(map[string]indexer.Result, len(args))
				for _, id := range args {
					r, err := ix.IndexDocument(ctx, id, force)
					if err != nil {
						return fmt.Errorf("index %s: %w", id, err)
					}
					report.Documents[id] = r
				}
				return a.emit(cmd, report, func(w io.Writer) error {
					for _, id := range args {
						fmt.Fprintf(w, "%s %s\n", id, report.Documents[id])
					}
					return nil
				})
			}

			manager, err := a.tasks()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("workers") {
				workers = a.settings.GetInt(cfgKeyWorkers)
			}
			ids, err := ix.IndexAll(ctx, workers, force)
			if err != nil {
				return err
			}
			if err := manager.Wait(ctx); err != nil {
				return err
			}

			var failed []error
			for _, id := range ids {
				s, _ := manager.Status(id)
				report.Tasks = append(report.Tasks, s)
				if s.Err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", s.Name, s.Err))
				}
			}
			if err := a.emit(cmd, report, func(w io.Writer) error {
				rows := make([][]string, 0, len(report.Tasks))
				for _, s := range report.Tasks {
					rows = append(rows, []string{fmt.Sprint(s.ID), string(s.State), s.Name})
				}
				return table(w, []string{"TASK", "STATE", "NAME"}, rows)
			}); err != nil {
				return err
			}
			return errors.Join(failed...)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace existing full text")
	cmd.Flags().IntVar(&workers, "workers", defaultWorkers, "number of indexing tasks (default: workers in config.yaml)")
	return cmd
}

func newScanCmd(a *app) *cobra.Command {
	var blob string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Rebuild the backlink index",
		Long: `Scan the text files attached to documents for embedded identifiers of other
documents and metadata, and rebuild the backlink index from what is found.
With --blob only that file's outgoing links are refreshed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.scanner()
			if err != nil {
				return err
			}
			var report scanner.Report
			if blob != "" {
				report, err = s.ScanBlob(cmd.Context(), blob)
			} else {
				report, err = s.Rebuild(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.emit(cmd, report, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Scanned %d, skipped %d, %d links\n", report.Scanned, report.Skipped, report.Edges)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&blob, "blob", "", "rescan a single binary metadata value")
	return cmd
}

// backlinkView is one edge. Documents lists the documents the referrer is
// attached to.
type backlinkView struct {
	Referrer  string   `json:"referrer" yaml:"referrer"`
	Target    string   `json:"target" yaml:"target"`
	Documents []string `json:"documents,omitempty" yaml:"documents,omitempty"`
}

func newBackrefsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backrefs [id]",
		Short: "List backlinks",
		Long: `List the backlink index. With an identifier, list only the links that point
to it or start from it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var links []types.Backlink
			if len(args) == 0 {
				if links, err = store.Backrefs().All(ctx); err != nil {
					return err
				}
			} else {
				id, err := types.ParseID(args[0])
				if err != nil {
					return err
				}
				referrers, err := store.Backrefs().Referrers(ctx, id)
				if err != nil {
					return err
				}
				for _, r := range referrers {
					links = append(links, types.Backlink{Referrer: r, Target: id})
				}
				targets, err := store.Backrefs().Targets(ctx, id)
				if err != nil {
					return err
				}
				for _, t := range targets {
					links = append(links, types.Backlink{Referrer: id, Target: t})
				}
			}

			owners := make(map[string][]string)
			views := make([]backlinkView, 0, len(links))
			for _, l := range links {
				docs, ok := owners[l.Referrer]
				if !ok {
					if docs, err = store.Associations().DocumentsOf(ctx, l.Referrer); err != nil {
						return err
					}
					owners[l.Referrer] = docs
				}
				views = append(views, backlinkView{Referrer: l.Referrer, Target: l.Target, Documents: docs})
			}
			return a.emit(cmd, views, func(w io.Writer) error {
				if len(views) == 0 {
					_, err := fmt.Fprintln(w, "No backlinks.")
					return err
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.Referrer, v.Target, strings.Join(v.Documents, ",")})
				}
				return table(w, []string{"REFERRER", "TARGET", "DOCUMENTS"}, rows)
			})
		},
	}
}
