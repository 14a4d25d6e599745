package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bibliothecula/internal/sqlite"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func newDocCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Create, list, show, rename and delete documents",
	}
	cmd.AddCommand(
		newDocCreateCmd(a),
		newDocListCmd(a),
		newDocShowCmd(a),
		newDocRenameCmd(a),
		newDocDeleteCmd(a),
	)
	return cmd
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// attachText attaches value under role, reusing an existing TextMetadata
// named after the role.
func attachText(ctx context.Context, store *sqlite.Backend, documentID, role, name, value string) (*types.TextMetadata, error) {
	m, _, err := store.TextMetadata().GetOrCreate(ctx, optional(name), value)
	if err != nil {
		return nil, err
	}
	if _, _, err := store.Associations().AttachText(ctx, documentID, m.ID, role); err != nil {
		return nil, err
	}
	return m, nil
}

func newDocCreateCmd(a *app) *cobra.Command {
	var (
		suffix  string
		docType string
		tags    []string
		authors []string
	)
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a document",
		Long: `Create a document and print its identifier. Tags, authors and a type given
as flags are attached as text metadata.

Example:
  bibl doc create "Treasure Island" --author "Robert Louis Stevenson" --tag novel --type book`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d, err := store.Documents().Create(ctx, args[0], optional(suffix))
			if err != nil {
				return err
			}
			var attach [][2]string
			for _, au := range authors {
				attach = append(attach, [2]string{types.RoleAuthor, au})
			}
			for _, t := range tags {
				attach = append(attach, [2]string{types.RoleTag, t})
			}
			if docType != "" {
				attach = append(attach, [2]string{types.RoleType, docType})
			}
			for _, kv := range attach {
				if _, err := attachText(ctx, store, d.ID, kv[0], kv[0], kv[1]); err != nil {
					return fmt.Errorf("attach %s %q: %w", kv[0], kv[1], err)
				}
			}
			if len(attach) > 0 {
				if d, err = store.Documents().Get(ctx, d.ID); err != nil {
					return err
				}
			}

			v := viewDocument(d)
			return a.emit(cmd, v, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, v.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&suffix, "suffix", "", "title suffix that tells apart documents with the same title")
	cmd.Flags().StringVar(&docType, "type", "", "document type, such as book or article")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().StringArrayVar(&authors, "author", nil, "author to attach (repeatable)")
	return cmd
}

func newDocListCmd(a *app) *cobra.Command {
	var filter types.DocumentFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, most recently modified first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			docs, err := store.Documents().List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			views := viewDocuments(docs)
			return a.emit(cmd, views, func(w io.Writer) error {
				if len(views) == 0 {
					_, err := fmt.Fprintln(w, "No documents.")
					return err
				}
				return table(w, []string{"ID", "MODIFIED", "TITLE"}, documentRows(views))
			})
		},
	}
	cmd.Flags().StringVar(&filter.Title, "title", "", "case-insensitive title substring")
	cmd.Flags().StringVar(&filter.Type, "type", "", "document type")
	cmd.Flags().StringArrayVar(&filter.Tags, "tag", nil, "required tag (repeatable)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of documents (0 for all)")
	return cmd
}

// documentDetail is a document with everything attached to it and the
// documents and blobs that embed its identifier.
type documentDetail struct {
	documentView `yaml:",inline"`
	Attachments  []attachmentView `json:"attachments" yaml:"attachments"`
	Referrers    []string         `json:"referrers,omitempty" yaml:"referrers,omitempty"`
}

func newDocShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Display a document with its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d, err := store.Documents().Get(ctx, args[0])
			if err != nil {
				return err
			}
			detail := documentDetail{documentView: viewDocument(d), Attachments: []attachmentView{}}

			texts, err := store.Associations().TextFor(ctx, d.ID, "")
			if err != nil {
				return err
			}
			for _, t := range texts {
				detail.Attachments = append(detail.Attachments, viewText(t))
			}
			bins, err := store.Associations().BinaryFor(ctx, d.ID, "")
			if err != nil {
				return err
			}
			for _, b := range bins {
				detail.Attachments = append(detail.Attachments, viewBinary(b))
			}
			if detail.Referrers, err = store.Backrefs().Referrers(ctx, d.ID); err != nil {
				return err
			}

			return a.emit(cmd, detail, func(w io.Writer) error {
				fmt.Fprintf(w, "ID:       %s\n", detail.ID)
				fmt.Fprintf(w, "Title:    %s\n", d.DisplayTitle())
				fmt.Fprintf(w, "Created:  %s\n", detail.Created.Format(timeLayout))
				fmt.Fprintf(w, "Modified: %s\n", detail.LastModified.Format(timeLayout))
				if len(detail.Attachments) > 0 {
					fmt.Fprintln(w)
					rows := make([][]string, 0, len(detail.Attachments))
					for _, at := range detail.Attachments {
						rows = append(rows, []string{at.Role, at.MetadataID, at.summary()})
					}
					if err := table(w, []string{"ROLE", "METADATA", "VALUE"}, rows); err != nil {
						return err
					}
				}
				if len(detail.Referrers) > 0 {
					fmt.Fprintln(w)
					fmt.Fprintln(w, "Referenced by:")
					for _, r := range detail.Referrers {
						fmt.Fprintf(w, "  %s\n", r)
					}
				}
				return nil
			})
		},
	}
}

func newDocRenameCmd(a *app) *cobra.Command {
	var suffix string
	cmd := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change a document's title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			d, err := store.Documents().UpdateTitle(cmd.Context(), args[0], args[1], optional(suffix))
			if err != nil {
				return err
			}
			v := viewDocument(d)
			return a.emit(cmd, v, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Renamed %s to %q\n", v.ID, d.DisplayTitle())
				return err
			})
		},
	}
	cmd.Flags().StringVar(&suffix, "suffix", "", "new title suffix (empty clears it)")
	return cmd
}

func newDocDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its attachments",
		Long: `Delete a document. Its attachments are removed with it; the metadata values
themselves are kept because other documents may share them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			id, err := types.ParseID(args[0])
			if err != nil {
				return err
			}
			if err := store.Documents().Delete(cmd.Context(), id); err != nil {
				return err
			}
			return a.emit(cmd, map[string]string{"deleted": id}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted %s\n", id)
				return err
			})
		},
	}
}
