package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

type attachResult struct {
	DocumentID string   `json:"document_id" yaml:"document_id"`
	Role       string   `json:"role" yaml:"role"`
	Metadata   []string `json:"metadata" yaml:"metadata"`
}

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage document tags",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <document-id> <tag>...",
		Short: "Attach one or more tags to a document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.attachValues(cmd, args[0], types.RoleTag, types.RoleTag, args[1:])
		},
	})
	return cmd
}

func newMetaCmd(a *app) *cobra.Command {
	var name string
	add := &cobra.Command{
		Use:   "add <document-id> <role> <value>",
		Short: "Attach a text value to a document under a role",
		Long: `Attach a text value under a role. The value is stored once and shared by
every document it is attached to. Its name defaults to the role.

Example:
  bibl meta add 3f0c... author "Ursula K. Le Guin"
  bibl meta add 3f0c... doi 10.1000/182`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := name
			if !cmd.Flags().Changed("name") {
				n = args[1]
			}
			return a.attachValues(cmd, args[0], args[1], n, args[2:])
		},
	}
	add.Flags().StringVar(&name, "name", "", "metadata name (default: the role; empty for none)")

	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Manage text metadata",
	}
	cmd.AddCommand(add)
	return cmd
}

func (a *app) attachValues(cmd *cobra.Command, documentID, role, name string, values []string) error {
	store, err := a.store()
	if err != nil {
		return err
	}
	id, err := types.ParseID(documentID)
	if err != nil {
		return err
	}
	res := attachResult{DocumentID: id, Role: role}
	for _, v := range values {
		m, err := attachText(cmd.Context(), store, id, role, name, v)
		if err != nil {
			return err
		}
		res.Metadata = append(res.Metadata, m.ID)
	}
	return a.emit(cmd, res, func(w io.Writer) error {
		for i, m := range res.Metadata {
			fmt.Fprintf(w, "%s %s %q\n", m, role, values[i])
		}
		return nil
	})
}

func newDetachCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detach <document-id> <metadata-id>",
		Short: "Remove a metadata value from a document",
		Long: `Remove the attachment between a document and a text or binary metadata
value. The value itself is kept.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			removed, err := store.Associations().DetachText(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if !removed {
				if removed, err = store.Associations().DetachBinary(ctx, args[0], args[1]); err != nil {
					return err
				}
			}
			if !removed {
				return fmt.Errorf("%s is not attached to %s: %w", args[1], args[0], types.ErrNotFound)
			}
			return a.emit(cmd, map[string]bool{"detached": true}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, "Detached")
				return err
			})
		},
	}
}
