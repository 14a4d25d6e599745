package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bibliothecula/internal/indexer"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func newFileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Store and retrieve files",
	}
	cmd.AddCommand(newFileAddCmd(a), newFileExtractCmd(a))
	return cmd
}

type fileAddResult struct {
	DocumentID string         `json:"document_id" yaml:"document_id"`
	MetadataID string         `json:"metadata_id" yaml:"metadata_id"`
	Role       string         `json:"role" yaml:"role"`
	File       types.FileInfo `json:"file" yaml:"file"`
	Created    bool           `json:"created" yaml:"created"`
	Index      string         `json:"index,omitempty" yaml:"index,omitempty"`
}

func newFileAddCmd(a *app) *cobra.Command {
	var (
		role     string
		compress bool
		index    bool
	)
	cmd := &cobra.Command{
		Use:   "add <document-id> <path>",
		Short: "Store a file and attach it to a document",
		Long: `Store the contents of a file as binary metadata and attach it to a document.
The content type is detected from the bytes. An identical file that is
already stored is reused. With --index the document's full text is
extracted right away.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d, err := store.Documents().Get(ctx, args[0])
			if err != nil {
				return err
			}
			m, created, err := store.BinaryMetadata().CreateFile(ctx, args[1], data, compress)
			if err != nil {
				return err
			}
			if _, _, err := store.Associations().AttachBinary(ctx, d.ID, m.ID, role); err != nil {
				return err
			}

			res := fileAddResult{DocumentID: d.ID, MetadataID: m.ID, Role: role, Created: created}
			res.File, _ = m.FileInfo()
			if index {
				ix, err := a.indexer()
				if err != nil {
					return err
				}
				r, err := ix.IndexDocument(ctx, d.ID, true)
				if err != nil {
					return err
				}
				res.Index = string(r)
			}

			return a.emit(cmd, res, func(w io.Writer) error {
				fmt.Fprintf(w, "%s %s (%s, %d bytes)\n", res.MetadataID, res.File.Filename, res.File.ContentType, res.File.Size)
				if res.Index == string(indexer.NoSource) {
					fmt.Fprintln(w, "No extractable text.")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", types.RoleStorage, "attachment role")
	cmd.Flags().BoolVar(&compress, "compress", false, "store the file brotli-compressed")
	cmd.Flags().BoolVar(&index, "index", false, "extract and index the document's full text")
	return cmd
}

func newFileExtractCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "extract <metadata-id> [path]",
		Short: "Write a stored file to disk",
		Long: `Write the decoded contents of a binary metadata value to path, or to the
stored file name in the current directory. Use "-" to write to standard
output. An existing file is only replaced with --force.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			m, err := store.BinaryMetadata().Get(ctx, args[0])
			if err != nil {
				return err
			}
			data, err := store.BinaryMetadata().Content(ctx, m.ID)
			if err != nil {
				return err
			}

			dest := m.ID
			if fi, ok := m.FileInfo(); ok && fi.Filename != "" {
				dest = fi.Filename
			}
			if len(args) == 2 {
				dest = args[1]
			}
			if dest == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			if _, err := os.Stat(dest); err == nil && !force {
				return fmt.Errorf("%s: %w (use --force to replace it)", dest, fs.ErrExist)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := atomic.WriteFile(dest, bytes.NewReader(data)); err != nil {
				return fmt.Errorf("writing %s: %w", dest, err)
			}
			return a.emit(cmd, map[string]any{"path": dest, "size": len(data)}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Wrote %d bytes to %s\n", len(data), dest)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing file")
	return cmd
}
