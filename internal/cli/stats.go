package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count the rows of every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			s, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd, s, func(w io.Writer) error {
				return table(w, nil, [][]string{
					{"documents", fmt.Sprint(s.Documents)},
					{"text metadata", fmt.Sprint(s.TextMetadata)},
					{"binary metadata", fmt.Sprint(s.BinaryMetadata)},
					{"text attachments", fmt.Sprint(s.TextAttachments)},
					{"binary attachments", fmt.Sprint(s.BinaryAttachments)},
					{"binary bytes", fmt.Sprint(s.BinaryBytes)},
					{"indexed documents", fmt.Sprint(s.IndexedDocuments)},
					{"undo entries", fmt.Sprint(s.UndoEntries)},
					{"backrefs", fmt.Sprint(s.Backrefs)},
				})
			})
		},
	}
}
