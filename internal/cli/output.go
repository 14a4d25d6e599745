package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

const timeLayout = "2006-01-02 15:04:05"

func validFormat(f string) error {
	switch f {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (valid: text, json, yaml)", f)
}

// emit writes v to the command's output in the selected format. text
// renders the human form; it is only called in text mode.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	switch a.flags.output {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return text(w)
}

// table writes rows as aligned columns.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if header != nil {
		fmt.Fprintln(tw, strings.Join(header, "\t"))
	}
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

type documentView struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	TitleSuffix  string    `json:"title_suffix,omitempty" yaml:"title_suffix,omitempty"`
	Created      time.Time `json:"created" yaml:"created"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
}

func viewDocument(d *types.Document) documentView {
	v := documentView{ID: d.ID, Title: d.Title, Created: d.Created, LastModified: d.LastModified}
	if d.TitleSuffix != nil {
		v.TitleSuffix = *d.TitleSuffix
	}
	return v
}

func viewDocuments(docs []*types.Document) []documentView {
	out := make([]documentView, 0, len(docs))
	for _, d := range docs {
		out = append(out, viewDocument(d))
	}
	return out
}

func documentRows(docs []documentView) [][]string {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		title := d.Title
		if d.TitleSuffix != "" {
			title += " " + d.TitleSuffix
		}
		rows = append(rows, []string{d.ID, d.LastModified.Format(timeLayout), title})
	}
	return rows
}

// attachmentView is one metadata value attached to a document.
type attachmentView struct {
	Kind       string          `json:"kind" yaml:"kind"`
	Role       string          `json:"role" yaml:"role"`
	MetadataID string          `json:"metadata_id" yaml:"metadata_id"`
	Name       string          `json:"name,omitempty" yaml:"name,omitempty"`
	Value      string          `json:"value,omitempty" yaml:"value,omitempty"`
	File       *types.FileInfo `json:"file,omitempty" yaml:"file,omitempty"`
	Size       int             `json:"size,omitempty" yaml:"size,omitempty"`
	Compressed bool            `json:"compressed,omitempty" yaml:"compressed,omitempty"`
}

func viewText(a *types.TextAttachment) attachmentView {
	v := attachmentView{Kind: "text", Role: a.Role, MetadataID: a.MetadataID, Value: a.Metadata.Data}
	if a.Metadata.Name != nil {
		v.Name = *a.Metadata.Name
	}
	return v
}

func viewBinary(a *types.BinaryAttachment) attachmentView {
	v := attachmentView{
		Kind:       "binary",
		Role:       a.Role,
		MetadataID: a.MetadataID,
		Size:       a.Metadata.Size(),
		Compressed: a.Metadata.Compressed,
	}
	if fi, ok := a.Metadata.FileInfo(); ok {
		v.File = &fi
	} else if a.Metadata.Name != nil {
		v.Name = *a.Metadata.Name
	}
	return v
}

func (v attachmentView) summary() string {
	switch {
	case v.File != nil:
		return fmt.Sprintf("%s (%s, %d bytes)", v.File.Filename, v.File.ContentType, v.File.Size)
	case v.Kind == "binary":
		return fmt.Sprintf("%d bytes", v.Size)
	}
	return v.Value
}
