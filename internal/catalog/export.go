package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/natefinch/atomic"
)

// Format selects how an export is rendered.
type Format int

const (
	FormatSQL Format = iota
	FormatMarkdown
)

// ParseFormat maps "sql" and "md" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "sql", "":
		return FormatSQL, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return 0, fmt.Errorf("unknown export format %q", s)
}

const summaryWidth = 72

// Export is a resolved set of statements split into the schema-defining
// main section and an appendix of everything else.
type Export struct {
	Title    string
	Caption  string
	Main     []*Statement
	Appendix []*Statement
}

// NewExport resolves stmts and splits the order into main and appendix.
func NewExport(title string, stmts []*Statement) (Export, error) {
	order, err := Resolve(stmts)
	if err != nil {
		return Export{}, err
	}
	e := Export{Title: title}
	for _, s := range order {
		if s.Defines() {
			e.Main = append(e.Main, s)
		} else {
			e.Appendix = append(e.Appendix, s)
		}
	}
	return e, nil
}

// Exports returns the two standard exports of c: the main schema and the
// extended schema holding every other group.
func Exports(c *Catalog) (main, extended Export, err error) {
	main, err = NewExport("The core bibliothecula schema.", c.Statements(MainGroups...))
	if err != nil {
		return Export{}, Export{}, err
	}

	var rest []string
	for _, g := range c.Groups() {
		if !contains(MainGroups, g) {
			rest = append(rest, g)
		}
	}
	extended, err = NewExport("Extended bibliothecula schema.", c.Statements(rest...))
	if err != nil {
		return Export{}, Export{}, err
	}
	extended.Caption = "Optional but useful triggers, indexes, and queries."
	return main, extended, nil
}

// Render writes e to w in format f.
func Render(w io.Writer, e Export, f Format) error {
	var out string
	switch f {
	case FormatSQL:
		out = renderSQL(e)
	case FormatMarkdown:
		out = renderMarkdown(e)
	default:
		return fmt.Errorf("unknown export format %d", f)
	}
	_, err := io.WriteString(w, out)
	return err
}

// ExportFile renders e into path atomically. An existing file is replaced
// only when overwrite is set.
func ExportFile(path string, e Export, f Format, overwrite bool) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return fmt.Errorf("%s is a directory", path)
	case err == nil && !overwrite:
		return fmt.Errorf("%s: %w", path, os.ErrExist)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return err
	}

	var buf bytes.Buffer
	if err := Render(&buf, e, f); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func renderSQL(e Export) string {
	var body strings.Builder
	toc := [][2]string{{"id", "summary"}}
	for _, s := range e.Main {
		if s.Doc() != "" {
			body.WriteString(comment(s.ID(), indentLines(wrap(s.Doc(), 70))))
		} else {
			body.WriteString(comment("", s.ID()))
		}
		body.WriteString(terminated(s.Body()))
		body.WriteString("\n\n")
		toc = append(toc, [2]string{s.ID(), summary(s)})
	}
	contents := table(toc)

	if len(e.Appendix) > 0 {
		body.WriteString(comment("", "Appendix: useful statements"))
		body.WriteString("\n\n")
		atoc := [][2]string{{"id", "summary"}}
		for _, s := range e.Appendix {
			var text strings.Builder
			text.WriteString("\n")
			if s.Doc() != "" {
				text.WriteString(indentLines(wrap(s.Doc(), 70)))
				text.WriteString("\n")
			}
			text.WriteString("\n")
			text.WriteString(terminated(s.Body()))
			body.WriteString(comment(s.ID(), text.String()))
			body.WriteString("\n\n")
			atoc = append(atoc, [2]string{s.ID(), summary(s)})
		}
		contents += "\n\nAppendix: useful statements\n\n" + table(atoc)
	}

	return strings.TrimSpace(comment("Contents\n", contents)+"\n"+body.String()) + "\n"
}

func renderMarkdown(e Export) string {
	var b strings.Builder
	b.WriteString(markdownTable(1, e.Title, e.Caption, e.Main))
	if len(e.Appendix) > 0 {
		b.WriteString("\n\n")
		b.WriteString(markdownTable(2, "Appendix.", "Useful queries cookbook.", e.Appendix))
	}
	b.WriteString("\n")
	return b.String()
}

func markdownTable(level int, title, caption string, stmts []*Statement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n<table>\n", strings.Repeat("#", level), title)
	if caption != "" {
		fmt.Fprintf(&b, "<caption>%s</caption>\n", caption)
	}
	b.WriteString("<thead>\n<tr>\n<th>statement</th>\n<th>kinds</th>\n</tr>\n</thead>\n<tbody>")
	for _, s := range stmts {
		var kinds []string
		for _, k := range s.Kind().Keywords() {
			kinds = append(kinds, "<kbd>"+k+"</kbd>")
		}
		fmt.Fprintf(&b, "\n<tr><td class=\"doc\">\n\n#### `%s`\n\n%s\n\n```sql\n%s\n```\n</td>\n<td>%s</td>\n</tr>",
			s.ID(), s.Doc(), s.Body(), strings.Join(kinds, ", "))
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func comment(header, text string) string {
	if header != "" {
		return "/* " + header + "\n" + text + " */\n"
	}
	return "/* " + text + " */\n"
}

func terminated(body string) string {
	body = strings.TrimRight(body, " \t\n")
	if !strings.HasSuffix(body, ";") {
		body += ";"
	}
	return body
}

// summary is the doc text, or the body when there is none, shortened to
// summaryWidth on a word boundary.
func summary(s *Statement) string {
	text := s.Doc()
	if text == "" {
		text = s.Body()
	}
	return shorten(text, summaryWidth)
}

func shorten(text string, width int) string {
	words := strings.Fields(text)
	joined := strings.Join(words, " ")
	if len(joined) <= width {
		return joined
	}
	const placeholder = "..."
	var b strings.Builder
	for _, w := range words {
		extra := len(w)
		if b.Len() > 0 {
			extra++
		}
		if b.Len()+extra+len(placeholder) > width {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() == 0 {
		return placeholder
	}
	return b.String() + placeholder
}

func wrap(text string, width int) []string {
	var lines []string
	var line strings.Builder
	for _, w := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(w) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(w)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

func indentLines(lines []string) string {
	for i, l := range lines {
		lines[i] = " " + l
	}
	return strings.Join(lines, "\n")
}

// table renders rows as a two-column plain-text table with a header rule.
func table(rows [][2]string) string {
	var widths [2]int
	for _, r := range rows {
		for c := range r {
			widths[c] = max(widths[c], len(r[c]))
		}
	}
	line := func(r [2]string) string {
		return strings.TrimRight(fmt.Sprintf("%-*s | %-*s", widths[0], r[0], widths[1], r[1]), " ")
	}
	var b strings.Builder
	b.WriteString(line(rows[0]))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", widths[0]) + "-+-" + strings.Repeat("-", widths[1]))
	b.WriteString("\n")
	for _, r := range rows[1:] {
		b.WriteString(line(r))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
