package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bibliothecula/internal/scanner"
	"github.com/mesh-intelligence/bibliothecula/internal/sqlite"
	"github.com/mesh-intelligence/bibliothecula/internal/tasks"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// harness runs command lines against a library in a temporary directory.
type harness struct {
	t   *testing.T
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, dir: t.TempDir()}
}

func (h *harness) configDir() string { return filepath.Join(h.dir, "config") }
func (h *harness) dataDir() string   { return filepath.Join(h.dir, "data") }

func (h *harness) run(args ...string) (string, string, int) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config-dir", h.configDir(), "--data-dir", h.dataDir()}, args...)
	code := Run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// ok runs a command that must succeed and returns its standard output.
func (h *harness) ok(args ...string) string {
	h.t.Helper()
	out, errOut, code := h.run(args...)
	require.Equal(h.t, exitSuccess, code, "bibl %s: %s", strings.Join(args, " "), errOut)
	return out
}

// json runs a command in JSON output mode and decodes its output into v.
func (h *harness) json(v any, args ...string) {
	h.t.Helper()
	out := h.ok(append([]string{"-o", "json"}, args...)...)
	require.NoError(h.t, json.Unmarshal([]byte(out), v), out)
}

func (h *harness) createDocument(title string, extra ...string) string {
	h.t.Helper()
	return strings.TrimSpace(h.ok(append([]string{"doc", "create", title}, extra...)...))
}

func (h *harness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *harness) addFile(docID, path string, extra ...string) fileAddResult {
	h.t.Helper()
	var res fileAddResult
	h.json(&res, append([]string{"file", "add", docID, path}, extra...)...)
	return res
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out := h.ok("version")
	assert.Equal(t, "bibl v"+Version+"\nmodule: "+modulePath+"\n", out)
	assert.NoDirExists(t, h.configDir())
}

func TestInit(t *testing.T) {
	h := newHarness(t)

	var first initResult
	h.json(&first, "init")
	assert.True(t, first.ConfigWritten)
	assert.Equal(t, filepath.Join(h.configDir(), "config.yaml"), first.ConfigFile)
	assert.Equal(t, filepath.Join(h.dataDir(), types.DefaultDBName), first.Database)
	assert.FileExists(t, first.Database)

	raw, err := os.ReadFile(first.ConfigFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "backend: sqlite")
	assert.Contains(t, string(raw), "data_dir: "+h.dataDir())

	var second initResult
	h.json(&second, "init")
	assert.False(t, second.ConfigWritten)
}

func TestDocumentLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.createDocument("Treasure Island", "--author", "Robert Louis Stevenson", "--tag", "novel", "--type", "book")
	require.Len(t, id, 32)

	var detail documentDetail
	h.json(&detail, "doc", "show", types.HyphenatedID(id))
	assert.Equal(t, id, detail.ID)
	assert.Equal(t, "Treasure Island", detail.Title)
	roles := map[string]string{}
	for _, at := range detail.Attachments {
		roles[at.Role] = at.Value
	}
	assert.Equal(t, map[string]string{
		types.RoleAuthor: "Robert Louis Stevenson",
		types.RoleTag:    "novel",
		types.RoleType:   "book",
	}, roles)

	other := h.createDocument("Kidnapped")
	h.ok("tag", "add", other, "novel", "scotland")

	var docs []documentView
	h.json(&docs, "doc", "list", "--tag", "scotland")
	require.Len(t, docs, 1)
	assert.Equal(t, other, docs[0].ID)

	h.json(&docs, "doc", "list", "--type", "book")
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)

	var renamed documentView
	h.json(&renamed, "doc", "rename", id, "Treasure Island", "--suffix", "(1883)")
	assert.Equal(t, "(1883)", renamed.TitleSuffix)

	h.ok("doc", "delete", id)
	_, errOut, code := h.run("doc", "show", id)
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, types.ErrNotFound.Error())

	h.json(&docs, "doc", "list")
	require.Len(t, docs, 1)
	assert.Equal(t, other, docs[0].ID)
}

func TestDocumentCreateRejectsEmptyTitle(t *testing.T) {
	h := newHarness(t)
	_, errOut, code := h.run("doc", "create", "")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, types.ErrInvalidTitle.Error())
}

func TestMetaAddAndDetach(t *testing.T) {
	h := newHarness(t)
	id := h.createDocument("The Dispossessed")

	var res attachResult
	h.json(&res, "meta", "add", id, types.RoleDOI, "10.1000/182")
	require.Len(t, res.Metadata, 1)
	assert.Equal(t, types.RoleDOI, res.Role)

	h.ok("detach", id, res.Metadata[0])

	var detail documentDetail
	h.json(&detail, "doc", "show", id)
	assert.Empty(t, detail.Attachments)

	_, _, code := h.run("detach", id, res.Metadata[0])
	assert.Equal(t, exitUserError, code)
}

func TestFileAddIndexAndSearch(t *testing.T) {
	h := newHarness(t)
	id := h.createDocument("Notes")
	path := h.writeFile("notes.txt", "The parrot said pieces of eight.\n")

	res := h.addFile(id, path, "--index")
	assert.True(t, res.Created)
	assert.Equal(t, types.RoleStorage, res.Role)
	assert.Equal(t, "notes.txt", res.File.Filename)
	assert.Equal(t, "indexed", res.Index)

	var hits []documentView
	h.json(&hits, "search", "parrot")
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)

	h.json(&hits, "search", "cutlass")
	assert.Empty(t, hits)

	again := h.addFile(id, path)
	assert.False(t, again.Created)
	assert.Equal(t, res.MetadataID, again.MetadataID)
}

func TestFileExtract(t *testing.T) {
	h := newHarness(t)
	id := h.createDocument("Archive")
	content := strings.Repeat("compressible line\n", 200)
	res := h.addFile(id, h.writeFile("archive.txt", content), "--compress")

	dest := filepath.Join(h.dir, "out", "copy.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	h.ok("file", "extract", res.MetadataID, dest)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	_, errOut, code := h.run("file", "extract", res.MetadataID, dest)
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, "--force")
	h.ok("file", "extract", res.MetadataID, dest, "--force")

	assert.Equal(t, content, h.ok("file", "extract", res.MetadataID, "-"))
}

func TestFileAddMissingDocument(t *testing.T) {
	h := newHarness(t)
	path := h.writeFile("orphan.txt", "nobody owns this")
	_, errOut, code := h.run("file", "add", types.NewID(), path)
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, types.ErrNotFound.Error())
}

func TestIndexAll(t *testing.T) {
	h := newHarness(t)
	for _, title := range []string{"One", "Two", "Three"} {
		id := h.createDocument(title)
		h.addFile(id, h.writeFile(strings.ToLower(title)+".txt", "chapter "+title))
	}

	var report indexReport
	h.json(&report, "index", "--workers", "2")
	require.Len(t, report.Tasks, 2)
	for _, s := range report.Tasks {
		assert.Equal(t, tasks.Done, s.State, s.Name)
	}

	var stats sqlite.Stats
	h.json(&stats, "stats")
	assert.Equal(t, int64(3), stats.IndexedDocuments)
	assert.Equal(t, int64(3), stats.Documents)
	assert.Equal(t, int64(6), stats.BinaryAttachments)

	var single indexReport
	id := h.createDocument("Four")
	h.json(&single, "index", id)
	assert.Equal(t, map[string]string{id: "no-source"}, toStrings(single.Documents))
}

func toStrings[V ~string](m map[string]V) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = string(v)
	}
	return out
}

func TestScanAndBackrefs(t *testing.T) {
	h := newHarness(t)
	target := h.createDocument("Manifesto")
	referrer := h.createDocument("Commentary")
	blob := h.addFile(referrer, h.writeFile("commentary.txt", "See "+types.HyphenatedID(target)+" for the source.\n"))

	var report scanner.Report
	h.json(&report, "scan")
	assert.Equal(t, scanner.Report{Scanned: 1, Edges: 1}, report)

	var links []backlinkView
	h.json(&links, "backrefs", target)
	assert.Equal(t, []backlinkView{{Referrer: blob.MetadataID, Target: target, Documents: []string{referrer}}}, links)

	var detail documentDetail
	h.json(&detail, "doc", "show", target)
	assert.Equal(t, []string{blob.MetadataID}, detail.Referrers)

	h.json(&report, "scan", "--blob", blob.MetadataID)
	assert.Equal(t, scanner.Report{Scanned: 1, Edges: 1}, report)
}

func TestUndo(t *testing.T) {
	h := newHarness(t)
	id := h.createDocument("Ephemeral")

	var entries []undoView
	h.json(&entries, "undo", "list")
	require.Len(t, entries, 1)
	assert.Equal(t, string(types.UndoInsert), entries[0].Action)
	assert.Equal(t, types.TableDocuments, entries[0].Table)

	h.json(&entries, "undo", "apply")
	require.Len(t, entries, 1)

	_, _, code := h.run("doc", "show", id)
	assert.Equal(t, exitUserError, code)

	_, errOut, code := h.run("undo", "apply")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, types.ErrNothingToUndo.Error())

	_, _, code = h.run("undo", "apply", "zero")
	assert.Equal(t, exitUserError, code)

	var pruned map[string]int64
	h.json(&pruned, "undo", "prune", "--bytes", "1")
	assert.Equal(t, map[string]int64{"pruned": 0}, pruned)
}

func TestSchemaExport(t *testing.T) {
	h := newHarness(t)

	sql := h.ok("schema", "export")
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "Documents"`)
	assert.NotContains(t, sql, `CREATE TABLE IF NOT EXISTS "undolog"`)

	md := h.ok("schema", "export", "--format", "md")
	assert.True(t, strings.HasPrefix(md, "# "), md)

	out := filepath.Join(h.dir, "schema.sql")
	h.ok("schema", "export", "--out", out)
	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, sql, string(written))

	_, _, code := h.run("schema", "export", "--out", out)
	assert.Equal(t, exitUserError, code)

	_, _, code = h.run("schema", "export", "--format", "pdf")
	assert.Equal(t, exitUserError, code)
}

func TestSchemaOrder(t *testing.T) {
	h := newHarness(t)

	var order []orderedStatement
	h.json(&order, "schema", "order")
	require.NotEmpty(t, order)

	seen := map[string]bool{}
	for _, s := range order {
		for _, dep := range s.DependsOn {
			if _, inOrder := indexOf(order, dep); inOrder {
				assert.True(t, seen[dep], "%s applied before its dependency %s", s.ID, dep)
			}
		}
		seen[s.ID] = true
	}

	_, errOut, code := h.run("schema", "order", "nonsense")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, `unknown group "nonsense"`)
}

func indexOf(order []orderedStatement, id string) (int, bool) {
	for i, s := range order {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

func TestMaintainOnce(t *testing.T) {
	h := newHarness(t)
	target := h.createDocument("Target")
	h.addFile(target, h.writeFile("self.txt", "I am "+target))

	var report maintenanceReport
	h.json(&report, "maintain", "--once")
	assert.Equal(t, scanner.Report{Scanned: 1, Edges: 1}, report.Scan)
}

func TestOutputFormats(t *testing.T) {
	h := newHarness(t)
	h.createDocument("Formats")

	out := h.ok("-o", "yaml", "stats")
	assert.Contains(t, out, "documents: 1\n")

	out = h.ok("stats")
	assert.Regexp(t, `documents\s+1`, out)

	_, errOut, code := h.run("-o", "xml", "stats")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, `unknown output format "xml"`)
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	_, _, code := h.run("shelve")
	assert.Equal(t, exitUserError, code)
}
