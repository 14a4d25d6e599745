package scanner

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bibliothecula/internal/sqlite"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func setupStore(t *testing.T) *sqlite.Backend {
	t.Helper()
	logger, _ := test.NewNullLogger()
	b := sqlite.NewBackend(sqlite.WithLogger(logger))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func attachFile(t *testing.T, b *sqlite.Backend, docID, filename, content string) *types.BinaryMetadata {
	t.Helper()
	ctx := context.Background()
	m, _, err := b.BinaryMetadata().CreateFile(ctx, filename, []byte(content), false)
	require.NoError(t, err)
	_, _, err = b.Associations().AttachBinary(ctx, docID, m.ID, types.RoleStorage)
	require.NoError(t, err)
	return m
}

func edges(t *testing.T, b *sqlite.Backend) []types.Backlink {
	t.Helper()
	all, err := b.Backrefs().All(context.Background())
	require.NoError(t, err)
	return all
}

func TestRebuildEndToEnd(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()

	d, err := b.Documents().Create(ctx, "Manifesto", nil)
	require.NoError(t, err)
	for _, tm := range []struct{ role, data string }{{types.RoleType, "book"}, {types.RoleTag, "politics"}} {
		m, _, err := b.TextMetadata().GetOrCreate(ctx, &tm.role, tm.data)
		require.NoError(t, err)
		_, _, err = b.Associations().AttachText(ctx, d.ID, m.ID, tm.role)
		require.NoError(t, err)
	}
	blob := attachFile(t, b, d.ID, "notes.txt", "This file belongs to "+types.HyphenatedID(d.ID)+".\n")

	s := New(b, nil, 0)
	report, err := s.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Edges: 1}, report)
	if diff := cmp.Diff([]types.Backlink{{Referrer: blob.ID, Target: d.ID}}, edges(t, b)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	removed, err := b.Associations().DetachBinary(ctx, d.ID, blob.ID)
	require.NoError(t, err)
	require.True(t, removed)

	report, err = s.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Empty(t, edges(t, b))
}

func TestRebuildIgnoresUnknownIdentifiers(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()
	d, err := b.Documents().Create(ctx, "Doc", nil)
	require.NoError(t, err)
	tag, _, err := b.TextMetadata().GetOrCreate(ctx, nil, "a tag")
	require.NoError(t, err)

	blob := attachFile(t, b, d.ID, "refs.txt",
		"unknown "+types.NewID()+"\nknown "+tag.ID+"\nagain "+types.HyphenatedID(tag.ID)+"\n")

	report, err := New(b, nil, 0).Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Edges)
	assert.Equal(t, []types.Backlink{{Referrer: blob.ID, Target: tag.ID}}, edges(t, b))
}

func TestRebuildKeepsSelfEdges(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()
	d, err := b.Documents().Create(ctx, "Self", nil)
	require.NoError(t, err)

	// A blob cannot contain its own identifier before it exists, so store
	// it first and then rewrite it to mention itself.
	blob := attachFile(t, b, d.ID, "self.txt", "placeholder")
	_, err = b.BinaryMetadata().UpdateData(ctx, blob.ID, []byte("I am "+blob.ID))
	require.NoError(t, err)

	report, err := New(b, nil, 0).Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Edges: 1}, report)
	assert.Equal(t, []types.Backlink{{Referrer: blob.ID, Target: blob.ID}}, edges(t, b))
}

func TestRebuildSkipsMalformedBlobs(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()
	d, err := b.Documents().Create(ctx, "Mixed", nil)
	require.NoError(t, err)
	good := attachFile(t, b, d.ID, "good.txt", "points at "+d.ID)

	name := types.FileInfo{ContentType: "text/plain; charset=utf-8", Filename: "bad.txt", Size: 3}.String()
	bad, _, err := b.BinaryMetadata().GetOrCreate(ctx, &name, []byte{0xff, 0xfe, 0xfd}, false)
	require.NoError(t, err)
	_, _, err = b.Associations().AttachBinary(ctx, d.ID, bad.ID, types.RoleStorage)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	report, err := New(b, logger, 0).Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Skipped: 1, Edges: 1}, report)
	assert.Equal(t, []types.Backlink{{Referrer: good.ID, Target: d.ID}}, edges(t, b))

	var warned []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = append(warned, e.Data["blob"].(string))
		}
	}
	assert.Equal(t, []string{bad.ID}, warned)

	_, err = New(b, logger, 0).ScanBlob(ctx, bad.ID)
	assert.ErrorIs(t, err, types.ErrMalformedScan)
}

func TestRebuildSkipsUndecodableBlobs(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()
	d, err := b.Documents().Create(ctx, "Compressed", nil)
	require.NoError(t, err)
	good := attachFile(t, b, d.ID, "good.txt", "points at "+d.ID)

	bad, _, err := b.BinaryMetadata().CreateFile(ctx, "bad.txt", []byte("mentions "+d.ID), true)
	require.NoError(t, err)
	_, _, err = b.Associations().AttachBinary(ctx, d.ID, bad.ID, types.RoleStorage)
	require.NoError(t, err)

	// Corrupt the stored brotli stream behind the store's back.
	db, err := sql.Open("sqlite", b.Path())
	require.NoError(t, err)
	defer db.Close()
	_, err = db.ExecContext(ctx, `UPDATE BinaryMetadata SET data = ? WHERE uuid = ?`, []byte("not brotli at all"), bad.ID)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	report, err := New(b, logger, 0).Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Skipped: 1, Edges: 1}, report)
	assert.Equal(t, []types.Backlink{{Referrer: good.ID, Target: d.ID}}, edges(t, b))
	var warned []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = append(warned, e.Data["blob"].(string))
		}
	}
	assert.Equal(t, []string{bad.ID}, warned)

	_, err = New(b, logger, 0).ScanBlob(ctx, bad.ID)
	assert.ErrorIs(t, err, types.ErrMalformedScan)
}

func TestRebuildBatches(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()
	d, err := b.Documents().Create(ctx, "Target", nil)
	require.NoError(t, err)

	var want []types.Backlink
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		m := attachFile(t, b, d.ID, name, name+" cites "+d.ID)
		want = append(want, types.Backlink{Referrer: m.ID, Target: d.ID})
	}

	report, err := New(b, nil, 2).Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 5, Edges: 5}, report)
	assert.ElementsMatch(t, want, edges(t, b))

	referrers, err := b.Backrefs().Referrers(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, referrers, 5)
}

func TestScanBlob(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()
	d, err := b.Documents().Create(ctx, "Doc", nil)
	require.NoError(t, err)
	other, err := b.Documents().Create(ctx, "Other", nil)
	require.NoError(t, err)
	blob := attachFile(t, b, d.ID, "note.txt", "about "+d.ID)

	s := New(b, nil, 0)
	report, err := s.ScanBlob(ctx, blob.ID)
	require.NoError(t, err)
	assert.Equal(t, Report{Scanned: 1, Edges: 1}, report)

	_, err = b.BinaryMetadata().UpdateData(ctx, blob.ID, []byte("now about "+other.ID))
	require.NoError(t, err)
	_, err = s.ScanBlob(ctx, types.HyphenatedID(blob.ID))
	require.NoError(t, err)
	assert.Equal(t, []types.Backlink{{Referrer: blob.ID, Target: other.ID}}, edges(t, b))

	_, err = s.ScanBlob(ctx, types.NewID())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRebuildCanceled(t *testing.T) {
	b := setupStore(t)
	d, err := b.Documents().Create(context.Background(), "Doc", nil)
	require.NoError(t, err)
	attachFile(t, b, d.ID, "a.txt", "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(b, nil, 0).Rebuild(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
