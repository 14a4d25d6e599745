package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func TestBackrefsReplace(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	a, c, d := types.NewID(), types.NewID(), types.NewID()

	require.NoError(t, b.Backrefs().ReplaceFor(ctx, a, []string{c, d, c}))
	targets, err := b.Backrefs().Targets(ctx, a)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{c, d}, targets)

	require.NoError(t, b.Backrefs().ReplaceBatch(ctx, map[string][]string{a: {d}, c: {d}}))
	referrers, err := b.Backrefs().Referrers(ctx, types.HyphenatedID(d))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, c}, referrers)
	targets, err = b.Backrefs().Targets(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{d}, targets)

	all, err := b.Backrefs().All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, b.Backrefs().Clear(ctx))
	n, err := b.Backrefs().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, undoCount(t, b), "the index is not undoable")
}

func TestBackrefsKnownIDs(t *testing.T) {
	b := setupBackend(t)
	d := mustDocument(t, b, "Known")
	m := mustText(t, b, types.RoleTag, "x")
	f := mustFile(t, b, "f.txt", []byte("f"))

	ids, err := b.Backrefs().KnownIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ids.Cardinality())
	assert.True(t, ids.Contains(d.ID, m.ID, f.ID))
}

func TestStats(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	indexed(t, b, "Counted", "Counter", "payload")
	mustText(t, b, types.RoleTag, "loose")

	s, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{
		Documents:         1,
		TextMetadata:      2,
		BinaryMetadata:    1,
		TextAttachments:   1,
		BinaryAttachments: 1,
		BinaryBytes:       int64(len("payload")),
		IndexedDocuments:  1,
		UndoEntries:       s.UndoEntries,
	}, s)
	assert.Positive(t, s.UndoEntries)
}
