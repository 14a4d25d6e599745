package sqlite

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func TestTextMetadataGetOrCreateDeduplicates(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	first, created, err := b.TextMetadata().GetOrCreate(ctx, ptr(types.RoleTag), "fiction")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := b.TextMetadata().GetOrCreate(ctx, ptr(types.RoleTag), "fiction")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(1), undoCount(t, b), "a repeated pair writes nothing")

	// Unnamed and empty-named values are distinct from each other.
	unnamed, created, err := b.TextMetadata().GetOrCreate(ctx, nil, "fiction")
	require.NoError(t, err)
	assert.True(t, created)
	empty, created, err := b.TextMetadata().GetOrCreate(ctx, ptr(""), "fiction")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, unnamed.ID, empty.ID)

	unnamedAgain, created, err := b.TextMetadata().GetOrCreate(ctx, nil, "fiction")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, unnamed.ID, unnamedAgain.ID)
	assert.Nil(t, unnamedAgain.Name)
}

func TestTextMetadataFindAndList(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	mustText(t, b, types.RoleTag, "zoology")
	mustText(t, b, types.RoleTag, "art")
	mustText(t, b, types.RoleAuthor, "Ursula K. Le Guin")

	tags, err := b.TextMetadata().ListByName(ctx, ptr(types.RoleTag))
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "art", tags[0].Data)
	assert.Equal(t, "zoology", tags[1].Data)

	m, err := b.TextMetadata().Find(ctx, ptr(types.RoleAuthor), "Ursula K. Le Guin")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAuthor, *m.Name)

	_, err = b.TextMetadata().Find(ctx, ptr(types.RoleAuthor), "nobody")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTextMetadataUpdateData(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	m := mustText(t, b, types.RoleTag, "fiction")
	other := mustText(t, b, types.RoleTag, "poetry")

	got, err := b.TextMetadata().UpdateData(ctx, m.ID, "fantasy")
	require.NoError(t, err)
	assert.Equal(t, "fantasy", got.Data)
	assert.True(t, got.LastModified.After(m.LastModified))

	_, err = b.TextMetadata().UpdateData(ctx, m.ID, other.Data)
	assert.ErrorIs(t, err, types.ErrIntegrityViolation)

	_, err = b.TextMetadata().UpdateData(ctx, types.NewID(), "x")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTextMetadataDeleteDetaches(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	d := mustDocument(t, b, "Tagged")
	m := mustText(t, b, types.RoleTag, "fiction")
	_, _, err := b.Associations().AttachText(ctx, d.ID, m.ID, types.RoleTag)
	require.NoError(t, err)

	require.NoError(t, b.TextMetadata().Delete(ctx, m.ID))
	atts, err := b.Associations().TextFor(ctx, d.ID, "")
	require.NoError(t, err)
	assert.Empty(t, atts)
	assert.ErrorIs(t, b.TextMetadata().Delete(ctx, m.ID), types.ErrNotFound)
}

func TestBinaryMetadataCreateFile(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	data := []byte("plain text notes\n")

	m, created, err := b.BinaryMetadata().CreateFile(ctx, "/home/reader/notes.txt", data, false)
	require.NoError(t, err)
	assert.True(t, created)

	fi, ok := m.FileInfo()
	require.True(t, ok)
	assert.Equal(t, "notes.txt", fi.Filename)
	assert.Equal(t, int64(len(data)), fi.Size)
	assert.True(t, fi.IsText(), fi.ContentType)

	again, created, err := b.BinaryMetadata().CreateFile(ctx, "elsewhere/notes.txt", data, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, m.ID, again.ID)
}

func TestBinaryMetadataCompressed(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	data := bytes.Repeat([]byte("all work and no play "), 200)

	m, _, err := b.BinaryMetadata().GetOrCreate(ctx, ptr("dull"), data, true)
	require.NoError(t, err)
	assert.True(t, m.Compressed)
	assert.Less(t, m.Size(), len(data))

	content, err := b.BinaryMetadata().Content(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	again, created, err := b.BinaryMetadata().GetOrCreate(ctx, ptr("dull"), data, true)
	require.NoError(t, err)
	assert.False(t, created, "matched on the stored encoding")
	assert.Equal(t, m.ID, again.ID)

	plain, created, err := b.BinaryMetadata().GetOrCreate(ctx, ptr("dull"), data, false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, m.ID, plain.ID)
}

func TestBinaryMetadataRejectsEmptyPayload(t *testing.T) {
	b := setupBackend(t)
	_, _, err := b.BinaryMetadata().GetOrCreate(context.Background(), ptr("empty"), nil, false)
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestBinaryMetadataUpdateData(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	m := mustFile(t, b, "todo.txt", []byte("one"))

	got, err := b.BinaryMetadata().UpdateData(ctx, m.ID, []byte("one two three"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one two three"), got.Data)
	fi, ok := got.FileInfo()
	require.True(t, ok)
	assert.Equal(t, int64(13), fi.Size)
	assert.Equal(t, "todo.txt", fi.Filename)

	c, _, err := b.BinaryMetadata().GetOrCreate(ctx, ptr("packed"), []byte("abc abc abc"), true)
	require.NoError(t, err)
	got, err = b.BinaryMetadata().UpdateData(ctx, c.ID, []byte("xyz xyz xyz"))
	require.NoError(t, err)
	assert.True(t, got.Compressed)
	content, err := Decode(got)
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz xyz xyz"), content)
}

func TestBinaryMetadataTextFileIDs(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	d := mustDocument(t, b, "Files")
	text := mustFile(t, b, "a.txt", []byte("hello"))
	mustFile(t, b, "b.txt", []byte("loose, never attached"))
	png := mustFile(t, b, "c.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	for _, id := range []string{text.ID, png.ID} {
		_, _, err := b.Associations().AttachBinary(ctx, d.ID, id, types.RoleStorage)
		require.NoError(t, err)
	}

	ids, err := b.BinaryMetadata().TextFileIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{text.ID}, ids)
}
