package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestIndexFile_InsertsChunks(t *testing.T) {
	p := newPipeline(t, 10, 2)
	ctx := context.Background()

	var text []string
	for i := 0; i < 25; i++ {
		text = append(text, fmt.Sprintf("w%d", i))
	}
	path := writeFile(t, t.TempDir(), "notes.txt", strings.Join(text, "\n"))

	var progressCalls int
	res, err := p.indexer.IndexFile(ctx, path, func(done, total int) { progressCalls++ })
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", res.DocName)
	assert.Equal(t, domain.DocTypeTXT, res.DocType)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 1, progressCalls)

	count, err := p.collection.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	state, err := p.collection.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLoaded, state)

	hits, err := p.retriever.SearchChunks(ctx, "w0 w1 w2", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "notes.txt", hits[0].DocName)
	assert.EqualValues(t, 0, hits[0].ChunkID)
	assert.True(t, strings.HasPrefix(hits[0].Text, "w0 w1"))
}

func TestIndexFile_EmptyFileIsSkipped(t *testing.T) {
	p := newPipeline(t, 10, 2)
	path := writeFile(t, t.TempDir(), "empty.txt", "  \n\t ")

	res, err := p.indexer.IndexFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)
	assert.Zero(t, res.Inserted)

	state, err := p.collection.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateAbsent, state)
}

func TestIndexFile_Errors(t *testing.T) {
	p := newPipeline(t, 10, 2)
	dir := t.TempDir()

	_, err := p.indexer.IndexFile(context.Background(), writeFile(t, dir, "readme.md", "hello"), nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = p.indexer.IndexFile(context.Background(), dir+"/missing.txt", nil)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestIndexFile_ReindexAppends(t *testing.T) {
	p := newPipeline(t, 10, 2)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "a.txt", "one two three")

	_, err := p.indexer.IndexFile(ctx, path, nil)
	require.NoError(t, err)
	_, err = p.indexer.IndexFile(ctx, path, nil)
	require.NoError(t, err)

	count, err := p.collection.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestIndexPath_Directory(t *testing.T) {
	p := newPipeline(t, 10, 2)
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "a.txt", words("alpha", 5))
	writeFile(t, dir, "sub/b.txt", words("beta", 15))
	writeFile(t, dir, "blank.txt", "")
	writeFile(t, dir, "ignored.md", "not indexed")

	var last [2]int
	res, err := p.indexer.IndexPath(ctx, dir, func(done, total int) { last = [2]int{done, total} })
	require.NoError(t, err)

	assert.Equal(t, 2, res.FilesIndexed)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Equal(t, 3, res.ChunksCreated)
	assert.Empty(t, res.Errors)
	assert.Equal(t, [2]int{3, 3}, last)
}

func TestIndexPath_SingleFile(t *testing.T) {
	p := newPipeline(t, 10, 2)
	path := writeFile(t, t.TempDir(), "a.txt", words("alpha", 5))

	res, err := p.indexer.IndexPath(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
	assert.Equal(t, 1, res.ChunksCreated)
}

func TestIndexPath_Missing(t *testing.T) {
	p := newPipeline(t, 10, 2)
	_, err := p.indexer.IndexPath(context.Background(), "/definitely/not/here", nil)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestIndexPath_CollectsFileErrors(t *testing.T) {
	p := newPipeline(t, 10, 2)
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", words("alpha", 5))
	writeFile(t, dir, "broken.pdf", "this is not a pdf")

	res, err := p.indexer.IndexPath(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "broken.pdf")
}

func TestIndexPath_Cancelled(t *testing.T) {
	p := newPipeline(t, 10, 2)
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", words("alpha", 5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.indexer.IndexPath(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
