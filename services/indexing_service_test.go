package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github/itish2003/ragqa/config"
	"github/itish2003/ragqa/conversation"
	"github/itish2003/ragqa/models"
	"github/itish2003/ragqa/registry"
	"github/itish2003/ragqa/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexFixture struct {
	svc      *IndexingService
	store    vectorstore.Store
	registry *registry.Registry
	files    *FileActions
	sessions *conversation.Store
}

func newIndexFixture(t *testing.T, opts IndexingOptions, relevance RelevanceClassifier) *indexFixture {
	t.Helper()
	dir := t.TempDir()
	files, err := NewFileActions(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	reg, err := registry.Open(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	store, err := vectorstore.NewMemory("", vectorstore.Names{Docs: "docs", Web: "web"}, nil)
	require.NoError(t, err)
	sessions := conversation.NewStore(5, 1000)
	scraper := NewWebScraper(nil, config.WebConfig{UserAgent: "ragqa-test", Timeout: 5 * time.Second, MaxBytes: 200000}, nil)

	svc := NewIndexingService(&letterEmbedder{}, store, reg, files, scraper, relevance, sessions, nil, opts, nil)
	return &indexFixture{svc: svc, store: store, registry: reg, files: files, sessions: sessions}
}

func (f *indexFixture) count(t *testing.T, coll vectorstore.Collection) int {
	t.Helper()
	n, err := f.store.Count(context.Background(), coll)
	require.NoError(t, err)
	return n
}

func upload(name, content string) Upload {
	return Upload{Filename: name, Content: strings.NewReader(content)}
}

const heartText = "The heart pumps blood through the body. Exercise strengthens the heart muscle."

func TestUploadFiles_IndexesThenSkips(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{ChunkSize: 40, ChunkOverlap: 0}, nil)
	ctx := context.Background()

	res, err := f.svc.UploadFiles(ctx, []Upload{upload("heart.txt", heartText)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, StatusIndexed, res[0].Status)
	assert.Greater(t, res[0].Chunks, 1)
	assert.Equal(t, res[0].Chunks, f.count(t, vectorstore.Docs))

	info, err := f.registry.Get(models.SourceDoc, "heart.txt")
	require.NoError(t, err)
	assert.Equal(t, res[0].Chunks, info.Chunks)
	assert.NotEmpty(t, info.Hash)
	assert.Equal(t, int64(len(heartText)), info.Size)

	res, err = f.svc.UploadFiles(ctx, []Upload{upload("heart.txt", heartText)})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res[0].Status)
	assert.Equal(t, info.Chunks, f.count(t, vectorstore.Docs))
}

func TestUploadFiles_CountsStoredFilesAgainstLimit(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{MaxFiles: 2}, nil)
	ctx := context.Background()

	_, err := f.svc.UploadFiles(ctx, []Upload{upload("a.txt", heartText)})
	require.NoError(t, err)

	_, err = f.svc.UploadFiles(ctx, []Upload{upload("b.txt", heartText), upload("c.md", heartText)})
	assert.ErrorIs(t, err, ErrTooManyFiles)
	assert.False(t, f.files.Exists("b.txt"))

	// Re-sending a stored file does not count as new.
	res, err := f.svc.UploadFiles(ctx, []Upload{upload("a.txt", heartText), upload("b.txt", heartText)})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res[0].Status)
	assert.Equal(t, StatusIndexed, res[1].Status)
}

func TestUploadFiles_Rejections(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		f := newIndexFixture(t, IndexingOptions{}, nil)
		res, err := f.svc.UploadFiles(context.Background(), []Upload{upload("tool.exe", "MZ")})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, res[0].Status)
		assert.False(t, f.files.Exists("tool.exe"))
	})
	t.Run("no text", func(t *testing.T) {
		f := newIndexFixture(t, IndexingOptions{}, nil)
		res, err := f.svc.UploadFiles(context.Background(), []Upload{upload("empty.txt", "  \n ")})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, res[0].Status)
		assert.False(t, f.files.Exists("empty.txt"), "rejected uploads are removed")
	})
	t.Run("not relevant", func(t *testing.T) {
		f := newIndexFixture(t, IndexingOptions{RelevanceGate: true, Domain: "healthcare"}, staticRelevance(false))
		res, err := f.svc.UploadFiles(context.Background(), []Upload{upload("recipes.txt", "Whisk the eggs.")})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, res[0].Status)
		assert.Contains(t, res[0].Error, ErrNotRelevant.Error())
		assert.False(t, f.files.Exists("recipes.txt"))
		assert.Zero(t, f.count(t, vectorstore.Docs))
		_, err = f.registry.Get(models.SourceDoc, "recipes.txt")
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})
	t.Run("gate off ignores classifier", func(t *testing.T) {
		f := newIndexFixture(t, IndexingOptions{}, staticRelevance(false))
		res, err := f.svc.UploadFiles(context.Background(), []Upload{upload("recipes.txt", "Whisk the eggs.")})
		require.NoError(t, err)
		assert.Equal(t, StatusIndexed, res[0].Status)
	})
}

func TestIngestFile_ChunkMetadata(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{ChunkSize: 40, ChunkOverlap: 0}, nil)
	path := filepath.Join(f.files.UploadDir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte(heartText), 0o644))

	info, err := f.svc.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "notes.md", info.Name)
	assert.Equal(t, path, info.Source)

	emb, _ := (&letterEmbedder{}).Embed(context.Background(), "heart")
	hits, err := f.store.Search(context.Background(), vectorstore.Docs, emb, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	indexes := map[int]bool{}
	for _, h := range hits {
		assert.Equal(t, path, h.Source)
		assert.Equal(t, "notes.md", h.Filename)
		assert.Equal(t, models.SourceDoc, h.SourceType)
		assert.Zero(t, h.Page, "text files have no pages")
		indexes[h.ChunkIndex] = true
	}
	assert.Len(t, indexes, len(hits), "chunk indexes are unique")

	// Re-ingesting replaces rather than duplicates.
	before := f.count(t, vectorstore.Docs)
	_, err = f.svc.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, before, f.count(t, vectorstore.Docs))
}

func TestDeleteFile(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{}, nil)
	ctx := context.Background()
	_, err := f.svc.UploadFiles(ctx, []Upload{upload("heart.txt", heartText)})
	require.NoError(t, err)
	f.sessions.Get("s").Add("q", "ctx", []string{"heart.txt"})

	require.NoError(t, f.svc.DeleteFile(ctx, "heart.txt"))

	assert.Zero(t, f.count(t, vectorstore.Docs))
	assert.False(t, f.files.Exists("heart.txt"))
	_, err = f.registry.Get(models.SourceDoc, "heart.txt")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Zero(t, f.sessions.Get("s").Len(), "deleting a file clears conversations")

	assert.ErrorIs(t, f.svc.DeleteFile(ctx, "heart.txt"), registry.ErrNotFound)
}

func TestListFiles(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{}, nil)
	ctx := context.Background()

	empty, err := f.svc.ListFiles(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty.Files)
	assert.Zero(t, empty.TotalChunks)

	_, err = f.svc.UploadFiles(ctx, []Upload{upload("a.txt", heartText), upload("b.txt", "Blood pressure basics.")})
	require.NoError(t, err)

	list, err := f.svc.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, list.Files, 2)
	assert.Equal(t, list.Files[0].Chunks+list.Files[1].Chunks, list.TotalChunks)
}

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestURL_AndDeleteByVariant(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{}, nil)
	ctx := context.Background()
	srv := htmlServer(t, "<html><body><h1>Heart</h1><p>Heart health matters.</p></body></html>")

	n, err := f.svc.IngestURL(ctx, srv.URL+"/heart")
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, n, f.count(t, vectorstore.Web))
	assert.Zero(t, f.count(t, vectorstore.Docs))

	web, err := f.svc.ListWebSources()
	require.NoError(t, err)
	require.Len(t, web.Sources, 1)
	assert.Equal(t, srv.URL+"/heart", web.Sources[0].Source)
	assert.Equal(t, models.SourceWeb, web.Sources[0].SourceType)

	require.NoError(t, f.svc.DeleteWebSource(ctx, srv.URL+"/heart/"))
	assert.Zero(t, f.count(t, vectorstore.Web))
	web, err = f.svc.ListWebSources()
	require.NoError(t, err)
	assert.Empty(t, web.Sources)

	assert.ErrorIs(t, f.svc.DeleteWebSource(ctx, srv.URL+"/heart"), registry.ErrNotFound)
}

func TestIngestURL_Invalid(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{}, nil)
	for _, u := range []string{"ftp://example.org/file", "example.org", "https://"} {
		_, err := f.svc.IngestURL(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
	}
}

func TestClearAll(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{}, nil)
	ctx := context.Background()
	_, err := f.svc.UploadFiles(ctx, []Upload{upload("a.txt", heartText)})
	require.NoError(t, err)
	srv := htmlServer(t, "<p>Heart health matters.</p>")
	_, err = f.svc.IngestURL(ctx, srv.URL)
	require.NoError(t, err)
	f.sessions.Get("s").Add("q", "ctx", nil)

	require.NoError(t, f.svc.ClearAll(ctx))

	assert.Zero(t, f.count(t, vectorstore.Docs))
	assert.Zero(t, f.count(t, vectorstore.Web))
	assert.False(t, f.files.Exists("a.txt"))
	for _, st := range []models.SourceType{models.SourceDoc, models.SourceWeb} {
		n, err := f.registry.Count(st)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Zero(t, f.sessions.Get("s").Len())
}

func TestScanAndIndexDirectory(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{}, nil)
	ctx := context.Background()
	dir := f.files.UploadDir
	write := func(name, text string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
	write("a.txt", heartText)
	write("b.md", "Blood pressure basics.")
	write("ignored.bin", "binary")

	f.svc.ScanAndIndexDirectory(ctx, dir)
	n, err := f.registry.Count(models.SourceDoc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	a, err := f.registry.Get(models.SourceDoc, "a.txt")
	require.NoError(t, err)

	// Unchanged content is not re-indexed.
	f.svc.ScanAndIndexDirectory(ctx, dir)
	again, err := f.registry.Get(models.SourceDoc, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, a.UploadedAt, again.UploadedAt)

	require.NoError(t, os.Remove(filepath.Join(dir, "b.md")))
	f.svc.ScanAndIndexDirectory(ctx, dir)
	n, err = f.registry.Count(models.SourceDoc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, a.Chunks, f.count(t, vectorstore.Docs))
}

func TestSyncFile_ReindexesChangedContent(t *testing.T) {
	f := newIndexFixture(t, IndexingOptions{}, nil)
	path := filepath.Join(f.files.UploadDir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte(heartText), 0o644))

	assert.True(t, f.svc.syncFile(context.Background(), path))
	assert.False(t, f.svc.syncFile(context.Background(), path), "same hash is skipped")

	require.NoError(t, os.WriteFile(path, []byte("Completely different content now."), 0o644))
	assert.True(t, f.svc.syncFile(context.Background(), path))
}
