package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github/itish2003/ragqa/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "data", "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegistry_PutGetDelete(t *testing.T) {
	r := openTemp(t)
	info := models.FileInfo{
		Name:       "cardio.pdf",
		Source:     "/uploads/cardio.pdf",
		SourceType: models.SourceDoc,
		Size:       2048,
		Hash:       "abc",
		Chunks:     7,
		UploadedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, r.Put(info))

	got, err := r.Get(models.SourceDoc, "cardio.pdf")
	require.NoError(t, err)
	assert.Equal(t, info, got)

	_, err = r.Get(models.SourceWeb, "cardio.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Delete(models.SourceDoc, "cardio.pdf"))
	assert.ErrorIs(t, r.Delete(models.SourceDoc, "cardio.pdf"), ErrNotFound)
}

func TestRegistry_ListAndCount(t *testing.T) {
	r := openTemp(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Put(models.FileInfo{Name: "b.pdf", Source: "b.pdf", SourceType: models.SourceDoc, UploadedAt: base.Add(time.Hour)}))
	require.NoError(t, r.Put(models.FileInfo{Name: "a.pdf", Source: "a.pdf", SourceType: models.SourceDoc, UploadedAt: base}))
	require.NoError(t, r.Put(models.FileInfo{Name: "https://x.org", Source: "https://x.org", SourceType: models.SourceWeb, UploadedAt: base}))

	docs, err := r.List(models.SourceDoc)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Name)
	assert.Equal(t, "b.pdf", docs[1].Name)

	n, err := r.Count(models.SourceWeb)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	web, err := r.Get(models.SourceWeb, "https://x.org")
	require.NoError(t, err)
	assert.Equal(t, models.SourceWeb, web.SourceType)
}

func TestRegistry_Clear(t *testing.T) {
	r := openTemp(t)
	require.NoError(t, r.Put(models.FileInfo{Name: "a.pdf", SourceType: models.SourceDoc}))
	require.NoError(t, r.Put(models.FileInfo{Source: "https://x.org", SourceType: models.SourceWeb}))

	require.NoError(t, r.Clear())

	for _, st := range []models.SourceType{models.SourceDoc, models.SourceWeb} {
		n, err := r.Count(st)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestRegistry_RejectsNamelessEntry(t *testing.T) {
	r := openTemp(t)
	assert.Error(t, r.Put(models.FileInfo{SourceType: models.SourceDoc}))
}
