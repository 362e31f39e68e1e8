package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPages(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
		return p
	}
	ctx := context.Background()

	pages, err := ExtractPages(ctx, write("notes.md", "# Heart\n\nThe heart pumps blood."))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Zero(t, pages[0].Number)
	assert.Contains(t, pages[0].Text, "The heart pumps blood.")

	pages, err = ExtractPages(ctx, write("staff.csv", "name,role\nJane Smith,nurse\nJohn Doe,surgeon\n"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Jane Smith")
	assert.Contains(t, pages[0].Text, "surgeon")

	pages, err = ExtractPages(ctx, write("blank.txt", "\n   \n"))
	require.NoError(t, err)
	assert.Empty(t, pages)

	_, err = ExtractPages(ctx, write("slides.pptx", "x"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = ExtractPages(ctx, filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestIsSupportedFile(t *testing.T) {
	for _, ok := range []string{"a.pdf", "B.PDF", "c.txt", "d.md", "e.csv"} {
		assert.True(t, isSupportedFile(ok), ok)
	}
	for _, bad := range []string{"a.docx", "b", "c.pdf.exe"} {
		assert.False(t, isSupportedFile(bad), bad)
	}
}

func TestPagesText(t *testing.T) {
	assert.Equal(t, "one\n\ntwo\n\n", PagesText([]Page{{Number: 1, Text: "one"}, {Number: 2, Text: "two"}}))
	assert.Empty(t, PagesText(nil))
}
