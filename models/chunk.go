package models

import (
	"path/filepath"
	"strconv"
	"strings"
)

// SourceType marks which collection a chunk belongs to.
type SourceType string

const (
	SourceDoc SourceType = "doc"
	SourceWeb SourceType = "web"
)

// Chunk is a slice of source text with its embedding and attribution.
// Chunks are immutable once stored.
type Chunk struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Source     string     `json:"source"`   // path or URL
	Filename   string     `json:"filename"` // basename, or the URL for web chunks
	ChunkIndex int        `json:"chunk_index"`
	SourceType SourceType `json:"source_type"`
	// Page is 1-based; 0 means the extractor recorded no page.
	Page      int       `json:"page,omitempty"`
	Embedding []float32 `json:"-"`
}

// RetrievalHit is a stored chunk annotated with its similarity score.
type RetrievalHit struct {
	Chunk
	Score float64 `json:"score"`
}

// PageLabel returns the page as a citation label, or "" when unknown.
func (h RetrievalHit) PageLabel() string {
	if h.Page <= 0 {
		return ""
	}
	return strconv.Itoa(h.Page)
}

// DisplayName is how a source is shown to the model and in citations:
// the whole URL for web pages, the basename otherwise.
func DisplayName(source string) string {
	s := strings.ToLower(source)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return source
	}
	return filepath.Base(source)
}
