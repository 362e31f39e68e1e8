//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

// ErrFastEmbedUnavailable is returned by binaries built without cgo.
var ErrFastEmbedUnavailable = errors.New("fastembed: not available in a binary built without cgo, use the ollama or gemini provider")

type FastEmbed struct{}

func NewFastEmbed(_, _ string) (*FastEmbed, error) {
	return nil, ErrFastEmbedUnavailable
}

func (f *FastEmbed) Dimension() int { return 0 }

func (f *FastEmbed) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedUnavailable
}

func (f *FastEmbed) Close() error { return nil }
