package llm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposePrompt(t *testing.T) {
	assert.Equal(t, "p", ComposePrompt("p", ""))
	assert.Equal(t, "p", ComposePrompt("p", "  \n"))
	assert.Equal(t, "p\n\nContext from documents:\nctx", ComposePrompt("p", "ctx"))
}

func TestSliceStream(t *testing.T) {
	s := NewSliceStream(nil, "a", "b")

	got, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", got)
	got, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", got)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)

	boom := errors.New("boom")
	s = NewSliceStream(boom, "a")
	_, err = s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestGenerateStream_EmptyPrompt(t *testing.T) {
	g := &Gemini{}
	s := g.GenerateStream(context.Background(), "  ", "ctx")
	_, err := s.Next()
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = g.Generate(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestParseRelevance(t *testing.T) {
	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{raw: `{"relevant": true}`, want: true},
		{raw: `{"relevant": false}`, want: false},
		{raw: "```json\n{\"relevant\": false}\n```", want: false},
		{raw: `{}`, want: true, wantErr: true},
		{raw: `nope`, want: true, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseRelevance(tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
		} else {
			assert.NoError(t, err, tt.raw)
		}
	}
}

func TestRelevanceSchema(t *testing.T) {
	s := relevanceSchema()
	require.Contains(t, s.Properties, "relevant")
	assert.Equal(t, []string{"relevant"}, s.Required)
}
