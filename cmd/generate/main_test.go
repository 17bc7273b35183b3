package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/models"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr error
	}{
		{"local needs a file", options{sourceType: models.SourceTypeBook, sourceID: "go", local: true}, errLocalNeedsFile},
		{"local cannot enqueue", options{sourceType: models.SourceTypeBook, file: "go.md", local: true, enqueue: true}, errLocalEnqueue},
		{"source required", options{sourceType: models.SourceTypeBook}, errSourceRequired},
		{"stored source", options{sourceType: models.SourceTypeBook, sourceID: "go"}, nil},
		{"local file", options{sourceType: models.SourceTypeDocument, file: "notes.txt", local: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("unknown source type", func(t *testing.T) {
		err := options{sourceType: "video", sourceID: "x"}.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "video")
	})

	t.Run("invalid tone", func(t *testing.T) {
		opts := options{sourceType: models.SourceTypeBook, sourceID: "go"}
		opts.request.Content.Tone = "sarcastic"

		err := opts.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "content")
	})
}
