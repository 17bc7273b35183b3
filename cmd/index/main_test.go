package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edulane/coursegen/internal/models"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr bool
	}{
		{"unindexed backfill", options{unindexed: true}, false},
		{"sync backfill", options{unindexed: true, sync: true}, true},
		{"no source", options{sourceType: models.SourceTypeBook}, true},
		{"by id", options{sourceType: models.SourceTypeBook, sourceID: "go"}, false},
		{"from file", options{sourceType: models.SourceTypeCourse, file: "intro.pdf", sync: true}, false},
		{"unknown type", options{sourceType: "video", sourceID: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
