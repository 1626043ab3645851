package filename

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/models"
)

func TestGuess(t *testing.T) {
	tests := []struct {
		key   string
		want  string
		valid bool
	}{
		{"covers/u1/the_name_of_the_wind.jpg", "The Name Of The Wind", true},
		{"dune-1965.png", "Dune", true},
		{"uploads/3f2b9c1e-8d4a-4b7e-9f10-2a6c5d7e8f90.jpg", "", false},
		{"a1b2c3d4e5f6a7b8.jpeg", "", false},
		{"IMG_2041.jpg", "", false},
		{"20240101.jpg", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := Guess(tt.key)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrand_LowConfidenceTitle(t *testing.T) {
	out, err := NewStrand().Run(context.Background(), &agent.Input{Image: models.ImageRef{Key: "u/clean_code.jpg"}})
	require.NoError(t, err)
	title, ok := out.Metadata.Get(models.FieldTitle)
	assert.True(t, ok)
	assert.Equal(t, "Clean Code", title)
	assert.Equal(t, GuessConfidence, out.Confidence[models.FieldTitle])
}
