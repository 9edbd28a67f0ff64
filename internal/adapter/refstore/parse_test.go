package refstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visearch/internal/domain"
)

func TestParse(t *testing.T) {
	set, err := Parse(strings.NewReader(dataset), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, 3, set.Dimension())
	assert.Equal(t, []string{"A", "B", "C"}, set.Codes())

	rec, ok := set.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, "b.jpg", rec.Image)
	assert.Equal(t, []float32{0, 1, 0}, rec.Embedding)

	_, ok = set.Lookup("Z")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json`},
		{"object", `{"code":"A"}`},
		{"empty array", `[]`},
		{"empty code", `[{"code":"","embedding":[1]}]`},
		{"empty embedding", `[{"code":"A","embedding":[]}]`},
		{"ragged", `[{"code":"A","embedding":[1,2]},{"code":"B","embedding":[1]}]`},
		{"bad element", `[{"code":"A","embedding":["x"]}]`},
		{"truncated", `[{"code":"A","embedding":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data), 0)
			assert.Error(t, err)
		})
	}
}

func TestParse_RaggedIsDimensionMismatch(t *testing.T) {
	_, err := Parse(strings.NewReader(`[{"code":"A","embedding":[1,2]},{"code":"B","embedding":[1]}]`), 0)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestParse_Duplicates(t *testing.T) {
	data := `[
		{"code":"A","embedding":[1,0]},
		{"code":"B","embedding":[0,1]},
		{"code":"A","embedding":[0.5,0.5]}
	]`
	set, err := Parse(strings.NewReader(data), 2)
	require.NoError(t, err)

	rec, ok := set.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, rec.Embedding)

	stats := set.Stats()
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 2, stats.Dimension)
	assert.Equal(t, []string{"A"}, stats.Duplicates)
	assert.Equal(t, []string{"A", "B"}, set.Codes())
}

func TestNewReferenceSet(t *testing.T) {
	set, err := NewReferenceSet([]domain.ReferenceRecord{
		{Code: "X", Embedding: []float32{1, 2, 3}},
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	_, err = NewReferenceSet(nil, 0)
	assert.Error(t, err)

	_, err = NewReferenceSet([]domain.ReferenceRecord{{Code: "X", Embedding: []float32{1}}}, 3)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
