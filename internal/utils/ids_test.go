package utils

import (
	"slices"
	"testing"

	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
)

func TestTempIDGenerator_Generate(t *testing.T) {
	g := NewTempIDGenerator()

	a, b := g.Generate(), g.Generate()

	assert.True(t, models.IsTempID(a))
	assert.True(t, models.IsTempID(b))
	assert.NotEqual(t, a, b)
}

func TestSeqGenerator_Monotonic(t *testing.T) {
	g := NewSeqGenerator()

	seqs := make([]string, 0, 1000)
	for range 1000 {
		seqs = append(seqs, g.Next())
	}

	assert.True(t, slices.IsSorted(seqs))
	assert.Len(t, slices.Compact(slices.Clone(seqs)), len(seqs))
}
