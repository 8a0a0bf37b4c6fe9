// Package utils provides small helpers shared across the module: identifier
// generators, the resty HTTP client wrapper and JSON response writers.
package utils

import (
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TempIDGenerator issues temporary entity ids. Each id carries
// [models.TempIDPrefix] followed by a UUIDv7, so ids sort by creation time.
type TempIDGenerator struct {
}

func NewTempIDGenerator() *TempIDGenerator {
	return &TempIDGenerator{}
}

func (g *TempIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return models.TempIDPrefix + uuid.NewString()
	}

	return models.TempIDPrefix + v7.String()
}

// SeqGenerator issues pending operation sequence numbers. ULIDs are
// lexicographically ordered and monotonic within a millisecond, so sorting
// the strings yields enqueue order.
type SeqGenerator struct {
}

func NewSeqGenerator() *SeqGenerator {
	return &SeqGenerator{}
}

func (g *SeqGenerator) Next() string {
	return ulid.Make().String()
}
