package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MKhiriev/go-sync-store/models"
)

func TestRenderStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := RenderStatus([]StatusRow{
		{Collection: "authors", Type: models.StoreTypeSync, Cached: 4, Pending: 0},
		{Collection: "books", Type: models.StoreTypeSync, Cached: 10, Pending: 3},
		{Collection: "feed", Type: models.StoreTypeNetwork, Cached: -1, Pending: -1},
		{Collection: "tags", Type: models.StoreTypeSync, Err: errors.New("disk full")},
	}, at)

	assert.Contains(t, out, "go-sync-store status")
	assert.Contains(t, out, "COLLECTION")
	assert.Contains(t, out, "in sync")
	assert.Contains(t, out, "pending push")
	assert.Contains(t, out, "online only")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "4 collection(s), 3 pending operation(s), 2026-03-01T12:00:00Z")

	var booksLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "books") {
			booksLine = line
		}
	}
	assert.Regexp(t, `books\s+sync\s+10\s+3\s+pending push`, booksLine)
}

func TestRenderStatus_Empty(t *testing.T) {
	out := RenderStatus(nil, time.Unix(0, 0).UTC())
	assert.Contains(t, out, "  -\n")
	assert.Contains(t, out, "0 collection(s)")
}

func TestRenderSyncResult(t *testing.T) {
	res := models.SyncResult{
		Push:         models.PushResult{SuccessCount: 2},
		Pulled:       true,
		Entities:     make([]models.Entity, 5),
		PendingCount: 0,
	}
	assert.Contains(t, RenderSyncResult("books", res, nil), "books: pushed 2, failed 0, pending 0, pulled 5")

	failed := RenderSyncResult("books", models.SyncResult{PendingCount: 1}, errors.New("offline"))
	assert.Contains(t, failed, "pending 1: offline")
	assert.NotContains(t, failed, "pulled")
}
