// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package tui renders the terminal views of syncctl with lipgloss.
package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/MKhiriev/go-sync-store/models"
)

// StatusRow is the state of one collection store.
type StatusRow struct {
	Collection string
	Type       models.StoreType
	// Cached is the number of live cached entities; -1 when not applicable.
	Cached int
	// Pending is the queue backlog; -1 when not applicable.
	Pending int
	Err     error
}

// RenderStatus renders the status table of the given stores.
func RenderStatus(rows []StatusRow, at time.Time) string {
	table := [][]string{{"COLLECTION", "TYPE", "CACHED", "PENDING", "STATE"}}
	styles := [][]lipgloss.Style{repeat(headerStyle, 5)}

	var pendingTotal int
	for _, row := range rows {
		state, stateStyle := "in sync", okStyle
		switch {
		case row.Err != nil:
			state, stateStyle = row.Err.Error(), errorStyle
		case row.Pending > 0:
			state, stateStyle = "pending push", pendingStyle
			pendingTotal += row.Pending
		case row.Type == models.StoreTypeNetwork:
			state, stateStyle = "online only", helpStyle
		}

		table = append(table, []string{row.Collection, row.Type.String(), count(row.Cached), count(row.Pending), state})
		styles = append(styles, []lipgloss.Style{cellStyle, cellStyle, cellStyle, cellStyle, stateStyle})
	}

	body := ""
	if len(rows) > 0 {
		body = renderTable(table, styles)
	}

	footer := fmt.Sprintf("%d collection(s), %d pending operation(s), %s", len(rows), pendingTotal, at.Format(time.RFC3339))
	return renderPage("go-sync-store status", body, footer)
}

// RenderSyncResult renders the outcome of one store sync as a single line.
func RenderSyncResult(collection string, res models.SyncResult, err error) string {
	line := fmt.Sprintf("%s: pushed %d, failed %d, pending %d", collection, res.Push.SuccessCount, len(res.Push.Errors), res.PendingCount)
	if res.Pulled {
		line += fmt.Sprintf(", pulled %d", len(res.Entities))
	}
	if err != nil {
		return errorStyle.Render(line + ": " + err.Error())
	}
	return okStyle.Render(line)
}

func count(n int) string {
	if n < 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func repeat(s lipgloss.Style, n int) []lipgloss.Style {
	out := make([]lipgloss.Style, n)
	for i := range out {
		out[i] = s
	}
	return out
}
