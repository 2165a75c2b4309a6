// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
)

// listPayload covers every list response shape the server has shipped:
// the payload array has been named "records", "list", and "rows" at
// different points in the API's history. Exactly one is expected to be
// populated; "records" wins if several are.
type listPayload struct {
	Records []notification.Wire `json:"records"`
	List    []notification.Wire `json:"list"`
	Rows    []notification.Wire `json:"rows"`
	Total   int                 `json:"total"`
}

// parseListResponse decodes a list response body and normalizes it.
// Individual records that fail normalization (no ID) are dropped with
// a warning rather than failing the page — a malformed record must not
// take down the poll tick.
func parseListResponse(body []byte, logger *slog.Logger) (*ListResponse, error) {
	var payload listPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("source: parsing list response: %w", err)
	}

	wire := payload.Records
	if wire == nil {
		wire = payload.List
	}
	if wire == nil {
		wire = payload.Rows
	}

	records := make([]notification.Notification, 0, len(wire))
	for _, w := range wire {
		record, err := w.Canonical()
		if err != nil {
			logger.Warn("source: dropping malformed notification record", "error", err)
			continue
		}
		records = append(records, record)
	}

	total := payload.Total
	if total < len(records) {
		total = len(records)
	}
	return &ListResponse{Records: records, Total: total}, nil
}
