// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package notification

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Wire is the notification shape accepted from the server, both in
// list responses and in realtime push envelopes. The server issues IDs
// as either JSON strings or integers; both normalize to the canonical
// string form. Decode a Wire and call Canonical exactly once, at the
// boundary — the rest of the engine only sees Notification.
type Wire struct {
	ID        wireID    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	Read      bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Canonical converts the wire record into the canonical form. Unknown
// type and priority values degrade to the defaults instead of failing;
// a missing ID is the only fatal defect.
func (w Wire) Canonical() (Notification, error) {
	if w.ID == "" {
		return Notification{}, fmt.Errorf("notification: wire record has no id")
	}
	return Notification{
		ID:        string(w.ID),
		Title:     w.Title,
		Content:   w.Content,
		Type:      normalizeType(Type(strings.ToLower(w.Type))),
		Priority:  normalizePriority(Priority(strings.ToLower(w.Priority))),
		Read:      w.Read,
		CreatedAt: w.CreatedAt,
		Origin:    OriginServer,
	}, nil
}

// wireID decodes a JSON string or number into its string form.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("notification: empty id")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("notification: decoding string id: %w", err)
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("notification: decoding numeric id: %w", err)
	}
	*id = wireID(n.String())
	return nil
}
