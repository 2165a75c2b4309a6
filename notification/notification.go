// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package notification defines the canonical notification record shared
// by every part of the delivery engine: the server-of-record client,
// the realtime transport, the local cache, and the reconciliation
// engine. All inbound wire shapes are normalized into Notification at
// the boundary where they arrive; nothing past that boundary ever
// inspects raw payloads.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type categorizes a notification. Unknown wire values map to
// TypeDefault rather than failing the record.
type Type string

const (
	TypeSystem      Type = "system"
	TypeApplication Type = "application"
	TypeRoom        Type = "room"
	TypeUser        Type = "user"
	TypeSecurity    Type = "security"
	TypeDefault     Type = "default"
)

// Priority orders notifications for display emphasis. Unknown wire
// values map to PriorityNormal.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Origin identifies which backing store owns mutation authority for a
// record: the server of record, or the client-only local cache.
type Origin string

const (
	OriginServer Origin = "server"
	OriginLocal  Origin = "local"
)

// localIDPrefix distinguishes locally-originated notification IDs from
// server-issued ones. Server IDs are opaque and never carry this
// prefix.
const localIDPrefix = "local-"

// Notification is the canonical unit the engine reconciles. Title and
// Content are opaque payload — they may hold a template reference plus
// parameters, and the engine never interprets them.
type Notification struct {
	ID        string    `json:"id" cbor:"id"`
	Title     string    `json:"title" cbor:"title"`
	Content   string    `json:"content" cbor:"content"`
	Type      Type      `json:"type" cbor:"type"`
	Priority  Priority  `json:"priority" cbor:"priority"`
	Read      bool      `json:"isRead" cbor:"read"`
	CreatedAt time.Time `json:"createdAt" cbor:"created_at"`
	Origin    Origin    `json:"origin" cbor:"origin"`
}

// NewLocal builds a client-only notification (for example the weak
// password warning synthesized at login). The ID carries the local
// prefix plus a random suffix so it can never collide with a
// server-issued ID.
func NewLocal(title, content string, typ Type, priority Priority, createdAt time.Time) Notification {
	return Notification{
		ID:        localIDPrefix + uuid.NewString(),
		Title:     title,
		Content:   content,
		Type:      normalizeType(typ),
		Priority:  normalizePriority(priority),
		CreatedAt: createdAt,
		Origin:    OriginLocal,
	}
}

// IsLocal reports whether id names a locally-originated notification.
func IsLocal(id string) bool {
	return len(id) >= len(localIDPrefix) && id[:len(localIDPrefix)] == localIDPrefix
}

func normalizeType(t Type) Type {
	switch t {
	case TypeSystem, TypeApplication, TypeRoom, TypeUser, TypeSecurity:
		return t
	default:
		return TypeDefault
	}
}

func normalizePriority(p Priority) Priority {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityLow:
		return p
	default:
		return PriorityNormal
	}
}
