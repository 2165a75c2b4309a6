// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

func TestMarshalDeterministic(t *testing.T) {
	type record struct {
		ID        string    `cbor:"id"`
		Read      bool      `cbor:"read"`
		CreatedAt time.Time `cbor:"created_at"`
	}
	value := record{ID: "n1", Read: true, CreatedAt: time.Unix(1700000000, 0).UTC()}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("same value produced different encodings")
	}

	var decoded record
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != "n1" || !decoded.Read {
		t.Fatalf("roundtrip mismatch: %+v", decoded)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	full := map[string]any{"id": "n1", "extra": "future field"}
	data, err := Marshal(full)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var partial struct {
		ID string `cbor:"id"`
	}
	if err := Unmarshal(data, &partial); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if partial.ID != "n1" {
		t.Fatalf("ID = %q, want n1", partial.ID)
	}
}
