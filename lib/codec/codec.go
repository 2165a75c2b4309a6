// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for records persisted
// in the local notification cache. Encoding is deterministic (RFC 8949
// Core Deterministic Encoding) so the same logical record always
// produces identical bytes; decoding ignores unknown fields so old
// cache contents survive schema additions.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Cached records only ever use string map keys. Decoding into
		// an any-typed target must yield map[string]any, not the CBOR
		// default map[any]any, so cache contents stay compatible with
		// encoding/json and ordinary Go code.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
