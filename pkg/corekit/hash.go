// Package corekit holds small, dependency-light helpers shared across the hub:
// canonical JSON hashing, environment merging, and secret redaction.
package corekit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// canonicalField is one key/value pair of a canonicalized JSON object.
type canonicalField struct {
	key   string
	value any
}

// canonicalObject renders as a JSON object whose fields are emitted in
// sorted-key order, regardless of the source map's iteration order. It
// implements json.Marshaler so canonicalization composes with ordinary
// json.Marshal calls instead of hand-building the object's braces/commas.
type canonicalObject []canonicalField

func (o canonicalObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(canonicalize(f.value))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// canonicalize recursively replaces every map[string]any in v with a
// canonicalObject sorted by key, so that two tool-call argument sets that
// are structurally equal always serialize to byte-identical JSON no matter
// what order their source maps iterate in. Slices keep their element order;
// the cache only ever hashes decoded-JSON argument trees (object, array,
// string, number, bool, null), so there is no struct/typed-map case to
// widen this for.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return sortedFields(t)
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = canonicalize(elem)
		}
		return out
	default:
		return v
	}
}

func sortedFields(m map[string]any) canonicalObject {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make(canonicalObject, len(keys))
	for i, k := range keys {
		fields[i] = canonicalField{key: k, value: m[k]}
	}
	return fields
}

// CanonicalJSONBytes returns the canonical JSON bytes for v: object keys
// sorted recursively, array order preserved, so structurally-equal values
// always produce byte-identical output.
func CanonicalJSONBytes(v any) []byte {
	encoded, err := json.Marshal(canonicalize(v))
	if err != nil {
		return []byte("null")
	}
	return encoded
}

// CacheKey returns the adapter cache key for a tool id and its argument set:
// sha256 over "toolID" + canonical(args), truncated to 16 hex chars and
// prefixed with "toolID:" for readability, as specified for the response cache.
func CacheKey(toolID string, args any) string {
	var buf bytes.Buffer
	buf.WriteString(toolID)
	buf.Write(CanonicalJSONBytes(args))
	sum := sha256.Sum256(buf.Bytes())
	return toolID + ":" + hex.EncodeToString(sum[:])[:16]
}
