// Package canon provides canonical JSON and domain-separated digests.
//
// Canonical JSON is used wherever treeup compares or persists structured
// output byte for byte: update log summaries, store digests and scenario
// golden files. Two encodings of the same value are always identical:
//   - object keys sorted by UTF-16 code units (RFC 8785)
//   - no insignificant whitespace, no HTML escaping
//   - strings NFC normalized
//   - no floats and no null
//
// This package imports nothing internal.
package canon
