// Package protocol owns the prism wire vocabulary.
//
// Ownership boundary:
// - packet type identifiers
// - shared decode/integrity errors
//
// Subpackages:
// - frame: fixed header, checksum and control frame primitives
// - envelope: plain/sealed DATA frame codec
// - session: pending table, inbound dispatch and the UDP endpoint
package protocol
