// Package security owns the pre-shared key and the AEAD used by sealed
// frames.
//
// Ownership boundary:
// - key parsing and derivation
// - AES-256-GCM seal/open
// - deployment mode validation
//
// A Key is an explicit handle. Nothing here keeps process-wide key state.
package security
