// Package seal provides at-rest sealing for client-side credentials.
//
// It is the single source of truth for how a remembered session is protected
// on disk.
//
// Modes:
//   - Dev mode: no key configured, blobs are stored as plain JSON.
//   - Enforced mode: XChaCha20-Poly1305 with a 32-byte key from MEZON_SESSION_SEAL_KEY.
//
// Sealed blobs carry a magic prefix, so a plain file written in dev mode is
// still readable after a key is introduced.
//
// MEZON_SESSION_SEAL_KEY holds hex (64 chars) or raw (>= 32 bytes, hashed down)
// key material.
package seal
