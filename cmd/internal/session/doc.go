// Package session models the client-side view of an authenticated Mezon identity.
//
// A Session pairs a short-lived access token with a refresh token and the API
// base URL of the deployment that issued them. Expiry metadata is read from the
// tokens' JWT claims without verifying signatures: the client never holds the
// signing key and only needs the timestamps to decide when to refresh.
//
// Durable storage of a remembered session goes through Vault. Transport (HTTP/WS)
// integration is intentionally out of scope here.
package session
