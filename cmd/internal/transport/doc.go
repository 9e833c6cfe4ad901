// Package transport owns the connection and session lifecycle of a Mezon client.
//
// A Transport is the explicit "transport context" the embedding application
// constructs once and passes around. It holds the primary API client, the
// auxiliary clients, the single realtime socket and the current session, and
// is the only writer of each of those slots.
//
// Components:
//   - Resolver: resolves the gateway address from the persisted endpoint record
//     with environment defaults as fallback.
//   - CredentialStore: holds the current session and owns the endpoint record.
//   - Factory (Create*, Bootstrap): builds clients into their slots.
//   - CreateSocket: replaces the socket handle, never leaving two open.
//   - Authentication flows: token, email, email OTP, QR.
//   - Reconnect: the bounded retry state machine with backoff.
//
// Persistence failures are logged and swallowed. Only uninitialized-dependency
// errors and ErrReconnectExhausted are meant to reach UI-level handling.
package transport
