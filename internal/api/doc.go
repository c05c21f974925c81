// Package api implements the HTTP control surface and WebSocket event stream
// for posebridge.
//
// This package provides:
//   - REST endpoints to read the bridge status and to connect or disconnect
//   - Read access to the connection journal
//   - WebSocket hub broadcasting connection.* events
//   - Middleware stack (request ID, logging, recovery, body limit)
//   - Optional bearer-token check on the connect and disconnect routes
//
// # Dispatching
//
// The bridge controller is single-threaded. Handlers never call it directly:
// every read or command is marshalled onto the dispatcher goroutine through
// Dispatcher.Call and the handler waits for the closure to finish.
//
// # Graceful Degradation
//
// The journal is optional. With the journal disabled GET /journal answers 404
// and everything else keeps working.
package api
