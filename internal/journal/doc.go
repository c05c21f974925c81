// Package journal keeps a durable history of bridge connection transitions
// in SQLite.
//
// Recorder is the bridge.Journal handed to the controller: it queues each
// transition and a background goroutine writes it through a Repository, so
// the dispatcher never waits on disk. The API reads the history back with
// SQLiteRepository.List.
package journal
