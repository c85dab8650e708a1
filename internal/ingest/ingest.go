// Package ingest turns kernel and wireless events into graph signal writes.
// Every ingester owns exactly one file descriptor the reactor polls.
package ingest

import "github.com/routerwrt/lnmgr/internal/graph"

// Ingester is a single event source the reactor multiplexes over epoll.
type Ingester interface {
	// FD returns the file descriptor the reactor should watch for
	// readability.
	FD() int
	// Sync performs a full resynchronization against current kernel state,
	// overwriting every signal the ingester owns. Called once at startup
	// and again whenever Handle reports a dropped-message condition.
	Sync(g *graph.Graph) error
	// Handle drains and processes pending messages, writing signals onto
	// g. It reports whether any signal actually changed value.
	Handle(g *graph.Graph) (changed bool, err error)
	// Close releases the underlying file descriptor.
	Close() error
}
