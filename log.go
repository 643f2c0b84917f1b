// log.go -- the observability sink
//
// The package is silent by default (a no-op logger) so that embedding it in
// a library does not impose a logging dependency on callers who never wire
// one in. SetLogger lets a host application redirect corrupt-record and
// close-failure diagnostics into its own structured logging pipeline.

package cdb

import "go.uber.org/zap"

// logger is read, unsynchronized, by Reader and Writer methods whenever they
// report a diagnostic.
// SetLogger is meant to be called once at program startup, before any
// Reader or Writer is created, not concurrently with request traffic.
var logger = zap.NewNop()

// SetLogger replaces the package-level observability sink. Passing nil
// restores the no-op logger. See the logger var doc comment: call this
// before any concurrent use of the package, not while lookups are in flight.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
