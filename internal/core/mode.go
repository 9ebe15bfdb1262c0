// Package core is the orchestration layer.  It wires the task pool,
// event loop and session manager into an Engine, and provides the
// modes that feed commands into it plus a builder that selects the
// right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	worker  →  task  →  session  →  eventloop  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete way of driving the engine: an interactive console
// or a scripted run.  Each mode owns the engine's lifecycle from start
// to shutdown.
type Mode interface {
	Run(ctx context.Context) error
}
