// Package kiln implements the core of a reproducible, content-addressed
// build orchestrator: given a root package and its transitive dependency
// graph, it computes a fully-resolved build plan, executes each build in
// dependency order inside a sandboxed environment, and stores results in a
// content-addressed store keyed by a stable build identifier.
//
// The four core subsystems live under internal/: the sandbox crawler
// (internal/manifest), the build-identifier hasher (internal/buildid), the
// environment composition engine (internal/envscope), and the build driver
// (internal/driver). This top-level package holds the handful of
// process-lifetime helpers shared by cmd/kiln.
package kiln
