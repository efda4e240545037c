// symbols/symbols.go - Candidate index entry point
//
// The package is split into focused files:
// - decl.go: declaration snapshots as produced by the frontends
// - candidate.go: Candidate (a provider signature), variants and substitution
// - index.go: session-scoped, write-once candidate cache
// - rules.go: declaration rules registry

package symbols
