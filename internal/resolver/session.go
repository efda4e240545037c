// Package resolver selects, for each capability request of a call site, the
// candidate that supplies it and resolves that candidate's own requests in
// turn. The outcome is a graph of nodes or a single failure.
//
// A Session holds the memo tables of one resolution pass. Sessions are not
// safe for concurrent use; parallel passes use separate sessions.
package resolver

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/logging"
	"github.com/funvibe/given/internal/metrics"
	"github.com/funvibe/given/internal/scope"
	"github.com/funvibe/given/internal/symbols"
)

// Session resolves call sites against one candidate index.
type Session struct {
	ID    string
	Index *symbols.Index

	logger  *slog.Logger
	metrics *metrics.Recorder

	memo    map[*scope.Scope]*memoTable
	lambdas map[string]*scope.Scope

	chain    []inflight
	deferred int
	site     diagnostics.Span
}

// memoTable caches lookups made in one scope frame.
type memoTable struct {
	byType      map[string]*outcome
	byCandidate map[*symbols.Candidate]*outcome
}

// inflight is a candidate whose dependencies are being resolved, with the
// number of deferred providers entered when it was pushed.
type inflight struct {
	candidate *symbols.Candidate
	deferred  int
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// NewSession creates a session over ix, a fresh index when nil.
func NewSession(ix *symbols.Index, opts ...Option) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		Index:   ix,
		memo:    make(map[*scope.Scope]*memoTable),
		lambdas: make(map[string]*scope.Scope),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Index == nil {
		s.Index = symbols.NewIndex()
	}
	s.logger = logging.OrDiscard(s.logger).With("session", s.ID)
	return s
}

func (s *Session) table(sc *scope.Scope) *memoTable {
	t, ok := s.memo[sc]
	if !ok {
		t = &memoTable{
			byType:      make(map[string]*outcome),
			byCandidate: make(map[*symbols.Candidate]*outcome),
		}
		s.memo[sc] = t
	}
	return t
}

// Discard drops the memo tables of sc. Frames popped from a scope.Stack
// are discarded once no longer reachable.
func (s *Session) Discard(sc *scope.Scope) {
	delete(s.memo, sc)
	for key, lambda := range s.lambdas {
		if lambda.Parent == sc {
			delete(s.memo, lambda)
			delete(s.lambdas, key)
		}
	}
}

// Memoized returns the number of scope frames with memo tables.
func (s *Session) Memoized() int {
	return len(s.memo)
}

// ResolveRequests resolves requests in sc outside of any call site.
func (s *Session) ResolveRequests(requests []Request, sc *scope.Scope) Graph {
	return s.ResolveCall(nil, diagnostics.Span{}, requests, sc)
}

// ResolveCall resolves the requests of the call to callee at site. The
// graph succeeds only if every request resolves; otherwise it carries the
// first failure, depth-first and left to right.
func (s *Session) ResolveCall(callee *symbols.Decl, site diagnostics.Span, requests []Request, sc *scope.Scope) Graph {
	done := s.metrics.BeginResolution()
	s.site = site
	s.chain = s.chain[:0]
	s.deferred = 0

	results := make([]Binding, 0, len(requests))
	for _, req := range requests {
		o := s.resolveRequest(req, sc)
		switch {
		case o.ok():
			results = append(results, Binding{Request: req, Node: o.node})
		case defaultable(req, o.failure):
			results = append(results, Binding{Request: req, Defaulted: true})
		default:
			f := o.failure.flatten()
			done(f.Reason.event())
			s.logger.Debug("call site failed", "site", site.String(), "reason", f.Reason.String(), "request", req.String())
			return &ErrorGraph{Site: site, Callee: callee, Scope: sc, Failure: f}
		}
	}
	done(metrics.Resolved)
	return &SuccessGraph{Site: site, Callee: callee, Scope: sc, Results: results}
}

// defaultable reports whether an optional request may fall back to its
// default: the lookup ended, possibly several dependencies down, at a
// capability with no candidate at all.
func defaultable(req Request, f *failure) bool {
	return !req.Required && f.innermost().reason == NoCandidates
}
