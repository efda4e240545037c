package resolver

import (
	"fmt"
	"strings"

	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/metrics"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

// Request asks for a value of Type on behalf of Requester.
type Request struct {
	Type     typesystem.TypeRef
	Required bool // False when the parameter declares a default

	// Requester is the callee or candidate declaring the parameter; nil for
	// free-standing requests.
	Requester *symbols.Decl
	Parameter string
}

func (r Request) String() string {
	if r.Parameter == "" {
		return r.Type.String()
	}
	return r.Parameter + ": " + r.Type.String()
}

// CallRequests returns one request per requested parameter of callee that
// the call does not pass explicitly. subst specializes the callee's type
// parameters at the call.
func CallRequests(callee *symbols.Decl, subst typesystem.Subst, explicit func(name string) bool) []Request {
	var out []Request
	for _, p := range callee.RequestedParams() {
		if explicit != nil && explicit(p.Name) {
			continue
		}
		out = append(out, Request{
			Type:      p.Type.Apply(subst),
			Required:  !p.HasDefault,
			Requester: callee,
			Parameter: p.Name,
		})
	}
	return out
}

// Reason classifies a resolution failure.
type Reason int

const (
	NoCandidates Reason = iota
	Ambiguous
	CandidateCycle
	MalformedPattern
)

func (r Reason) String() string {
	switch r {
	case NoCandidates:
		return "no candidate"
	case Ambiguous:
		return "ambiguous"
	case CandidateCycle:
		return "cycle"
	case MalformedPattern:
		return "malformed pattern"
	default:
		return "unknown"
	}
}

// Code returns the diagnostic code reported for r.
func (r Reason) Code() diagnostics.Code {
	switch r {
	case Ambiguous:
		return diagnostics.CodeAmbiguous
	case CandidateCycle:
		return diagnostics.CodeCycle
	case MalformedPattern:
		return diagnostics.CodeMalformedPattern
	default:
		return diagnostics.CodeNoCandidate
	}
}

func (r Reason) event() metrics.Event {
	switch r {
	case Ambiguous:
		return metrics.Ambiguous
	case CandidateCycle:
		return metrics.Cycle
	case MalformedPattern:
		return metrics.Malformed
	default:
		return metrics.Failed
	}
}

// failure is the nested form built during resolution. A failure with a
// cause means a dependency of candidate (or of a built-in when candidate is
// nil) could not be satisfied.
type failure struct {
	reason     Reason
	request    Request
	candidate  *symbols.Candidate
	cause      *failure
	candidates []*symbols.Candidate
	detail     string
}

// ordering ranks failures of sibling candidates; the lowest is reported.
func (f *failure) ordering() int {
	if f.cause != nil {
		return 1
	}
	switch f.reason {
	case Ambiguous:
		return 0
	case MalformedPattern:
		return 1
	case CandidateCycle:
		return 2
	default:
		return 3
	}
}

func (f *failure) innermost() *failure {
	for f.cause != nil {
		f = f.cause
	}
	return f
}

func (f *failure) flatten() *Failure {
	out := &Failure{}
	for ; f != nil; f = f.cause {
		out.Path = append(out.Path, f.request)
		if f.cause != nil {
			out.Via = append(out.Via, f.candidate)
			continue
		}
		out.Reason = f.reason
		out.Candidates = f.candidates
		out.Detail = f.detail
	}
	return out
}

// Failure explains why a call site could not be resolved.
type Failure struct {
	Reason Reason

	// Path lists the requests from the call site down to the one that
	// failed. Via[i] is the candidate chosen for Path[i] that needed
	// Path[i+1]; it is nil for built-ins.
	Path []Request
	Via  []*symbols.Candidate

	// Candidates are the tied candidates of an ambiguity, the candidate
	// closing a cycle or the malformed template.
	Candidates []*symbols.Candidate
	Detail     string
}

// Request returns the request that could not be satisfied.
func (f *Failure) Request() Request {
	return f.Path[len(f.Path)-1]
}

// Message renders the failure as a chain from the missing capability up to
// the call site.
func (f *Failure) Message() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "requested %s", f.Request().Type)
	last := ""
	for i := len(f.Path) - 1; i >= 0; i-- {
		r := f.Path[i].Requester
		if r == nil || r.Name == last {
			continue
		}
		last = r.Name
		fmt.Fprintf(&sb, ", needed by %s", r.Name)
	}
	sb.WriteString(": ")
	switch f.Reason {
	case Ambiguous:
		names := make([]string, len(f.Candidates))
		for i, c := range f.Candidates {
			names[i] = c.Decl.Name
		}
		fmt.Fprintf(&sb, "%d ambiguous candidates: %s", len(f.Candidates), strings.Join(names, ", "))
	case CandidateCycle:
		fmt.Fprintf(&sb, "cyclic via %s", f.Candidates[0].Decl.Name)
	case MalformedPattern:
		fmt.Fprintf(&sb, "malformed pattern %s", f.Candidates[0].Decl.Name)
		if f.Detail != "" {
			sb.WriteString(" (" + f.Detail + ")")
		}
	default:
		sb.WriteString("no candidate")
	}
	return sb.String()
}
