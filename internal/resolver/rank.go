package resolver

import (
	"github.com/funvibe/given/internal/typesystem"
)

// compareMatches orders a before b when negative. The order is, in turn:
// the preferred marker (higher priority first), nearer scope, fixed before
// pattern-derived and the more specific produced type. Zero means a tie.
func compareMatches(a, b match) int {
	ac, bc := a.template, b.template
	if ac.Preferred != bc.Preferred {
		if ac.Preferred {
			return -1
		}
		return 1
	}
	if ac.Preferred && ac.Priority != bc.Priority {
		if ac.Priority > bc.Priority {
			return -1
		}
		return 1
	}
	if a.nesting != b.nesting {
		if a.nesting > b.nesting {
			return -1
		}
		return 1
	}
	if ac.IsPattern() != bc.IsPattern() {
		if !ac.IsPattern() {
			return -1
		}
		return 1
	}
	return compareType(ac.Type, bc.Type)
}

// compareType orders the more specific of two declared types first.
func compareType(a, b typesystem.TypeRef) int {
	if a.Star != b.Star {
		if !a.Star {
			return -1
		}
		return 1
	}
	if a.Star {
		return 0
	}
	if a.Nullable != b.Nullable {
		if !a.Nullable {
			return -1
		}
		return 1
	}
	ap, bp := a.IsTypeParameter(), b.IsTypeParameter()
	if ap != bp {
		if !ap {
			return -1
		}
		return 1
	}
	if a.Key() != b.Key() {
		_, aSub := typesystem.SupertypeView(a, b.Classifier)
		_, bSub := typesystem.SupertypeView(b, a.Classifier)
		switch {
		case aSub && !bSub:
			return -1
		case bSub && !aSub:
			return 1
		}
		return 0
	}
	diff := 0
	for i := range a.Args {
		if i < len(b.Args) {
			diff += compareType(a.Args[i], b.Args[i])
		}
	}
	switch {
	case diff < 0:
		return -1
	case diff > 0:
		return 1
	}
	return 0
}
