package typesystem

// SupertypeView returns t seen as an instance of target, following declared
// supertype edges (upper bounds for type parameters) and substituting each
// edge's type arguments on the way. The view keeps t's nullability and tags.
func SupertypeView(t TypeRef, target *Classifier) (TypeRef, bool) {
	if t.Star || t.Classifier == nil || target == nil {
		return TypeRef{}, false
	}
	view, ok := supertypeView(t, target, make(map[string]bool))
	if !ok {
		return TypeRef{}, false
	}
	view.Nullable = t.Nullable
	view.Tags = t.Tags
	view.Variance = t.Variance
	return view, true
}

func supertypeView(t TypeRef, target *Classifier, visited map[string]bool) (TypeRef, bool) {
	if t.Classifier.Key == target.Key {
		return t, true
	}
	if visited[t.Classifier.Key] {
		return TypeRef{}, false
	}
	visited[t.Classifier.Key] = true

	subst := SubstFor(t.Classifier, t.Args)
	for _, super := range t.Classifier.Supertypes {
		if super.Star || super.Classifier == nil {
			continue
		}
		if view, ok := supertypeView(super.Apply(subst), target, visited); ok {
			return view, true
		}
	}
	return TypeRef{}, false
}

// IsSubtypeOf reports whether a value of type sub can be used where super is expected.
func IsSubtypeOf(sub, super TypeRef) bool {
	if super.Star {
		return true
	}
	if sub.Star {
		return false
	}
	if !tagsEqual(sub.Tags, super.Tags) {
		return false
	}
	if sub.Nullable && !super.Nullable {
		return false
	}
	if sub.IsNothing() || super.IsAny() {
		return true
	}

	view, ok := SupertypeView(sub, super.Classifier)
	if !ok {
		return false
	}
	if len(view.Args) != len(super.Args) {
		return len(super.Args) == 0
	}
	for i, superArg := range super.Args {
		if !argumentAccepts(super.Classifier.TypeParams, i, view.Args[i], superArg) {
			return false
		}
	}
	return true
}

// argumentAccepts compares one type argument position by its effective variance.
func argumentAccepts(params []*Classifier, i int, subArg, superArg TypeRef) bool {
	if superArg.Star {
		return true
	}
	if subArg.Star {
		return false
	}
	switch effectiveVariance(params, i, superArg) {
	case Covariant:
		return IsSubtypeOf(stripVariance(subArg), stripVariance(superArg))
	case Contravariant:
		return IsSubtypeOf(stripVariance(superArg), stripVariance(subArg))
	default:
		if subArg.Variance != superArg.Variance {
			return false
		}
		a, b := stripVariance(subArg), stripVariance(superArg)
		return IsSubtypeOf(a, b) && IsSubtypeOf(b, a)
	}
}

// effectiveVariance of argument i: a use-site projection overrides the
// declared variance of the parameter.
func effectiveVariance(params []*Classifier, i int, arg TypeRef) Variance {
	if arg.Variance != Invariant {
		return arg.Variance
	}
	if i < len(params) {
		return params[i].Variance
	}
	return Invariant
}

func stripVariance(t TypeRef) TypeRef {
	t.Variance = Invariant
	return t
}
