package typesystem

import (
	"sort"
	"strings"
)

// Variance of a type parameter (declaration site) or type argument (use site).
type Variance int

const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "out"
	case Contravariant:
		return "in"
	default:
		return ""
	}
}

// compose returns the variance of a position nested under outer.
func (v Variance) compose(inner Variance) Variance {
	switch {
	case v == Invariant || inner == Invariant:
		return Invariant
	case v == inner:
		return Covariant
	default:
		return Contravariant
	}
}

// Classifier is a named type constructor: a class, interface or type parameter.
// Classifiers are shared by pointer; two classifiers are the same iff their keys match.
type Classifier struct {
	// Key is the fully qualified name. Type parameter keys are qualified by
	// their owner, e.g. "app.provideList.T".
	Key  string
	Name string

	TypeParams []*Classifier

	// Supertypes are the declared supertypes. For a type parameter these are
	// its upper bounds.
	Supertypes []TypeRef

	IsTypeParameter bool

	// Variance is the declaration-site variance of a type parameter.
	Variance Variance

	// Pattern marks a spread type parameter: a provider declaring one is
	// instantiated per requested type.
	Pattern bool
}

func (c *Classifier) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.Name
}

// Type returns the classifier applied to its own type parameters.
func (c *Classifier) Type() TypeRef {
	args := make([]TypeRef, len(c.TypeParams))
	for i, p := range c.TypeParams {
		args[i] = TypeRef{Classifier: p}
	}
	return TypeRef{Classifier: c, Args: args}
}

// TypeRef is a use of a classifier.
type TypeRef struct {
	Classifier *Classifier
	Args       []TypeRef
	Nullable   bool

	// Tags are identity-affecting qualifiers, kept sorted and unique.
	Tags []string

	// Star marks a star projection. Classifier is nil for star projections.
	Star bool

	// Variance is the use-site projection of a type argument.
	Variance Variance
}

// StarProjection is the "*" type argument.
func StarProjection() TypeRef {
	return TypeRef{Star: true}
}

// NewType applies c to args.
func NewType(c *Classifier, args ...TypeRef) TypeRef {
	return TypeRef{Classifier: c, Args: args}
}

func (t TypeRef) Key() string {
	if t.Classifier == nil {
		return ""
	}
	return t.Classifier.Key
}

// IsTypeParameter reports whether t is a bare type parameter use.
func (t TypeRef) IsTypeParameter() bool {
	return !t.Star && t.Classifier != nil && t.Classifier.IsTypeParameter
}

func (t TypeRef) IsAny() bool {
	return !t.Star && t.Classifier != nil && t.Classifier.Key == Any.Key
}

func (t TypeRef) IsNothing() bool {
	return !t.Star && t.Classifier != nil && t.Classifier.Key == Nothing.Key
}

// WithNullable returns a copy of t with the given nullability.
func (t TypeRef) WithNullable(nullable bool) TypeRef {
	t.Nullable = nullable
	return t
}

// WithTags returns a copy of t carrying tags in addition to its own.
func (t TypeRef) WithTags(tags ...string) TypeRef {
	t.Tags = NormalizeTags(append(append([]string(nil), t.Tags...), tags...))
	return t
}

// WithoutTags returns a copy of t with the given tags removed.
func (t TypeRef) WithoutTags(tags ...string) TypeRef {
	if len(tags) == 0 || len(t.Tags) == 0 {
		return t
	}
	drop := make(map[string]bool, len(tags))
	for _, tag := range tags {
		drop[tag] = true
	}
	var kept []string
	for _, tag := range t.Tags {
		if !drop[tag] {
			kept = append(kept, tag)
		}
	}
	t.Tags = kept
	return t
}

// WithVariance returns a copy of t with the given use-site variance.
func (t TypeRef) WithVariance(v Variance) TypeRef {
	t.Variance = v
	return t
}

// NormalizeTags sorts and deduplicates a tag set.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	out := sorted[:1]
	for _, tag := range sorted[1:] {
		if tag != out[len(out)-1] {
			out = append(out, tag)
		}
	}
	return out
}

func tagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t TypeRef) String() string {
	var sb strings.Builder
	for _, tag := range t.Tags {
		sb.WriteString("@")
		sb.WriteString(tag)
		sb.WriteString(" ")
	}
	if t.Variance != Invariant {
		sb.WriteString(t.Variance.String())
		sb.WriteString(" ")
	}
	if t.Star {
		sb.WriteString("*")
		return sb.String()
	}
	sb.WriteString(t.Classifier.String())
	if len(t.Args) > 0 {
		sb.WriteString("<")
		for i, arg := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(arg.String())
		}
		sb.WriteString(">")
	}
	if t.Nullable {
		sb.WriteString("?")
	}
	return sb.String()
}

// Equal reports structural identity.
func Equal(a, b TypeRef) bool {
	if a.Star || b.Star {
		return a.Star == b.Star && a.Variance == b.Variance && tagsEqual(a.Tags, b.Tags)
	}
	if a.Key() != b.Key() || a.Nullable != b.Nullable || a.Variance != b.Variance {
		return false
	}
	if !tagsEqual(a.Tags, b.Tags) || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if !Equal(a.Args[i], b.Args[i]) {
			return false
		}
	}
	return true
}

// Complexity counts the classifier uses in t. Growing complexity along a
// resolution chain signals divergent expansion.
func Complexity(t TypeRef) int {
	n := 1
	for _, arg := range t.Args {
		n += Complexity(arg)
	}
	return n
}

// FreeTypeParameters lists the distinct type parameters used in t, in order of appearance.
func FreeTypeParameters(t TypeRef) []*Classifier {
	var out []*Classifier
	seen := make(map[string]bool)
	var walk func(TypeRef)
	walk = func(t TypeRef) {
		if t.Star || t.Classifier == nil {
			return
		}
		if t.Classifier.IsTypeParameter && !seen[t.Classifier.Key] {
			seen[t.Classifier.Key] = true
			out = append(out, t.Classifier)
		}
		for _, arg := range t.Args {
			walk(arg)
		}
	}
	walk(t)
	return out
}

// Contains reports whether the type parameter key occurs anywhere in t.
func Contains(t TypeRef, key string) bool {
	for _, p := range FreeTypeParameters(t) {
		if p.Key == key {
			return true
		}
	}
	return false
}

// Subst maps type parameter keys to types.
type Subst map[string]TypeRef

// Compose returns a substitution applying s2 and then s1. Bindings of s1 win.
func (s1 Subst) Compose(s2 Subst) Subst {
	subst := Subst{}
	for k, v := range s2 {
		subst[k] = v
	}
	for k, v := range s1 {
		subst[k] = v.Apply(s2)
	}
	return subst
}

// Keys returns the bound keys in sorted order.
func (s Subst) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s Subst) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range s.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(" := ")
		sb.WriteString(s[k].String())
	}
	sb.WriteString("}")
	return sb.String()
}

// SubstFor maps the type parameters of c to args. Missing args become star projections.
func SubstFor(c *Classifier, args []TypeRef) Subst {
	subst := make(Subst, len(c.TypeParams))
	for i, p := range c.TypeParams {
		if i < len(args) {
			subst[p.Key] = args[i]
		} else {
			subst[p.Key] = StarProjection()
		}
	}
	return subst
}

// Apply substitutes type parameters in t.
func (t TypeRef) Apply(s Subst) TypeRef {
	if len(s) == 0 {
		return t
	}
	return ApplyWithCycleCheck(t, s, make(map[string]bool))
}

// Substitute is Apply in function form.
func Substitute(t TypeRef, s Subst) TypeRef {
	return t.Apply(s)
}

// ApplyWithCycleCheck applies substitution with cycle detection.
// The replacement of a nullable or tagged type parameter use keeps the use's
// nullability and tags.
func ApplyWithCycleCheck(t TypeRef, s Subst, visited map[string]bool) TypeRef {
	if t.Star || t.Classifier == nil {
		return t
	}

	if t.Classifier.IsTypeParameter {
		key := t.Classifier.Key
		replacement, ok := s[key]
		if !ok || visited[key] {
			return t
		}
		if !replacement.Star && replacement.Key() == key {
			return t
		}
		newVisited := copyVisited(visited)
		newVisited[key] = true
		out := ApplyWithCycleCheck(replacement, s, newVisited)
		if out.Star {
			return out
		}
		out.Nullable = out.Nullable || t.Nullable
		if len(t.Tags) > 0 {
			out = out.WithTags(t.Tags...)
		}
		if t.Variance != Invariant {
			out.Variance = t.Variance
		}
		return out
	}

	if len(t.Args) == 0 {
		return t
	}
	newArgs := make([]TypeRef, len(t.Args))
	for i, arg := range t.Args {
		newArgs[i] = ApplyWithCycleCheck(arg, s, visited)
	}
	t.Args = newArgs
	return t
}

func copyVisited(m map[string]bool) map[string]bool {
	newMap := make(map[string]bool, len(m))
	for k, v := range m {
		newMap[k] = v
	}
	return newMap
}

// Identity renders t with fully qualified classifier keys. Unlike String it
// distinguishes same-named classifiers of different packages.
func Identity(t TypeRef) string {
	var sb strings.Builder
	writeIdentity(&sb, t)
	return sb.String()
}

func writeIdentity(sb *strings.Builder, t TypeRef) {
	for _, tag := range t.Tags {
		sb.WriteString("@")
		sb.WriteString(tag)
		sb.WriteString(" ")
	}
	if t.Variance != Invariant {
		sb.WriteString(t.Variance.String())
		sb.WriteString(" ")
	}
	if t.Star {
		sb.WriteString("*")
		return
	}
	sb.WriteString(t.Key())
	if len(t.Args) > 0 {
		sb.WriteString("<")
		for i, arg := range t.Args {
			if i > 0 {
				sb.WriteString(",")
			}
			writeIdentity(sb, arg)
		}
		sb.WriteString(">")
	}
	if t.Nullable {
		sb.WriteString("?")
	}
}
