package typesystem

import (
	"fmt"
	"sort"
)

// Unify finds a substitution for vars such that template.Apply(subst) is a
// subtype of target. vars are the inferable type parameters keyed by
// classifier key; every other type parameter is treated as a nominal type.
// Bindings are checked against the variables' upper bounds.
func Unify(template, target TypeRef, vars map[string]*Classifier) (Subst, error) {
	u := &unifier{vars: vars, subst: Subst{}, visited: map[string]bool{}}
	if err := u.match(template, target, Covariant); err != nil {
		return nil, err
	}
	if err := u.checkBounds(); err != nil {
		return nil, err
	}
	return u.subst, nil
}

// VarsOf indexes type parameters by key.
func VarsOf(params []*Classifier) map[string]*Classifier {
	vars := make(map[string]*Classifier, len(params))
	for _, p := range params {
		vars[p.Key] = p
	}
	return vars
}

type unifier struct {
	vars    map[string]*Classifier
	subst   Subst
	visited map[string]bool
}

// match records bindings so that template relates to target according to pos:
// Covariant means template <: target, Contravariant target <: template and
// Invariant both.
func (u *unifier) match(template, target TypeRef, pos Variance) error {
	if template.IsTypeParameter() {
		if _, ok := u.vars[template.Classifier.Key]; ok {
			return u.bindVar(template, target, pos)
		}
	}

	// Co-induction: the same comparison already in progress is assumed to hold.
	key := fmt.Sprintf("%d|%s|%s", pos, Identity(template), Identity(target))
	if u.visited[key] {
		return nil
	}
	u.visited[key] = true

	if target.Star {
		return nil
	}
	if template.Star {
		return errUnifyMsg(template, target, "star projection cannot be matched")
	}
	if !tagsEqual(template.Tags, target.Tags) {
		return errUnifyMsg(template, target, "tags differ")
	}

	switch pos {
	case Covariant:
		if template.Nullable && !target.Nullable {
			return errUnifyMsg(template, target, "nullable type does not match non-null type")
		}
		if target.IsAny() || template.IsNothing() {
			return nil
		}
		view, ok := SupertypeView(template, target.Classifier)
		if !ok {
			return errUnify(template, target)
		}
		return u.matchArgs(target.Classifier, view.Args, target.Args, false)

	case Contravariant:
		if target.Nullable && !template.Nullable {
			return errUnifyMsg(template, target, "nullable type does not match non-null type")
		}
		if template.IsAny() || target.IsNothing() {
			return nil
		}
		view, ok := SupertypeView(target, template.Classifier)
		if !ok {
			return errUnify(template, target)
		}
		return u.matchArgs(template.Classifier, template.Args, view.Args, true)

	default:
		if template.Nullable != target.Nullable || template.Key() != target.Key() {
			return errUnify(template, target)
		}
		if len(template.Args) != len(target.Args) {
			return errUnifyMsg(template, target, "argument count differs")
		}
		for i := range template.Args {
			if err := u.match(stripVariance(template.Args[i]), stripVariance(target.Args[i]), Invariant); err != nil {
				return errUnifyContext(template.String(), err)
			}
		}
		return nil
	}
}

// matchArgs relates template arguments to target arguments of classifier c.
// reversed is set when the template is the expected supertype.
func (u *unifier) matchArgs(c *Classifier, templateArgs, targetArgs []TypeRef, reversed bool) error {
	if len(targetArgs) == 0 || len(templateArgs) == 0 {
		return nil
	}
	if len(templateArgs) != len(targetArgs) {
		return fmt.Errorf("argument count differs for %s", c)
	}
	for i := range targetArgs {
		superArg := targetArgs[i]
		if reversed {
			superArg = templateArgs[i]
		}
		if superArg.Star {
			continue
		}
		v := effectiveVariance(c.TypeParams, i, superArg)
		if reversed {
			v = Contravariant.compose(v)
		}
		if err := u.match(stripVariance(templateArgs[i]), stripVariance(targetArgs[i]), v); err != nil {
			return errUnifyContext(c.String(), err)
		}
	}
	return nil
}

func (u *unifier) bindVar(use, target TypeRef, pos Variance) error {
	if target.Star {
		return nil
	}
	key := use.Classifier.Key

	for _, tag := range use.Tags {
		if !containsTag(target.Tags, tag) {
			return errUnifyMsg(use, target, "tag missing")
		}
	}
	binding := target.WithoutTags(use.Tags...)
	binding.Variance = Invariant
	if use.Nullable {
		if !target.Nullable && pos != Contravariant {
			return errUnifyMsg(use, target, "nullable type does not match non-null type")
		}
		binding.Nullable = false
	}

	if binding.Key() == key {
		return nil
	}
	if Contains(binding, key) {
		return errMismatch(fmt.Sprintf("infinite type detected: %s in %s", use.Classifier, binding))
	}

	existing, ok := u.subst[key]
	if !ok {
		u.subst[key] = binding
		return nil
	}
	switch {
	case IsSubtypeOf(existing, binding) && IsSubtypeOf(binding, existing):
		return nil
	case pos == Covariant && IsSubtypeOf(existing, binding):
		// existing already satisfies the weaker constraint
		return nil
	case pos == Contravariant && IsSubtypeOf(binding, existing):
		return nil
	default:
		return errMismatch(fmt.Sprintf("conflicting bindings for %s: %s and %s", use.Classifier, existing, binding))
	}
}

// checkBounds relates every binding to its variable's upper bounds. Bounds
// mentioning other variables may bind them, so this iterates to a fixpoint.
func (u *unifier) checkBounds() error {
	keys := make([]string, 0, len(u.vars))
	for k := range u.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for pass := 0; pass <= len(keys); pass++ {
		before := len(u.subst)
		for _, k := range keys {
			binding, ok := u.subst[k]
			if !ok {
				continue
			}
			for _, bound := range u.vars[k].Supertypes {
				if err := u.match(bound, binding, Contravariant); err != nil {
					return fmt.Errorf("%s violates upper bound %s of %s: %w", binding, bound, u.vars[k], err)
				}
			}
		}
		if len(u.subst) == before {
			break
		}
	}

	for _, k := range keys {
		binding, ok := u.subst[k]
		if !ok {
			continue
		}
		for _, bound := range u.vars[k].Supertypes {
			applied := bound.Apply(u.subst)
			if len(freeVars(applied, u.vars)) > 0 {
				continue
			}
			if !IsSubtypeOf(binding, applied) {
				return errMismatch(fmt.Sprintf("%s violates upper bound %s of %s", binding, applied, u.vars[k]))
			}
		}
	}
	return nil
}

func freeVars(t TypeRef, vars map[string]*Classifier) []*Classifier {
	var out []*Classifier
	for _, p := range FreeTypeParameters(t) {
		if _, ok := vars[p.Key]; ok {
			out = append(out, p)
		}
	}
	return out
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
