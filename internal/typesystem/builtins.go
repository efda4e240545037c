package typesystem

import (
	"fmt"

	"github.com/funvibe/given/internal/config"
)

// Well-known classifiers. Any is the top type and Nothing the bottom type.
var (
	Any     = &Classifier{Key: config.AnyTypeName, Name: config.AnyTypeName}
	Nothing = &Classifier{Key: config.NothingTypeName, Name: config.NothingTypeName}
	Unit    = &Classifier{Key: config.UnitTypeName, Name: config.UnitTypeName}

	Number  = &Classifier{Key: config.NumberTypeName, Name: config.NumberTypeName}
	Int     = &Classifier{Key: config.IntTypeName, Name: config.IntTypeName, Supertypes: []TypeRef{{Classifier: Number}}}
	Long    = &Classifier{Key: config.LongTypeName, Name: config.LongTypeName, Supertypes: []TypeRef{{Classifier: Number}}}
	Boolean = &Classifier{Key: config.BoolTypeName, Name: config.BoolTypeName}

	CharSequence = &Classifier{Key: config.CharSeqTypeName, Name: config.CharSeqTypeName}
	String       = &Classifier{Key: config.StringTypeName, Name: config.StringTypeName, Supertypes: []TypeRef{{Classifier: CharSequence}}}

	Collection = newGeneric(config.CollectionTypeName, Covariant)
	List       = newGeneric(config.ListTypeName, Covariant)

	TypeKey   = newGeneric(config.TypeKeyTypeName, Invariant)
	SourceKey = &Classifier{Key: config.SourceKeyTypeName, Name: config.SourceKeyTypeName}

	// Functions holds Function0..FunctionN indexed by arity.
	Functions = make([]*Classifier, config.MaxFunctionArity+1)
)

func init() {
	List.Supertypes = []TypeRef{NewType(Collection, TypeRef{Classifier: List.TypeParams[0]})}
	for arity := 0; arity <= config.MaxFunctionArity; arity++ {
		name := fmt.Sprintf("%s%d", config.FunctionTypePrefix, arity)
		fn := &Classifier{Key: name, Name: name}
		for i := 0; i < arity; i++ {
			fn.TypeParams = append(fn.TypeParams, &Classifier{
				Key:             fmt.Sprintf("%s.P%d", name, i+1),
				Name:            fmt.Sprintf("P%d", i+1),
				IsTypeParameter: true,
				Variance:        Contravariant,
			})
		}
		fn.TypeParams = append(fn.TypeParams, &Classifier{
			Key:             name + ".R",
			Name:            "R",
			IsTypeParameter: true,
			Variance:        Covariant,
		})
		Functions[arity] = fn
	}
}

func newGeneric(name string, v Variance) *Classifier {
	return &Classifier{
		Key:  name,
		Name: name,
		TypeParams: []*Classifier{{
			Key:             name + ".T",
			Name:            "T",
			IsTypeParameter: true,
			Variance:        v,
		}},
	}
}

// Builtins returns every built-in classifier keyed by name.
func Builtins() map[string]*Classifier {
	out := map[string]*Classifier{}
	for _, c := range []*Classifier{Any, Nothing, Unit, Number, Int, Long, Boolean, CharSequence, String, Collection, List, TypeKey, SourceKey} {
		out[c.Key] = c
	}
	for _, fn := range Functions {
		out[fn.Key] = fn
	}
	return out
}

// FunctionArity returns the arity of a FunctionN classifier.
func FunctionArity(c *Classifier) (int, bool) {
	if c == nil {
		return 0, false
	}
	for arity, fn := range Functions {
		if fn.Key == c.Key {
			return arity, true
		}
	}
	return 0, false
}

// NullableAny is the implicit upper bound of an unbounded type parameter.
func NullableAny() TypeRef {
	return TypeRef{Classifier: Any, Nullable: true}
}

// DefaultFor returns the type an uninferred type parameter is fixed to: its
// first upper bound, or Any?.
func DefaultFor(p *Classifier) TypeRef {
	if len(p.Supertypes) > 0 {
		return p.Supertypes[0]
	}
	return NullableAny()
}
