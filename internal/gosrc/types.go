package gosrc

import (
	"fmt"
	"go/types"
	"strings"

	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/typesystem"
)

// typeRef maps a Go type onto the resolver's type model. Pointers are
// dropped: *T and T request the same capability. Types the model has no
// counterpart for become opaque classifiers named after the Go type.
func (c *converter) typeRef(t types.Type) typesystem.TypeRef {
	switch t := types.Unalias(t).(type) {
	case *types.Basic:
		return typesystem.NewType(basic(t))

	case *types.Pointer:
		return c.typeRef(t.Elem())

	case *types.Slice:
		return typesystem.NewType(typesystem.List, c.typeRef(t.Elem()))

	case *types.Signature:
		if t.Params().Len() > config.MaxFunctionArity || t.Variadic() {
			return typesystem.NewType(c.opaque(types.TypeString(t, nil), 0))
		}
		var args []typesystem.TypeRef
		for i := 0; i < t.Params().Len(); i++ {
			args = append(args, c.typeRef(t.Params().At(i).Type()))
		}
		args = append(args, c.resultType(t))
		return typesystem.NewType(typesystem.Functions[t.Params().Len()], args...)

	case *types.TypeParam:
		if tp, ok := c.typeParams[t]; ok {
			return typesystem.TypeRef{Classifier: tp}
		}
		return typesystem.NullableAny()

	case *types.Interface:
		if t.Empty() {
			return typesystem.NullableAny()
		}
		return typesystem.NewType(c.opaque(types.TypeString(t, nil), 0))

	case *types.Named:
		var args []typesystem.TypeRef
		for i := 0; i < t.TypeArgs().Len(); i++ {
			args = append(args, c.typeRef(t.TypeArgs().At(i)))
		}
		if d, ok := c.classes[t.Origin().Obj()]; ok {
			return typesystem.NewType(d.Class, args...)
		}
		return typesystem.NewType(c.opaque(objectKey(t.Obj()), len(args)), args...)
	}
	return typesystem.NewType(c.opaque(types.TypeString(t, nil), 0))
}

// resultType is the first result of sig, or Unit.
func (c *converter) resultType(sig *types.Signature) typesystem.TypeRef {
	if sig.Results().Len() == 0 {
		return typesystem.NewType(typesystem.Unit)
	}
	return c.typeRef(sig.Results().At(0).Type())
}

func basic(t *types.Basic) *typesystem.Classifier {
	switch {
	case t.Kind() == types.String:
		return typesystem.String
	case t.Kind() == types.Bool:
		return typesystem.Boolean
	case t.Kind() == types.Int64 || t.Kind() == types.Uint64:
		return typesystem.Long
	case t.Info()&types.IsInteger != 0:
		return typesystem.Int
	case t.Info()&types.IsNumeric != 0:
		return typesystem.Number
	case t.Kind() == types.UntypedNil:
		return typesystem.Nothing
	}
	return typesystem.Any
}

// opaque returns the classifier standing for a Go type outside the loaded
// units, creating it on first use.
func (c *converter) opaque(key string, arity int) *typesystem.Classifier {
	if cl, ok := c.opaques[key]; ok {
		return cl
	}
	name := key
	if i := strings.LastIndex(key, "."); i >= 0 && !strings.ContainsAny(key, "()[]{} ") {
		name = key[i+1:]
	}
	cl := &typesystem.Classifier{Key: key, Name: name}
	for i := 0; i < arity; i++ {
		cl.TypeParams = append(cl.TypeParams, &typesystem.Classifier{
			Key:             fmt.Sprintf("%s.T%d", key, i),
			Name:            fmt.Sprintf("T%d", i),
			IsTypeParameter: true,
		})
	}
	c.opaques[key] = cl
	return cl
}

func objectKey(obj types.Object) string {
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}
