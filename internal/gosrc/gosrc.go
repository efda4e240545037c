// Package gosrc reads Go packages as a program: named types become
// classes, functions and methods become declarations, and calls inside
// function bodies become call sites. Providers and requested parameters
// are marked with //given: directives in doc comments, constructor
// parameters of provider types with `given:"..."` struct tags.
//
// A call requests a requested parameter by passing nil for it:
//
//	//given:requested svc
//	func Run(svc *Service) { ... }
//
//	func main() {
//		Run(nil) // svc is resolved
//	}
package gosrc

import (
	"fmt"
	goast "go/ast"
	"go/token"
	"go/types"
	"os"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedSyntax |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedModule

// Load loads the Go packages matching patterns, relative to dir.
func Load(dir string, patterns ...string) (*ast.Program, error) {
	cfg := &packages.Config{
		Mode: loadMode,
		Dir:  dir,
		Env:  append(os.Environ(), "GOWORK=off"),
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	return FromPackages(pkgs)
}

// FromPackages converts loaded packages. Packages of the same module
// imported by them are added as external units.
func FromPackages(roots []*packages.Package) (*ast.Program, error) {
	c := &converter{
		classes:     make(map[types.Object]*symbols.Decl),
		classNodes:  make(map[*symbols.Decl]*ast.Class),
		funcs:       make(map[types.Object]*symbols.Decl),
		typeParams:  make(map[*types.TypeParam]*typesystem.Classifier),
		opaques:     make(map[string]*typesystem.Classifier),
		localCounts: make(map[string]int),
	}
	c.collect(roots)

	for _, u := range c.units {
		if err := c.declareTypes(u); err != nil {
			return nil, err
		}
	}
	for _, u := range c.units {
		if err := c.declareFuncs(u); err != nil {
			return nil, err
		}
	}
	for _, u := range c.units {
		if err := c.typeSignatures(u); err != nil {
			return nil, err
		}
	}
	for _, f := range c.pending {
		if err := c.funcSignature(f); err != nil {
			return nil, err
		}
	}
	for _, f := range c.pending {
		if !f.unit.unit.External && f.syntax.Body != nil {
			f.node.Body = c.block(f, f.syntax.Body.List, f.syntax.Body.Pos(), f.syntax.Body.End())
		}
	}

	program := &ast.Program{}
	for _, u := range c.units {
		program.Units = append(program.Units, u.unit)
	}
	return program, nil
}

type unitState struct {
	pkg   *packages.Package
	unit  *ast.Unit
	files map[*goast.File]*ast.File
}

type funcState struct {
	unit    *unitState
	file    *goast.File
	syntax  *goast.FuncDecl
	obj     *types.Func
	decl    *symbols.Decl
	node    *ast.Function
	markers markers
}

type converter struct {
	units       []*unitState
	classes     map[types.Object]*symbols.Decl
	classNodes  map[*symbols.Decl]*ast.Class
	funcs       map[types.Object]*symbols.Decl
	typeParams  map[*types.TypeParam]*typesystem.Classifier
	opaques     map[string]*typesystem.Classifier
	localCounts map[string]int
	pending     []*funcState
}

// collect orders the units: roots first, then the packages of their
// modules they import.
func (c *converter) collect(roots []*packages.Package) {
	seen := make(map[string]bool)
	modules := make(map[string]bool)
	add := func(pkg *packages.Package, external bool) {
		seen[pkg.PkgPath] = true
		u := &unitState{
			pkg:   pkg,
			unit:  &ast.Unit{Package: pkg.PkgPath, External: external},
			files: make(map[*goast.File]*ast.File),
		}
		for i, f := range pkg.Syntax {
			path := pkg.Fset.Position(f.Pos()).Filename
			if i < len(pkg.CompiledGoFiles) {
				path = pkg.CompiledGoFiles[i]
			}
			file := &ast.File{
				Path:    path,
				Package: pkg.PkgPath,
				Loc:     c.span(pkg.Fset, f.Pos(), f.End()),
				Origin:  path,
			}
			for _, imp := range f.Imports {
				file.Imports = append(file.Imports, strings.Trim(imp.Path.Value, "\"`")+".*")
			}
			u.unit.Files = append(u.unit.Files, file)
			u.files[f] = file
		}
		c.units = append(c.units, u)
	}

	for _, pkg := range roots {
		if seen[pkg.PkgPath] {
			continue
		}
		if pkg.Module != nil {
			modules[pkg.Module.Path] = true
		}
		add(pkg, false)
	}
	queue := append([]*packages.Package(nil), roots...)
	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]
		for _, imp := range pkg.Imports {
			if seen[imp.PkgPath] || imp.Module == nil || !modules[imp.Module.Path] {
				continue
			}
			add(imp, true)
			queue = append(queue, imp)
		}
	}
}

func (c *converter) span(fset *token.FileSet, pos, end token.Pos) diagnostics.Span {
	p, e := fset.Position(pos), fset.Position(end)
	return diagnostics.Span{File: p.Filename, Start: p.Offset, End: e.Offset}
}

func (c *converter) errorf(fset *token.FileSet, pos token.Pos, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", fset.Position(pos), fmt.Sprintf(format, args...))
}

// declareTypes registers every named type of u as a class.
func (c *converter) declareTypes(u *unitState) error {
	pkg := u.pkg
	for _, f := range pkg.Syntax {
		for _, d := range f.Decls {
			gen, ok := d.(*goast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, s := range gen.Specs {
				spec := s.(*goast.TypeSpec)
				obj, ok := pkg.TypesInfo.Defs[spec.Name].(*types.TypeName)
				if !ok || obj.IsAlias() {
					continue
				}
				doc := spec.Doc
				if doc == nil && len(gen.Specs) == 1 {
					doc = gen.Doc
				}
				m, err := parseMarkers(doc)
				if err != nil {
					return c.errorf(pkg.Fset, spec.Pos(), "%s: %v", spec.Name.Name, err)
				}

				decl := &symbols.Decl{
					ID:        objectKey(obj),
					Name:      obj.Name(),
					Package:   pkg.PkgPath,
					Kind:      symbols.ClassDecl,
					Provide:   m.provide,
					Preferred: m.preferred,
					Priority:  m.priority,
					Entry:     m.entry,
					Span:      c.span(pkg.Fset, spec.Pos(), spec.End()),
				}
				decl.Class = &typesystem.Classifier{Key: decl.ID, Name: decl.Name}
				if named, ok := obj.Type().(*types.Named); ok {
					decl.TypeParams = c.declareTypeParams(decl, named.TypeParams(), m)
					decl.Class.TypeParams = decl.TypeParams
				}
				decl.Type = decl.Class.Type()
				c.classes[obj] = decl

				node := &ast.Class{Decl: decl, Loc: decl.Span}
				c.classNodes[decl] = node
				file := u.files[f]
				file.Decls = append(file.Decls, node)
			}
		}
	}
	return nil
}

func (c *converter) declareTypeParams(owner *symbols.Decl, list *types.TypeParamList, m markers) []*typesystem.Classifier {
	var out []*typesystem.Classifier
	for i := 0; i < list.Len(); i++ {
		tp := list.At(i)
		cl := &typesystem.Classifier{
			Key:             owner.ID + "." + tp.Obj().Name(),
			Name:            tp.Obj().Name(),
			IsTypeParameter: true,
			Pattern:         contains(m.patterns, tp.Obj().Name()),
		}
		c.typeParams[tp] = cl
		out = append(out, cl)
	}
	return out
}

// declareFuncs registers functions and methods. Methods become members of
// their receiver's class.
func (c *converter) declareFuncs(u *unitState) error {
	pkg := u.pkg
	for _, f := range pkg.Syntax {
		for _, d := range f.Decls {
			fd, ok := d.(*goast.FuncDecl)
			if !ok || (fd.Recv == nil && fd.Name.Name == "init") {
				continue
			}
			obj, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
			if !ok {
				continue
			}
			m, err := parseMarkers(fd.Doc)
			if err != nil {
				return c.errorf(pkg.Fset, fd.Pos(), "%s: %v", fd.Name.Name, err)
			}
			sig := obj.Type().(*types.Signature)

			decl := &symbols.Decl{
				Name:      obj.Name(),
				Package:   pkg.PkgPath,
				Kind:      symbols.FunctionDecl,
				Provide:   m.provide,
				Preferred: m.preferred,
				Priority:  m.priority,
				Entry:     m.entry,
				Span:      c.span(pkg.Fset, fd.Pos(), fd.End()),
			}
			fs := &funcState{unit: u, file: f, syntax: fd, obj: obj, decl: decl, markers: m}
			fs.node = &ast.Function{Decl: decl, Loc: decl.Span}

			if recv := sig.Recv(); recv != nil {
				owner, ok := c.receiverClass(recv.Type())
				if !ok {
					continue
				}
				decl.ID = owner.ID + "." + obj.Name()
				decl.Owner = owner
				// Receiver type parameters are the class's own.
				for i := 0; i < sig.RecvTypeParams().Len() && i < len(owner.TypeParams); i++ {
					c.typeParams[sig.RecvTypeParams().At(i)] = owner.TypeParams[i]
				}
				owner.Members = append(owner.Members, decl)
				node := c.classNodes[owner]
				node.Members = append(node.Members, fs.node)
			} else {
				decl.ID = objectKey(obj)
				file := u.files[f]
				file.Decls = append(file.Decls, fs.node)
			}
			decl.TypeParams = c.declareTypeParams(decl, sig.TypeParams(), m)
			for _, p := range m.patterns {
				if !hasTypeParam(decl, p) {
					return c.errorf(pkg.Fset, fd.Pos(), "%s: no type parameter %s", fd.Name.Name, p)
				}
			}

			c.funcs[obj] = decl
			c.pending = append(c.pending, fs)
		}
	}
	return nil
}

func hasTypeParam(d *symbols.Decl, name string) bool {
	for _, tp := range d.TypeParams {
		if tp.Name == name {
			return true
		}
	}
	return false
}

func (c *converter) receiverClass(t types.Type) (*symbols.Decl, bool) {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return nil, false
	}
	d, ok := c.classes[named.Origin().Obj()]
	return d, ok
}

// typeSignatures resolves the supertypes, constraints and constructor
// parameters of u's classes.
func (c *converter) typeSignatures(u *unitState) error {
	for obj, decl := range c.classes {
		if obj.Pkg() != u.pkg.Types {
			continue
		}
		named := obj.Type().(*types.Named)
		c.constrain(decl.TypeParams, named.TypeParams())

		decl.Class.Supertypes = append(decl.Class.Supertypes, c.supertypes(named)...)

		st, ok := named.Underlying().(*types.Struct)
		if !ok {
			continue
		}
		for i := 0; i < st.NumFields(); i++ {
			tag, ok := reflect.StructTag(st.Tag(i)).Lookup(config.GoFieldTag)
			if !ok {
				continue
			}
			field := st.Field(i)
			opts, err := parseFieldTag(tag)
			if err != nil {
				return c.errorf(u.pkg.Fset, field.Pos(), "%s.%s: %v", obj.Name(), field.Name(), err)
			}
			decl.Params = append(decl.Params, symbols.Param{
				Name:       field.Name(),
				Type:       c.typeRef(field.Type()),
				Typed:      true,
				Requested:  opts.requested,
				HasDefault: opts.optional,
				Property:   opts.provide,
				Provide:    opts.provide,
				Span:       c.span(u.pkg.Fset, field.Pos(), field.Pos()+token.Pos(len(field.Name()))),
			})
		}
	}
	return nil
}

// supertypes lists the embedded types of a struct or interface and the
// interfaces of the loaded units that the type implements.
func (c *converter) supertypes(named *types.Named) []typesystem.TypeRef {
	var out []typesystem.TypeRef
	seen := make(map[string]bool)
	add := func(t typesystem.TypeRef) {
		if t.Classifier == nil || t.Classifier == typesystem.Any || seen[t.Key()] {
			return
		}
		seen[t.Key()] = true
		out = append(out, t)
	}

	switch u := named.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if u.Field(i).Embedded() {
				add(c.typeRef(u.Field(i).Type()))
			}
		}
	case *types.Interface:
		for i := 0; i < u.NumEmbeddeds(); i++ {
			add(c.typeRef(u.EmbeddedType(i)))
		}
		return out
	}

	for obj, decl := range c.classes {
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok || iface.NumMethods() == 0 || len(decl.TypeParams) > 0 || obj == named.Obj() {
			continue
		}
		if types.Implements(named, iface) || types.Implements(types.NewPointer(named), iface) {
			add(decl.Class.Type())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (c *converter) constrain(params []*typesystem.Classifier, list *types.TypeParamList) {
	for i, cl := range params {
		if i >= list.Len() {
			return
		}
		bound := list.At(i).Constraint()
		if named, ok := types.Unalias(bound).(*types.Named); ok {
			if d, ok := c.classes[named.Origin().Obj()]; ok {
				cl.Supertypes = append(cl.Supertypes, d.Class.Type())
			}
		}
	}
}

// funcSignature resolves the parameters and result of a function.
func (c *converter) funcSignature(f *funcState) error {
	sig := f.obj.Type().(*types.Signature)
	c.constrain(f.decl.TypeParams, sig.TypeParams())

	var names []string
	for i := 0; i < sig.Params().Len(); i++ {
		v := sig.Params().At(i)
		names = append(names, v.Name())
		f.decl.Params = append(f.decl.Params, symbols.Param{
			Name:       v.Name(),
			Type:       c.typeRef(v.Type()),
			Typed:      true,
			Requested:  f.markers.isRequested(v.Name()),
			HasDefault: contains(f.markers.optional, v.Name()),
			Span:       c.span(f.unit.pkg.Fset, v.Pos(), v.Pos()+token.Pos(len(v.Name()))),
		})
	}
	for _, name := range append(append([]string(nil), f.markers.requested...), f.markers.optional...) {
		if !contains(names, name) {
			return c.errorf(f.unit.pkg.Fset, f.syntax.Pos(), "%s: no parameter %s", f.decl.Name, name)
		}
	}
	f.decl.Type = c.resultType(sig)
	return nil
}
