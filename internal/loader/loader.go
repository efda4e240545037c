// Package loader reads YAML program descriptions into an ast.Program.
//
// Declarations are resolved in three passes: every declaration and class
// is registered first, then signatures are resolved against them, and
// finally bodies are built, so declarations may refer to each other in any
// order and across files.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

// Error is a problem in a program description. Line and Column are zero
// when the problem is not tied to a position.
type Error struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
}

type source struct {
	path   string
	origin string
	lines  lineTable
	doc    *fileDoc
	file   *ast.File
}

type entry struct {
	src  *source
	doc  *declDoc
	decl *symbols.Decl
	env  *env
	node ast.Declaration
}

// Loader collects program descriptions and resolves them into one program.
type Loader struct {
	sources []*source

	decls    map[string]*symbols.Decl
	classes  map[string]*typesystem.Classifier
	builtins map[string]*typesystem.Classifier
	locals   map[string]int
	entries  []*entry
}

func New() *Loader {
	return &Loader{builtins: typesystem.Builtins()}
}

// Load reads the program descriptions at paths. Directories are searched
// recursively for files with a program extension.
func Load(paths ...string) (*ast.Program, error) {
	l := New()
	for _, p := range paths {
		if err := l.AddPath(p); err != nil {
			return nil, err
		}
	}
	return l.Program()
}

// Parse reads the program description in data. The path names documents
// that carry no file name of their own.
func Parse(data []byte, path string) (*ast.Program, error) {
	l := New()
	if err := l.Add(data, path); err != nil {
		return nil, err
	}
	return l.Program()
}

func (l *Loader) AddPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.addFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if config.HasProgramExt(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", path, err)
	}
	for _, f := range files {
		if err := l.addFile(f); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) addFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return l.add(data, path, path)
}

// Add parses the YAML documents of data, one per source file.
func (l *Loader) Add(data []byte, path string) error {
	return l.add(data, path, "")
}

func (l *Loader) add(data []byte, path, origin string) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	lines := newLineTable(data)
	for i := 0; ; i++ {
		var doc fileDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &Error{File: path, Msg: err.Error()}
		}

		name := doc.File
		if name == "" {
			name = path
			if i > 0 {
				name = fmt.Sprintf("%s#%d", path, i)
			}
		}
		src := &source{path: name, origin: origin, lines: lines, doc: &doc}
		if doc.Package == "" {
			return l.errorf(src, doc.pos, "missing package")
		}
		for j, imp := range doc.Imports {
			if err := config.ValidateImportPattern(imp); err != nil {
				return l.errorf(src, doc.pos, "imports[%d]: %v", j, err)
			}
		}
		for _, other := range l.sources {
			if other.path == name {
				return l.errorf(src, doc.pos, "file %s described twice", name)
			}
		}
		l.sources = append(l.sources, src)
	}
}

// Program resolves everything added so far. It may be called once.
func (l *Loader) Program() (*ast.Program, error) {
	l.decls = make(map[string]*symbols.Decl)
	l.classes = make(map[string]*typesystem.Classifier)
	l.locals = make(map[string]int)

	for _, src := range l.sources {
		if err := l.declareFile(src); err != nil {
			return nil, err
		}
	}
	for _, e := range l.entries {
		if err := l.signature(e); err != nil {
			return nil, err
		}
	}
	for _, e := range l.entries {
		if err := l.body(e); err != nil {
			return nil, err
		}
	}
	return l.assemble()
}

func (l *Loader) assemble() (*ast.Program, error) {
	program := &ast.Program{}
	units := make(map[string]*ast.Unit)
	for _, src := range l.sources {
		pkg := src.doc.Package
		u, ok := units[pkg]
		if !ok {
			u = &ast.Unit{Package: pkg, External: src.doc.External}
			units[pkg] = u
			program.Units = append(program.Units, u)
		} else if u.External != src.doc.External {
			return nil, l.errorf(src, src.doc.pos, "package %s mixes external and analyzed files", pkg)
		}
		u.Files = append(u.Files, src.file)
	}
	return program, nil
}

func (l *Loader) errorf(src *source, p position, format string, args ...interface{}) *Error {
	return &Error{File: src.path, Line: p.line, Column: p.column, Msg: fmt.Sprintf(format, args...)}
}

func (l *Loader) span(src *source, p position) diagnostics.Span {
	return src.lines.span(src.path, p)
}
