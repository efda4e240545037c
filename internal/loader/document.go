package loader

import (
	"gopkg.in/yaml.v3"

	"github.com/funvibe/given/internal/diagnostics"
)

// A program description holds one YAML document per source file:
//
//	file: app/main.given          # optional, defaults to the loaded path
//	package: app
//	imports: [lib.*]
//	declarations:
//	  - name: provideA
//	    provide: true
//	    type: A
//	  - name: main
//	    body:
//	      - local: b
//	        type: B
//	        provide: true
//	        init:
//	          - call: provideB
//	      - call: useB
type fileDoc struct {
	File     string     `yaml:"file"`
	Package  string     `yaml:"package"`
	External bool       `yaml:"external"`
	Imports  []string   `yaml:"imports"`
	Decls    []*declDoc `yaml:"declarations"`

	pos position
}

func (d *fileDoc) UnmarshalYAML(value *yaml.Node) error {
	type plain fileDoc
	if err := value.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = positionOf(value)
	return nil
}

type declDoc struct {
	Kind       string          `yaml:"kind"` // function (default), property or class
	Name       string          `yaml:"name"`
	Provide    bool            `yaml:"provide"`
	Preferred  *int            `yaml:"preferred"`
	Private    bool            `yaml:"private"`
	Entry      bool            `yaml:"entry"`
	TypeParams []*typeParamDoc `yaml:"typeParams"`
	Params     []*paramDoc     `yaml:"params"`
	Type       string          `yaml:"type"`
	Supertypes []string        `yaml:"supertypes"`
	Members    []*declDoc      `yaml:"members"`
	Companion  *declDoc        `yaml:"companion"`
	Body       []*stmtDoc      `yaml:"body"`

	pos position
}

func (d *declDoc) UnmarshalYAML(value *yaml.Node) error {
	type plain declDoc
	if err := value.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = positionOf(value)
	return nil
}

type typeParamDoc struct {
	Name     string   `yaml:"name"`
	Variance string   `yaml:"variance"`
	Pattern  bool     `yaml:"pattern"`
	Bounds   []string `yaml:"bounds"`
}

type paramDoc struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Requested bool   `yaml:"requested"`
	Default   bool   `yaml:"default"`
	Property  bool   `yaml:"property"`
	Provide   bool   `yaml:"provide"`

	pos position
}

func (d *paramDoc) UnmarshalYAML(value *yaml.Node) error {
	type plain paramDoc
	if err := value.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = positionOf(value)
	return nil
}

// stmtDoc is one statement of a body. Exactly one of Call, Local and Block is set.
type stmtDoc struct {
	Call     string   `yaml:"call"`
	TypeArgs []string `yaml:"typeArgs"`
	Explicit []string `yaml:"explicit"`

	Local   string     `yaml:"local"`
	Type    string     `yaml:"type"`
	Provide bool       `yaml:"provide"`
	Init    []*stmtDoc `yaml:"init"`

	Block []*stmtDoc `yaml:"block"`

	pos position
}

func (d *stmtDoc) UnmarshalYAML(value *yaml.Node) error {
	type plain stmtDoc
	if err := value.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = positionOf(value)
	return nil
}

// position is the 1-based extent of a YAML node.
type position struct {
	line, column       int
	endLine, endColumn int
}

func positionOf(n *yaml.Node) position {
	p := position{line: n.Line, column: n.Column}
	p.endLine, p.endColumn = extent(n)
	return p
}

// extent returns the position just past the last scalar below n.
func extent(n *yaml.Node) (int, int) {
	line, col := n.Line, n.Column+len(n.Value)
	if n.Kind == yaml.ScalarNode && n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		col += 2
	}
	for _, c := range n.Content {
		l, cc := extent(c)
		if l > line || (l == line && cc > col) {
			line, col = l, cc
		}
	}
	return line, col
}

// lineTable maps line and column numbers of a source to byte offsets.
type lineTable []int

func newLineTable(data []byte) lineTable {
	lines := lineTable{0}
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, i+1)
		}
	}
	return append(lines, len(data)+1)
}

func (t lineTable) offset(line, column int) int {
	if line < 1 {
		return 0
	}
	if line > len(t)-1 {
		return t[len(t)-1] - 1
	}
	off := t[line-1] + column - 1
	if end := t[line] - 1; off > end {
		off = end
	}
	return off
}

func (t lineTable) span(file string, p position) diagnostics.Span {
	s := diagnostics.Span{
		File:  file,
		Start: t.offset(p.line, p.column),
		End:   t.offset(p.endLine, p.endColumn),
	}
	if s.End <= s.Start {
		s.End = s.Start + 1
	}
	return s
}
