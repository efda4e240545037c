package export

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/funvibe/given/internal/diagnostics"
)

// Encode returns the wire form of r as a given.v1.Report message.
func Encode(r *Report) ([]byte, error) {
	m, err := r.Message()
	if err != nil {
		return nil, err
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}
	return data, nil
}

// Decode parses a given.v1.Report message.
func Decode(data []byte) (*Report, error) {
	s, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	m := dynamicpb.NewMessage(s.Report)
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	return FromMessage(m), nil
}

// Message builds the dynamic given.v1.Report message of r.
func (r *Report) Message() (*dynamicpb.Message, error) {
	s, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	m := dynamicpb.NewMessage(s.Report)
	w := message{m}
	w.setString("session", r.Session)
	for _, g := range r.Graphs {
		writeGraph(w.add("graphs"), g)
	}
	for _, d := range r.Diagnostics {
		dm := w.add("diagnostics")
		dm.setString("code", string(d.Code))
		dm.setString("severity", d.Severity.String())
		writeSpan(dm.child("span"), d.Span)
		dm.setString("message", d.Message)
	}
	return m, nil
}

// FromMessage reads a given.v1.Report message.
func FromMessage(m protoreflect.Message) *Report {
	rd := message{m}
	r := &Report{Session: rd.string("session")}
	for _, gm := range rd.list("graphs") {
		r.Graphs = append(r.Graphs, readGraph(gm))
	}
	for _, dm := range rd.list("diagnostics") {
		sev := diagnostics.Error
		if dm.string("severity") == diagnostics.Warning.String() {
			sev = diagnostics.Warning
		}
		r.Diagnostics = append(r.Diagnostics, diagnostics.Diagnostic{
			Code:     diagnostics.Code(dm.string("code")),
			Severity: sev,
			Span:     readSpan(dm.get("span")),
			Message:  dm.string("message"),
		})
	}
	return r
}

func writeGraph(w message, g Graph) {
	writeSpan(w.child("site"), g.Site)
	w.setString("callee", g.Callee)
	for _, b := range g.Results {
		writeBinding(w.add("results"), b)
	}
	if f := g.Failure; f != nil {
		fm := w.child("failure")
		fm.setString("code", string(f.Code))
		fm.setString("reason", f.Reason)
		fm.setString("message", f.Message)
		fm.setStrings("path", f.Path)
		fm.setStrings("candidates", f.Candidates)
	}
	w.setStrings("used_imports", g.UsedImports)
}

func readGraph(rd message) Graph {
	g := Graph{
		Site:        readSpan(rd.get("site")),
		Callee:      rd.string("callee"),
		UsedImports: rd.strings("used_imports"),
	}
	for _, bm := range rd.list("results") {
		g.Results = append(g.Results, readBinding(bm))
	}
	if fm, ok := rd.lookup("failure"); ok {
		g.Failure = &Failure{
			Code:       diagnostics.Code(fm.string("code")),
			Reason:     fm.string("reason"),
			Message:    fm.string("message"),
			Path:       fm.strings("path"),
			Candidates: fm.strings("candidates"),
		}
	}
	return g
}

func writeBinding(w message, b Binding) {
	w.setString("parameter", b.Parameter)
	w.setString("type", b.Type)
	w.setBool("defaulted", b.Defaulted)
	w.setBool("spread", b.Spread)
	if n := b.Node; n != nil {
		nm := w.child("node")
		nm.setString("kind", n.Kind)
		nm.setString("candidate", n.Candidate)
		nm.setString("type", n.Type)
		nm.setString("value", n.Value)
		nm.setString("import_path", n.ImportPath)
		nm.setStrings("params", n.Params)
		for _, c := range n.Children {
			writeBinding(nm.add("children"), c)
		}
	}
}

func readBinding(rd message) Binding {
	b := Binding{
		Parameter: rd.string("parameter"),
		Type:      rd.string("type"),
		Defaulted: rd.bool("defaulted"),
		Spread:    rd.bool("spread"),
	}
	if nm, ok := rd.lookup("node"); ok {
		b.Node = &Node{
			Kind:       nm.string("kind"),
			Candidate:  nm.string("candidate"),
			Type:       nm.string("type"),
			Value:      nm.string("value"),
			ImportPath: nm.string("import_path"),
			Params:     nm.strings("params"),
		}
		for _, cm := range nm.list("children") {
			b.Node.Children = append(b.Node.Children, readBinding(cm))
		}
	}
	return b
}

func writeSpan(w message, s diagnostics.Span) {
	w.setString("file", s.File)
	w.setInt("start", s.Start)
	w.setInt("end", s.End)
}

func readSpan(rd message) diagnostics.Span {
	return diagnostics.Span{File: rd.string("file"), Start: rd.int("start"), End: rd.int("end")}
}

// message reads and writes fields of a dynamic message by name.
type message struct {
	protoreflect.Message
}

func (m message) field(name string) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic(fmt.Sprintf("%s has no field %s", m.Descriptor().FullName(), name))
	}
	return fd
}

func (m message) setString(name, v string) {
	if v != "" {
		m.Set(m.field(name), protoreflect.ValueOfString(v))
	}
}

func (m message) setBool(name string, v bool) {
	if v {
		m.Set(m.field(name), protoreflect.ValueOfBool(v))
	}
}

func (m message) setInt(name string, v int) {
	if v != 0 {
		m.Set(m.field(name), protoreflect.ValueOfInt32(int32(v)))
	}
}

func (m message) setStrings(name string, vs []string) {
	if len(vs) == 0 {
		return
	}
	l := m.Mutable(m.field(name)).List()
	for _, v := range vs {
		l.Append(protoreflect.ValueOfString(v))
	}
}

// child returns the singular message field name, creating it.
func (m message) child(name string) message {
	return message{m.Mutable(m.field(name)).Message()}
}

// add appends a new element to the repeated message field name.
func (m message) add(name string) message {
	l := m.Mutable(m.field(name)).List()
	v := l.NewElement()
	l.Append(v)
	return message{v.Message()}
}

func (m message) string(name string) string {
	return m.Get(m.field(name)).String()
}

func (m message) bool(name string) bool {
	return m.Get(m.field(name)).Bool()
}

func (m message) int(name string) int {
	return int(m.Get(m.field(name)).Int())
}

func (m message) strings(name string) []string {
	l := m.Get(m.field(name)).List()
	var out []string
	for i := 0; i < l.Len(); i++ {
		out = append(out, l.Get(i).String())
	}
	return out
}

func (m message) get(name string) message {
	return message{m.Get(m.field(name)).Message()}
}

// lookup returns the singular message field name if it is set.
func (m message) lookup(name string) (message, bool) {
	fd := m.field(name)
	if !m.Has(fd) {
		return message{}, false
	}
	return message{m.Get(fd).Message()}, true
}

func (m message) list(name string) []message {
	l := m.Get(m.field(name)).List()
	out := make([]message, l.Len())
	for i := range out {
		out[i] = message{l.Get(i).Message()}
	}
	return out
}
