package export

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Request asks a resolution daemon to analyze a program description.
type Request struct {
	Path    string // Names the program in spans; defaults to the daemon's choice
	Program []byte // YAML program description
	Roots   []string
	Imports []string
}

// Message builds the dynamic given.v1.ResolveRequest message of r.
func (r *Request) Message() (*dynamicpb.Message, error) {
	s, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	m := dynamicpb.NewMessage(s.Request)
	w := message{m}
	w.setString("path", r.Path)
	if len(r.Program) > 0 {
		m.Set(w.field("program"), protoreflect.ValueOfBytes(r.Program))
	}
	w.setStrings("roots", r.Roots)
	w.setStrings("imports", r.Imports)
	return m, nil
}

// RequestFromMessage reads a given.v1.ResolveRequest message.
func RequestFromMessage(m protoreflect.Message) *Request {
	rd := message{m}
	return &Request{
		Path:    rd.string("path"),
		Program: rd.Get(rd.field("program")).Bytes(),
		Roots:   rd.strings("roots"),
		Imports: rd.strings("imports"),
	}
}

// NewReportMessage returns an empty given.v1.Report message to decode into.
func NewReportMessage() (*dynamicpb.Message, error) {
	s, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(s.Report), nil
}

// NewRequestMessage returns an empty given.v1.ResolveRequest message to
// decode into.
func NewRequestMessage() (*dynamicpb.Message, error) {
	s, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(s.Request), nil
}
