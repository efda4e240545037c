package export

import (
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// SchemaFile is the name the schema is registered under.
const SchemaFile = "given/v1/resolver.proto"

const schemaSource = `syntax = "proto3";

package given.v1;

message Span {
  string file = 1;
  int32 start = 2;
  int32 end = 3;
}

message Node {
  string kind = 1;
  string candidate = 2;
  string type = 3;
  string value = 4;
  string import_path = 5;
  repeated string params = 6;
  repeated Binding children = 7;
}

message Binding {
  string parameter = 1;
  string type = 2;
  bool defaulted = 3;
  bool spread = 4;
  Node node = 5;
}

message Failure {
  string code = 1;
  string reason = 2;
  string message = 3;
  repeated string path = 4;
  repeated string candidates = 5;
}

message Graph {
  Span site = 1;
  string callee = 2;
  repeated Binding results = 3;
  Failure failure = 4;
  repeated string used_imports = 5;
}

message Diagnostic {
  string code = 1;
  string severity = 2;
  Span span = 3;
  string message = 4;
}

message Report {
  string session = 1;
  repeated Graph graphs = 2;
  repeated Diagnostic diagnostics = 3;
}

message ResolveRequest {
  string path = 1;
  bytes program = 2;
  repeated string roots = 3;
  repeated string imports = 4;
}

service Resolver {
  rpc Resolve(ResolveRequest) returns (Report);
}
`

// Schema holds the parsed resolver protocol.
type Schema struct {
	File    *desc.FileDescriptor
	Service *desc.ServiceDescriptor

	Report  protoreflect.MessageDescriptor
	Request protoreflect.MessageDescriptor
}

var (
	schemaOnce sync.Once
	schema     *Schema
	schemaErr  error
)

// LoadSchema parses the resolver protocol once per process.
func LoadSchema() (*Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = parseSchema()
	})
	return schema, schemaErr
}

func parseSchema() (*Schema, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{SchemaFile: schemaSource}),
	}
	fds, err := parser.ParseFiles(SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto: %w", err)
	}
	fd := fds[0]

	s := &Schema{File: fd, Service: fd.FindService("given.v1.Resolver")}
	for name, target := range map[string]*protoreflect.MessageDescriptor{
		"given.v1.Report":         &s.Report,
		"given.v1.ResolveRequest": &s.Request,
	} {
		md := fd.FindMessage(name)
		if md == nil {
			return nil, fmt.Errorf("message %s not found in %s", name, SchemaFile)
		}
		*target = md.UnwrapMessage()
	}
	if s.Service == nil {
		return nil, fmt.Errorf("service given.v1.Resolver not found in %s", SchemaFile)
	}
	return s, nil
}
