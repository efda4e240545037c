package config

// ProgramFileExt is the extension of YAML program descriptions.
const ProgramFileExt = ".given.yaml"

// ProgramFileExtensions are all recognized program description extensions
var ProgramFileExtensions = []string{".given.yaml", ".given.yml"}

// ConfigFileNames are searched, in order, by FindConfig.
var ConfigFileNames = []string{"given.yaml", "given.yml"}

// Declaration markers, as spelled in program descriptions and Go source comments.
const (
	ProvideMarker   = "provide"
	RequestedMarker = "requested"
	PatternMarker   = "pattern"
	PreferredMarker = "preferred"
	EntryMarker     = "entry"
	OptionalMarker  = "optional"

	// GoMarkerPrefix prefixes markers inside Go doc comments, e.g. //given:provide
	GoMarkerPrefix = "given:"

	// GoFieldTag is the struct tag key marking constructor parameters of Go
	// provider types, e.g. `given:"requested,optional"`
	GoFieldTag = "given"
)

// Built-in classifier keys
const (
	AnyTypeName        = "Any"
	NothingTypeName    = "Nothing"
	UnitTypeName       = "Unit"
	IntTypeName        = "Int"
	LongTypeName       = "Long"
	NumberTypeName     = "Number"
	StringTypeName     = "String"
	CharSeqTypeName    = "CharSequence"
	BoolTypeName       = "Boolean"
	ListTypeName       = "List"
	CollectionTypeName = "Collection"
	FunctionTypePrefix = "Function"
	TypeKeyTypeName    = "TypeKey"
	SourceKeyTypeName  = "SourceKey"
)

// MaxFunctionArity is the largest FunctionN classifier registered as a built-in.
const MaxFunctionArity = 3

// DispatchReceiverName names the synthetic dependency through which class
// members reach their enclosing instance.
const DispatchReceiverName = "_this"

// HasProgramExt reports whether path names a YAML program description.
func HasProgramExt(path string) bool {
	for _, ext := range ProgramFileExtensions {
		if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// TrimProgramExt removes a recognized program description extension.
func TrimProgramExt(name string) string {
	for _, ext := range ProgramFileExtensions {
		if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
