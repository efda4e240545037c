package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Int", "Int"},
		{"lib.Service", "lib.Service"},
		{"String?", "String?"},
		{"List<Int>", "List<Int>"},
		{"Map<in K, out V>", "Map<in K, out V>"},
		{"Box<*>", "Box<*>"},
		{"@Port Int", "@Port Int"},
		{"@A @B Box<@C Int?>?", "@A @B Box<@C Int?>?"},
		{"() -> Int", "() -> Int"},
		{"(Int, String) -> Service", "(Int, String) -> Service"},
		{"(() -> Int)?", "(() -> Int)?"},
		{"(Int)", "Int"},
		{"(Int) -> (String) -> Unit", "(Int) -> (String) -> Unit"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseType_Function(t *testing.T) {
	got, err := ParseType("(A, B) -> R?")
	require.NoError(t, err)
	require.True(t, got.Function)
	require.Len(t, got.Params, 2)
	assert.Equal(t, "B", got.Params[1].Name)
	assert.True(t, got.Result().Nullable)
	assert.False(t, got.Nullable)
}

func TestParseType_Offsets(t *testing.T) {
	got, err := ParseType("Map<K, @T V>")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Offset)
	assert.Equal(t, 4, got.Args[0].Offset)
	assert.Equal(t, 7, got.Args[1].Offset)
	assert.Equal(t, []string{"T"}, got.Args[1].Tags)
}

func TestParseType_Errors(t *testing.T) {
	tests := []struct {
		input  string
		offset int
		msg    string
	}{
		{"", 0, "expected type, got end of input"},
		{"List<Int", 8, "expected >, got end of input"},
		{"Int Int", 4, `expected end of type, got "Int"`},
		{"(A, B)", 0, "parameter list must be followed by ->"},
		{"@<", 1, `expected IDENT, got "<"`},
		{"List<>", 5, `expected type, got ">"`},
		{"* ", 0, `expected type, got "*"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseType(tt.input)
			require.Error(t, err)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.offset, perr.Offset)
			assert.Equal(t, tt.msg, perr.Msg)
		})
	}
}
