package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_YAMLAndCUEAgree(t *testing.T) {
	fromYAML, err := LoadFile("testdata/reorder.yaml")
	require.NoError(t, err)
	fromCUE, err := LoadFile("testdata/reorder.cue")
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
	require.Len(t, fromYAML.Updates, 3)
	assert.Equal(t, "insert-after", fromYAML.Updates[1].Op)
	assert.Equal(t, `<book id="3"><t>C</t></book>`, fromYAML.Updates[1].Nodes)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), "failed to read"},
		{"unsupported extension", write("s.json", `{}`), "unsupported statement file"},
		{"unknown field", write("typo.yaml", "name: x\nupdate: []\n"), "failed to parse YAML"},
		{"no updates", write("empty.yaml", "name: x\nupdates: []\n"), "updates list is required"},
		{"bad cue", write("bad.cue", "name: \n"), "failed to compile CUE"},
		{"incomplete cue", write("open.cue", "name: string\nupdates: [{op: \"delete\", store: \"s\", path: \"/a\"}]\n"), "not concrete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStatement_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ins     Instruction
		wantErr string
	}{
		{"unknown op", Instruction{Op: "upsert", Store: "s", Path: "/a"}, "unknown update kind"},
		{"no target", Instruction{Op: "delete"}, "store or fragment is required"},
		{"both targets", Instruction{Op: "delete", Store: "s", Path: "/a", Fragment: "f"}, "exclusive"},
		{"store without path", Instruction{Op: "delete", Store: "s"}, "path is required"},
		{"unknown fragment", Instruction{Op: "delete", Fragment: "nope"}, "unknown fragment"},
		{"rename without name", Instruction{Op: "rename", Store: "s", Path: "/a"}, "name is required"},
		{"binary without path", Instruction{Op: "store-binary-resource", Store: "s", Path: "/a", Resource: &Resource{}}, "resource path"},
		{"binary bad encoding", Instruction{Op: "store-binary-resource", Store: "s", Path: "/a", Resource: &Resource{Path: "p", Encoding: "hex"}}, "encoding"},
		{"attributes missing", Instruction{Op: "insert-attributes", Store: "s", Path: "/a"}, "attributes are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Statement{Name: "x", Updates: []Instruction{tt.ins}}
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
