package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	d := mustData(t, `<lib><book id="1"><t>A</t></book><book id="2"><t>B</t><!--n--></book><mag/></lib>`)
	// lib0 book1 @id2 t3 A4 book5 @id6 t7 B8 comment9 mag10

	tests := []struct {
		path string
		want []int
	}{
		{"/lib", []int{0}},
		{"/lib/book", []int{1, 5}},
		{"/lib/book[2]", []int{5}},
		{"/lib/*", []int{1, 5, 10}},
		{"/lib/*[3]", []int{10}},
		{"/lib/book/@id", []int{2, 6}},
		{"/lib/book[1]/@*", []int{2}},
		{"/lib/book/t/text()", []int{4, 8}},
		{"/lib/book/comment()", []int{9}},
		{"/lib/book[2]/node()", []int{7, 9}},
		{"//t", []int{3, 7}},
		{"/lib//text()", []int{4, 8}},
		{"/lib/missing", nil},
		{"/lib/book[7]", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := d.Select(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_Errors(t *testing.T) {
	d := mustData(t, "<a/>")
	for _, path := range []string{"a", "/a/", "/a[0]", "/a[x]", "/a[1", "//@k", "/@"} {
		t.Run(path, func(t *testing.T) {
			_, err := d.Select(path)
			assert.Error(t, err)
		})
	}
}
