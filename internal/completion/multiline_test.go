package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideMultiline(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		cfg  MultilineConfig
		want bool
	}{
		{
			name: "default go allows multiline",
			in:   Input{Language: "go", Prefix: "func main() {\n\t"},
			want: true,
		},
		{
			name: "forced single line override",
			in:   Input{Language: "go", Prefix: "func main() {\n\t"},
			cfg:  MultilineConfig{ForceSingleLine: true},
			want: false,
		},
		{
			name: "ide popup forces single line",
			in:   Input{Language: "go", SelectedCompletionInfo: true},
			want: false,
		},
		{
			name: "configured single-line language",
			in:   Input{Language: "yaml"},
			cfg:  MultilineConfig{SingleLineLanguages: map[string]bool{"yaml": true}},
			want: false,
		},
		{
			name: "cursor inside a comment",
			in:   Input{Language: "go", Prefix: "func main() {\n\t// wr"},
			want: false,
		},
		{
			name: "python comment",
			in:   Input{Language: "python", Prefix: "def f():\n    # wr"},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecideMultiline(tc.in, tc.cfg))
		})
	}
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "baz", lastLine("foo\nbar\nbaz"))
	assert.Equal(t, "foo", lastLine("foo"))
	assert.Equal(t, "", lastLine("foo\n"))
}
