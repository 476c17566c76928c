package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddressField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "bare address",
			input: "rxliuli@gmail.com",
			want:  []string{"rxliuli@gmail.com"},
		},
		{
			name:  "several bare addresses",
			input: "a@example.com, b.c+tag@mail.example.org",
			want:  []string{"a@example.com", "b.c+tag@mail.example.org"},
		},
		{
			name:  "escaped name and address",
			input: "&quot;Liuli&quot; &lt;rxliuli@gmail.com&gt;",
			want:  []string{"Liuli <rxliuli@gmail.com>"},
		},
		{
			name:  "mixed list",
			input: "Alice &lt;alice@example.com&gt;, &quot;Bob B&quot; &lt;bob@example.com&gt;,\n&lt;carol@example.com&gt;",
			want:  []string{"Alice <alice@example.com>", "Bob B <bob@example.com>", "carol@example.com"},
		},
		{
			name:  "name equal to address",
			input: "dave@example.com &lt;dave@example.com&gt;",
			want:  []string{"dave@example.com"},
		},
		{
			name:  "nothing recognisable",
			input: "undisclosed-recipients",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAddressField(tt.input))
		})
	}
}

func TestParseAddressField_Deterministic(t *testing.T) {
	input := "Alice &lt;alice@example.com&gt;, bob@example.com"
	assert.Equal(t, ParseAddressField(input), ParseAddressField(input))
}
