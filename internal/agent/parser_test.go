package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "prose then block",
			text:   "The center is open, so I push the king pawn.\n{\"move\": \"e2e4\"}",
			want:   "e2e4",
			wantOK: true,
		},
		{
			name:   "no braces",
			text:   "I would play e2e4 here.",
			wantOK: false,
		},
		{
			name:   "malformed json",
			text:   "Thinking... {\"move\": e2e4,}",
			wantOK: false,
		},
		{
			name:   "missing move key",
			text:   `{"best": "e2e4"}`,
			wantOK: false,
		},
		{
			name:   "non-string move",
			text:   `{"move": 42}`,
			wantOK: false,
		},
		{
			name:   "braces in reasoning before block",
			text:   "Candidates {e4, d4} look fine.\n{\"move\": \"d2d4\"}",
			want:   "d2d4",
			wantOK: true,
		},
		{
			name:   "last block wins",
			text:   "Draft: {\"move\": \"a2a3\"}\nFinal: {\"move\": \"g1f3\"}",
			want:   "g1f3",
			wantOK: true,
		},
		{
			name:   "brace inside string",
			text:   `{"move": "e2e4", "why": "controls {d5}"}`,
			want:   "e2e4",
			wantOK: true,
		},
		{
			name:   "empty move",
			text:   `{"move": ""}`,
			want:   "",
			wantOK: true,
		},
		{
			name:   "nested block",
			text:   `reasoning {"move": "c2c4", "eval": {"cp": 20}}`,
			want:   "c2c4",
			wantOK: true,
		},
		{
			name:   "unbalanced trailing brace",
			text:   "{\"move\": \"e2e4\"} }",
			want:   "e2e4",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDecision(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
