package render

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	r := NewMessageRenderer()

	tests := []struct {
		name, in, want string
	}{
		{"emphasis", "some *emphasis* here", "<em>emphasis</em>"},
		{"strikethrough", "~~gone~~", "<del>gone</del>"},
		{"autolink", "see https://example.org", `<a href="https://example.org"`},
		{"code fence", "```\nx := 1\n```", "<code>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.in)
			if err != nil {
				t.Fatalf("Render returned error: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("Render(%q) = %q, missing %q", tt.in, out, tt.want)
			}
		})
	}
}

func TestRenderEscapesRawHTML(t *testing.T) {
	r := NewMessageRenderer()
	out, err := r.Render(`<script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("raw HTML passed through: %q", out)
	}
}
