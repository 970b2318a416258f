package parser

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"plain text untouched",
			"just words & entities &amp;",
			"just words & entities &amp;",
		},
		{
			"allowed tag kept",
			"<b>bold</b>",
			"<b>bold</b>",
		},
		{
			"tag name lowercased",
			"<B>bold</B>",
			"<b>bold</b>",
		},
		{
			"unknown tag literalized",
			"<script>alert(1)</script>",
			"&lt;script>alert(1)&lt;/script>",
		},
		{
			"disallowed attribute stripped",
			`<b onclick="evil()">x</b>`,
			"<b>x</b>",
		},
		{
			"global attributes kept",
			`<span id="a" class="b" title="c">x</span>`,
			`<span id="a" class="b" title="c">x</span>`,
		},
		{
			"data attributes kept",
			`<td data-sort-value="3">x</td>`,
			`<td data-sort-value="3">x</td>`,
		},
		{
			"tag-specific attributes",
			`<a href="/wiki/Page" onmouseover="evil()">x</a>`,
			`<a href="/wiki/Page">x</a>`,
		},
		{
			"self-closing void",
			"a<br/>b",
			"a<br>b",
		},
		{
			"bare less-than escaped",
			"1 < 2",
			"1 &lt; 2",
		},
		{
			"unterminated tag escaped",
			"<b never closed",
			"&lt;b never closed",
		},
		{
			"custom ref tag",
			`<ref name="smith">cite</ref>`,
			`<ref name="smith">cite</ref>`,
		},
		{
			"attribute value escaped on rebuild",
			`<span title="a<b">x</span>`,
			`<span title="a&lt;b">x</span>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
