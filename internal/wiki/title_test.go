package wiki

import (
	"errors"
	"testing"
)

func TestCanonicalizeTitle(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", "Main Page", "Main Page", false},
		{"underscores become spaces", "Main_Page", "Main Page", false},
		{"url decoding", "Caf%C3%A9", "Café", false},
		{"trailing spaces trimmed", "Page  ", "Page", false},
		{"leading space kept", " Page", " Page", false},
		{"empty", "", "", true},
		{"only underscores", "___", "", true},
		{"pipe", "a|b", "", true},
		{"brackets", "a[b]", "", true},
		{"braces", "a{b}", "", true},
		{"hash", "a#b", "", true},
		{"angle brackets", "<script>", "", true},
		{"percent", "100%", "", true},
		{"at sign", "a@b", "", true},
		{"control char", "a\x01b", "", true},
		{"html entity", "a&amp;b", "", true},
		{"numeric entity", "a&#65;b", "", true},
		{"hex entity", "a&#x41;b", "", true},
		{"leading slash", "/Sub", "", true},
		{"trailing slash", "Page/", "", true},
		{"double slash", "A//B", "", true},
		{"inner slash ok", "A/B", "A/B", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizeTitle(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CanonicalizeTitle(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CanonicalizeTitle(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("CanonicalizeTitle(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeTitleErrorKinds(t *testing.T) {
	if _, err := CanonicalizeTitle(""); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("empty title error = %v, want ErrEmptyTitle", err)
	}
	var bad *BadTitleError
	if _, err := CanonicalizeTitle("a|b"); !errors.As(err, &bad) {
		t.Errorf("pipe error = %v, want BadTitleError", err)
	} else if bad.Char != '|' {
		t.Errorf("bad char = %q, want '|'", bad.Char)
	}
}

func TestResolveTitle(t *testing.T) {
	reg := NewNamespaceRegistry()

	tests := []struct {
		raw     string
		nsID    int
		title   string
		wantErr bool
	}{
		{"Plain Page", NSMain, "Plain Page", false},
		{"Help:Editing", NSHelp, "Editing", false},
		{"help:Editing", NSHelp, "Editing", false},
		{"Special:RecentChanges", NSSpecial, "RecentChanges", false},
		{"Unknown:Page", NSMain, "Unknown:Page", false},
		{"User: Alice", NSUser, "Alice", false},
		{"Help:", 0, "", true},
		{"", 0, "", true},
	}
	for _, tt := range tests {
		ns, title, err := reg.ResolveTitle(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ResolveTitle(%q) succeeded, want error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveTitle(%q) returned error: %v", tt.raw, err)
			continue
		}
		if ns.ID != tt.nsID || title != tt.title {
			t.Errorf("ResolveTitle(%q) = (%d, %q), want (%d, %q)",
				tt.raw, ns.ID, title, tt.nsID, tt.title)
		}
	}
}

func TestURLEncodeTitleRoundTrip(t *testing.T) {
	titles := []string{
		"Main Page",
		"Café",
		"Help:Editing",
		"User:Alice/Notes",
		"C++ (language)",
	}
	for _, title := range titles {
		encoded := URLEncodeTitle(title)
		decoded, err := CanonicalizeTitle(encoded)
		if err != nil {
			t.Errorf("round trip of %q failed: %v", title, err)
			continue
		}
		if decoded != title {
			t.Errorf("round trip of %q = %q", title, decoded)
		}
	}
}

func TestURLEncodeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Main Page", "Main_Page"},
		{"A/B", "A/B"},
		{"Help:Editing", "Help:Editing"},
	}
	for _, tt := range tests {
		if got := URLEncodeTitle(tt.in); got != tt.want {
			t.Errorf("URLEncodeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubpageHelpers(t *testing.T) {
	reg := NewNamespaceRegistry()
	user, _ := reg.ByID(NSUser)
	main := reg.Main()

	if got := BaseName(user, "Alice/Notes/2024"); got != "Alice" {
		t.Errorf("BaseName = %q, want Alice", got)
	}
	if got := PageName(user, "Alice/Notes/2024"); got != "2024" {
		t.Errorf("PageName = %q, want 2024", got)
	}
	if got := ParentTitle(user, "Alice/Notes/2024"); got != "Alice/Notes" {
		t.Errorf("ParentTitle = %q, want Alice/Notes", got)
	}
	// Main does not allow subpages; slashes are part of the title.
	if got := BaseName(main, "A/B"); got != "A/B" {
		t.Errorf("BaseName in main = %q, want A/B", got)
	}
}
