package vo

import "testing"

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"plain", "https://contoso.sharepoint.com/sites/t/Image%20Media/Shows/hamlet.jpg", "hamlet.jpg", false},
		{"encoded spaces", "https://contoso.sharepoint.com/Image%20Media/Cast/Kim%20Lee.avif", "Kim Lee.avif", false},
		{"query string", "https://x/Image%20Media/Logos/acme.png?web=1", "acme.png", false},
		{"empty", "", "", true},
		{"trailing slash", "https://x/Image%20Media/Logos/", "Logos", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilenameFromURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FilenameFromURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.String() != tt.want {
				t.Errorf("FilenameFromURL() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestFilename_StemExt(t *testing.T) {
	fn := MustFilename("Dave.Smith.JPG")
	if fn.Stem() != "dave.smith" {
		t.Errorf("Stem() = %q, want %q", fn.Stem(), "dave.smith")
	}
	if fn.Ext() != "jpg" {
		t.Errorf("Ext() = %q, want %q", fn.Ext(), "jpg")
	}
}

func TestFilename_Sanitized(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kim Lee.avif", "Kim-Lee.avif"},
		{"a  b (1).png", "a-b-1.png"},
		{"what?#.jpg", "what.jpg"},
		{"--x--.gif", "x-.gif"},
		{"%%%", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MustFilename(tt.in).Sanitized(); got != tt.want {
				t.Errorf("Sanitized() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilename_StoredName(t *testing.T) {
	got := MustFilename("Dave Smith.jpg").StoredName("photo", "5")
	if got != "photo-5-Dave-Smith.jpg" {
		t.Errorf("StoredName() = %q", got)
	}
}

func TestNewFilename_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "a/b.jpg", "..", `a\b`} {
		if _, err := NewFilename(in); err == nil {
			t.Errorf("NewFilename(%q) expected error", in)
		}
	}
}
