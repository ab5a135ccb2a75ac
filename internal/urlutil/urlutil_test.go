package urlutil

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "lowercase scheme and host",
			input: "HTTPS://Example.COM/Path",
			want:  "https://example.com/Path",
		},
		{
			name:  "strip default https port",
			input: "https://example.com:443/x",
			want:  "https://example.com/x",
		},
		{
			name:  "strip default http port",
			input: "http://example.com:80/",
			want:  "http://example.com/",
		},
		{
			name:  "keep non-default port",
			input: "https://example.com:8443/x",
			want:  "https://example.com:8443/x",
		},
		{
			name:  "empty path becomes root",
			input: "https://example.com",
			want:  "https://example.com/",
		},
		{
			name:  "fragment removed",
			input: "https://example.com/docs#section-2",
			want:  "https://example.com/docs",
		},
		{
			name:  "query preserved",
			input: "https://example.com/search?q=go&page=2",
			want:  "https://example.com/search?q=go&page=2",
		},
		{
			name:    "missing scheme",
			input:   "example.com/path",
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			input:   "ftp://example.com/file",
			wantErr: true,
		},
		{
			name:    "missing hostname",
			input:   "https:///path",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q) expected error, got %q", tt.input, got)
				}
				var invalidErr *InvalidURLError
				if !errors.As(err, &invalidErr) {
					t.Errorf("expected InvalidURLError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.COM:443/a/b?x=1#frag",
		"http://sub.example.org",
		"https://example.com/path/?q=1",
	}

	for _, in := range inputs {
		once, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", in, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", once, err)
		}
		if once != twice {
			t.Errorf("Normalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeRef(t *testing.T) {
	got, err := NormalizeRef("https://example.com/docs/intro", "../api/reference")
	if err != nil {
		t.Fatalf("NormalizeRef failed: %v", err)
	}
	want := "https://example.com/api/reference"
	if got != want {
		t.Errorf("NormalizeRef = %q, want %q", got, want)
	}

	if _, err := NormalizeRef("https://example.com/", "mailto:someone@example.com"); err == nil {
		t.Error("expected error for mailto ref")
	}
}

func TestOrigin(t *testing.T) {
	got, err := Origin("https://example.com:8443/deep/path?q=1")
	if err != nil {
		t.Fatalf("Origin failed: %v", err)
	}
	if got != "https://example.com:8443" {
		t.Errorf("Origin = %q, want https://example.com:8443", got)
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"docs.example.com", "example.com"},
		{"example.com", "example.com"},
		{"a.b.example.co.uk", "example.co.uk"},
		{"localhost", "localhost"},
		{"127.0.0.1", "127.0.0.1"},
	}

	for _, tt := range tests {
		if got := RegistrableDomain(tt.host); got != tt.want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestIsContentURL(t *testing.T) {
	content := []string{
		"https://example.com/",
		"https://example.com/docs/intro",
		"https://example.com/page.html",
	}
	for _, u := range content {
		if !IsContentURL(u) {
			t.Errorf("IsContentURL(%q) = false, want true", u)
		}
	}

	binary := []string{
		"https://example.com/logo.png",
		"https://example.com/paper.pdf",
		"https://example.com/style.css",
		"https://example.com/app.js",
		"https://example.com/archive.tar.gz",
	}
	for _, u := range binary {
		if IsContentURL(u) {
			t.Errorf("IsContentURL(%q) = true, want false", u)
		}
	}
}

func TestScopeContains(t *testing.T) {
	tests := []struct {
		name            string
		allowSubdomains bool
		include         []string
		exclude         []string
		url             string
		want            bool
	}{
		{
			name: "same host in scope",
			url:  "https://example.com/docs",
			want: true,
		},
		{
			name: "subdomain rejected when disallowed",
			url:  "https://docs.example.com/intro",
			want: false,
		},
		{
			name:            "subdomain accepted when allowed",
			allowSubdomains: true,
			url:             "https://docs.example.com/intro",
			want:            true,
		},
		{
			name:            "different registrable domain always rejected",
			allowSubdomains: true,
			url:             "https://other.org/",
			want:            false,
		},
		{
			name:    "exclude pattern wins",
			exclude: []string{`/admin/`},
			url:     "https://example.com/admin/users",
			want:    false,
		},
		{
			name:    "include pattern required when present",
			include: []string{`/docs/`},
			url:     "https://example.com/blog/post",
			want:    false,
		},
		{
			name:    "include pattern matched",
			include: []string{`/docs/`},
			url:     "https://example.com/docs/intro",
			want:    true,
		},
		{
			name: "binary extension rejected",
			url:  "https://example.com/image.png",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := NewScope("https://example.com/", tt.allowSubdomains, tt.include, tt.exclude)
			if err != nil {
				t.Fatalf("NewScope failed: %v", err)
			}
			if got := scope.Contains(tt.url); got != tt.want {
				t.Errorf("Contains(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestNewScopeInvalidPattern(t *testing.T) {
	if _, err := NewScope("https://example.com/", false, []string{"["}, nil); err == nil {
		t.Error("expected error for invalid include pattern")
	}
	if _, err := NewScope("https://example.com/", false, nil, []string{"("}); err == nil {
		t.Error("expected error for invalid exclude pattern")
	}
}
