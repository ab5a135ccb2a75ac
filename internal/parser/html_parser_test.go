package parser

import (
	"testing"
)

func TestExtract(t *testing.T) {
	htmlContent := `
<!DOCTYPE html>
<html>
<head>
	<title>Test Page</title>
</head>
<body>
	<h1>Test Page</h1>
	<p>Some content</p>
	<a href="/relative-link">Relative Link</a>
	<a href="https://example.com/absolute-link">Absolute Link</a>
	<a href="https://external.com/page" rel="nofollow">External Link</a>
	<a href="#anchor">Fragment Only</a>
	<a href="javascript:void(0)">JavaScript Link</a>
	<a href="mailto:someone@example.com">Mail Link</a>
	<a href="tel:+15551234567">Phone Link</a>
	<a href="/relative-link">Duplicate</a>
	<a href="../up/one">Parent Relative</a>
	<a href="ftp://example.com/file">FTP Link</a>
	<img src="/images/logo.png" alt="logo">
	<img src="data:image/png;base64,iVBOR">
	<picture><source src="https://cdn.example.com/hero.webp"></picture>
</body>
</html>
`

	e := NewLinkExtractor()
	set, err := e.Extract("https://example.com/docs/intro", []byte(htmlContent))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	wantLinks := []string{
		"https://example.com/relative-link",
		"https://example.com/absolute-link",
		"https://external.com/page",
		"https://example.com/up/one",
	}
	if len(set.Links) != len(wantLinks) {
		t.Fatalf("Got %d links %v, want %d", len(set.Links), set.Links, len(wantLinks))
	}
	for i, want := range wantLinks {
		if set.Links[i] != want {
			t.Errorf("Links[%d] = %q, want %q", i, set.Links[i], want)
		}
	}

	wantAssets := []string{
		"https://example.com/images/logo.png",
		"https://cdn.example.com/hero.webp",
	}
	if len(set.Assets) != len(wantAssets) {
		t.Fatalf("Got %d assets %v, want %d", len(set.Assets), set.Assets, len(wantAssets))
	}
	for i, want := range wantAssets {
		if set.Assets[i] != want {
			t.Errorf("Assets[%d] = %q, want %q", i, set.Assets[i], want)
		}
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	e := NewLinkExtractor()
	set, err := e.Extract("https://example.com/", []byte(""))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(set.Links) != 0 || len(set.Assets) != 0 {
		t.Errorf("Expected empty result, got links=%v assets=%v", set.Links, set.Assets)
	}
}

func TestExtractMalformedHTML(t *testing.T) {
	// html.Parse is lenient, so unclosed tags still yield links.
	e := NewLinkExtractor()
	set, err := e.Extract("https://example.com/", []byte(`<a href="/one">one<a href="/two">two`))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(set.Links) != 2 {
		t.Errorf("Got %d links %v, want 2", len(set.Links), set.Links)
	}
}

func TestIsFollowable(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"/docs", true},
		{"https://example.com/a", true},
		{"", false},
		{"#top", false},
		{"javascript:void(0)", false},
		{"MAILTO:x@y.z", false},
		{"tel:+123", false},
		{"data:image/png;base64,abc", false},
	}

	for _, tt := range tests {
		if got := isFollowable(tt.href); got != tt.want {
			t.Errorf("isFollowable(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}
