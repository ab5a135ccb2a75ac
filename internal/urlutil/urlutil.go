// Package urlutil provides URL normalization and crawl-scope filtering.
// All URLs that enter the frontier or the manifest pass through Normalize
// first, so byte-equality of normalized forms is the duplicate test used
// everywhere else in the crawler.
package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// InvalidURLError reports a URL that failed normalization.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid URL %q: %s", e.URL, e.Reason)
}

// Normalize canonicalizes a URL: lowercase scheme and host, default ports
// stripped, fragment removed, query preserved, empty path rewritten to "/".
// Only http and https URLs are accepted.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &InvalidURLError{URL: rawURL, Reason: err.Error()}
	}
	return normalizeParsed(u, rawURL)
}

// NormalizeRef resolves href against base, then normalizes the result.
// Used for anchors and canonical links found in fetched documents.
func NormalizeRef(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", &InvalidURLError{URL: base, Reason: err.Error()}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", &InvalidURLError{URL: href, Reason: err.Error()}
	}
	return normalizeParsed(b.ResolveReference(ref), href)
}

func normalizeParsed(u *url.URL, original string) (string, error) {
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https":
	case "":
		return "", &InvalidURLError{URL: original, Reason: "missing scheme"}
	default:
		return "", &InvalidURLError{URL: original, Reason: "unsupported scheme " + scheme}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", &InvalidURLError{URL: original, Reason: "missing hostname"}
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	norm := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     u.Path,
		RawQuery: u.RawQuery,
	}
	if port != "" {
		norm.Host = host + ":" + port
	}
	if u.User != nil {
		norm.User = u.User
	}
	if norm.Path == "" {
		norm.Path = "/"
	}

	return norm.String(), nil
}

// Origin returns the scheme://host[:port] prefix of a normalized URL.
// It is the partition key for robots.txt caching.
func Origin(normalized string) (string, error) {
	u, err := url.Parse(normalized)
	if err != nil {
		return "", &InvalidURLError{URL: normalized, Reason: err.Error()}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &InvalidURLError{URL: normalized, Reason: "not an absolute URL"}
	}
	return u.Scheme + "://" + u.Host, nil
}

// RegistrableDomain returns the domain+public-suffix pair for a hostname
// (e.g. "docs.example.co.uk" -> "example.co.uk"). Hosts without a public
// suffix (IP addresses, localhost) are returned unchanged so that
// same-host comparison still works for them.
func RegistrableDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// binaryExtensions lists path suffixes that never carry main content.
var binaryExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".tar", ".gz", ".rar", ".7z",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv",
	".exe", ".dmg", ".deb", ".rpm",
	".css", ".js",
}

// IsContentURL reports whether a URL plausibly points at page content
// rather than a binary asset, stylesheet or script.
func IsContentURL(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	ext := path.Ext(p)
	if ext == "" {
		return true
	}
	for _, b := range binaryExtensions {
		if ext == b {
			return false
		}
	}
	return true
}

// Scope decides whether discovered URLs belong to the crawl.
type Scope struct {
	baseHost        string
	baseRegistrable string
	allowSubdomains bool
	include         []*regexp.Regexp
	exclude         []*regexp.Regexp
}

// NewScope builds a scope filter anchored at baseURL. Include and exclude
// are regular expressions matched case-insensitively against the whole
// normalized URL; an invalid pattern is a configuration error.
func NewScope(baseURL string, allowSubdomains bool, include, exclude []string) (*Scope, error) {
	normalized, err := Normalize(baseURL)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return nil, &InvalidURLError{URL: baseURL, Reason: err.Error()}
	}

	s := &Scope{
		baseHost:        u.Hostname(),
		baseRegistrable: RegistrableDomain(u.Hostname()),
		allowSubdomains: allowSubdomains,
	}

	for _, p := range include {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
		s.include = append(s.include, re)
	}
	for _, p := range exclude {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		s.exclude = append(s.exclude, re)
	}

	return s, nil
}

// Contains reports whether the normalized URL is in scope: same
// registrable domain (or same host when subdomains are disallowed),
// content-plausible, not excluded, and included when include patterns
// are configured.
func (s *Scope) Contains(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	host := u.Hostname()

	if s.allowSubdomains {
		if RegistrableDomain(host) != s.baseRegistrable {
			return false
		}
	} else if host != s.baseHost {
		return false
	}

	if !IsContentURL(normalized) {
		return false
	}

	for _, re := range s.exclude {
		if re.MatchString(normalized) {
			return false
		}
	}

	if len(s.include) == 0 {
		return true
	}
	for _, re := range s.include {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}
