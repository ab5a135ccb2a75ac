package crawler

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// sitemapURLSet is a <urlset> document.
type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapIndex is a <sitemapindex> document pointing at child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// SitemapDocument is the parsed form of either sitemap flavor. Exactly
// one of the two slices is populated.
type SitemapDocument struct {
	PageURLs      []string
	ChildSitemaps []string
}

// ParseSitemap decodes a sitemap document, accepting both <urlset> and
// <sitemapindex> roots.
func ParseSitemap(data []byte) (*SitemapDocument, error) {
	var urlSet sitemapURLSet
	if err := xml.Unmarshal(data, &urlSet); err == nil {
		doc := &SitemapDocument{}
		for _, u := range urlSet.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				doc.PageURLs = append(doc.PageURLs, loc)
			}
		}
		return doc, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil {
		doc := &SitemapDocument{}
		for _, s := range index.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				doc.ChildSitemaps = append(doc.ChildSitemaps, loc)
			}
		}
		return doc, nil
	}

	return nil, fmt.Errorf("unrecognized sitemap document")
}
