// Package report renders the crawl summary written to README.md in the
// output directory.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
)

// Summary holds everything the crawl report shows.
type Summary struct {
	SessionID    string
	StartURLs    []string
	StartTime    time.Time
	EndTime      time.Time
	PagesCrawled int
	PagesCached  int
	PagesFailed  int
	PagesSkipped int
	AssetsSeen   int
	TotalBytes   int64
	OutputDir    string
	Incremental  bool
	RenderUsed   bool
	MaxPages     int
	MaxDepth     int
}

// Duration returns the crawl wall time.
func (s *Summary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Write renders the summary as Markdown.
func Write(w io.Writer, s *Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawl Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + s.SessionID + "`"},
			{"Started", s.StartTime.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration().Round(time.Millisecond).String()},
			{"Pages crawled", strconv.Itoa(s.PagesCrawled)},
			{"Pages cached", strconv.Itoa(s.PagesCached)},
			{"Pages failed", strconv.Itoa(s.PagesFailed)},
			{"Pages skipped", strconv.Itoa(s.PagesSkipped)},
			{"Assets recorded", strconv.Itoa(s.AssetsSeen)},
			{"Total bytes", formatBytes(s.TotalBytes)},
		},
	})
	md.PlainText("")

	md.H2("Configuration")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Setting", "Value"},
		Rows: [][]string{
			{"Max pages", strconv.Itoa(s.MaxPages)},
			{"Max depth", strconv.Itoa(s.MaxDepth)},
			{"Incremental", strconv.FormatBool(s.Incremental)},
			{"Rendering", strconv.FormatBool(s.RenderUsed)},
			{"Output directory", "`" + s.OutputDir + "`"},
		},
	})
	md.PlainText("")

	md.H2("Start URLs")
	md.PlainText("")
	md.BulletList(s.StartURLs...)
	md.PlainText("")

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [sitemd](https://github.com/sitemd/sitemd)*")

	return md.Build()
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
