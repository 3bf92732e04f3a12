package arxiv

import (
	"encoding/xml"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ashita-ai/mekiki/internal/model"
)

// Atom feed shapes for the arXiv API response. primary_category lives in the
// http://arxiv.org/schemas/atom namespace.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Authors    []atomAuthor   `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Primary    atomCategory   `xml:"http://arxiv.org/schemas/atom primary_category"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

var (
	// Modern ids like 2402.12345, optionally with a version suffix.
	modernIDRe = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?$`)
	// Legacy ids like hep-ph/0601001.
	legacyIDRe = regexp.MustCompile(`([a-z-]+/\d{7})(v\d+)?$`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// extractID pulls the bare arXiv id out of an entry id URL, dropping any
// version suffix.
func extractID(idURL string) string {
	if m := modernIDRe.FindStringSubmatch(idURL); m != nil {
		return m[1]
	}
	if m := legacyIDRe.FindStringSubmatch(idURL); m != nil {
		return m[1]
	}
	parts := strings.Split(idURL, "/")
	return parts[len(parts)-1]
}

// normalizeText collapses runs of whitespace; arXiv titles and abstracts
// arrive with hard line breaks.
func normalizeText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// parsePublished parses the entry timestamp, falling back to the current
// time on malformed input.
func parsePublished(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

// parseFeed converts an Atom response into papers tagged with the category
// of the query that produced them. A malformed feed yields no papers.
func parseFeed(data []byte, categoryID int) ([]model.Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, err
	}

	papers := make([]model.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry.ID == "" {
			continue
		}

		var authors []string
		for _, a := range entry.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}

		var pdfURL string
		for _, l := range entry.Links {
			if l.Title == "pdf" {
				pdfURL = l.Href
				break
			}
		}

		primary := entry.Primary.Term
		if primary == "" {
			primary = "unknown"
		}

		var categories []string
		for _, c := range entry.Categories {
			if c.Term != "" {
				categories = append(categories, c.Term)
			}
		}

		papers = append(papers, model.Paper{
			ArxivID:         extractID(entry.ID),
			Title:           normalizeText(entry.Title),
			Abstract:        normalizeText(entry.Summary),
			Authors:         authors,
			PDFURL:          pdfURL,
			PrimaryCategory: primary,
			AllCategories:   categories,
			PublishedAt:     parsePublished(entry.Published),
			MatchedQueries:  []int{categoryID},
		})
	}
	return papers, nil
}

// dedupe collapses papers sharing an arXiv id. The first occurrence wins;
// matched query sets are merged and kept sorted ascending.
func dedupe(papers []model.Paper) []model.Paper {
	index := make(map[string]int, len(papers))
	out := make([]model.Paper, 0, len(papers))
	for _, p := range papers {
		if i, ok := index[p.ArxivID]; ok {
			out[i].MatchedQueries = mergeQueries(out[i].MatchedQueries, p.MatchedQueries)
			continue
		}
		index[p.ArxivID] = len(out)
		out = append(out, p)
	}
	return out
}

func mergeQueries(a, b []int) []int {
	set := make(map[int]struct{}, len(a)+len(b))
	for _, q := range a {
		set[q] = struct{}{}
	}
	for _, q := range b {
		set[q] = struct{}{}
	}
	merged := make([]int, 0, len(set))
	for q := range set {
		merged = append(merged, q)
	}
	sort.Ints(merged)
	return merged
}
