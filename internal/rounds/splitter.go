package rounds

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"InterviewNotifier/internal/domain"
)

var (
	// "Round 2: <rest>" / "R2 : <rest>", label case-insensitive, spaces optional.
	labeledWithRestExpr = regexp.MustCompile(`(?i)^(?:round|r)\s*(\d+)\s*:\s*(.+)$`)
	// "Round 3" / "r3" with no colon part.
	labeledBareExpr = regexp.MustCompile(`(?i)^(?:round|r)\s*(\d+)\b`)
	urlExpr         = regexp.MustCompile(`https?://\S+`)
	htmlTagExpr     = regexp.MustCompile(`(?i)<(?:a|br|p|div|li|span|td|tr)\b`)
)

// Split derives ordered round units from raw scheduling-method text. It is
// total: unrecognizable structure degrades to a single "Round 1" unit and a
// blank input yields nothing. Duplicate normalized names within one call
// collapse to the first occurrence.
func Split(text string) []domain.RoundUnit {
	if htmlTagExpr.MatchString(text) {
		text = flattenHTML(text)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var units []domain.RoundUnit
	seen := map[string]struct{}{}

	add := func(name, link string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		units = append(units, domain.RoundUnit{Name: name, Link: link})
	}

	for _, line := range splitLines(text) {
		if m := labeledWithRestExpr.FindStringSubmatch(line); m != nil {
			add(normalizeName(m[1]), ExtractURL(m[2]))
			continue
		}
		if m := labeledBareExpr.FindStringSubmatch(line); m != nil {
			add(normalizeName(m[1]), "")
			continue
		}
		if isHTTPURL(line) {
			add(fmt.Sprintf("Round %d", len(units)+1), line)
			continue
		}
		// Line carries no recognizable round structure.
	}

	if len(units) == 0 {
		return []domain.RoundUnit{{Name: "Round 1", Link: ExtractURL(text)}}
	}
	return units
}

// ExtractURL finds a scheduling URL in a text fragment: the whole trimmed
// fragment when it parses as an http(s) URL itself, otherwise the first
// http(s) substring up to whitespace. Empty when neither applies.
func ExtractURL(fragment string) string {
	trimmed := strings.TrimSpace(fragment)
	if isHTTPURL(trimmed) {
		return trimmed
	}
	if match := urlExpr.FindString(fragment); match != "" {
		return match
	}
	return ""
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func normalizeName(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "Round 1"
	}
	return fmt.Sprintf("Round %d", n)
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// flattenHTML renders rich-text scheduling input (pasted from intake forms)
// to plain lines: anchors collapse to their href so link targets survive,
// and block-level boundaries become line breaks. On parse failure the raw
// text is returned unchanged.
func flattenHTML(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			s.SetText(" " + strings.TrimSpace(href))
		}
	})
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("p, div, li, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return doc.Text()
}
