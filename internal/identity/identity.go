package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"InterviewNotifier/internal/domain"
)

// ErrUnparseableDate signals that no parsing layer could make sense of an
// added-on string; the caller must skip the row.
var ErrUnparseableDate = errors.New("unparseable added-on date")

// keySep joins key components; an ASCII unit separator never appears in
// sheet fields, so component boundaries cannot be forged.
const keySep = "\x1f"

// Strict fallback layouts for human-entered "DD MON HH:MM" stamps without a
// year. The 12-hour variants cover single-digit hours and AM/PM suffixes.
var fallbackLayouts = []string{
	"2 Jan 15:04",
	"2 Jan 3:04 PM",
	"2 Jan 3:04",
}

// ParseAddedOn resolves a raw added-on string into a concrete instant.
// It tries a permissive natural parse in loc first, substituting the
// current year when no 4-digit year was present, then falls back to the
// strict DD MON HH:MM layouts. Both failing yields ErrUnparseableDate.
func ParseAddedOn(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrUnparseableDate
	}
	if loc == nil {
		loc = time.UTC
	}

	if parsed, err := dateparse.ParseIn(raw, loc); err == nil {
		if parsed.Year() == 0 {
			parsed = withYear(parsed, now.Year(), loc)
		}
		return parsed, nil
	}

	for _, layout := range fallbackLayouts {
		parsed, err := time.ParseInLocation(layout, raw, loc)
		if err != nil {
			continue
		}
		return withYear(parsed, now.Year(), loc), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, raw)
}

func withYear(t time.Time, year int, loc *time.Location) time.Time {
	return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// ValidEmail reports whether s has the local@domain shape with at least one
// dot in the domain. Deliverability is not checked.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	if strings.ContainsAny(s, " \t") {
		return false
	}
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// ClassifyLink validates a scheduling link. Malformed syntax or a non-http
// scheme is the only hard failure; verified reports whether the host falls
// under one of the allowed domains (subdomains included). An unverified
// link is preserved, the caller only downgrades it to a warning.
func ClassifyLink(raw string, allowedDomains []string) (verified bool, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("parse link: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false, fmt.Errorf("link %q is not an absolute http(s) url", raw)
	}

	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowedDomains {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true, nil
		}
	}
	return false, nil
}

// SourceID derives a deterministic row identifier from the fields that make
// a row distinct in its sheet, plus the row's ordinal position. It carries
// no wall-clock or run-invocation component.
func SourceID(row domain.Row) string {
	return strings.Join([]string{
		row.Company,
		row.Candidate,
		row.CandidateEmail,
		row.AddedOnRaw,
		strconv.Itoa(row.Ordinal),
	}, keySep)
}

// Key computes the idempotency key for one round unit: a SHA-256 hex digest
// over source identifier, normalized round name, and candidate email.
// Identical inputs always hash to the identical key across runs.
func Key(sourceID, roundName, candidateEmail string) string {
	h := sha256.New()
	h.Write([]byte(sourceID))
	h.Write([]byte(keySep))
	h.Write([]byte(roundName))
	h.Write([]byte(keySep))
	h.Write([]byte(candidateEmail))
	return hex.EncodeToString(h.Sum(nil))
}

// TATSeconds is the turnaround between added-on and send, rounded to whole
// seconds. Negative when clocks are skewed; not clamped here.
func TATSeconds(sentAt, addedOn time.Time) int64 {
	return int64(math.Round(sentAt.Sub(addedOn).Seconds()))
}
