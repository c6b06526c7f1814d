package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// Item is a candidate piece of content moving through the approval pipeline.
// Identity is the canonicalized URL; ID is derived from it and stays stable
// across runs and sources.
type Item struct {
	ID      string
	Title   string
	URL     string
	Source  string
	Content string
	Summary string
}

// Outcome is the terminal result of soliciting human approval for one item.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeTimedOut Outcome = "timed_out"
)

// Status enumerates terminal ledger dispositions. Once recorded for an ID,
// the item is never reprocessed.
type Status string

const (
	StatusPosted           Status = "posted"
	StatusIgnored          Status = "ignored"
	StatusFailedPublish    Status = "failed_publish"
	StatusSkippedNoContent Status = "skipped_no_content"
)

// ProcessedRecord is one row of the write-once ledger.
type ProcessedRecord struct {
	ID         string
	Status     Status
	RecordedAt time.Time
}

// CanonicalURL normalizes a URL for identity purposes: lowercased scheme and
// host, no fragment, no tracking query parameters, no trailing slash.
func CanonicalURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	query := parsed.Query()
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), "utm_") || key == "ref" {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String()
}

// ItemID derives the stable ledger key from a raw URL.
func ItemID(rawURL string) string {
	sum := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return hex.EncodeToString(sum[:16])
}

// NewItem builds a candidate with its identity filled in.
func NewItem(title, rawURL, source string) Item {
	return Item{
		ID:     ItemID(rawURL),
		Title:  title,
		URL:    strings.TrimSpace(rawURL),
		Source: source,
	}
}
