// Package exception builds the per-run index of apps shielded from lifecycle
// actions, evaluating optional expiry dates against the current date.
package exception

import (
	"fmt"
	"log/slog"
	"time"
)

// expiryLayout is the only accepted expiry date format.
const expiryLayout = "2006-01-02"

// Entry is one declarative exclusion. An empty Expiry never expires;
// otherwise Expiry must be a YYYY-MM-DD calendar date.
type Entry struct {
	AppURL string `json:"app_url"`
	Expiry string `json:"expiry"`
}

// Index is the effective exclusion set for a single run. Build a fresh one
// per run; it is immutable afterwards.
type Index struct {
	active  map[string]bool
	expired []string
}

// Build evaluates entries against today and returns the resulting index.
// An entry whose expiry is strictly before today is expired: it no longer
// excludes the app but is retained for reporting. A malformed expiry is
// logged and treated as expired rather than aborting the run. When the same
// identifier appears in both active and expired entries, the active one wins.
func Build(entries []Entry, today time.Time, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}

	idx := &Index{active: make(map[string]bool)}
	day := today.UTC().Truncate(24 * time.Hour)

	for _, e := range entries {
		if e.AppURL == "" {
			logger.Error("exception entry missing app_url, ignoring", "expiry", e.Expiry)
			continue
		}

		expired, err := isExpired(e, day)
		if err != nil {
			logger.Error("malformed exception expiry, treating as expired",
				"app_url", e.AppURL, "expiry", e.Expiry, "error", err)
			expired = true
		}

		if expired {
			idx.expired = append(idx.expired, e.AppURL)
			continue
		}
		idx.active[e.AppURL] = true
	}

	return idx
}

// IsExcluded reports whether appURL has at least one currently-active entry.
func (i *Index) IsExcluded(appURL string) bool {
	return i.active[appURL]
}

// ActiveCount returns the number of distinct actively-excluded identifiers.
func (i *Index) ActiveCount() int {
	return len(i.active)
}

// Expired returns the identifiers of entries whose exclusion has lapsed,
// in input order. An identifier may also appear in the active set if it has
// a second, still-active entry.
func (i *Index) Expired() []string {
	return i.expired
}

func isExpired(e Entry, day time.Time) (bool, error) {
	if e.Expiry == "" {
		return false, nil
	}
	expiry, err := time.ParseInLocation(expiryLayout, e.Expiry, time.UTC)
	if err != nil {
		return false, fmt.Errorf("parse expiry %q: use YYYY-MM-DD or empty string", e.Expiry)
	}
	return expiry.Before(day), nil
}
