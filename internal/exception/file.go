package exception

import (
	"encoding/json"
	"fmt"
	"os"
)

// legacyFile is the older exception file shape: a bare list of app URLs
// excluded permanently.
type legacyFile struct {
	ExceptionListAppsURL []string `json:"exception_list_apps_url"`
}

// LoadFile reads an exception file and normalizes it into entries.
// Two historical shapes are accepted:
//
//	{"exception_list_apps_url": ["https://...", ...]}
//	[{"app_url": "https://...", "expiry": "" | "YYYY-MM-DD"}, ...]
//
// Legacy URLs become entries with an empty expiry (never expires).
// A missing file is not an error: it yields no entries, so nothing is
// excluded.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read exception file %s: %w", path, err)
	}

	return parse(data, path)
}

func parse(data []byte, path string) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var legacy legacyFile
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse exception file %s: not a JSON entry array or legacy url list: %w", path, err)
	}

	entries = make([]Entry, 0, len(legacy.ExceptionListAppsURL))
	for _, url := range legacy.ExceptionListAppsURL {
		entries = append(entries, Entry{AppURL: url})
	}
	return entries, nil
}
