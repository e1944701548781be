package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/facet/internal/bank"
)

// marshalPicks converts the picked family list to canonical JSON TEXT
// for storage. Uses RFC 8785 canonical JSON so the stored text is
// byte-stable across archive retries.
func marshalPicks(picks []string) (string, error) {
	arr := make(bank.Array, len(picks))
	for i, p := range picks {
		arr[i] = bank.String(p)
	}
	data, err := bank.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal picks: %w", err)
	}
	return string(data), nil
}

// unmarshalPicks parses the stored JSON array back into a family list.
// An empty pick list round-trips as an empty slice, never nil, so
// replay passes the same value the original session used.
func unmarshalPicks(data string) ([]string, error) {
	picks := []string{}
	if data == "" {
		return picks, nil
	}
	if err := json.Unmarshal([]byte(data), &picks); err != nil {
		return nil, fmt.Errorf("unmarshal picks: %w", err)
	}
	return picks, nil
}

// formatTS renders a timestamp as RFC 3339 UTC text with nanosecond
// precision. Storing UTC keeps archived rows comparable regardless of
// the submitting host's zone.
func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses a stored RFC 3339 timestamp.
func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
