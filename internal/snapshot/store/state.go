package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

// legacyState is the single-record format written before per-date history existed.
type legacyState struct {
	Filename    string `json:"filename"`
	StoredName  string `json:"storedName"`
	UploadedAt  string `json:"uploadedAt"`
	ContentHash string `json:"contentHash"`
}

func emptyState() *report.State {
	return &report.State{Snapshots: map[string]*report.Snapshot{}}
}

// decodeState reads either the keyed state format or the legacy single-record one.
// A latest pointer that names an unknown date falls back to the newest known date.
func decodeState(data []byte) (*report.State, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}

	if _, ok := fields["snapshots"]; ok {
		var state report.State
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("decoding state: %w", err)
		}

		if state.Snapshots == nil {
			state.Snapshots = map[string]*report.Snapshot{}
		}

		if _, ok := state.Snapshots[state.LatestDate]; !ok {
			state.LatestDate = ""

			if keys := sortedKeys(state.Snapshots); len(keys) > 0 {
				state.LatestDate = keys[len(keys)-1]
			}
		}

		return &state, nil
	}

	var legacy legacyState
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decoding legacy state: %w", err)
	}

	if legacy.Filename == "" {
		return emptyState(), nil
	}

	return migrateLegacy(legacy), nil
}

func migrateLegacy(legacy legacyState) *report.State {
	uploaded, err := time.Parse(time.RFC3339Nano, legacy.UploadedAt)
	if err != nil {
		uploaded = time.Now().UTC()
	}

	key := report.Key(uploaded)
	if len(legacy.UploadedAt) >= len(time.DateOnly) {
		if _, err := report.ParseKey(legacy.UploadedAt[:len(time.DateOnly)]); err == nil {
			key = legacy.UploadedAt[:len(time.DateOnly)]
		}
	}

	return &report.State{
		LatestDate: key,
		Snapshots: map[string]*report.Snapshot{
			key: {
				Date:          key,
				Filename:      legacy.Filename,
				StoredName:    legacy.StoredName,
				ProcessedName: latestFile,
				UploadedAt:    uploaded,
				ContentHash:   legacy.ContentHash,
			},
		},
	}
}

func sortedKeys(m map[string]*report.Snapshot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
