package report

import (
	"time"
)

// Snapshot describes one processed workbook in the history.
type Snapshot struct {
	Date          string    `json:"date"`
	Filename      string    `json:"filename"`
	StoredName    string    `json:"storedName"`
	ProcessedName string    `json:"processedName"`
	UploadedAt    time.Time `json:"uploadedAt"`
	ContentHash   string    `json:"contentHash"`
	Mode          string    `json:"mode,omitempty"`
	Rows          int       `json:"rows"`
	Warnings      []string  `json:"warnings,omitempty"`
}

// State is the persisted latest pointer together with every known snapshot record.
type State struct {
	LatestDate string               `json:"latestDate"`
	Snapshots  map[string]*Snapshot `json:"snapshots"`
}

// Latest returns the snapshot the latest pointer references, or nil.
func (s *State) Latest() *Snapshot {
	if s == nil || s.LatestDate == "" {
		return nil
	}

	return s.Snapshots[s.LatestDate]
}
