package amqp

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	EventImportProgress  = "import.progress"
	EventImportCompleted = "import.completed"
	EventImportFailed    = "import.failed"
)

// ImportEvent reports the state of one import run. Counts are cumulative.
type ImportEvent struct {
	Type       string    `json:"type"`
	ImportID   string    `json:"import_id"`
	File       string    `json:"file"`
	Processed  int       `json:"processed"`
	Accepted   int       `json:"accepted"`
	Rejected   int       `json:"rejected"`
	Duplicates int       `json:"duplicates"`
	Skipped    int       `json:"skipped,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewImportEvent creates an event stamped with the current time.
func NewImportEvent(eventType, importID, file string) *ImportEvent {
	return &ImportEvent{
		Type:      eventType,
		ImportID:  importID,
		File:      file,
		Timestamp: time.Now(),
	}
}

func (e *ImportEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ImportEventFromJSON(data []byte) (*ImportEvent, error) {
	var ev ImportEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
