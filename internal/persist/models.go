package persist

import (
	"encoding/json"
	"time"
)

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRecord is one invocation of the generator pipeline
type RunRecord struct {
	ID           string
	DatasetPath  string
	Requirements string
	Provider     string
	Model        string
	Status       string
	ErrorKind    string
	ErrorMessage string
	OutputPath   string
	OutputBytes  int
	PromptDigest string
	Repaired     bool
	Warnings     []string
	StartedAt    time.Time
	Duration     time.Duration
}

func (r *RunRecord) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// toJSON converts an object to JSON string
func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// fromJSON parses JSON string into an object
func fromJSON(data string, v any) error {
	if data == "" || data == "[]" || data == "null" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}
