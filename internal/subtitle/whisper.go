package subtitle

import (
	"encoding/json"
	"fmt"
)

// whisperOutput is the JSON document the whisper CLI writes alongside the
// input file when invoked with --output_format json.
type whisperOutput struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// ParseWhisperOutput decodes whisper's JSON output into segments, returning
// the detected language as well.
func ParseWhisperOutput(data []byte) ([]Segment, string, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, "", fmt.Errorf("parse whisper output: %w", err)
	}
	if len(out.Segments) == 0 {
		return nil, out.Language, fmt.Errorf("whisper output contains no segments")
	}
	return out.Segments, out.Language, nil
}
