package queue

import (
	"encoding/json"
	"fmt"
)

// Task payloads form a tagged union keyed by TaskType: the payload JSON shape
// is fixed per type.

// ScrapePayload names the collector a SCRAPE task should invoke.
type ScrapePayload struct {
	Source string `json:"source"`
}

// DownloadAudioPayload carries the enclosure URL for a DOWNLOAD_AUDIO task.
type DownloadAudioPayload struct {
	AudioURL string `json:"audio_url"`
}

// TranscribePayload carries the local file path for a TRANSCRIBE task.
type TranscribePayload struct {
	FilePath string `json:"file_path"`
}

// EncodePayload renders a task payload to JSON.
func EncodePayload(payload any) (string, error) {
	if payload == nil {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload parses a task's payload JSON into the type-specific struct.
func DecodePayload(task *Task, target any) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	if task.PayloadJSON == "" {
		return fmt.Errorf("task %d has no payload", task.ID)
	}
	if err := json.Unmarshal([]byte(task.PayloadJSON), target); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.TaskType, err)
	}
	return nil
}
