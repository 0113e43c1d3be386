package queue

import (
	"encoding/json"
	"strings"
)

// Metadata keys written by the pipeline. Strategies may add arbitrary keys of
// their own alongside these.
const (
	MetaResolvedURL = "resolved_url"
	MetaAuthor      = "author"
	MetaContent     = "content"
	MetaAudioURL    = "audio_url"
	MetaAudioPath   = "audio_path"
	MetaTranscript  = "transcript"
	MetaSummary     = "summary"
	MetaExtractedAt = "extracted_at"
	MetaStrategy    = "strategy"
)

// Metadata is the open-ended payload attached to a content item. It carries
// type-specific extracted fields and, once produced, the summary object.
type Metadata map[string]any

// DecodeMetadata parses stored metadata JSON, returning an empty map for
// missing or malformed payloads so callers can always write through it.
func DecodeMetadata(data string) Metadata {
	meta := Metadata{}
	if strings.TrimSpace(data) == "" {
		return meta
	}
	_ = json.Unmarshal([]byte(data), &meta)
	return meta
}

// Encode renders the metadata back to JSON. An empty map encodes to "".
func (m Metadata) Encode() string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// Merge copies the supplied entries into the map, overwriting on conflict.
func (m Metadata) Merge(updates map[string]any) Metadata {
	for key, value := range updates {
		m[key] = value
	}
	return m
}

// GetString returns the value for key when it is a non-empty string.
func (m Metadata) GetString(key string) (string, bool) {
	value, ok := m[key]
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", false
	}
	return str, true
}

// MergeMetadataJSON merges updates into an item's stored metadata JSON and
// returns the re-encoded document.
func MergeMetadataJSON(existing string, updates map[string]any) string {
	return DecodeMetadata(existing).Merge(updates).Encode()
}
