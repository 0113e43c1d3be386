package queue

import (
	"strings"
	"time"
)

// ContentType distinguishes the kinds of material collectors ingest.
type ContentType string

const (
	TypeArticle ContentType = "article"
	TypePodcast ContentType = "podcast"
	TypeNews    ContentType = "news"
)

var contentTypeSet = map[ContentType]struct{}{
	TypeArticle: {},
	TypePodcast: {},
	TypeNews:    {},
}

// ParseContentType converts a string into a known ContentType.
func ParseContentType(value string) (ContentType, bool) {
	normalized := ContentType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := contentTypeSet[normalized]
	return normalized, ok
}

// Status represents the lifecycle of a content item.
type Status string

const (
	StatusNew        Status = "new"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

var allStatuses = []Status{
	StatusNew,
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusSkipped,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known content statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a content status has no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// TaskType identifies the unit of work a task represents.
type TaskType string

const (
	TaskScrape         TaskType = "scrape"
	TaskProcessContent TaskType = "process_content"
	TaskDownloadAudio  TaskType = "download_audio"
	TaskTranscribe     TaskType = "transcribe"
	TaskSummarize      TaskType = "summarize"
)

var allTaskTypes = []TaskType{
	TaskScrape,
	TaskProcessContent,
	TaskDownloadAudio,
	TaskTranscribe,
	TaskSummarize,
}

var taskTypeSet = func() map[TaskType]struct{} {
	set := make(map[TaskType]struct{}, len(allTaskTypes))
	for _, taskType := range allTaskTypes {
		set[taskType] = struct{}{}
	}
	return set
}()

// AllTaskTypes returns the ordered list of known task types.
func AllTaskTypes() []TaskType {
	cp := make([]TaskType, len(allTaskTypes))
	copy(cp, allTaskTypes)
	return cp
}

// ParseTaskType converts a string into a known TaskType.
func ParseTaskType(value string) (TaskType, bool) {
	normalized := TaskType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := taskTypeSet[normalized]
	return normalized, ok
}

// TaskStatus represents the lifecycle of a queued task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// ContentItem represents one unit of ingested material tracked through the
// pipeline.
type ContentItem struct {
	ID             int64
	ContentType    ContentType
	URL            string
	Title          string
	Status         Status
	ErrorMessage   string
	RetryCount     int
	Classification string
	CheckedOutBy   string
	CheckedOutAt   *time.Time
	MetadataJSON   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ProcessedAt    *time.Time
}

// CheckedOut reports whether a worker currently holds this item.
func (c ContentItem) CheckedOut() bool {
	return c.CheckedOutBy != ""
}

// Task represents a queued unit of work, optionally bound to a content item.
type Task struct {
	ID           int64
	TaskType     TaskType
	ContentID    *int64
	PayloadJSON  string
	Status       TaskStatus
	RetryCount   int
	ErrorMessage string
	ClaimedBy    string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// QueueStats aggregates task counts for observability polling.
type QueueStats struct {
	ByStatus map[TaskStatus]int
	ByType   map[TaskType]int
}

// CheckoutStats aggregates content counts plus the number of held checkouts.
type CheckoutStats struct {
	ByStatus   map[Status]int
	CheckedOut int
}

// HealthSummary condenses content counts for diagnostic output.
type HealthSummary struct {
	Total      int
	New        int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Skipped    int
}
