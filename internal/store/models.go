package store

import (
	"strings"
	"time"
)

// Status represents the review lifecycle of an ingested item.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAnswered Status = "answered"
	StatusSelected Status = "selected"
	StatusIgnored  Status = "ignored"
	StatusSent     Status = "sent"
	StatusLead     Status = "lead"
)

var allStatuses = []Status{
	StatusOpen,
	StatusAnswered,
	StatusSelected,
	StatusIgnored,
	StatusSent,
	StatusLead,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// protectedStatuses marks items that survive author replacement and reaping.
var protectedStatuses = map[Status]struct{}{
	StatusSelected: {},
	StatusAnswered: {},
	StatusSent:     {},
	StatusLead:     {},
}

// AllStatuses returns the ordered list of known statuses.
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

// IsProtected reports whether a status shields an item from replacement and reaping.
func IsProtected(status Status) bool {
	_, ok := protectedStatuses[status]
	return ok
}

// ProtectedStatuses returns the statuses that shield items from removal.
func ProtectedStatuses() []Status {
	out := make([]Status, 0, len(protectedStatuses))
	for _, status := range allStatuses {
		if _, ok := protectedStatuses[status]; ok {
			out = append(out, status)
		}
	}
	return out
}

// Item represents an ingested content item persisted in SQLite.
type Item struct {
	ID             string
	Source         string
	AuthorID       string
	CreatedUTC     time.Time
	Title          string
	Body           string
	OCRText        string
	Flair          string
	UpvoteScore    int64
	CommentCount   int64
	URL            string
	Status         Status
	RelevanceScore *float64
	Theme          string
	Summary        string
	Tags           string
	Rationale      string
	AnalyzedAt     *time.Time
	IngestedAt     time.Time
}

// IsProtected reports whether the item holds a protected status.
func (i Item) IsProtected() bool {
	return IsProtected(i.Status)
}

// Analyzed reports whether enrichment results have been recorded for the item.
func (i Item) Analyzed() bool {
	return i.AnalyzedAt != nil
}

// TagList splits the stored tag string into individual tags.
func (i Item) TagList() []string {
	if strings.TrimSpace(i.Tags) == "" {
		return nil
	}
	parts := strings.Split(i.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// Author represents a content author tracked across ingestion runs.
type Author struct {
	ID           string
	Username     string
	CreatedUTC   *time.Time
	CommentKarma int64
	LinkKarma    int64
	IsVerified   bool
	FirstSeenAt  time.Time
	UpdatedAt    time.Time
}

// PipelineStatus is the singleton run-state row describing the most recent
// pipeline execution.
type PipelineStatus struct {
	StartedAt   *time.Time
	IsRunning   bool
	CompletedAt *time.Time
	OwnerPID    int64
}

// Analysis carries enrichment results to persist for an item.
type Analysis struct {
	RelevanceScore float64
	Theme          string
	Summary        string
	Tags           string
	Rationale      string
	AnalyzedAt     time.Time
}

// ListFilter narrows item listings.
type ListFilter struct {
	Statuses []Status
	Source   string
	MinScore *float64
	Analyzed *bool
	Limit    int
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
