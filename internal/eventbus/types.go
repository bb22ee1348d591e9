// Package eventbus implements the subscription and delivery engine for
// filesystem and logical resource events: per-client bounded queues,
// per-subscription filtering and debouncing, and a watcher-driven source.
//
// It generalizes the teacher's runtime/events fan-out (EventBus/Listener/
// Emitter, built for pipeline observability) from "broadcast to in-process
// listeners" to "filtered delivery to per-client queues" — the shape of
// Subscribe/Publish carries over, but subscriptions now own filters, a
// client owns a queue instead of a callback, and delivery is driven by a
// watcher source instead of pipeline stages emitting directly.
package eventbus

import (
	"time"
)

// ResourceKind identifies what a Subscription watches.
type ResourceKind string

const (
	ResourceFile          ResourceKind = "file"
	ResourceDirectory     ResourceKind = "directory"
	ResourceAnalysis      ResourceKind = "analysis"
	ResourceMemory        ResourceKind = "memory"
	ResourceConfiguration ResourceKind = "configuration"
	ResourceRepository    ResourceKind = "repository"
	ResourceCustom        ResourceKind = "custom"
)

// EventKind classifies a single resource-change notification.
type EventKind string

const (
	EventFileCreated       EventKind = "file_created"
	EventFileModified      EventKind = "file_modified"
	EventFileDeleted       EventKind = "file_deleted"
	EventFileRenamed       EventKind = "file_renamed"
	EventDirectoryCreated  EventKind = "directory_created"
	EventDirectoryDeleted  EventKind = "directory_deleted"
	EventAnalysisUpdated   EventKind = "analysis_updated"
	EventMemoryUpdated     EventKind = "memory_updated"
	EventConfigChanged     EventKind = "configuration_changed"
	EventRepositoryChanged EventKind = "repository_changed"
	EventSubscriptionError EventKind = "subscription_errored"
)

// SubscriptionStatus is the lifecycle state of a Subscription.
type SubscriptionStatus string

const (
	StatusActive SubscriptionStatus = "active"
	StatusPaused SubscriptionStatus = "paused"
	StatusError  SubscriptionStatus = "error"
)

// Filters narrows which events on a matched path are delivered. A nil set
// means "no constraint" for that dimension.
type Filters struct {
	Extensions    map[string]struct{}
	PathPatterns  []string
	EventKinds    map[EventKind]struct{}
	MinSize       *int64
	MaxSize       *int64
	DebounceEvery time.Duration
}

// Subscription is one client's standing interest in a resource path.
type Subscription struct {
	ID           string
	ClientID     string
	ResourceKind ResourceKind
	ResourcePath string
	Filters      Filters
	Status       SubscriptionStatus
	ErrorReason  string
	CreatedAt    time.Time
	LastUpdate   time.Time
	UpdateCount  uint64
}

// EventMetadata carries the enrichment the spec requires for filtering and
// client consumption: size, extension, checksum, and a change description.
type EventMetadata struct {
	Size             *int64
	Extension        string
	Checksum         string
	PreviousChecksum string
	ChangeType       string
}

// SubscriptionEvent is a single delivered notification.
type SubscriptionEvent struct {
	ID             string
	SubscriptionID string
	ResourceKind   ResourceKind
	EventKind      EventKind
	Path           string
	Timestamp      time.Time
	Payload        any
	Metadata       EventMetadata
}

// SubscriptionRequest is the input to CreateSubscription.
type SubscriptionRequest struct {
	ClientID     string
	ResourceKind ResourceKind
	ResourcePath string
	Filters      Filters
}

// ClientSession tracks one registered delivery sink.
type ClientSession struct {
	ClientID        string
	SubscriptionIDs map[string]struct{}
	ConnectedAt     time.Time
	LastActivity    time.Time
}

// Stats is a point-in-time snapshot for diagnostics.
type Stats struct {
	TotalSubscriptions   int
	ActiveSubscriptions  int
	PausedSubscriptions  int
	ErrorSubscriptions   int
	TotalClients         int
	SubscriptionsByKind  map[ResourceKind]int
	DroppedEventsByQueue map[string]int64
	QueueDepthByClient   map[string]int
}
