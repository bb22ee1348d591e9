package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hivetechs-collective/Hive-sub013/pkg/errors"
	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
)

// BackpressurePolicy governs what happens when a client's delivery queue
// fills while new events keep matching its subscriptions.
type BackpressurePolicy string

const (
	// PolicyPauseWatcher blocks delivery to the slow client until it
	// drains, preserving every event. It is the spec's documented default.
	PolicyPauseWatcher BackpressurePolicy = "pause_watcher"
	// PolicyDropOldest discards the oldest undelivered event to make room,
	// incrementing that client's dropped counter.
	PolicyDropOldest BackpressurePolicy = "drop_oldest"
)

const (
	defaultQueueCapacity = 256
	idleClientTTL        = 24 * time.Hour
	cleanupInterval      = time.Hour
	healthProbeInterval  = 5 * time.Minute
)

// clientQueue is one registered client's delivery sink.
type clientQueue struct {
	mu      sync.Mutex
	events  []*SubscriptionEvent
	notify  chan struct{}
	closed  bool
	dropped int64
}

func newClientQueue() *clientQueue {
	return &clientQueue{notify: make(chan struct{}, 1)}
}

func (q *clientQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// push delivers ev per policy. PolicyPauseWatcher blocks the caller (the
// bus's own dispatch loop, never the raw watcher goroutine, which buffers
// independently) until the queue has room.
func (q *clientQueue) push(ev *SubscriptionEvent, capacity int, policy BackpressurePolicy) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return
		}
		if len(q.events) < capacity || capacity <= 0 {
			q.events = append(q.events, ev)
			q.mu.Unlock()
			q.signal()
			return
		}
		if policy == PolicyDropOldest {
			q.events = append(q.events[1:], ev)
			q.dropped++
			q.mu.Unlock()
			q.signal()
			return
		}
		q.mu.Unlock()
		// PolicyPauseWatcher: wait for room, checked again on next signal.
		time.Sleep(5 * time.Millisecond)
	}
}

// drain pops every currently queued event, for the client's consuming goroutine.
func (q *clientQueue) drain() []*SubscriptionEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}

func (q *clientQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Bus is the subscription and delivery engine described by §4.2: a
// per-client bounded queue, a subscription index keyed by resource kind and
// path, and filter/debounce evaluation ahead of delivery. Grounded on
// runtime/events.EventBus's Subscribe/Publish shape, generalized from
// broadcasting to in-process listeners to routing filtered events into
// per-client queues.
type Bus struct {
	mu            sync.RWMutex
	clients       map[string]*ClientSession
	queues        map[string]*clientQueue
	subscriptions map[string]*Subscription
	byClient      map[string]map[string]struct{} // client id -> subscription ids
	watchers      map[string]struct{}            // resource path -> watched
	lastDelivered map[string]time.Time           // subscriptionID+"\x00"+path -> time

	source        WatchSource
	queueCapacity int
	policy        BackpressurePolicy

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Bus. source may be nil, in which case filesystem
// subscriptions are accepted but never actually watched (useful for
// logical-resource-only deployments or tests that inject events via
// TriggerEvent).
func New(source WatchSource, policy BackpressurePolicy) *Bus {
	if policy == "" {
		policy = PolicyPauseWatcher
	}
	b := &Bus{
		clients:       make(map[string]*ClientSession),
		queues:        make(map[string]*clientQueue),
		subscriptions: make(map[string]*Subscription),
		byClient:      make(map[string]map[string]struct{}),
		watchers:      make(map[string]struct{}),
		lastDelivered: make(map[string]time.Time),
		source:        source,
		queueCapacity: defaultQueueCapacity,
		policy:        policy,
		stopCh:        make(chan struct{}),
	}
	b.startMaintenance()
	return b
}

// RegisterClient creates a delivery queue for id, or rejects a duplicate.
func (b *Bus) RegisterClient(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.clients[id]; exists {
		return errors.New("eventbus", "register-client", nil).WithDetails(map[string]any{"client_id": id, "reason": "already registered"})
	}

	now := time.Now()
	b.clients[id] = &ClientSession{
		ClientID:        id,
		SubscriptionIDs: make(map[string]struct{}),
		ConnectedAt:     now,
		LastActivity:    now,
	}
	b.queues[id] = newClientQueue()
	return nil
}

// Drain returns every event queued for client id since the last Drain call.
func (b *Bus) Drain(clientID string) ([]*SubscriptionEvent, error) {
	b.mu.RLock()
	q, ok := b.queues[clientID]
	session := b.clients[clientID]
	b.mu.RUnlock()
	if !ok {
		return nil, errors.New("eventbus", "drain", nil).WithDetails(map[string]any{"client_id": clientID, "reason": "not registered"})
	}
	if session != nil {
		b.mu.Lock()
		session.LastActivity = time.Now()
		b.mu.Unlock()
	}
	return q.drain(), nil
}

// Notify returns the channel that fires whenever new events are queued for
// clientID, so a session loop can select on it instead of polling Drain.
func (b *Bus) Notify(clientID string) <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.queues[clientID]; ok {
		return q.notify
	}
	return nil
}

// CreateSubscription records filters, binds the subscription to its client,
// and attaches a watcher on the resource path when the kind is File or
// Directory and a WatchSource was configured.
func (b *Bus) CreateSubscription(req SubscriptionRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[req.ClientID]; !ok {
		return "", errors.New("eventbus", "create-subscription", nil).WithDetails(map[string]any{"client_id": req.ClientID, "reason": "client not registered"})
	}

	id := uuid.New().String()
	now := time.Now()
	sub := &Subscription{
		ID:           id,
		ClientID:     req.ClientID,
		ResourceKind: req.ResourceKind,
		ResourcePath: req.ResourcePath,
		Filters:      req.Filters,
		Status:       StatusActive,
		CreatedAt:    now,
		LastUpdate:   now,
	}
	b.subscriptions[id] = sub

	if b.byClient[req.ClientID] == nil {
		b.byClient[req.ClientID] = make(map[string]struct{})
	}
	b.byClient[req.ClientID][id] = struct{}{}
	b.clients[req.ClientID].SubscriptionIDs[id] = struct{}{}
	b.clients[req.ClientID].LastActivity = now

	if (req.ResourceKind == ResourceFile || req.ResourceKind == ResourceDirectory) && b.source != nil {
		if _, watching := b.watchers[req.ResourcePath]; !watching {
			ch, err := b.source.Watch(req.ResourcePath, req.ResourceKind == ResourceDirectory)
			if err != nil {
				sub.Status = StatusError
				sub.ErrorReason = err.Error()
				logger.Warn("eventbus: failed to watch path", "path", req.ResourcePath, "error", err)
			} else {
				b.watchers[req.ResourcePath] = struct{}{}
				b.wg.Add(1)
				go b.pumpRawEvents(ch)
			}
		}
	}

	return id, nil
}

// CancelSubscription removes sub_id from all indices if client_id owns it,
// and unwatches the path once no subscription references it anymore.
func (b *Bus) CancelSubscription(subID, clientID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscriptions[subID]
	if !ok {
		return nil
	}
	if sub.ClientID != clientID {
		return errors.New("eventbus", "cancel-subscription", nil).WithDetails(map[string]any{"subscription_id": subID, "reason": "not owned by client"})
	}

	delete(b.subscriptions, subID)
	delete(b.byClient[clientID], subID)
	if client, ok := b.clients[clientID]; ok {
		delete(client.SubscriptionIDs, subID)
		client.LastActivity = time.Now()
	}

	b.unwatchIfOrphaned(sub.ResourcePath)
	return nil
}

// unwatchIfOrphaned detaches the watcher on path when no remaining
// subscription references it. Caller holds b.mu.
func (b *Bus) unwatchIfOrphaned(path string) {
	if _, watching := b.watchers[path]; !watching {
		return
	}
	for _, sub := range b.subscriptions {
		if sub.ResourcePath == path {
			return
		}
	}
	if b.source != nil {
		_ = b.source.Unwatch(path)
	}
	delete(b.watchers, path)
}

// ListClientSubscriptions returns a snapshot of a client's subscriptions.
func (b *Bus) ListClientSubscriptions(clientID string) []Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Subscription
	for id := range b.byClient[clientID] {
		if sub, ok := b.subscriptions[id]; ok {
			out = append(out, *sub)
		}
	}
	return out
}

// TriggerEvent is the manual injection path; it runs the same delivery
// rules as a watcher-sourced event.
func (b *Bus) TriggerEvent(evt SubscriptionEvent) {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.dispatch(evt)
}

// pumpRawEvents converts and dispatches everything a WatchSource channel
// produces until the bus is stopped. One goroutine per distinct watched
// path, mirroring the teacher's per-connection pump goroutines.
func (b *Bus) pumpRawEvents(ch <-chan rawEvent) {
	defer b.wg.Done()
	for {
		select {
		case raw, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(b.enrich(raw))
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) enrich(raw rawEvent) SubscriptionEvent {
	meta := EventMetadata{ChangeType: string(raw.Kind)}
	if raw.Kind != EventFileDeleted && raw.Kind != EventDirectoryDeleted {
		meta.Size = fileSize(raw.Path)
		meta.Checksum = checksumFile(raw.Path)
	}
	meta.Extension = extOf(raw.Path)

	kind := ResourceFile
	if raw.Kind == EventDirectoryCreated || raw.Kind == EventDirectoryDeleted {
		kind = ResourceDirectory
	}

	return SubscriptionEvent{
		ID:           uuid.New().String(),
		ResourceKind: kind,
		EventKind:    raw.Kind,
		Path:         raw.Path,
		Timestamp:    time.Now(),
		Metadata:     meta,
	}
}

// dispatch matches evt against every subscription on its path, applies
// debouncing, and delivers to the owning client's queue. Per §4.2, delivery
// ordering within a subscription is preserved; across subscriptions it is
// not.
func (b *Bus) dispatch(evt SubscriptionEvent) {
	b.mu.Lock()
	var targets []*Subscription
	for _, sub := range b.subscriptions {
		if sub.Status != StatusActive {
			continue
		}
		candidate := evt
		candidate.SubscriptionID = sub.ID
		if !matches(sub, &candidate) {
			continue
		}
		if b.debounced(sub, evt.Path) {
			continue
		}
		sub.UpdateCount++
		sub.LastUpdate = evt.Timestamp
		targets = append(targets, sub)
	}
	clientQueues := make(map[string]*clientQueue, len(targets))
	for _, sub := range targets {
		if q, ok := b.queues[sub.ClientID]; ok {
			clientQueues[sub.ID] = q
		}
	}
	capacity := b.queueCapacity
	policy := b.policy
	b.mu.Unlock()

	for _, sub := range targets {
		q, ok := clientQueues[sub.ID]
		if !ok {
			continue
		}
		delivered := evt
		delivered.SubscriptionID = sub.ID
		q.push(&delivered, capacity, policy)
	}
}

// debounced reports whether this (subscription, path) pair delivered within
// the subscription's debounce window, recording the attempt either way.
// Caller holds b.mu.
func (b *Bus) debounced(sub *Subscription, path string) bool {
	if sub.Filters.DebounceEvery <= 0 {
		return false
	}
	key := sub.ID + "\x00" + path
	now := time.Now()
	last, seen := b.lastDelivered[key]
	if seen && now.Sub(last) < sub.Filters.DebounceEvery {
		return true
	}
	b.lastDelivered[key] = now
	return false
}

// Stats reports current subscription/client counts for diagnostics.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		TotalClients:         len(b.clients),
		SubscriptionsByKind:  make(map[ResourceKind]int),
		DroppedEventsByQueue: make(map[string]int64),
		QueueDepthByClient:   make(map[string]int),
	}
	for _, sub := range b.subscriptions {
		stats.TotalSubscriptions++
		switch sub.Status {
		case StatusActive:
			stats.ActiveSubscriptions++
		case StatusPaused:
			stats.PausedSubscriptions++
		case StatusError:
			stats.ErrorSubscriptions++
		}
		stats.SubscriptionsByKind[sub.ResourceKind]++
	}
	for clientID, q := range b.queues {
		q.mu.Lock()
		stats.DroppedEventsByQueue[clientID] = q.dropped
		stats.QueueDepthByClient[clientID] = len(q.events)
		q.mu.Unlock()
	}
	return stats
}

// Close stops maintenance goroutines and any watcher pumps.
func (b *Bus) Close() error {
	close(b.stopCh)
	b.wg.Wait()
	b.mu.Lock()
	for _, q := range b.queues {
		q.close()
	}
	b.mu.Unlock()
	if b.source != nil {
		return b.source.Close()
	}
	return nil
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}
