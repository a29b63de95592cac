// Package eventbus is the engine's typed pub/sub surface: indexing
// lifecycle and memory-pressure signals, fanned out to subscribers
// asynchronously. Publishing is fire-and-forget — each subscriber drains
// its own bounded queue on its own goroutine, and a subscriber that panics
// or blocks never affects another subscriber or the publisher.
package eventbus

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Topic names one of the engine's typed event kinds.
type Topic string

const (
	TopicIndexingStarted   Topic = "indexing_started"
	TopicIndexingProgress  Topic = "indexing_progress"
	TopicIndexingCompleted Topic = "indexing_completed"
	TopicIndexingError     Topic = "indexing_error"
	TopicIndexingMetrics   Topic = "indexing_metrics"
	TopicMemoryWarning     Topic = "memory_warning"
)

// Event is the payload delivered to subscribers. Only the fields relevant
// to Topic are populated; see the Publish* helpers below.
type Event struct {
	// ID uniquely identifies this delivery; assigned by Publish with uuid.NewString
	// when left empty, so subscribers logging events can dedupe or correlate them.
	ID        string
	Topic     Topic
	ProjectID string
	Percent   int
	Err       error
	RelPath   string
	Metrics   FileMetrics
	MemoryPct float64
	Threshold float64
}

// FileMetrics is the per-file payload of an indexing_metrics event.
type FileMetrics struct {
	FileSize       int64
	ChunkCount     int
	ProcessingTime int64 // nanoseconds, kept as int64 to stay a plain value type
	MemoryDeltaPct float64
}

// queueCapacity bounds each subscriber's private event queue; a slow
// subscriber drops events past this point rather than blocking the
// publisher.
const queueCapacity = 256

type subscription struct {
	id    int
	topic Topic
	queue chan Event
	stop  chan struct{}
}

// Bus is the engine-wide event bus. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic][]*subscription
	logger *log.Logger
}

// New creates an empty Bus.
func New(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{subs: make(map[Topic][]*subscription), logger: logger}
}

// Subscribe registers handler to run, on its own goroutine, for every Event
// published to topic. The returned func unsubscribes and stops that
// goroutine. A handler panic is recovered, logged, and does not affect any
// other subscriber or the publisher.
func (b *Bus) Subscribe(topic Topic, handler func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{
		id:    b.nextID,
		topic: topic,
		queue: make(chan Event, queueCapacity),
		stop:  make(chan struct{}),
	}
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	go b.runSubscriber(sub, handler)

	return func() { b.unsubscribe(sub) }
}

func (b *Bus) runSubscriber(sub *subscription, handler func(Event)) {
	for {
		select {
		case ev := <-sub.queue:
			b.dispatch(sub, handler, ev)
		case <-sub.stop:
			return
		}
	}
}

func (b *Bus) dispatch(sub *subscription, handler func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("eventbus: subscriber %d on topic %s panicked: %v", sub.id, sub.topic, r)
		}
	}()
	handler(ev)
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.topic]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.topic] = append(subs[:i], subs[i+1:]...)
			close(sub.stop)
			return
		}
	}
}

// Publish fans ev out to every subscriber of ev.Topic. Delivery is
// non-blocking: a subscriber whose queue is full drops the event rather
// than stalling the publisher or other subscribers.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[ev.Topic] {
		select {
		case sub.queue <- ev:
		default:
			b.logger.Printf("eventbus: subscriber %d queue full, dropping %s event", sub.id, ev.Topic)
		}
	}
}

func (b *Bus) PublishIndexingStarted(projectID string) {
	b.Publish(Event{Topic: TopicIndexingStarted, ProjectID: projectID})
}

func (b *Bus) PublishIndexingProgress(projectID string, percent int) {
	b.Publish(Event{Topic: TopicIndexingProgress, ProjectID: projectID, Percent: percent})
}

func (b *Bus) PublishIndexingCompleted(projectID string) {
	b.Publish(Event{Topic: TopicIndexingCompleted, ProjectID: projectID})
}

func (b *Bus) PublishIndexingError(projectID string, err error) {
	b.Publish(Event{Topic: TopicIndexingError, ProjectID: projectID, Err: err})
}

func (b *Bus) PublishIndexingMetrics(projectID, relPath string, metrics FileMetrics) {
	b.Publish(Event{Topic: TopicIndexingMetrics, ProjectID: projectID, RelPath: relPath, Metrics: metrics})
}

func (b *Bus) PublishMemoryWarning(projectID string, memPct, threshold float64) {
	b.Publish(Event{Topic: TopicMemoryWarning, ProjectID: projectID, MemoryPct: memPct, Threshold: threshold})
}
