package statusbroker

import (
	"sync"
	"time"

	"github.com/giantswarm/fedctl/internal/workflow"
)

const (
	// DefaultBacklogSize is the number of recent events replayed to a
	// newly-arriving subscriber before it joins the live tail.
	DefaultBacklogSize = 100
	// DefaultSubscriberBuffer is the extra headroom, beyond the
	// backlog, each subscriber channel gets for live events before it
	// is considered lagging.
	DefaultSubscriberBuffer = 32
)

// Broker fans out per-workflow Event streams. One Broker serves every
// workflow; state is partitioned internally by workflow.ID.
type Broker struct {
	backlogSize int
	subBuffer   int

	mu     sync.Mutex
	topics map[workflow.ID]*topic
}

type topic struct {
	mu      sync.Mutex
	backlog []workflow.Event
	subs    map[int64]chan workflow.Event
	nextID  int64
}

// New returns a Broker that replays up to backlogSize past events to new
// subscribers, and gives each subscriber channel subBuffer slots of
// headroom beyond the backlog before it is dropped as lagging.
func New(backlogSize, subBuffer int) *Broker {
	if backlogSize <= 0 {
		backlogSize = DefaultBacklogSize
	}
	if subBuffer <= 0 {
		subBuffer = DefaultSubscriberBuffer
	}
	return &Broker{
		backlogSize: backlogSize,
		subBuffer:   subBuffer,
		topics:      make(map[workflow.ID]*topic),
	}
}

func (b *Broker) topicFor(id workflow.ID) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[id]
	if !ok {
		t = &topic{subs: make(map[int64]chan workflow.Event)}
		b.topics[id] = t
	}
	return t
}

// Publish appends ev to the workflow's backlog and delivers it to every
// live subscriber. Per invariant 7, callers must publish only after the
// corresponding state change has been durably persisted, and must
// publish a single workflow's events in Seq order — Publish itself does
// not reorder or dedup.
func (b *Broker) Publish(id workflow.ID, ev workflow.Event) {
	t := b.topicFor(id)

	t.mu.Lock()
	t.backlog = append(t.backlog, ev)
	if len(t.backlog) > b.backlogSize {
		t.backlog = t.backlog[len(t.backlog)-b.backlogSize:]
	}
	snapshot := make(map[int64]chan workflow.Event, len(t.subs))
	for subID, ch := range t.subs {
		snapshot[subID] = ch
	}
	t.mu.Unlock()

	for subID, ch := range snapshot {
		select {
		case ch <- ev:
		default:
			b.dropSubscriber(id, t, subID, ch)
		}
	}
}

// dropSubscriber removes a lagging subscriber, delivers a terminal
// SubscriberLagged event (discarding the oldest queued event if the
// buffer is full), and closes its channel.
func (b *Broker) dropSubscriber(id workflow.ID, t *topic, subID int64, ch chan workflow.Event) {
	t.mu.Lock()
	cur, ok := t.subs[subID]
	if !ok || cur != ch {
		t.mu.Unlock()
		return
	}
	delete(t.subs, subID)
	t.mu.Unlock()

	lagged := workflow.Event{
		Kind:       workflow.EventSubscriberLagged,
		WorkflowID: id,
		At:         time.Now().UnixMilli(),
	}
	select {
	case ch <- lagged:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- lagged:
		default:
		}
	}
	close(ch)
}

// Subscribe registers a new subscriber for id's event stream. The
// returned channel first yields the current backlog (oldest first),
// then live events as they are Published. The returned unsubscribe
// func must be called when the caller stops reading, to release the
// channel; it is safe to call more than once.
func (b *Broker) Subscribe(id workflow.ID) (<-chan workflow.Event, func()) {
	t := b.topicFor(id)

	t.mu.Lock()
	ch := make(chan workflow.Event, b.backlogSize+b.subBuffer)
	for _, ev := range t.backlog {
		ch <- ev
	}
	subID := t.nextID
	t.nextID++
	t.subs[subID] = ch
	t.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			t.mu.Lock()
			if cur, ok := t.subs[subID]; ok {
				delete(t.subs, subID)
				t.mu.Unlock()
				close(cur)
				return
			}
			t.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Close releases a workflow's topic and closes every live subscriber
// channel. A later Publish or Subscribe for id starts a new, empty
// topic.
func (b *Broker) Close(id workflow.ID) {
	b.mu.Lock()
	t, ok := b.topics[id]
	if ok {
		delete(b.topics, id)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}
