package formsession

import (
	"sync"
	"time"

	"github.com/agrodata/agroadmin/internal/editform"
)

// EventKind tags a feed entry.
type EventKind string

const (
	EventNotification EventKind = "notification"
	EventNavigate     EventKind = "navigate"
)

// Event is one entry of a session's feed.
type Event struct {
	Seq          int                    `json:"seq"`
	Kind         EventKind              `json:"kind"`
	At           time.Time              `json:"at"`
	Notification *editform.Notification `json:"notification,omitempty"`
	Path         string                 `json:"path,omitempty"`
}

// Feed records the notifications and navigation commands a form emits and
// fans them out to live subscribers. It implements editform.Notifier and
// editform.Navigator.
type Feed struct {
	mu      sync.Mutex
	history []Event
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped for it. History keeps everything.
const subscriberBuffer = 16

func newFeed() *Feed {
	return &Feed{subs: make(map[int]chan Event)}
}

func (f *Feed) Show(n editform.Notification) {
	f.append(Event{Kind: EventNotification, Notification: &n})
}

func (f *Feed) Navigate(path string) {
	f.append(Event{Kind: EventNavigate, Path: path})
}

func (f *Feed) append(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	e.Seq = len(f.history) + 1
	e.At = time.Now()
	f.history = append(f.history, e)
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// History returns every event so far.
func (f *Feed) History() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.history...)
}

// Subscribe returns a channel of future events and a cancel func. The
// channel is closed by cancel or when the feed closes.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}
}

func (f *Feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
