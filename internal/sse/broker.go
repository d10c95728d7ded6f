// Package sse implements a Server-Sent Events broker that streams event
// changes to the clients of one org.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Change kinds published for events.
const (
	EventUpdated      = "updated"
	EventApproved     = "approved"
	EventDeleted      = "deleted"
	EventTagAdded     = "tag_added"
	EventTagRemoved   = "tag_removed"
	EventThingAdded   = "thing_added"
	EventThingRemoved = "thing_removed"
)

// Event is one SSE message for the subscribers of OrgID.
type Event struct {
	OrgID int64
	Type  string
	Data  any
}

type changeReq struct {
	orgID   int64
	kind    string
	eventID int64
}

type subscription struct {
	orgID int64
	ch    chan []byte
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-org facet throttle timestamps). Public methods communicate with
// this loop through channels, so no mutexes are required.
type Broker struct {
	facetsMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan changeReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. facets.stale hints are sent at most
// once per facetsThrottle for each org.
func NewBroker(facetsThrottle time.Duration) *Broker {
	if facetsThrottle <= 0 {
		facetsThrottle = 2 * time.Second
	}

	b := &Broker{
		facetsMin:     facetsThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan changeReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]int64)
	lastFacets := make(map[int64]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, org := range clients {
			if org != event.OrgID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.orgID

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.changeCh:
			broadcast(Event{OrgID: req.orgID, Type: "event." + req.kind, Data: map[string]int64{"id": req.eventID}})

			now := time.Now()
			if now.Sub(lastFacets[req.orgID]) >= b.facetsMin {
				lastFacets[req.orgID] = now
				broadcast(Event{OrgID: req.orgID, Type: "facets.stale", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client of orgID and returns its channel.
func (b *Broker) Subscribe(orgID int64) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{orgID: orgID, ch: ch}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the clients of its org.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// EventChanged publishes event.<kind> for an event and a throttled
// facets.stale hint for its org.
func (b *Broker) EventChanged(orgID int64, kind string, eventID int64) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- changeReq{orgID: orgID, kind: kind, eventID: eventID}:
	case <-b.stopped:
	}
}

// Serve streams the changes of orgID to one client until it disconnects.
func (b *Broker) Serve(w http.ResponseWriter, r *http.Request, orgID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(orgID)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
