package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentfabric/govcore/internal/storage"
)

// Ledger appends hash-chained events through a storage.Store. The chain
// head is read and advanced under one mutex with the write, so two
// concurrent appends can never compute ids against a stale head.
type Ledger struct {
	store storage.Store

	mu   sync.Mutex
	head string
}

// Open builds a Ledger over the given store and recovers the chain head
// from the last persisted event.
func Open(store storage.Store) (*Ledger, error) {
	l := &Ledger{store: store, head: Genesis}

	lines, err := l.store.ReadLines()
	if err != nil {
		return nil, fmt.Errorf("ledger: recover head: %w", err)
	}
	for i := len(lines) - 1; i >= 0; i-- {
		var ev Event
		if err := ev.UnmarshalJSON(lines[i]); err != nil {
			continue
		}
		if ev.EventID != "" {
			l.head = ev.EventID
			break
		}
	}
	return l, nil
}

// Head returns the current chain head event id.
func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Append stamps timestamps if missing, computes the v1 event id from the
// chain head, persists the event, and advances the head. The caller's
// EventID and PrevEventID are always overwritten.
func (l *Ledger) Append(ev Event) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A re-appended parsed event is a new event; hash its fields as they
	// are now, not as some prior line stored them.
	ev.present = nil

	now := time.Now().UTC()
	if ev.TS == "" {
		ev.TS = now.Format(time.RFC3339Nano)
	}
	if ev.TSMs == 0 {
		ev.TSMs = now.UnixMilli()
	}
	ev.PrevEventID = l.head

	id, err := ComputeEventIDV1(l.head, &ev)
	if err != nil {
		return Event{}, err
	}
	ev.EventID = id

	line, err := ev.MarshalJSON()
	if err != nil {
		return Event{}, fmt.Errorf("ledger: marshal event: %w", err)
	}
	if err := l.store.AppendLine(line); err != nil {
		return Event{}, fmt.Errorf("ledger: append: %w", err)
	}

	l.head = id
	return ev, nil
}

// Read returns events oldest-first. limit > 0 keeps the newest limit
// events (still oldest-first); entityID filters when non-empty.
// Unparseable lines are skipped, matching tolerant ingestion of
// pre-chaining history.
func (l *Ledger) Read(limit int, entityID string) ([]Event, error) {
	lines, err := l.store.ReadLines()
	if err != nil {
		return nil, fmt.Errorf("ledger: read: %w", err)
	}

	var events []Event
	for _, line := range lines {
		var ev Event
		if err := ev.UnmarshalJSON(line); err != nil {
			continue
		}
		if entityID != "" && ev.EntityID != entityID {
			continue
		}
		events = append(events, ev)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// List returns events newest-first for auditors.
func (l *Ledger) List(limit int, entityID string) ([]Event, error) {
	events, err := l.Read(limit, entityID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}
