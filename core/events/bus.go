// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package events is the core's pub/sub fan-out for lifecycle notifications
// (branch created, snapshot taken, handle closed, lock conflict...), built
// on github.com/docker/go-events the same way moby/moby fans out container
// lifecycle events to its API watchers: a Broadcaster holds one Sink per
// subscriber, and each Sink is a Channel buffering up to subscriberBuffer
// events. The Broadcaster delivers to its sinks one after another, so a
// subscriber whose buffer is full holds up delivery to the others until it
// reads.
package events

import (
	"sync"

	"github.com/docker/go-events"

	"github.com/agentfs/agentfs-core/metrics"
)

// Kind names the lifecycle event categories a Bus delivers.
type Kind string

const (
	// KindCreated, KindRemoved, KindModified, KindRenamed, KindSnapshotCreated
	// and KindBranchCreated are spec.md §4.3's EventKind vocabulary verbatim
	// (Created{path}, Removed{path}, Modified{path}, Renamed{from,to},
	// SnapshotCreated{id,name}, BranchCreated{id,name}).
	KindCreated         Kind = "created"
	KindRemoved         Kind = "removed"
	KindModified        Kind = "modified"
	KindRenamed         Kind = "renamed"
	KindSnapshotCreated Kind = "snapshot_created"
	KindBranchCreated   Kind = "branch_created"

	// The remaining kinds are this core's own lifecycle notifications, not
	// named by spec.md's EventKind list but not excluded by it either.
	KindBranchDeleted   Kind = "branch_deleted"
	KindSnapshotDeleted Kind = "snapshot_deleted"
	KindHandleClosed    Kind = "handle_closed"
	KindLockConflict    Kind = "lock_conflict"
)

// Event is one notification delivered to subscribers. Subject carries the
// primary path/id the event concerns; From/To are populated only for
// KindRenamed, and Name only for the two Name-bearing kinds
// (SnapshotCreated/BranchCreated).
type Event struct {
	Kind    Kind
	Subject string
	From    string
	To      string
	Name    string
}

// subscriberBuffer is how many undelivered events a subscriber's channel
// holds; once it is full, delivery (and with it Publish) waits until that
// subscriber reads.
const subscriberBuffer = 64

// Bus fans lifecycle events out to subscribers. The zero value is not
// usable; construct with New.
type Bus struct {
	mu      sync.Mutex
	bcast   *events.Broadcaster
	chans   map[string]*events.Channel
	metrics *metrics.Handle
	enabled bool
}

// New constructs a Bus. enabled mirrors cfg.Config.TrackEvents: when false,
// Publish is a no-op (aside from incrementing the dropped counter), so
// callers do not need to branch on the config flag at every call site.
func New(enabled bool, m *metrics.Handle) *Bus {
	return &Bus{
		bcast:   events.NewBroadcaster(),
		chans:   make(map[string]*events.Channel),
		metrics: m,
		enabled: enabled,
	}
}

// Subscription is a live subscription returned by Subscribe. Callers drain
// C until Close is called (or the bus itself is closed).
type Subscription struct {
	id string
	ch *events.Channel
	C  <-chan events.Event
}

// Subscribe registers a new subscriber and returns a Subscription whose C
// channel receives every subsequent Publish call. id is the caller-chosen
// SubscriptionId (stringified by core.SubscriptionId.String) used to
// Unsubscribe later.
func (b *Bus) Subscribe(id string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := events.NewChannel(subscriberBuffer)
	b.bcast.Add(ch)
	b.chans[id] = ch
	return &Subscription{id: id, ch: ch, C: ch.C}
}

// Unsubscribe removes a subscription, closing its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	ch, ok := b.chans[id]
	if ok {
		delete(b.chans, id)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	b.bcast.Remove(ch)
	ch.Close()
	close(ch.C)
}

// Publish delivers ev to every current subscriber. When the bus was built
// with enabled=false, Publish only updates the dropped-events counter; this
// lets Core call Publish unconditionally from every mutating operation.
func (b *Bus) Publish(ev Event) {
	if !b.enabled {
		if b.metrics != nil {
			b.metrics.EventsDropped.Inc()
		}
		return
	}
	if err := b.bcast.Write(ev); err != nil {
		if b.metrics != nil {
			b.metrics.EventsDropped.Inc()
		}
		return
	}
	if b.metrics != nil {
		b.metrics.EventsEmitted.Inc()
	}
}

// Close shuts the bus down, closing every live subscription's channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.chans {
		b.bcast.Remove(ch)
		ch.Close()
		close(ch.C)
		delete(b.chans, id)
	}
	b.bcast.Close()
}
