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

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	b := New(true, nil)
	defer b.Close()

	sub := b.Subscribe("sub-1")
	b.Publish(Event{Kind: KindCreated, Subject: "/a.txt"})

	select {
	case ev := <-sub.C:
		assert.Equal(t, KindCreated, ev.Kind)
		assert.Equal(t, "/a.txt", ev.Subject)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestBusDisabledDropsEvents(t *testing.T) {
	b := New(false, nil)
	defer b.Close()

	sub := b.Subscribe("sub-1")
	b.Publish(Event{Kind: KindCreated, Subject: "/a.txt"})

	select {
	case ev := <-sub.C:
		t.Fatalf("expected no delivery while disabled, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	b := New(true, nil)
	defer b.Close()

	sub := b.Subscribe("sub-1")
	b.Unsubscribe("sub-1")
	b.Publish(Event{Kind: KindRemoved, Subject: "/a.txt"})

	_, ok := <-sub.C
	require.False(t, ok, "channel must be closed after unsubscribe")
}
