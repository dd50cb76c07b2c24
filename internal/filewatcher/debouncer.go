// Copyright 2025 Rowboat Labs
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

package filewatcher

import (
	"sync"
	"time"
)

// Debouncer delays delivery of per-path events until the path has been
// quiet for the window. Only the latest event for a path is delivered.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timers  map[string]*pending
	onFlush func(Event)
	stopped bool
}

type pending struct {
	timer *time.Timer
	event Event
}

// NewDebouncer creates a debouncer that calls onFlush once per settled path.
func NewDebouncer(window time.Duration, onFlush func(Event)) *Debouncer {
	return &Debouncer{
		window:  window,
		timers:  make(map[string]*pending),
		onFlush: onFlush,
	}
}

// Add records ev and restarts the timer for its path.
func (d *Debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.timers[ev.Path]; ok {
		p.timer.Stop()
		p.event = ev
		p.timer = time.AfterFunc(d.window, func() { d.flush(ev.Path) })
		return
	}
	d.timers[ev.Path] = &pending{
		event: ev,
		timer: time.AfterFunc(d.window, func() { d.flush(ev.Path) }),
	}
}

func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	p, ok := d.timers[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	d.mu.Unlock()

	// Called outside the lock so handlers may call Add.
	d.onFlush(p.event)
}

// Stop cancels the timers and delivers every pending event immediately.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	events := make([]Event, 0, len(d.timers))
	for path, p := range d.timers {
		if p.timer.Stop() {
			events = append(events, p.event)
		}
		delete(d.timers, path)
	}
	d.mu.Unlock()

	for _, ev := range events {
		d.onFlush(ev)
	}
}

// Pending returns the number of paths waiting to settle.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
