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

package stream

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rowboatlabs/rowboat/pkg/errors"
)

// Chunk is one piece of a streamed response. A chunk carrying Err ends the
// stream with a transport failure.
type Chunk struct {
	Text string
	Err  error
}

// EventType identifies what a consumer event reports.
type EventType string

const (
	// EventBlockAdded reports a block that did not exist before.
	EventBlockAdded EventType = "block_added"

	// EventBlockUpdated reports a changed block at an existing index.
	EventBlockUpdated EventType = "block_updated"

	// EventBlockRemoved reports that a trailing block was merged away.
	EventBlockRemoved EventType = "block_removed"

	// EventDone is emitted once when the chunk channel closes.
	EventDone EventType = "done"

	// EventError is emitted once when a chunk carries an error.
	EventError EventType = "error"

	// EventCancelled is emitted once when the context is cancelled.
	EventCancelled EventType = "cancelled"
)

// Event is emitted by a Consumer.
type Event struct {
	Type EventType

	// Index is the block position for block events.
	Index int

	// Block is the new block for added and updated events.
	Block Block

	// Blocks is the full block list for terminal events.
	Blocks []Block

	// Err is set for EventError (a *errors.TransportError) and
	// EventCancelled (the context error).
	Err error
}

// Terminal reports whether no further events follow.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventDone, EventError, EventCancelled:
		return true
	}
	return false
}

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger

	// BufferSize is the capacity of the event channel. Defaults to 16.
	BufferSize int
}

// Consumer re-tokenizes an accumulating response and emits block diffs.
type Consumer struct {
	logger     *slog.Logger
	bufferSize int
}

// NewConsumer creates a Consumer.
func NewConsumer(opts ConsumerOptions) *Consumer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 16
	}
	return &Consumer{
		logger:     opts.Logger.With(slog.String("component", "copilot-stream")),
		bufferSize: opts.BufferSize,
	}
}

// Run consumes chunks until the channel closes, a chunk carries an error, or
// ctx is cancelled, and returns the event channel. The event channel is
// closed after the terminal event. Blocks already emitted are never
// retracted by cancellation or transport errors.
func (c *Consumer) Run(ctx context.Context, chunks <-chan Chunk) <-chan Event {
	out := make(chan Event, c.bufferSize)
	go func() {
		defer close(out)

		var buf strings.Builder
		var blocks []Block

		send := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		cancelled := func() {
			// Best effort; the reader may already be gone.
			select {
			case out <- Event{Type: EventCancelled, Blocks: blocks, Err: ctx.Err()}:
			default:
			}
			c.logger.Debug("response stream cancelled", slog.Int("received", buf.Len()))
		}

		for {
			select {
			case <-ctx.Done():
				cancelled()
				return
			case chunk, ok := <-chunks:
				if !ok {
					c.logger.Debug("response stream complete",
						slog.Int("received", buf.Len()),
						slog.Int("blocks", len(blocks)))
					send(Event{Type: EventDone, Blocks: blocks})
					return
				}
				if chunk.Err != nil {
					err := &errors.TransportError{Received: buf.Len(), Cause: chunk.Err}
					c.logger.Warn("response stream aborted", slog.Any("error", err))
					send(Event{Type: EventError, Blocks: blocks, Err: err})
					return
				}
				if chunk.Text == "" {
					continue
				}

				buf.WriteString(chunk.Text)
				next := Tokenize(buf.String())
				for _, ev := range Diff(blocks, next) {
					if !send(ev) {
						cancelled()
						return
					}
				}
				blocks = next
			}
		}
	}()
	return out
}

// Diff returns the block events that turn prev into next.
func Diff(prev, next []Block) []Event {
	var events []Event
	for i, b := range next {
		switch {
		case i >= len(prev):
			events = append(events, Event{Type: EventBlockAdded, Index: i, Block: b})
		case prev[i] != b:
			events = append(events, Event{Type: EventBlockUpdated, Index: i, Block: b})
		}
	}
	for i := len(prev) - 1; i >= len(next); i-- {
		events = append(events, Event{Type: EventBlockRemoved, Index: i})
	}
	return events
}

// Collect drains events and returns the blocks carried by the terminal
// event together with its error, if any.
func Collect(events <-chan Event) ([]Block, error) {
	var last Event
	for ev := range events {
		if ev.Terminal() {
			last = ev
		}
	}
	return last.Blocks, last.Err
}
