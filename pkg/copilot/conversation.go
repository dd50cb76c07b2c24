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

package copilot

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/rowboatlabs/rowboat/pkg/copilot/stream"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a copilot conversation.
type Message struct {
	ID   string
	Role Role

	// Text is the message text. It is empty for followed responses, whose
	// content lives in Parts.
	Text string

	// Parts holds the classified blocks of an assistant message, one per
	// block in order.
	Parts []Part

	// Done is false while an assistant response is still streaming.
	Done bool
}

// Actions returns the action parts of m in order. The position in the
// result is the action index used by the applier.
func (m Message) Actions() []*Action {
	var out []*Action
	for _, p := range m.Parts {
		if p.IsAction() {
			out = append(out, p.Action)
		}
	}
	return out
}

func (m Message) actionPart(actIdx int) (Part, bool) {
	n := 0
	for _, p := range m.Parts {
		if !p.IsAction() {
			continue
		}
		if n == actIdx {
			return p, true
		}
		n++
	}
	return Part{}, false
}

type fieldKey struct {
	msg   int
	act   int
	field string
}

// Conversation holds the messages of one copilot session together with
// the record of which action fields were applied. The record survives
// until Reset.
type Conversation struct {
	mu       sync.RWMutex
	id       string
	messages []Message
	applied  map[fieldKey]struct{}
}

// NewConversation starts an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		id:      uuid.NewString(),
		applied: make(map[fieldKey]struct{}),
	}
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Reset starts a new conversation, forgetting messages and applied fields.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = uuid.NewString()
	c.messages = nil
	c.applied = make(map[fieldKey]struct{})
}

// AddUser appends a user message and returns its index.
func (c *Conversation) AddUser(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{ID: uuid.NewString(), Role: RoleUser, Text: text, Done: true})
	return len(c.messages) - 1
}

// AddAssistant appends a complete assistant response and returns its index.
func (c *Conversation) AddAssistant(text string, v Validator) int {
	parts := ParseMessage(text, v)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{
		ID:    uuid.NewString(),
		Role:  RoleAssistant,
		Text:  text,
		Parts: finish(parts),
		Done:  true,
	})
	return len(c.messages) - 1
}

// Follow appends an assistant message and fills it from consumer events
// until a terminal event. Parts parsed before a transport error or
// cancellation are kept. It returns the message index and the error
// carried by the terminal event.
func (c *Conversation) Follow(ctx context.Context, events <-chan stream.Event, v Validator) (int, error) {
	c.mu.Lock()
	c.messages = append(c.messages, Message{ID: uuid.NewString(), Role: RoleAssistant})
	idx := len(c.messages) - 1
	c.mu.Unlock()

	var blocks []stream.Block
	for {
		select {
		case <-ctx.Done():
			c.finishMessage(idx)
			return idx, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				c.finishMessage(idx)
				return idx, nil
			}
			switch ev.Type {
			case stream.EventBlockAdded:
				blocks = append(blocks, ev.Block)
			case stream.EventBlockUpdated:
				blocks[ev.Index] = ev.Block
			case stream.EventBlockRemoved:
				blocks = blocks[:ev.Index]
			default:
				if len(ev.Blocks) > 0 {
					c.setBlocks(idx, ev.Blocks, v)
				}
				c.finishMessage(idx)
				return idx, ev.Err
			}
			c.setBlocks(idx, blocks, v)
		}
	}
}

// setBlocks reclassifies the trailing changed blocks of a streaming message.
func (c *Conversation) setBlocks(idx int, blocks []stream.Block, v Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := &c.messages[idx]
	parts := make([]Part, len(blocks))
	for i, b := range blocks {
		if i < len(m.Parts)-1 {
			// Earlier blocks never change while a response grows.
			parts[i] = m.Parts[i]
			continue
		}
		parts[i] = Classify(b, v)
	}
	m.Parts = parts
}

func (c *Conversation) finishMessage(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := &c.messages[idx]
	m.Parts = finish(m.Parts)
	m.Done = true
}

// finish marks unresolved actions of a completed response as closed so
// they report Incomplete.
func finish(parts []Part) []Part {
	for i := range parts {
		if parts[i].Type == PartStreamingAction {
			parts[i].Closed = true
		}
	}
	return parts
}

// Messages returns a copy of the conversation's messages.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.messages)
}

// Message returns the message at idx.
func (c *Conversation) Message(idx int) (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx < 0 || idx >= len(c.messages) {
		return Message{}, false
	}
	return c.messages[idx], true
}

// Stale reports whether the actions of message idx are superseded: a later
// message contains an action. Out-of-range indexes are never stale.
func (c *Conversation) Stale(idx int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale(idx)
}

func (c *Conversation) stale(idx int) bool {
	if idx < 0 || idx >= len(c.messages) {
		return false
	}
	for _, m := range c.messages[idx+1:] {
		if slices.ContainsFunc(m.Parts, Part.IsAction) {
			return true
		}
	}
	return false
}

// Applied reports whether field of the action was applied.
func (c *Conversation) Applied(msgIdx, actIdx int, field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.applied[fieldKey{msgIdx, actIdx, field}]
	return ok
}

// Pending lists the fields of the action that were not applied yet. A
// create action also tracks its name.
func (c *Conversation) Pending(msgIdx, actIdx int) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.message(msgIdx)
	if !ok {
		return nil
	}
	p, ok := m.actionPart(actIdx)
	if !ok || p.Type != PartAction || p.Action.Error != "" {
		return nil
	}
	return c.pending(msgIdx, actIdx, p.Action)
}

func (c *Conversation) message(idx int) (Message, bool) {
	if idx < 0 || idx >= len(c.messages) {
		return Message{}, false
	}
	return c.messages[idx], true
}

func (c *Conversation) pending(msgIdx, actIdx int, a *Action) []string {
	var out []string
	for _, f := range trackedFields(a) {
		if _, ok := c.applied[fieldKey{msgIdx, actIdx, f}]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func (c *Conversation) markApplied(msgIdx, actIdx int, fields []string) {
	for _, f := range fields {
		c.applied[fieldKey{msgIdx, actIdx, f}] = struct{}{}
	}
}

// trackedFields lists the fields whose applied state is recorded.
func trackedFields(a *Action) []string {
	fields := a.Fields()
	if a.Action == ActionCreate && !slices.Contains(fields, "name") {
		fields = append([]string{"name"}, fields...)
	}
	return fields
}
