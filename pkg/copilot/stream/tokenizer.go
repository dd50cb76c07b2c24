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

// Package stream splits a streamed copilot response into text and
// directive blocks while it is still arriving.
//
// The tokenizer is re-run over the full accumulated buffer after every
// chunk. Decisions are only made on newline-terminated lines, so blocks of
// a buffer stay unchanged when more text is appended, except the last one.
package stream

import (
	"strings"
)

// Marker is the reserved first line of a directive block.
const Marker = "copilot_change"

const fence = "```"

// Kind distinguishes prose from directives.
type Kind string

const (
	KindText      Kind = "text"
	KindDirective Kind = "directive"
)

// Block is one segment of a response.
type Block struct {
	Kind Kind

	// Content is the raw text. For directives it starts with the Marker
	// line followed by everything up to the closing fence.
	Content string

	// Closed reports whether a directive's closing fence has arrived.
	// Text blocks are always closed.
	Closed bool
}

// Tokenize splits buffer into blocks. Fenced blocks whose info string or
// first line is the Marker become directives; other fenced blocks stay in
// the surrounding text. An unterminated directive is still emitted with
// Closed set to false. Empty text segments are never emitted.
func Tokenize(buffer string) []Block {
	var blocks []Block
	textStart := 0
	emitText := func(end int) {
		if end > textStart {
			blocks = append(blocks, Block{Kind: KindText, Content: buffer[textStart:end], Closed: true})
		}
	}

	pos := 0
scan:
	for pos < len(buffer) {
		line, next, complete := readLine(buffer, pos)
		if !complete {
			break
		}
		if !isFence(line) {
			pos = next
			continue
		}

		bodyStart := next
		directive := false
		switch info := fenceInfo(line); info {
		case Marker:
			directive = true
		case "":
			first, after, ok := readLine(buffer, next)
			if !ok {
				// Cannot tell yet whether this fence opens a directive.
				break scan
			}
			if strings.TrimSpace(first) == Marker {
				directive = true
				bodyStart = after
			}
		}

		if !directive {
			pos = skipFence(buffer, next)
			continue
		}

		emitText(pos)
		body, end, closed := scanDirective(buffer, bodyStart)
		blocks = append(blocks, Block{
			Kind:    KindDirective,
			Content: Marker + "\n" + body,
			Closed:  closed,
		})
		textStart, pos = end, end
	}

	emitText(len(buffer))
	return blocks
}

// readLine returns the line starting at pos without its newline, the offset
// of the following line, and whether the line is newline-terminated.
func readLine(buffer string, pos int) (string, int, bool) {
	if pos >= len(buffer) {
		return "", pos, false
	}
	i := strings.IndexByte(buffer[pos:], '\n')
	if i < 0 {
		return buffer[pos:], len(buffer), false
	}
	return buffer[pos : pos+i], pos + i + 1, true
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), fence)
}

func fenceInfo(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimLeft(line, " \t"), "`"))
}

// scanDirective collects directive content from start until a fence line.
// A fence line closes the directive even before its newline arrives.
func scanDirective(buffer string, start int) (body string, end int, closed bool) {
	pos := start
	for pos < len(buffer) {
		line, next, _ := readLine(buffer, pos)
		if isFence(line) {
			return buffer[start:pos], next, true
		}
		pos = next
	}
	return buffer[start:], len(buffer), false
}

// skipFence returns the offset after the closing fence of a non-directive
// fenced block, or the end of the buffer if it has not closed yet.
func skipFence(buffer string, start int) int {
	pos := start
	for pos < len(buffer) {
		line, next, complete := readLine(buffer, pos)
		if !complete {
			return len(buffer)
		}
		if isFence(line) && fenceInfo(line) == "" {
			return next
		}
		pos = next
	}
	return len(buffer)
}
