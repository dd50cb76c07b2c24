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
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// ReplaySource turns recorded response text into a chunk channel, as if it
// were streamed live. Chunks are at most chunkSize bytes and never split a
// UTF-8 sequence. When limiter is non-nil each chunk waits for a token.
// The channel closes after the last chunk, or after a chunk carrying the
// context error if ctx ends first.
func ReplaySource(ctx context.Context, text string, chunkSize int, limiter *rate.Limiter) <-chan Chunk {
	if chunkSize <= 0 {
		chunkSize = len(text)
	}
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for len(text) > 0 {
			n := min(chunkSize, len(text))
			for n < len(text) && n > 0 && !utf8.RuneStart(text[n]) {
				n--
			}
			if n == 0 {
				_, n = utf8.DecodeRuneInString(text)
			}

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					select {
					case out <- Chunk{Err: err}:
					case <-ctx.Done():
					}
					return
				}
			}

			select {
			case out <- Chunk{Text: text[:n]}:
			case <-ctx.Done():
				return
			}
			text = text[n:]
		}
	}()
	return out
}
