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

// Package copilot implements the "rowboat copilot" commands, which parse
// recorded copilot responses and apply their proposed changes to a workflow.
package copilot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/rowboatlabs/rowboat/internal/metrics"
	"github.com/rowboatlabs/rowboat/pkg/copilot"
	"github.com/rowboatlabs/rowboat/pkg/copilot/stream"
)

// NewCommand creates the copilot command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copilot",
		Short: "Work with copilot responses",
		Annotations: map[string]string{
			"group": "copilot",
		},
		Long: `Commands for copilot responses: assistant text with embedded
copilot_change directives proposing workflow edits.

A response is read from a file, or from stdin when the argument is "-".
With --stream the response is replayed in chunks through the streaming
parser, the way a live response is consumed.`,
	}

	cmd.AddCommand(newParseCommand())
	cmd.AddCommand(newApplyCommand())
	return cmd
}

// streamFlags controls replaying a recorded response as a stream.
type streamFlags struct {
	enabled   bool
	chunkSize int
	rate      float64
}

func (f *streamFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.enabled, "stream", false, "Replay the response through the streaming parser")
	fs.IntVar(&f.chunkSize, "chunk-size", 16, "Bytes per replayed chunk (with --stream)")
	fs.Float64Var(&f.rate, "rate", 0, "Chunks per second when replaying, 0 for no limit (with --stream)")
}

func (f *streamFlags) limiter() *rate.Limiter {
	if f.rate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(f.rate), 1)
}

// readResponse reads the response named by ref; "-" reads in.
func readResponse(ref string, in io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if ref == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(ref)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(data), nil
}

// loadResponse adds text to conv as an assistant message and returns its
// index. In streaming mode each consumer event is passed to onEvent
// before the conversation sees it.
func loadResponse(ctx context.Context, conv *copilot.Conversation, text string, sf streamFlags, v copilot.Validator, logger *slog.Logger, onEvent func(stream.Event)) (int, error) {
	if !sf.enabled {
		idx := conv.AddAssistant(text, v)
		recordParts(conv, idx)
		return idx, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := stream.ReplaySource(ctx, text, sf.chunkSize, sf.limiter())
	events := stream.NewConsumer(stream.ConsumerOptions{Logger: logger}).Run(ctx, chunks)

	tee := make(chan stream.Event)
	go func() {
		defer close(tee)
		for ev := range events {
			if onEvent != nil {
				onEvent(ev)
			}
			select {
			case tee <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	idx, err := conv.Follow(ctx, tee, v)
	recordParts(conv, idx)
	return idx, err
}

func recordParts(conv *copilot.Conversation, idx int) {
	m, ok := conv.Message(idx)
	if !ok {
		return
	}
	for _, p := range m.Parts {
		metrics.RecordPart(string(p.Type))
	}
}

// actionParts returns the action parts of m indexed like m.Actions().
func actionParts(m copilot.Message) []copilot.Part {
	var out []copilot.Part
	for _, p := range m.Parts {
		if p.IsAction() {
			out = append(out, p)
		}
	}
	return out
}

// describe renders a one-line summary of an action.
func describe(a *copilot.Action) string {
	if a == nil || a.Action == "" {
		return "incomplete change"
	}
	s := fmt.Sprintf("%s %s %q", a.Action, a.ConfigType, a.Name)
	if a.ChangeDescription != "" {
		s += ": " + a.ChangeDescription
	}
	return s
}
