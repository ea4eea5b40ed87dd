// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// sinkRecorder collects emitted events for assertions.
type sinkRecorder struct {
	events []Event
}

func (s *sinkRecorder) Emit(ev Event) {
	s.events = append(s.events, ev)
}

func (s *sinkRecorder) eventsOf(match func(Event) bool) []Event {
	var out []Event
	for _, ev := range s.events {
		if match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (s *sinkRecorder) lastMessageSent(t *testing.T) []byte {
	t.Helper()
	sent := s.eventsOf(func(ev Event) bool {
		_, ok := ev.(MessageSent)
		return ok
	})
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].(MessageSent).Message
}

// stubPauser is a settable pause gate.
type stubPauser struct {
	paused bool
}

func (p *stubPauser) Paused() bool {
	return p.paused
}
