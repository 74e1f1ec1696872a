package transport

import (
	"context"

	"go.uber.org/zap"
)

// A Status maintains a single progress message in one chat. Updates prefer editing the
// existing message and fall back to sending a new one; every failure is swallowed after
// logging. Status reporting is best-effort by contract: it must never abort the work it is
// reporting on.
type Status struct {
	transport Transport
	chat      string
	ref       MessageRef
	sent      bool
	log       *zap.SugaredLogger
}

func NewStatus(t Transport, chat string) *Status {
	return &Status{
		transport: t,
		chat:      chat,
		log:       zap.S().Named("status"),
	}
}

// Update replaces the progress message text.
func (s *Status) Update(ctx context.Context, text string) {
	if s.sent {
		if err := s.transport.Edit(ctx, s.ref, text); err == nil {
			return
		} else {
			s.log.Debugw("status edit failed, sending new message", "error", err)
		}
	}
	ref, err := s.transport.Send(ctx, s.chat, TextContent(text))
	if err != nil {
		s.log.Warnw("status update dropped", "text", text, "error", err)
		return
	}
	s.ref = ref
	s.sent = true
}

// Delete removes the progress message, typically after the final artifact was delivered.
func (s *Status) Delete(ctx context.Context) {
	if !s.sent {
		return
	}
	if err := s.transport.Delete(ctx, s.ref); err != nil {
		s.log.Debugw("status delete failed", "error", err)
	}
	s.sent = false
}
