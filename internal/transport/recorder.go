package transport

import (
	"context"
	"errors"
	"sync"
)

var ErrRecorderRefused = errors.New("recorder refused the operation")

// A RecordedMessage is one message the Recorder currently holds, after any edits.
type RecordedMessage struct {
	Ref     MessageRef
	Content Content
	Edits   int
	Deleted bool
}

// Recorder is an in-memory Transport for tests: it keeps every message (including deleted
// ones, flagged) and can be told to refuse sends, edits or deletes.
type Recorder struct {
	mu       sync.Mutex
	messages []*RecordedMessage
	nextID   int64

	FailSend   bool
	FailEdit   bool
	FailDelete bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, chat string, content Content) (MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSend {
		return MessageRef{}, ErrRecorderRefused
	}
	r.nextID++
	ref := MessageRef{Chat: chat, ID: r.nextID}
	r.messages = append(r.messages, &RecordedMessage{Ref: ref, Content: content})
	return ref, nil
}

func (r *Recorder) Edit(_ context.Context, ref MessageRef, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailEdit {
		return ErrRecorderRefused
	}
	for _, m := range r.messages {
		if m.Ref == ref && !m.Deleted {
			m.Content = TextContent(text)
			m.Edits++
			return nil
		}
	}
	return errors.New("no such message")
}

func (r *Recorder) Delete(_ context.Context, ref MessageRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete {
		return ErrRecorderRefused
	}
	for _, m := range r.messages {
		if m.Ref == ref && !m.Deleted {
			m.Deleted = true
			return nil
		}
	}
	return errors.New("no such message")
}

// Messages returns a snapshot of every recorded message.
func (r *Recorder) Messages() []RecordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedMessage, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, *m)
	}
	return out
}

// Visible returns the messages that have not been deleted.
func (r *Recorder) Visible() []RecordedMessage {
	var out []RecordedMessage
	for _, m := range r.Messages() {
		if !m.Deleted {
			out = append(out, m)
		}
	}
	return out
}
