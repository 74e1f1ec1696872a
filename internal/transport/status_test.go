package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusEditsInPlace(t *testing.T) {
	assert := assert.New(t)

	rec := NewRecorder()
	s := NewStatus(rec, "chat-1")
	ctx := context.Background()

	s.Update(ctx, "working...")
	s.Update(ctx, "still working...")

	msgs := rec.Visible()
	require.Len(t, msgs, 1)
	assert.Equal("still working...", msgs[0].Content.Text)
	assert.Equal(1, msgs[0].Edits)
}

func TestStatusFallsBackToSendOnEditFailure(t *testing.T) {
	assert := assert.New(t)

	rec := NewRecorder()
	s := NewStatus(rec, "chat-1")
	ctx := context.Background()

	s.Update(ctx, "one")
	rec.FailEdit = true
	s.Update(ctx, "two")

	msgs := rec.Visible()
	require.Len(t, msgs, 2)
	assert.Equal("one", msgs[0].Content.Text)
	assert.Equal("two", msgs[1].Content.Text)
}

func TestStatusSwallowsSendFailure(t *testing.T) {
	rec := NewRecorder()
	rec.FailSend = true
	s := NewStatus(rec, "chat-1")

	// Must not panic or error; status reporting is best-effort.
	s.Update(context.Background(), "lost")
	assert.Empty(t, rec.Visible())
}

func TestStatusDelete(t *testing.T) {
	assert := assert.New(t)

	rec := NewRecorder()
	s := NewStatus(rec, "chat-1")
	ctx := context.Background()

	s.Delete(ctx) // Nothing sent yet: no-op.
	s.Update(ctx, "progress")
	s.Delete(ctx)
	assert.Empty(rec.Visible())
	assert.Len(rec.Messages(), 1)
}
