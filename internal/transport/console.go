package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Console is a Transport that writes messages to a stream. It backs single-shot CLI use,
// where there is no chat service on the other end.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	nextID int64
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Send(_ context.Context, chat string, content Content) (MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	if content.Video != nil {
		fmt.Fprintf(c.w, "%s\n  file: %s\n", content.Video.Caption, content.Video.Path)
		if content.Video.ThumbnailPath != "" {
			fmt.Fprintf(c.w, "  thumbnail: %s\n", content.Video.ThumbnailPath)
		}
	} else {
		fmt.Fprintln(c.w, content.Text)
	}
	return MessageRef{Chat: chat, ID: c.nextID}, nil
}

func (c *Console) Edit(_ context.Context, _ MessageRef, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, text)
	return nil
}

func (c *Console) Delete(context.Context, MessageRef) error {
	return nil
}
