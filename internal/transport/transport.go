// Package transport abstracts the messaging channel commands arrive on and results are
// delivered to. The real chat service client lives outside this repository; everything here
// programs against the Transport interface.
package transport

import "context"

// A MessageRef identifies a message the transport has accepted, so it can later be edited or
// deleted.
type MessageRef struct {
	Chat string
	ID   int64
}

// A Video is a delivered artifact: the file itself, an optional preview thumbnail and a
// caption.
type Video struct {
	Path          string
	ThumbnailPath string
	Caption       string
}

// Content is one outgoing message: either text or a video artifact.
type Content struct {
	Text  string
	Video *Video
	// DisableLinkPreview suppresses the chat service's inline link expansion.
	DisableLinkPreview bool
}

func TextContent(text string) Content {
	return Content{Text: text, DisableLinkPreview: true}
}

type Transport interface {
	Send(ctx context.Context, chat string, content Content) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
	Delete(ctx context.Context, ref MessageRef) error
}
