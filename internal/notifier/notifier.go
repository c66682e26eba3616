package notifier

import (
	"context"
	"fmt"
)

// Notifier delivers one formatted message to a chat destination.
type Notifier interface {
	Publish(ctx context.Context, text string) error
}

// PublishError is returned when the chat backend could not be reached or
// answered with something other than a thread-bearing JSON document. Chunks
// sent before the failure stay posted.
type PublishError struct {
	Chunk int
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish chunk %d: %v", e.Chunk, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ChunkingError is returned when an oversized text has no paragraph break
// to split on inside the chunk window.
type ChunkingError struct {
	Chunk  int
	Length int
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunk %d: no paragraph break within the first %d of %d characters", e.Chunk, splitWindow, e.Length)
}
