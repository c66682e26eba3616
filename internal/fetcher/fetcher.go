package fetcher

import (
	"context"
	"fmt"

	"signalchat/internal/domain"
)

// Result is one fetch window. Total is the count reported by the source and
// decides whether the watermark may advance.
type Result struct {
	Records []domain.Record
	Total   int
}

type Fetcher interface {
	Fetch(ctx context.Context, since string) (*Result, error)
}

// Error wraps any transport, HTTP status or decoding failure of a fetch.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
