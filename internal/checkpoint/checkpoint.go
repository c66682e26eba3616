// Package checkpoint persists the watermark that bounds the next fetch.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signalchat/internal/domain"
)

// Store reads and writes the watermark. Read returns
// domain.DefaultWatermark when nothing has been stored yet.
type Store interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, now time.Time) error
}

// ErrEmpty is wrapped by ReadError when a watermark exists but is blank.
var ErrEmpty = errors.New("watermark is empty")

// ReadError is any failure to read a watermark other than its absence.
type ReadError struct {
	Location string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read checkpoint %s: %v", e.Location, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func format(now time.Time) string {
	return now.Format(domain.WatermarkLayout)
}
