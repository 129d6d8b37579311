// Package capture defines the frame sources the capture loop reads from.
package capture

import "errors"

// ErrTimeout is returned by NextFrame when the read timeout elapsed without a
// frame. It is not a failure; callers re-check their stop condition and read again.
var ErrTimeout = errors.New("capture: read timeout")

// Source yields raw link-layer frames one at a time.
//
// NextFrame blocks for at most the source's read timeout. It returns
// ErrTimeout when nothing arrived, io.EOF once a finite source is exhausted,
// and any other error for a failed individual read. The returned slice is
// owned by the caller.
type Source interface {
	NextFrame() ([]byte, error)
	Close() error
}

// Opener opens a fresh Source for one capture session.
type Opener func() (Source, error)
