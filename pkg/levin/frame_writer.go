package levin

import (
	"errors"
	"io"
	"net"
	"os"

	"github.com/ethpandaops/levin/pkg/portable"
)

type frameWriterState int

const (
	frameWritingHeader frameWriterState = iota
	frameWritingBody
	frameWritingDone
)

// FrameWriter flushes one encoded bucket to a writer, possibly over several
// calls. A write interrupted by a deadline resumes from the exact byte offset
// reached.
type FrameWriter struct {
	frame []byte
	off   int
	state frameWriterState
}

// NewFrameWriter returns a writer for an encoded bucket as produced by
// RequestFrame, ResponseFrame or NotifyFrame.
func NewFrameWriter(frame []byte) *FrameWriter {
	return &FrameWriter{frame: frame}
}

// Written returns the number of bytes flushed so far.
func (w *FrameWriter) Written() int {
	return w.off
}

// Resume writes as much of the remaining frame as wr accepts. It returns
// Pending when a write deadline expired before the frame was flushed.
func (w *FrameWriter) Resume(wr io.Writer) (portable.Status, error) {
	for {
		var end int

		switch w.state {
		case frameWritingHeader:
			end = min(HeaderSize, len(w.frame))
		case frameWritingBody:
			end = len(w.frame)
		case frameWritingDone:
			return portable.Done, nil
		}

		for w.off < end {
			n, err := wr.Write(w.frame[w.off:end])
			w.off += n

			if err != nil {
				if isTimeout(err) {
					return portable.Pending, nil
				}

				return portable.Pending, err
			}

			if n == 0 {
				return portable.Pending, io.ErrShortWrite
			}
		}

		w.state++
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
