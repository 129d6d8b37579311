package session

import (
	"errors"
	"io"

	"ipreporter/internal/analysis"
	"ipreporter/internal/capture"
	"ipreporter/internal/dispatch"
	"ipreporter/internal/matcher"
	"ipreporter/internal/models"
	"ipreporter/internal/store"

	"github.com/sirupsen/logrus"
)

// worker is one capture session. It owns src and closes it on every exit path.
type worker struct {
	ctl        *Controller
	src        capture.Source
	matcher    *matcher.Matcher
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	stats      *analysis.CaptureStats
	recorder   *capture.Recorder
	done       chan struct{}
	log        logrus.FieldLogger
}

func (w *worker) run() {
	defer close(w.done)
	defer func() {
		if err := w.src.Close(); err != nil {
			w.log.WithError(err).Warn("Failed to close capture source")
		}
		w.log.Info("Capture session ended")
	}()

	for w.ctl.listening(w.done) {
		frame, err := w.src.NextFrame()
		switch {
		case err == nil:
		case errors.Is(err, capture.ErrTimeout):
			w.stats.Timeout()
			continue
		case errors.Is(err, io.EOF):
			w.log.Info("Capture source exhausted")
			w.ctl.finish(w.done)
			return
		default:
			// A bad read never ends monitoring.
			w.stats.ReadError()
			w.log.WithError(err).Debug("Read failed")
			continue
		}

		if rec, ok := w.matcher.Extract(frame); ok {
			w.deliver(rec, frame)
		}
		// Counted once the frame is fully handled, so FramesRead never runs ahead of the store.
		w.stats.FrameRead()
	}
}

// deliver appends rec to the store before queueing it, keeping both in match order.
func (w *worker) deliver(rec models.Record, frame []byte) {
	w.store.Append(rec)
	w.dispatcher.Send(rec)
	w.stats.Matched(rec)
	w.log.WithFields(logrus.Fields{"ip": rec.SourceIP, "mac": rec.SourceMAC}).Debug("Record matched")

	if w.recorder != nil {
		if err := w.recorder.Write(frame); err != nil {
			w.log.WithError(err).Warn("Failed to write matched frame")
		}
	}
}
