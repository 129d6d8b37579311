// Package session runs the capture loop and owns its start/stop lifecycle.
package session

import (
	"fmt"
	"sync"

	"ipreporter/internal/analysis"
	"ipreporter/internal/capture"
	"ipreporter/internal/dispatch"
	"ipreporter/internal/log"
	"ipreporter/internal/matcher"
	"ipreporter/internal/store"

	"github.com/sirupsen/logrus"
)

// Controller starts and stops capture sessions. At most one capture
// goroutine exists per Controller; the store and dispatcher outlive sessions.
type Controller struct {
	open       capture.Opener
	matcher    *matcher.Matcher
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	stats      *analysis.CaptureStats
	recorder   *capture.Recorder
	log        logrus.FieldLogger

	// startMu serializes Start so the source can be opened without holding mu.
	startMu sync.Mutex

	mu    sync.Mutex
	state State
	// done is closed by the current (or last) worker when it exits.
	done chan struct{}
}

// Option customizes a Controller.
type Option func(*Controller)

// WithStats makes the loop report frame and match counters to stats.
func WithStats(stats *analysis.CaptureStats) Option {
	return func(c *Controller) { c.stats = stats }
}

// WithRecorder dumps every matched frame to rec.
func WithRecorder(rec *capture.Recorder) Option {
	return func(c *Controller) { c.recorder = rec }
}

// WithLogger overrides the global logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController wires a controller. open is called once per Start.
func NewController(open capture.Opener, m *matcher.Matcher, s *store.Store, d *dispatch.Dispatcher, opts ...Option) *Controller {
	c := &Controller{
		open:       open,
		matcher:    m,
		store:      s,
		dispatcher: d,
		state:      Stopped,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stats == nil {
		c.stats = analysis.NewCaptureStats()
	}
	if c.log == nil {
		c.log = log.GetLogger().WithField("component", "session")
	}
	return c
}

// State returns the current run state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns the counters the loop reports to.
func (c *Controller) Stats() *analysis.CaptureStats {
	return c.stats
}

// Start opens a fresh source and launches the capture loop. It returns
// false without error when a session is already listening. A source that
// cannot be opened is reported and leaves the controller Stopped.
//
// If the previous loop has been told to stop but is still inside its last
// read, Start waits for it to exit first, which takes at most one read timeout.
// Opening the source happens outside the state lock, so State and Stop stay
// responsive while a device is being activated.
func (c *Controller) Start() (bool, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	for {
		c.mu.Lock()
		if c.state == Listening {
			c.mu.Unlock()
			return false, nil
		}

		if prev := c.done; prev != nil {
			select {
			case <-prev:
			default:
				// The old worker needs the lock to observe Stopped.
				c.mu.Unlock()
				<-prev
				continue
			}
		}

		c.mu.Unlock()

		// Only Start moves the state to Listening, and startMu is held, so the
		// controller is still Stopped with no worker once the open returns.
		src, err := c.open()
		if err != nil {
			c.log.WithError(err).Error("Failed to open capture source")
			return false, fmt.Errorf("failed to start capture: %w", err)
		}

		c.mu.Lock()
		done := make(chan struct{})
		c.state = Listening
		c.done = done
		c.stats.SessionStarted()

		w := &worker{
			ctl:        c,
			src:        src,
			matcher:    c.matcher,
			store:      c.store,
			dispatcher: c.dispatcher,
			stats:      c.stats,
			recorder:   c.recorder,
			done:       done,
			log:        c.log.WithField("source", sourceName(src)),
		}
		go w.run()
		c.mu.Unlock()

		w.log.Info("Capture session started")
		return true, nil
	}
}

// Stop asks the running loop to exit and returns immediately. It returns
// false when nothing was listening.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Stopped {
		return false
	}
	c.state = Stopped
	c.log.Info("Capture session stop requested")
	return true
}

// Wait blocks until the most recently started loop has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Close stops any session and waits for its loop to release the source.
func (c *Controller) Close() {
	c.Stop()
	c.Wait()
}

// listening is the loop's per-iteration check.
func (c *Controller) listening(done chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Listening && c.done == done
}

// finish records that the loop ended on its own, e.g. an exhausted replay.
func (c *Controller) finish(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == done {
		c.state = Stopped
	}
}

func sourceName(src capture.Source) string {
	if n, ok := src.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", src)
}
