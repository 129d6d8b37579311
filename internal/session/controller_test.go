package session

import (
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"ipreporter/internal/analysis"
	"ipreporter/internal/capture"
	"ipreporter/internal/dispatch"
	"ipreporter/internal/matcher"
	"ipreporter/internal/models"
	"ipreporter/internal/store"
	"ipreporter/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	readTimeout = 20 * time.Millisecond
	waitFor     = 2 * time.Second
	tick        = 5 * time.Millisecond
)

// fakeDevice stands in for a network interface. Every Start opens a new
// fakeSource on it; frames written to the device go to whichever is reading.
type fakeDevice struct {
	frames chan []byte
	errs   chan error

	opened    atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	openErr   atomic.Pointer[error]
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		frames: make(chan []byte, 64),
		errs:   make(chan error, 8),
	}
}

func (d *fakeDevice) open() (capture.Source, error) {
	if errp := d.openErr.Load(); errp != nil {
		return nil, *errp
	}
	d.opened.Add(1)
	n := d.active.Add(1)
	for {
		cur := d.maxActive.Load()
		if n <= cur || d.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	return &fakeSource{dev: d}, nil
}

func (d *fakeDevice) inject(frames ...[]byte) {
	for _, f := range frames {
		d.frames <- f
	}
}

type fakeSource struct {
	dev    *fakeDevice
	closed atomic.Bool
}

func (s *fakeSource) NextFrame() ([]byte, error) {
	select {
	case f, ok := <-s.dev.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case err := <-s.dev.errs:
		return nil, err
	case <-time.After(readTimeout):
		return nil, capture.ErrTimeout
	}
}

func (s *fakeSource) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.dev.active.Add(-1)
	}
	return nil
}

type fixture struct {
	dev        *fakeDevice
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	stats      *analysis.CaptureStats
	ctl        *Controller
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		dev:        newFakeDevice(),
		store:      store.New(),
		dispatcher: dispatch.New(),
		stats:      analysis.NewCaptureStats(),
	}
	opts = append([]Option{WithStats(f.stats)}, opts...)
	f.ctl = NewController(f.dev.open, matcher.New(models.DefaultSignature()), f.store, f.dispatcher, opts...)
	t.Cleanup(f.ctl.Close)
	return f
}

func (f *fixture) waitFrames(t *testing.T, n int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.stats.Counters().FramesRead >= n
	}, waitFor, tick)
}

func announcement(ip, mac string) []byte {
	return testutil.Announcement(ip, mac).Bytes()
}

func TestMatchingFrameProducesOneRecord(t *testing.T) {
	f := newFixture(t)

	started, err := f.ctl.Start()
	require.NoError(t, err)
	require.True(t, started)
	assert.Equal(t, Listening, f.ctl.State())

	f.dev.inject(announcement("10.0.0.5", "AA:BB:CC:DD:EE:FF"))
	f.waitFrames(t, 1)

	want := models.Record{SourceIP: "10.0.0.5", SourceMAC: "aa:bb:cc:dd:ee:ff"}
	assert.Equal(t, []models.Record{want}, f.store.Snapshot())
	assert.Equal(t, []models.Record{want}, f.dispatcher.Drain())
}

func TestNonMatchingPortProducesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctl.Start()
	require.NoError(t, err)

	fr := testutil.Announcement("10.0.0.5", "aa:bb:cc:dd:ee:ff")
	fr.DstPort = 9999
	f.dev.inject(fr.Bytes())
	f.waitFrames(t, 1)

	assert.Zero(t, f.store.Len())
	assert.Empty(t, f.dispatcher.Drain())
	assert.Zero(t, f.stats.Counters().Matches)
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t)

	started, err := f.ctl.Start()
	require.NoError(t, err)
	assert.True(t, started)

	started, err = f.ctl.Start()
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, int32(1), f.dev.opened.Load())

	f.dev.inject(announcement("10.0.0.5", "aa:bb:cc:dd:ee:ff"))
	f.waitFrames(t, 1)
	// Give a hypothetical second loop time to misbehave.
	time.Sleep(3 * readTimeout)

	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.dispatcher.Drain(), 1)
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.ctl.Stop(), "stop before any start")

	_, err := f.ctl.Start()
	require.NoError(t, err)

	assert.True(t, f.ctl.Stop())
	assert.False(t, f.ctl.Stop())
	assert.Equal(t, Stopped, f.ctl.State())

	f.ctl.Wait()
	assert.Zero(t, f.dev.active.Load(), "source released")
}

func TestStopLatencyIsBoundedByReadTimeout(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctl.Start()
	require.NoError(t, err)

	begin := time.Now()
	f.ctl.Stop()
	f.ctl.Wait()
	assert.Less(t, time.Since(begin), 10*readTimeout)
}

func TestOrderingAcrossStoreAndDispatcher(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctl.Start()
	require.NoError(t, err)

	f.dev.inject(
		announcement("10.0.0.1", "aa:00:00:00:00:01"),
		announcement("10.0.0.2", "aa:00:00:00:00:02"),
		announcement("10.0.0.3", "aa:00:00:00:00:03"),
	)
	f.waitFrames(t, 3)

	want := []models.Record{
		{SourceIP: "10.0.0.1", SourceMAC: "aa:00:00:00:00:01"},
		{SourceIP: "10.0.0.2", SourceMAC: "aa:00:00:00:00:02"},
		{SourceIP: "10.0.0.3", SourceMAC: "aa:00:00:00:00:03"},
	}
	assert.Equal(t, want, f.dispatcher.Drain())
	assert.Equal(t, want, f.store.Snapshot())
}

func TestStorePersistsAcrossSessions(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctl.Start()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		f.dev.inject(announcement("10.0.0.5", "aa:bb:cc:dd:ee:ff"))
	}
	f.waitFrames(t, 3)
	require.True(t, f.ctl.Stop())
	f.ctl.Wait()
	assert.Equal(t, 3, f.store.Len())

	started, err := f.ctl.Start()
	require.NoError(t, err)
	require.True(t, started)
	f.dev.inject(announcement("10.0.0.6", "aa:bb:cc:dd:ee:01"))
	f.waitFrames(t, 4)

	assert.Equal(t, 4, f.store.Len())
	assert.Len(t, f.dispatcher.Drain(), 4)
	assert.Equal(t, int64(2), f.stats.Counters().Sessions)
}

func TestRestartNeverRunsTwoLoops(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		started, err := f.ctl.Start()
		require.NoError(t, err)
		require.True(t, started)
		require.True(t, f.ctl.Stop())
	}
	f.ctl.Wait()

	assert.Equal(t, int32(5), f.dev.opened.Load())
	assert.Equal(t, int32(1), f.dev.maxActive.Load())
	assert.Zero(t, f.dev.active.Load())
}

func TestStateDoesNotBlockWhileSourceOpens(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	slow := NewController(func() (capture.Source, error) {
		close(entered)
		<-release
		return f.dev.open()
	}, matcher.New(models.DefaultSignature()), f.store, f.dispatcher)
	t.Cleanup(slow.Close)

	result := make(chan error, 1)
	go func() {
		_, err := slow.Start()
		result <- err
	}()
	<-entered

	got := make(chan State, 1)
	go func() { got <- slow.State() }()
	select {
	case st := <-got:
		assert.Equal(t, Stopped, st)
	case <-time.After(waitFor):
		t.Fatal("State blocked while the source was opening")
	}

	// Stop before the open completes is a no-op.
	assert.False(t, slow.Stop())

	close(release)
	require.NoError(t, <-result)
	assert.Equal(t, Listening, slow.State())
}

func TestConcurrentStartsOpenOneSource(t *testing.T) {
	f := newFixture(t)

	results := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		go func() {
			started, err := f.ctl.Start()
			assert.NoError(t, err)
			results <- started
		}()
	}

	startedCount := 0
	for i := 0; i < 4; i++ {
		if <-results {
			startedCount++
		}
	}
	assert.Equal(t, 1, startedCount)
	assert.Equal(t, int32(1), f.dev.opened.Load())
	assert.Equal(t, int32(1), f.dev.maxActive.Load())
}

func TestStartFailureLeavesControllerStopped(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("no such device")
	f.dev.openErr.Store(&boom)

	started, err := f.ctl.Start()
	assert.False(t, started)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Stopped, f.ctl.State())

	// The caller retries by calling Start again.
	f.dev.openErr.Store(nil)
	started, err = f.ctl.Start()
	require.NoError(t, err)
	assert.True(t, started)
}

func TestReadErrorsDoNotStopTheLoop(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctl.Start()
	require.NoError(t, err)

	f.dev.errs <- errors.New("interface went away briefly")
	require.Eventually(t, func() bool {
		return f.stats.Counters().ReadErrors == 1
	}, waitFor, tick)

	f.dev.inject(announcement("10.0.0.5", "aa:bb:cc:dd:ee:ff"))
	f.waitFrames(t, 1)

	assert.Equal(t, Listening, f.ctl.State())
	assert.Equal(t, 1, f.store.Len())
}

func TestMalformedFramesAreSkipped(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctl.Start()
	require.NoError(t, err)

	f.dev.inject([]byte{0x01, 0x02}, testutil.ARPRequest("10.0.0.9", "aa:bb:cc:dd:ee:09", "10.0.0.1"))
	f.dev.inject(announcement("10.0.0.5", "aa:bb:cc:dd:ee:ff"))
	f.waitFrames(t, 3)

	assert.Equal(t, []models.Record{{SourceIP: "10.0.0.5", SourceMAC: "aa:bb:cc:dd:ee:ff"}}, f.store.Snapshot())
}

func TestTimeoutsAreCounted(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctl.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.stats.Counters().Timeouts >= 2
	}, waitFor, tick)
	assert.Equal(t, Listening, f.ctl.State())
}

func TestExhaustedSourceStopsSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctl.Start()
	require.NoError(t, err)

	f.dev.inject(announcement("10.0.0.5", "aa:bb:cc:dd:ee:ff"))
	close(f.dev.frames)

	require.Eventually(t, func() bool {
		return f.ctl.State() == Stopped
	}, waitFor, tick)
	f.ctl.Wait()

	assert.Equal(t, 1, f.store.Len())
	assert.Zero(t, f.dev.active.Load())
	assert.False(t, f.ctl.Stop(), "already stopped by the loop")
}

func TestRecorderReceivesMatchedFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matched.pcap")
	rec, err := capture.NewRecorder(path, 65536)
	require.NoError(t, err)

	f := newFixture(t, WithRecorder(rec))
	_, err = f.ctl.Start()
	require.NoError(t, err)

	match := announcement("10.0.0.5", "aa:bb:cc:dd:ee:ff")
	miss := testutil.Announcement("10.0.0.6", "aa:bb:cc:dd:ee:01")
	miss.SrcPort = 1
	f.dev.inject(match, miss.Bytes())
	f.waitFrames(t, 2)
	f.ctl.Close()
	require.NoError(t, rec.Close())

	replay, err := capture.OpenReplay(path)
	require.NoError(t, err)
	defer replay.Close()

	got, err := replay.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, match, got)
	_, err = replay.NextFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplaySession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap")
	rec, err := capture.NewRecorder(path, 65536)
	require.NoError(t, err)
	require.NoError(t, rec.Write(announcement("10.0.0.1", "aa:00:00:00:00:01")))
	require.NoError(t, rec.Write(testutil.ARPRequest("10.0.0.2", "aa:00:00:00:00:02", "10.0.0.1")))
	require.NoError(t, rec.Write(announcement("10.0.0.3", "aa:00:00:00:00:03")))
	require.NoError(t, rec.Close())

	s := store.New()
	ctl := NewController(capture.ReplayOpener(path), matcher.New(models.DefaultSignature()), s, dispatch.New())
	t.Cleanup(ctl.Close)

	_, err = ctl.Start()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ctl.State() == Stopped }, waitFor, tick)
	ctl.Wait()

	assert.Equal(t, []models.Record{
		{SourceIP: "10.0.0.1", SourceMAC: "aa:00:00:00:00:01"},
		{SourceIP: "10.0.0.3", SourceMAC: "aa:00:00:00:00:03"},
	}, s.Snapshot())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Stopped", Stopped.String())
	assert.Equal(t, "Listening", Listening.String())
	assert.Equal(t, "Unknown", State(7).String())
}
