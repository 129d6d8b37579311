// Package live opens a network device through libpcap. It is kept apart
// from package capture so that only the binary needs cgo and libpcap.
package live

import (
	"errors"
	"fmt"
	"io"
	"time"

	"ipreporter/internal/capture"

	"github.com/google/gopacket/pcap"
)

// ErrNoDevice is returned when no interface was named and none could be chosen.
var ErrNoDevice = errors.New("no capturable network interface found")

// Options controls how the device is opened.
type Options struct {
	// Interface is the device to open. Empty selects the default device.
	Interface   string
	SnapLen     int
	Promiscuous bool
	// Timeout bounds every read so the capture loop can observe stop requests.
	Timeout time.Duration
}

// DefaultOptions returns promiscuous capture on the default device with a one second read timeout.
func DefaultOptions() Options {
	return Options{
		SnapLen:     65536,
		Promiscuous: true,
		Timeout:     time.Second,
	}
}

// Handle is a capture.Source backed by a live libpcap handle.
type Handle struct {
	handle *pcap.Handle
	name   string
}

var _ capture.Source = (*Handle)(nil)

// Open activates the configured device.
func Open(opts Options) (*Handle, error) {
	name := opts.Interface
	if name == "" {
		var err error
		name, err = DefaultDevice()
		if err != nil {
			return nil, err
		}
	}
	if opts.SnapLen <= 0 {
		opts.SnapLen = 65536
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}

	inactive, err := pcap.NewInactiveHandle(name)
	if err != nil {
		return nil, fmt.Errorf("could not create handle for %s: %w", name, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(opts.SnapLen); err != nil {
		return nil, fmt.Errorf("could not set snap length on %s: %w", name, err)
	}
	if err := inactive.SetPromisc(opts.Promiscuous); err != nil {
		return nil, fmt.Errorf("could not set promiscuous mode on %s: %w", name, err)
	}
	if err := inactive.SetTimeout(opts.Timeout); err != nil {
		return nil, fmt.Errorf("could not set read timeout on %s: %w", name, err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", name, err)
	}

	return &Handle{handle: handle, name: name}, nil
}

// Opener returns a capture.Opener that opens a new handle per session.
func Opener(opts Options) capture.Opener {
	return func() (capture.Source, error) {
		h, err := Open(opts)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// Name is the device the handle was opened on.
func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) NextFrame() ([]byte, error) {
	data, _, err := h.handle.ReadPacketData()
	if err != nil {
		return nil, readErr(err)
	}
	return data, nil
}

// readErr maps libpcap's read results onto the capture.Source contract.
func readErr(err error) error {
	switch {
	case errors.Is(err, pcap.NextErrorTimeoutExpired):
		return capture.ErrTimeout
	case errors.Is(err, pcap.NextErrorNoMorePackets):
		return io.EOF
	default:
		return err
	}
}

func (h *Handle) Close() error {
	h.handle.Close()
	return nil
}
