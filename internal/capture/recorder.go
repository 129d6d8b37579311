package capture

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Recorder appends matched frames to a pcap file so a session can be
// inspected in other tools or fed back through Replay.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	writer  *pcapgo.Writer
	snapLen uint32
}

// NewRecorder creates path (truncating it) and writes the pcap file header.
func NewRecorder(path string, snapLen int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create dump file: %w", err)
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(uint32(snapLen), layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write pcap file header: %w", err)
	}

	return &Recorder{file: f, writer: w, snapLen: uint32(snapLen)}, nil
}

// Write stores one frame stamped with the current time.
func (r *Recorder) Write(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	captured := frame
	if r.snapLen > 0 && uint32(len(captured)) > r.snapLen {
		captured = captured[:r.snapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(captured),
		Length:        len(frame),
	}
	return r.writer.WritePacket(ci, captured)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
