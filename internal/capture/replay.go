package capture

import (
	"fmt"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Replay reads frames back from a pcap file. It never times out and
// returns io.EOF after the last frame.
type Replay struct {
	file   *os.File
	reader *pcapgo.Reader
}

// OpenReplay opens a pcap file written with an Ethernet link type.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}

	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header of %s: %w", path, err)
	}
	if r.LinkType() != layers.LinkTypeEthernet {
		f.Close()
		return nil, fmt.Errorf("unsupported link type %s in %s", r.LinkType(), path)
	}

	return &Replay{file: f, reader: r}, nil
}

// ReplayOpener returns an Opener that replays path from the start on every session.
func ReplayOpener(path string) Opener {
	return func() (Source, error) {
		return OpenReplay(path)
	}
}

func (r *Replay) NextFrame() ([]byte, error) {
	data, _, err := r.reader.ReadPacketData()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Replay) Close() error {
	return r.file.Close()
}
