package sdrio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"hz.tools/rf"
	"hz.tools/sdr"
	"hz.tools/sdr/stream"
)

// SDRBitDepth is reported for hz.tools/sdr sources: the library
// normalizes every backend to complex64 samples in [-1, 1], which the
// spectrum feed's dB normalizer treats as full-scale 16-bit.
const SDRBitDepth = 16

// SDRDevice wraps a live hz.tools/sdr receiver: tune it, start
// streaming, and present it as the fixed-size complex128 block source
// the processor wants. Grounded on the OffsetSdr/StartRx pattern: open
// an sdr.Reader via StartRx, convert to SampleFormatC64 with
// stream.ConvertReader so the wire format is fixed regardless of what
// the backend device natively produces.
type SDRDevice struct {
	radio  sdr.Sdr
	reader sdr.Reader
	closer io.Closer

	mu      sync.Mutex
	offset  int64
	scratch sdr.SamplesC64
}

// OpenSDR tunes radio to centerFreq at sampleRate and starts streaming.
func OpenSDR(radio sdr.Sdr, sampleRate uint, centerFreq rf.Hz) (*SDRDevice, error) {
	if err := radio.SetSampleRate(sampleRate); err != nil {
		return nil, fmt.Errorf("sdrio: set sample rate: %w", err)
	}
	if err := radio.SetCenterFrequency(centerFreq); err != nil {
		return nil, fmt.Errorf("sdrio: set center frequency: %w", err)
	}

	rc, err := radio.StartRx()
	if err != nil {
		return nil, fmt.Errorf("sdrio: start rx: %w", err)
	}
	reader, err := stream.ConvertReader(rc, sdr.SampleFormatC64)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("sdrio: convert reader: %w", err)
	}

	return &SDRDevice{radio: radio, reader: reader, closer: rc}, nil
}

// Read implements Device.
func (d *SDRDevice) Read(buf []complex128) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cap(d.scratch) < len(buf) {
		d.scratch = make(sdr.SamplesC64, len(buf))
	}
	scratch := d.scratch[:len(buf)]

	n, err := d.reader.Read(scratch)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrStopped
		}
		return 0, fmt.Errorf("sdrio: sdr read: %w", err)
	}
	if n == 0 {
		return 0, ErrStopped
	}
	for i := 0; i < n; i++ {
		v := scratch[i]
		buf[i] = complex(float64(real(v)), float64(imag(v)))
	}
	d.offset += int64(n)
	return n, nil
}

// ResetBuffer is a no-op: hz.tools/sdr readers have no addressable
// backlog to discard, only whatever the driver's ring buffer holds.
func (d *SDRDevice) ResetBuffer() {}

// Offset reports the running count of samples delivered.
func (d *SDRDevice) Offset() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offset
}

// SetOffset is a no-op: a live SDR cannot be rewound.
func (d *SDRDevice) SetOffset(int64) {}

// BitDepth reports the normalized sample resolution for the spectrum feed.
func (d *SDRDevice) BitDepth() int { return SDRBitDepth }

// Close stops the receive stream. The radio passed to OpenSDR is not
// closed.
func (d *SDRDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closer.Close()
}
