package sdrio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// InitPortAudio initializes the PortAudio library; call once before
// opening any PortAudioDevice.
func InitPortAudio() error {
	return portaudio.Initialize()
}

// TerminatePortAudio releases PortAudio library resources.
func TerminatePortAudio() error {
	return portaudio.Terminate()
}

// PortAudioBitDepth is the resolution PortAudio delivers: float32
// samples, treated as 24-bit-equivalent for the spectrum feed's dB
// normalizer (spec.md §4.5), matching common SDR-over-soundcard rigs.
const PortAudioBitDepth = 24

// PortAudioDevice reads I/Q off a stereo input stream — the left
// channel is I, the right channel is Q — the common wiring for an SDR
// front end that outputs baseband audio over a sound card. Adapted from
// the teacher's AudioIO, narrowed to the single duplex-less input path
// this receiver needs and widened from mono to stereo I/Q.
type PortAudioDevice struct {
	stream       *portaudio.Stream
	framesPerBuf int
	inputBuf     []float32 // interleaved I, Q, I, Q, ...

	mu      sync.Mutex
	offset  int64
	stopped bool
}

// OpenPortAudioInput opens the default stereo input device at
// sampleRate, buffered framesPerBuf frames per PortAudio callback.
func OpenPortAudioInput(sampleRate float64, framesPerBuf int) (*PortAudioDevice, error) {
	d := &PortAudioDevice{
		framesPerBuf: framesPerBuf,
		inputBuf:     make([]float32, framesPerBuf*2),
	}

	stream, err := portaudio.OpenDefaultStream(
		2, // input channels: I, Q
		0, // output channels
		sampleRate,
		framesPerBuf,
		d.inputBuf,
	)
	if err != nil {
		return nil, fmt.Errorf("sdrio: open portaudio input: %w", err)
	}
	d.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("sdrio: start portaudio input: %w", err)
	}
	return d, nil
}

// Read implements Device. It blocks for one PortAudio callback's worth
// of frames, then hands back as many as fit in buf.
func (d *PortAudioDevice) Read(buf []complex128) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return 0, ErrStopped
	}

	if err := d.stream.Read(); err != nil {
		return 0, fmt.Errorf("sdrio: portaudio read: %w", err)
	}

	n := d.framesPerBuf
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = complex(float64(d.inputBuf[2*i]), float64(d.inputBuf[2*i+1]))
	}
	d.offset += int64(n)
	return n, nil
}

// ResetBuffer is a no-op for a live stream: there is nothing buffered
// upstream of the callback to discard.
func (d *PortAudioDevice) ResetBuffer() {}

// Offset reports the running count of frames delivered.
func (d *PortAudioDevice) Offset() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offset
}

// SetOffset is a no-op: a live audio stream cannot be rewound.
func (d *PortAudioDevice) SetOffset(int64) {}

// BitDepth reports the sample resolution for the spectrum feed.
func (d *PortAudioDevice) BitDepth() int { return PortAudioBitDepth }

// Close stops and releases the underlying PortAudio stream.
func (d *PortAudioDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil
	}
	d.stopped = true
	return d.stream.Close()
}
