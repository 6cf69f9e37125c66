package composer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deskfront/messaging-core/pkg/logger"
)

var (
	// ErrAlreadyRecording indicates Start was called on an active recorder.
	ErrAlreadyRecording = errors.New("capture already in progress")
	// ErrNotRecording indicates Stop was called with no capture running.
	ErrNotRecording = errors.New("no capture in progress")
	// ErrNoCaptureDevice indicates no capture device was configured for
	// this session.
	ErrNoCaptureDevice = errors.New("no capture device available")
)

// CaptureDeviceError indicates the capture device is unavailable or access
// was denied. The recorder is left in the not-recording state.
type CaptureDeviceError struct {
	Err error
}

func (e *CaptureDeviceError) Error() string {
	return fmt.Sprintf("capture device error: %v", e.Err)
}

func (e *CaptureDeviceError) Unwrap() error {
	return e.Err
}

// CaptureDevice models a microphone capture source. Acquire claims the
// device and starts capture; Chunks delivers captured data until Release
// closes the stream and frees the device.
type CaptureDevice interface {
	Acquire(ctx context.Context) error
	Chunks() <-chan []byte
	Release() error
}

// Recorder accumulates capture chunks into a single payload. The device is
// released on every exit path, including mid-capture failures.
type Recorder struct {
	device CaptureDevice
	logger *logger.Logger

	mu        sync.Mutex
	recording bool
	buf       bytes.Buffer
	collected chan struct{}
}

// NewRecorder creates a recorder over a capture device.
func NewRecorder(device CaptureDevice, log *logger.Logger) *Recorder {
	return &Recorder{
		device: device,
		logger: log,
	}
}

// Start acquires the device and begins accumulating chunks. Acquisition
// failure surfaces as a CaptureDeviceError and leaves the recorder in the
// not-recording state.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}

	if err := r.device.Acquire(ctx); err != nil {
		return &CaptureDeviceError{Err: err}
	}

	r.recording = true
	r.buf.Reset()
	r.collected = make(chan struct{})

	go r.collect()

	return nil
}

// collect drains the device's chunk stream until Release closes it.
func (r *Recorder) collect() {
	defer close(r.collected)
	for chunk := range r.device.Chunks() {
		r.mu.Lock()
		r.buf.Write(chunk)
		r.mu.Unlock()
	}
}

// Stop releases the device and returns the accumulated payload. The
// release happens before the payload is read so the device never leaks,
// even when it reports a release failure.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.recording = false
	collected := r.collected
	r.mu.Unlock()

	releaseErr := r.device.Release()

	// The device closes its chunk stream on release; wait for the last
	// chunks to land before reading the buffer.
	<-collected

	r.mu.Lock()
	payload := append([]byte(nil), r.buf.Bytes()...)
	r.buf.Reset()
	r.mu.Unlock()

	if releaseErr != nil {
		return nil, &CaptureDeviceError{Err: releaseErr}
	}

	return payload, nil
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
