package device

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Mic is a malgo capture device context. It accumulates raw S16 samples from
// the device callback and emits fixed-size windows of normalized float32
// samples.
type Mic struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	windowSize int

	mu       sync.Mutex
	pending  []byte
	onWindow func([]float32)
	closed   bool
}

func openMic(sampleRate, windowSize int) (*Mic, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init capture context: %w", err)
	}
	return &Mic{
		ctx:        ctx,
		sampleRate: sampleRate,
		windowSize: windowSize,
		pending:    make([]byte, 0, windowSize*4),
	}, nil
}

// Start initializes and starts the capture device. onWindow is invoked from
// the device thread with each full window and must not block.
func (m *Mic) Start(onWindow func(samples []float32)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("capture context is closed")
	}
	m.onWindow = onWindow
	m.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.onData(input)
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// onData runs on the device thread. It slices accumulated samples into
// windows, keeping any remainder for the next callback.
func (m *Mic) onData(input []byte) {
	m.mu.Lock()
	m.pending = append(m.pending, input...)
	windowBytes := m.windowSize * 2

	var windows [][]float32
	for len(m.pending) >= windowBytes {
		win := make([]float32, m.windowSize)
		for i := 0; i < m.windowSize; i++ {
			v := int16(uint16(m.pending[i*2]) | uint16(m.pending[i*2+1])<<8)
			win[i] = float32(v) / 32768
		}
		m.pending = m.pending[windowBytes:]
		windows = append(windows, win)
	}
	onWindow := m.onWindow
	m.mu.Unlock()

	if onWindow == nil {
		return
	}
	for _, win := range windows {
		onWindow(win)
	}
}

// Suspended reports whether the platform stopped the device out from under
// us. The keep-alive timer uses this to decide when to resume.
func (m *Mic) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.device == nil {
		return false
	}
	return !m.device.IsStarted()
}

// Resume restarts a suspended capture device.
func (m *Mic) Resume() error {
	m.mu.Lock()
	device := m.device
	closed := m.closed
	m.mu.Unlock()
	if closed || device == nil {
		return fmt.Errorf("capture context is closed")
	}
	if device.IsStarted() {
		return nil
	}
	return device.Start()
}

// Close stops the hardware tracks and releases the context. Safe to call
// multiple times; release failures on one resource never block the rest.
func (m *Mic) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.onWindow = nil
	device := m.device
	m.device = nil
	m.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
	}
	return nil
}
