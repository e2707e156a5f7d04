// Package device implements the hardware audio contexts the session manager
// needs: microphone capture through malgo (miniaudio) and speaker playback
// through oto. The core library only sees the CaptureSource and
// PlaybackContext interfaces, so everything platform-specific stays here.
package device

import (
	lingolive "github.com/lingolive/lingolive"
)

// Provider opens real audio device contexts. The zero value is ready to use.
type Provider struct{}

var _ lingolive.DeviceProvider = Provider{}

// OpenCapture opens a microphone context delivering windows of windowSize
// mono float32 samples at the given rate. Requesting the device is the step
// that triggers the platform's microphone permission.
func (Provider) OpenCapture(sampleRate, windowSize int) (lingolive.CaptureSource, error) {
	return openMic(sampleRate, windowSize)
}

// OpenPlayback opens a speaker context at the given rate. Its playback clock
// starts at zero and runs for the life of the context.
func (Provider) OpenPlayback(sampleRate int) (lingolive.PlaybackContext, error) {
	return openSpeaker(sampleRate)
}
