package desktop

// newAudioCapturer returns the platform audio device backend. No
// build currently wires a real one in (see audio.go's doc comment);
// every platform gets the same ErrNotSupported stub until a device
// backend is added.
func newAudioCapturer() AudioCapturer {
	return &unsupportedAudioCapturer{}
}

type unsupportedAudioCapturer struct{}

func (unsupportedAudioCapturer) Start(callback func(pcm []float32, sampleRate, channels int)) error {
	return ErrNotSupported
}

func (unsupportedAudioCapturer) Stop() {}
