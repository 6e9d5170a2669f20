package audio

// Tee fans a single input channel out to several outputs. A single goroutine
// is the only reader of input, so every output sees every chunk in order.
//
// Each output receives its own copy of the chunk. Sends block, so the slowest
// consumer sets the pace. When input is closed all outputs are closed and the
// returned channel is closed once the goroutine has exited.
func Tee(input <-chan []float32, outputs ...chan<- []float32) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range input {
			for _, out := range outputs {
				dataCopy := make([]float32, len(data))
				copy(dataCopy, data)
				out <- dataCopy
			}
		}
		for _, out := range outputs {
			close(out)
		}
	}()
	return done
}
