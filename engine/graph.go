package engine

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/richinsley/goreactive/analysis"
	"github.com/richinsley/goreactive/audio"
)

// Destination receives the monitored signal.
type Destination interface {
	Write(samples []float32) error
}

// graph is one wired signal graph: device -> tee -> {tap, gain -> destination}.
type graph struct {
	id     uuid.UUID
	kind   audio.Kind
	device audio.Device
	tap    *analysis.Tap
	gain   *audio.Gain

	wg       sync.WaitGroup
	teeDone  <-chan struct{}
	stopOnce sync.Once
}

func newGraph(kind audio.Kind, device audio.Device, tap *analysis.Tap, gain *audio.Gain) *graph {
	return &graph{
		id:     uuid.New(),
		kind:   kind,
		device: device,
		tap:    tap,
		gain:   gain,
	}
}

// wire starts the fan-out and both consumers. The monitor path is always
// wired; at gain 0 it is silent but present.
func (g *graph) wire(samples <-chan []float32, dest Destination) {
	tapCh := make(chan []float32, 16)
	monitorCh := make(chan []float32, 16)
	g.teeDone = audio.Tee(samples, tapCh, monitorCh)

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		for chunk := range tapCh {
			g.tap.Write(chunk)
		}
	}()
	go func() {
		defer g.wg.Done()
		for chunk := range monitorCh {
			g.gain.Process(chunk)
			if err := dest.Write(chunk); err != nil {
				slog.Debug("monitor write failed", "graph", g.id, "error", err)
			}
		}
	}()
}

// teardown stops the device and waits for every goroutine of the graph.
func (g *graph) teardown() {
	g.stopOnce.Do(func() {
		if err := g.device.Stop(); err != nil {
			slog.Warn("failed to stop audio source", "graph", g.id, "kind", g.kind, "error", err)
		}
		if g.teeDone != nil {
			<-g.teeDone
		}
		g.wg.Wait()
		slog.Debug("signal graph released", "graph", g.id, "kind", g.kind)
	})
}
