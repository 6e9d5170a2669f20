package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/richinsley/goreactive/analysis"
	"github.com/richinsley/goreactive/audio"
	"github.com/richinsley/goreactive/engine"
	"github.com/richinsley/goreactive/options"
)

// session is the engine and extractor shared by the frontends, plus the
// file handle of a file source.
type session struct {
	opts      *options.EngineOptions
	manager   *engine.Manager
	extractor *analysis.Extractor

	mu   sync.Mutex
	file *os.File
}

func newSession(opts *options.EngineOptions) *session {
	mgr := engine.NewDefault(opts)
	return &session{
		opts:      opts,
		manager:   mgr,
		extractor: analysis.NewExtractor(mgr, analysis.ExtractorConfigFromOptions(opts)),
	}
}

// setSource switches to the named source. monitor nil uses the source's default.
func (s *session) setSource(ctx context.Context, name, path string, monitor *bool) error {
	kind, err := audio.ParseKind(name)
	if err != nil {
		return err
	}
	mon := kind.DefaultMonitor()
	if monitor != nil {
		mon = *monitor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		file *os.File
		src  audio.FileSource
	)
	if kind == audio.File {
		if path == "" {
			return errors.New("the file source needs --file")
		}
		if file, err = os.Open(path); err != nil {
			s.manager.Stop()
			s.closeFileLocked()
			return audio.Classify(kind, err)
		}
		src = file
	}

	err = s.manager.SetSource(ctx, kind, src, mon)
	s.closeFileLocked()
	if err != nil {
		if file != nil {
			file.Close()
		}
		return err
	}
	s.file = file
	return nil
}

// switchSource is setSource for UI callbacks: it does not block the caller
// and logs the user-facing message on failure.
func (s *session) switchSource(name, path string) {
	go func() {
		if err := s.setSource(context.Background(), name, path, nil); err != nil {
			logSourceError(name, err)
		}
	}()
}

func logSourceError(name string, err error) {
	var acqErr *audio.AcquisitionError
	if errors.As(err, &acqErr) {
		slog.Error(acqErr.UserMessage(), "source", name, "class", acqErr.Class, "error", acqErr.Err)
		return
	}
	slog.Error("failed to set audio source", "source", name, "error", err)
}

// toggleMonitor flips the monitor of the active source.
func (s *session) toggleMonitor() {
	st := s.manager.Status()
	if !st.Active {
		return
	}
	s.manager.SetMonitor(!st.Monitor)
	slog.Info("monitor toggled", "monitor", !st.Monitor)
}

// start applies --source if given.
func (s *session) start(ctx context.Context, monitor *bool) error {
	if sourceName == "" {
		return nil
	}
	if err := s.setSource(ctx, sourceName, filePath, monitor); err != nil {
		logSourceError(sourceName, err)
		return fmt.Errorf("start %s source: %w", sourceName, err)
	}
	return nil
}

func (s *session) status() string {
	st := s.manager.Status()
	if !st.Active {
		return "idle"
	}
	if st.Monitor {
		return st.Kind + ", monitor on"
	}
	return st.Kind
}

func (s *session) close() {
	if err := s.manager.Close(); err != nil {
		slog.Warn("failed to close audio engine", "error", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeFileLocked()
}

func (s *session) closeFileLocked() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// engineView hands the manager to the websocket server. Source changes made
// through it also release a file opened by --source.
type engineView struct {
	*session
}

func (v engineView) SetSource(ctx context.Context, kind audio.Kind, file audio.FileSource, monitor bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	err := v.manager.SetSource(ctx, kind, file, monitor)
	v.closeFileLocked()
	return err
}

func (v engineView) SetMonitor(enabled bool) { v.manager.SetMonitor(enabled) }

func (v engineView) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	err := v.manager.Stop()
	v.closeFileLocked()
	return err
}

func (v engineView) Status() engine.Status { return v.manager.Status() }
