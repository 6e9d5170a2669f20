package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/richinsley/goreactive/audio"
)

var errBadCommand = errors.New("bad command")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// commandHandler applies client commands to the engine. It also owns the
// file opened for a file source and closes it once the engine has let go.
type commandHandler struct {
	engine Engine

	mu   sync.Mutex
	file *os.File
}

func newCommandHandler(eng Engine) *commandHandler {
	return &commandHandler{engine: eng}
}

// handle runs one command and returns the frames to send back to its client.
func (h *commandHandler) handle(ctx context.Context, cmd Command) []any {
	if err := validate.Struct(cmd); err != nil {
		return []any{newErrorFrame(cmd.Type, fmt.Errorf("%w: %v", errBadCommand, err))}
	}

	var err error
	switch cmd.Type {
	case "set_source":
		err = h.setSource(ctx, cmd)
	case "set_monitor":
		h.engine.SetMonitor(*cmd.Enabled)
	case "stop":
		err = h.stop()
	case "status":
	}

	status := StatusFrame{Type: "status", Status: h.engine.Status()}
	if err != nil {
		return []any{newErrorFrame(cmd.Type, err), status}
	}
	return []any{status}
}

func (h *commandHandler) setSource(ctx context.Context, cmd Command) error {
	kind, err := audio.ParseKind(cmd.Source)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadCommand, err)
	}
	monitor := kind.DefaultMonitor()
	if cmd.Monitor != nil {
		monitor = *cmd.Monitor
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var (
		file *os.File
		src  audio.FileSource
	)
	if kind == audio.File {
		if file, err = os.Open(cmd.File); err != nil {
			// Same outcome as a failed acquisition: nothing stays active.
			h.stopLocked()
			return audio.Classify(kind, err)
		}
		src = file
	}

	err = h.engine.SetSource(ctx, kind, src, monitor)
	// The previous graph is gone either way.
	h.closeFileLocked()
	if err != nil {
		if file != nil {
			file.Close()
		}
		return err
	}
	h.file = file
	return nil
}

func (h *commandHandler) stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopLocked()
}

func (h *commandHandler) stopLocked() error {
	err := h.engine.Stop()
	h.closeFileLocked()
	return err
}

func (h *commandHandler) closeFileLocked() {
	if h.file == nil {
		return
	}
	if err := h.file.Close(); err != nil {
		slog.Debug("failed to close source file", "file", h.file.Name(), "error", err)
	}
	h.file = nil
}

func (h *commandHandler) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeFileLocked()
}
