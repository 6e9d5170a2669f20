package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/richinsley/goreactive/analysis"
	"github.com/richinsley/goreactive/audio"
	"github.com/richinsley/goreactive/engine"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the encoding of server to client frames.
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

func (f Format) String() string {
	if f == FormatMsgpack {
		return "msgpack"
	}
	return "json"
}

func parseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgpack, nil
	}
	return FormatJSON, fmt.Errorf("unknown frame format %q", s)
}

// Command is a client request. Commands are always JSON text frames.
type Command struct {
	Type    string `json:"type" validate:"required,oneof=set_source set_monitor stop status"`
	Source  string `json:"source,omitempty" validate:"required_if=Type set_source"`
	File    string `json:"file,omitempty" validate:"required_if=Source file"`
	Monitor *bool  `json:"monitor,omitempty"`
	Enabled *bool  `json:"enabled,omitempty" validate:"required_if=Type set_monitor"`
}

// FeaturesFrame carries one extracted feature vector. Spectrum is base64 in
// JSON and a bin array in msgpack.
type FeaturesFrame struct {
	Type     string  `json:"type" msgpack:"type"`
	Bass     float32 `json:"bass" msgpack:"bass"`
	Mid      float32 `json:"mid" msgpack:"mid"`
	High     float32 `json:"high" msgpack:"high"`
	Volume   float32 `json:"volume" msgpack:"volume"`
	Spectrum []byte  `json:"spectrum" msgpack:"spectrum"`
}

func newFeaturesFrame(v analysis.FeatureVector) FeaturesFrame {
	return FeaturesFrame{
		Type:     "features",
		Bass:     v.Bass,
		Mid:      v.Mid,
		High:     v.High,
		Volume:   v.Volume,
		Spectrum: v.Spectrum,
	}
}

// StatusFrame reports the engine state after each command.
type StatusFrame struct {
	Type   string        `json:"type" msgpack:"type"`
	Status engine.Status `json:"status" msgpack:"status"`
}

// ErrorFrame reports a failed command.
type ErrorFrame struct {
	Type    string `json:"type" msgpack:"type"`
	Command string `json:"command,omitempty" msgpack:"command,omitempty"`
	Class   string `json:"class" msgpack:"class"`
	Message string `json:"message" msgpack:"message"`
	Detail  string `json:"detail,omitempty" msgpack:"detail,omitempty"`
}

const invalidRequestClass = "invalid_request"

func newErrorFrame(cmd string, err error) ErrorFrame {
	f := ErrorFrame{Type: "error", Command: cmd, Detail: err.Error()}

	var acqErr *audio.AcquisitionError
	switch {
	case errors.As(err, &acqErr):
		f.Class = acqErr.Class.String()
		f.Message = acqErr.UserMessage()
	case errors.Is(err, engine.ErrInvalidRequest), errors.Is(err, errBadCommand):
		f.Class = invalidRequestClass
		f.Message = "Invalid request."
	default:
		f.Class = audio.Unknown.String()
		f.Message = "Failed to access audio source."
	}
	return f
}

// encode prepares v for every client of the given format.
func encode(format Format, v any) (*websocket.PreparedMessage, error) {
	switch format {
	case FormatMsgpack:
		data, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode msgpack frame: %w", err)
		}
		return websocket.NewPreparedMessage(websocket.BinaryMessage, data)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode json frame: %w", err)
		}
		return websocket.NewPreparedMessage(websocket.TextMessage, data)
	}
}
