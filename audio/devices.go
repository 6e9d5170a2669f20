package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes a PortAudio device for listings.
type DeviceInfo struct {
	Name              string
	HostAPI           string
	InputChannels     int
	OutputChannels    int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// ListDevices enumerates the PortAudio devices on this machine.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}

	// Missing defaults are not fatal for a listing.
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		info := DeviceInfo{
			Name:              d.Name,
			InputChannels:     d.MaxInputChannels,
			OutputChannels:    d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      defIn != nil && defIn.Index == d.Index,
			DefaultOutput:     defOut != nil && defOut.Index == d.Index,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		infos = append(infos, info)
	}
	return infos, nil
}
