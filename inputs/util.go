package inputs

import (
	"github.com/go-gl/gl/v4.1-core/gl"
)

func getWrapMode(wrap string) int32 {
	switch wrap {
	case "clamp":
		return gl.CLAMP_TO_EDGE
	default:
		return gl.REPEAT
	}
}

func getFilterMode(filter string) (minFilter, magFilter int32) {
	switch filter {
	case "nearest":
		return gl.NEAREST, gl.NEAREST
	default:
		return gl.LINEAR, gl.LINEAR
	}
}
