package shader

import (
	"strings"
	"testing"
)

func TestFragmentShaderDeclaresAudioUniforms(t *testing.T) {
	t.Parallel()

	src := GetFragmentShader(DefaultImage)
	if !strings.HasPrefix(src, "#version 300 es") {
		t.Errorf("fragment shader does not start with the WebGL2 version line")
	}
	for _, name := range []string{"iResolution", "iTime", "iBass", "iMid", "iHigh", "iVolume", "iChannel0"} {
		if !strings.Contains(src, "uniform") || !strings.Contains(src, " "+name+";") {
			t.Errorf("uniform %s not declared", name)
		}
	}
	if strings.Index(src, "void mainImage") > strings.Index(src, "void main(void)") {
		t.Error("mainImage must be defined before main")
	}
}

func TestVertexShader(t *testing.T) {
	t.Parallel()

	if !strings.Contains(GenerateVertexShader(), "gl_Position") {
		t.Error("vertex shader does not write gl_Position")
	}
}
