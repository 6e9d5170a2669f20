package shader

const vertexShaderSourceGL = `#version 410 core
layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

// preamble declares the uniforms every audio-reactive shader can use.
// iChannel0 is the byte spectrum as a one-row texture, bass on the left.
const preamble = `#version 300 es
precision highp float;
precision highp int;

uniform vec3  iResolution;
uniform float iTime;
uniform float iBass;
uniform float iMid;
uniform float iHigh;
uniform float iVolume;
uniform sampler2D iChannel0;

out vec4 fragColor;
`

const mainWrapper = `
void main(void)
{
    mainImage(fragColor, gl_FragCoord.xy);
}
`

// DefaultImage is the built-in visual: a ring pulsing with the bass, rotating
// bands driven by mid and high, and the spectrum along the bottom edge.
const DefaultImage = `
float spectrum(float x) {
    return texture(iChannel0, vec2(clamp(x, 0.0, 1.0), 0.5)).r;
}

void mainImage(out vec4 fragColor, in vec2 fragCoord)
{
    vec2 uv = (fragCoord - 0.5 * iResolution.xy) / iResolution.y;
    float r = length(uv);
    float a = atan(uv.y, uv.x);

    float ring = 0.25 + 0.15 * iBass;
    float glow = 0.012 / abs(r - ring) * (0.4 + iVolume);

    float bands = sin(a * 6.0 + iTime * (0.5 + 2.0 * iMid)) * 0.5 + 0.5;
    float shimmer = spectrum(fract(a / 6.2831853 + 0.5)) * iHigh;

    vec3 col = vec3(0.9, 0.2, 0.5) * glow;
    col += vec3(0.1, 0.6, 0.9) * bands * smoothstep(ring + 0.3, ring, r) * iMid;
    col += vec3(0.2, 0.9, 0.9) * shimmer * smoothstep(0.9, ring, r);

    vec2 st = fragCoord / iResolution.xy;
    float bar = spectrum(st.x);
    col += vec3(0.0, 1.0, 0.6) * step(st.y, bar * 0.2) * 0.6;

    fragColor = vec4(col, 1.0);
}
`

// GenerateVertexShader returns the full-screen quad vertex shader.
func GenerateVertexShader() string {
	return vertexShaderSourceGL
}

// GetFragmentShader wraps user code defining mainImage into a complete
// WebGL2 fragment shader.
func GetFragmentShader(user string) string {
	return preamble + user + mainWrapper
}
