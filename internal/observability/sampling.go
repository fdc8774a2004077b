package observability

import (
	"strconv"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// defaultSampleRatio is used by ratio samplers when the argument is missing or outside [0, 1].
const defaultSampleRatio = 1.0

// newSampler maps an OTEL_TRACES_SAMPLER name to a sampler. Unknown names fall back to
// parentbased_always_on, the SDK default.
func newSampler(name, arg string) sdktrace.Sampler {
	name = strings.ToLower(strings.TrimSpace(name))

	parentBased := strings.HasPrefix(name, "parentbased_")

	var root sdktrace.Sampler

	switch strings.TrimPrefix(name, "parentbased_") {
	case "always_off":
		root = sdktrace.NeverSample()
	case "traceidratio":
		root = sdktrace.TraceIDRatioBased(sampleRatio(arg))
	case "always_on":
		root = sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	if parentBased {
		return sdktrace.ParentBased(root)
	}

	return root
}

func sampleRatio(arg string) float64 {
	ratio, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return defaultSampleRatio
	}

	return ratio
}
