package observability

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Sampler names accepted in OTEL_TRACES_SAMPLER.
const (
	SamplerAlwaysOn                = "always_on"
	SamplerAlwaysOff               = "always_off"
	SamplerTraceIDRatio            = "traceidratio"
	SamplerParentBasedTraceIDRatio = "parentbased_traceidratio"
	SamplerParentBasedAlwaysOn     = "parentbased_always_on"
	SamplerParentBasedAlwaysOff    = "parentbased_always_off"
)

// newSampler maps a sampler name to an SDK sampler. Ratio only applies to the ratio samplers and
// is clamped to [0, 1]. Anything unrecognised samples like the SDK default (parent based, always on).
func newSampler(name string, ratio float64) sdktrace.Sampler {
	ratio = min(max(ratio, 0), 1)

	switch name {
	case SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case SamplerTraceIDRatio:
		return sdktrace.TraceIDRatioBased(ratio)
	case SamplerParentBasedTraceIDRatio:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	case SamplerParentBasedAlwaysOff:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}
