package sample

import "github.com/itohio/comview/pkg/config"

// Remap maps v linearly from the in range onto the out range.
// Formula: (v - in.Lo) / (in.Hi - in.Lo) * (out.Hi - out.Lo) + out.Lo
//
// in must satisfy in.Lo < in.Hi; config.Range.Validate guarantees that for
// every range that reaches a running channel.
func Remap(v float64, in, out config.Range) float64 {
	return (v-in.Lo)/(in.Hi-in.Lo)*(out.Hi-out.Lo) + out.Lo
}

// Transform returns the per-sample conversion for a channel: Remap from Input
// to Output when Convert is set, identity otherwise. Ranges are captured by
// value so later config edits don't affect an already running reader.
func Transform(cfg config.ChannelConfig) func(float64) float64 {
	if !cfg.Convert {
		return func(v float64) float64 { return v }
	}
	in, out := cfg.Input, cfg.Output
	return func(v float64) float64 {
		return Remap(v, in, out)
	}
}
