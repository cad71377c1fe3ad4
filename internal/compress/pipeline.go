package compress

import "unicode/utf8"

// Pipeline is an ordered composition of Stages applied left-to-right on
// Encode and right-to-left on Decode.
type Pipeline struct {
	Name   string
	Stages []Stage
}

// Reversible reports whether every stage in the pipeline is reversible.
func (p Pipeline) Reversible() bool {
	for _, s := range p.Stages {
		if !s.Reversible() {
			return false
		}
	}
	return true
}

// Encode runs text through every stage in order. A stage whose output would
// net-increase the character count for this input is skipped (no-op) for
// that input. If a stage panics, the pipeline returns the pre-stage text for
// the remainder and flags CompressionDegraded — no hard failure ever
// propagates out of Encode.
func (p Pipeline) Encode(text string) (string, Metrics) {
	metrics := Metrics{InChars: utf8.RuneCountInString(text)}
	out := text

	for _, stage := range p.Stages {
		before := out
		out = runStageEncode(stage, before, &metrics)
		if metrics.CompressionDegraded {
			break
		}
		if utf8.RuneCountInString(out) > utf8.RuneCountInString(before) {
			out = before
		}
	}

	metrics.OutChars = utf8.RuneCountInString(out)
	return out, metrics
}

// Decode reverses the pipeline right-to-left, calling every stage's Decode,
// lossy stages included: their Decode is identity, except Abbreviator's,
// which is a best-effort restoration of the dictionary words.
func (p Pipeline) Decode(text string) string {
	out := text
	for i := len(p.Stages) - 1; i >= 0; i-- {
		out = p.Stages[i].Decode(out)
	}
	return out
}

func runStageEncode(stage Stage, text string, metrics *Metrics) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = text
			metrics.CompressionDegraded = true
		}
	}()
	return stage.Encode(text)
}

// Preset names the fixed compression levels from spec §4.5.
type Preset string

const (
	PresetLow    Preset = "low"
	PresetMedium Preset = "medium"
	PresetHigh   Preset = "high"
)

// BuildPipeline constructs the stage chain for a preset, optionally
// appending the terminal BinaryEncoder stage for the "+gzip" variant.
func BuildPipeline(preset Preset, gzip bool) Pipeline {
	var stages []Stage
	switch preset {
	case PresetLow:
		stages = []Stage{Normalizer{}, Abbreviator{}}
	case PresetHigh:
		stages = []Stage{Normalizer{}, Abbreviator{}, NewVowelStripper(), SymbolCompressor{}, NewLogarithmicChunker()}
	default: // medium
		stages = []Stage{Normalizer{}, Abbreviator{}, NewVowelStripper(), SymbolCompressor{}}
	}
	if gzip {
		stages = append(stages, BinaryEncoder{})
	}
	return Pipeline{Name: string(preset), Stages: stages}
}

// ShouldGzip decides whether the BinaryEncoder stage should run, per the
// auto-skip-below-threshold rule: it is skipped when the post-pipeline size
// (before binary encoding) is below the configured threshold, unless the
// caller explicitly requested gzip.
func ShouldGzip(requested bool, preCompressedChars, threshold int) bool {
	if requested {
		return true
	}
	return preCompressedChars >= threshold
}
