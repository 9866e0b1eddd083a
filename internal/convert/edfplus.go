// Package convert rewrites recordings whose headers the strict reader
// rejects into compliant EDF+C files, and repairs clipped physical ranges.
package convert

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/edf"
	apperrors "github.com/hyeongsuk/RBDtector/internal/errors"
)

// Result reports what a rewrite produced.
type Result struct {
	OutputPath  string
	SignalCount int
	Rescaled    []string // labels of channels handled as biosignals
}

// DefaultOutputPath returns the conventional output name for a normalized
// rewrite of path.
func DefaultOutputPath(path string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return stem + "_edfplus.edf"
}

// ToEDFPlus decodes a recording permissively and rewrites it as a compliant
// EDF+C file at outPath (DefaultOutputPath(path) when empty). Every channel
// gets a symmetric physical range at twice its observed absolute maximum,
// the headroom that keeps transient bursts from clipping. Biosignal channels
// are additionally rescaled to microvolts and never given a range narrower
// than the configured minimum. The rewritten file is re-opened with the
// strict reader before the result is returned; a rewrite the strict reader
// rejects is an error, not a product.
func ToEDFPlus(path, outPath string, cfg *config.Config) (*Result, error) {
	p, err := edf.OpenPermissive(path)
	if err != nil {
		return nil, apperrors.NewExtraction(path, err)
	}
	if outPath == "" {
		outPath = DefaultOutputPath(path)
	}

	recordSeconds := cfg.RecordSeconds
	if recordSeconds < 1 {
		recordSeconds = 1
	}

	res := &Result{OutputPath: outPath, SignalCount: len(p.Signals)}
	signals := make([]edf.WriterSignal, len(p.Signals))
	data := make([][]float64, len(p.Signals))
	for i, sh := range p.Signals {
		samples := p.Data[i]
		ws := edf.WriterSignal{
			Label:            sh.Label,
			Transducer:       sh.Transducer,
			Dimension:        sh.Dimension,
			Prefilter:        sh.Prefilter,
			SamplesPerRecord: samplesPerRecord(p.SampleRate(i), recordSeconds),
			DigitalMin:       -32768,
			DigitalMax:       32767,
		}

		biosignal := containsAny(sh.Label, cfg.BiosignalKeywords)
		if biosignal {
			scaled := make([]float64, len(samples))
			for j, v := range samples {
				scaled[j] = v * cfg.BiosignalScale
			}
			samples = scaled
		}

		// Twice the observed absolute maximum, so a burst twice as large as
		// anything recorded still fits.
		half := extreme(samples) * 2
		if biosignal {
			if half < cfg.BiosignalMinRange {
				half = cfg.BiosignalMinRange
			}
			ws.Dimension = "uV"
			res.Rescaled = append(res.Rescaled, sh.Label)
		}
		if half == 0 {
			half = 1
		}
		ws.PhysicalMin = -half
		ws.PhysicalMax = half

		signals[i] = ws
		data[i] = samples
	}

	if err := edf.WriteContinuous(outPath, p.StartTime, recordSeconds, "", signals, data, nil); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("writing %s: %w", outPath, err))
	}
	if err := verify(outPath, len(signals)); err != nil {
		return nil, err
	}
	return res, nil
}

// FixRanges rewrites a compliant recording whose channels were recorded with
// wrong or too-narrow physical ranges. Every channel's range is recomputed
// from its observed extremes plus a twenty percent margin; biosignal channels
// get theirs kept symmetric around zero. Annotations pass through unchanged.
// outPath defaults to the input stem with a "_ranged" suffix.
func FixRanges(path, outPath string, cfg *config.Config) (*Result, error) {
	r, err := edf.Open(path)
	if err != nil {
		return nil, apperrors.NewExtraction(path, err)
	}
	defer r.Close()

	if outPath == "" {
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		outPath = stem + "_ranged.edf"
	}

	events, err := r.Annotations()
	if err != nil {
		return nil, apperrors.NewExtraction(path, err)
	}

	headers := r.SignalHeaders()
	res := &Result{OutputPath: outPath, SignalCount: len(headers)}
	signals := make([]edf.WriterSignal, len(headers))
	data := make([][]float64, len(headers))
	for i, sh := range headers {
		samples, err := r.ReadSignal(i)
		if err != nil {
			return nil, apperrors.NewExtraction(path, err)
		}
		ws := edf.WriterSignal{
			Label:            sh.Label,
			Transducer:       sh.Transducer,
			Dimension:        sh.Dimension,
			Prefilter:        sh.Prefilter,
			SamplesPerRecord: samplesPerRecord(r.SampleRate(i), cfg.RecordSeconds),
			DigitalMin:       -32768,
			DigitalMax:       32767,
		}

		if containsAny(sh.Label, cfg.BiosignalKeywords) {
			half := extreme(samples) * 1.2
			if half == 0 {
				half = 1
			}
			ws.PhysicalMin = -half
			ws.PhysicalMax = half
			res.Rescaled = append(res.Rescaled, sh.Label)
		} else {
			lo, hi := bounds(samples)
			margin := (hi - lo) * 0.2
			lo -= margin
			hi += margin
			if hi <= lo {
				// Constant channel, give it a unit span so the header stays valid.
				hi = lo + 1
			}
			ws.PhysicalMin = lo
			ws.PhysicalMax = hi
		}

		signals[i] = ws
		data[i] = samples
	}

	if err := edf.WriteContinuous(outPath, r.StartTime(), cfg.RecordSeconds, "", signals, data, events); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("writing %s: %w", outPath, err))
	}
	if err := verify(outPath, len(signals)); err != nil {
		return nil, err
	}
	return res, nil
}

// verify re-opens the rewritten file with the strict reader. The rewrite is
// only trusted after the strict reader accepts it.
func verify(path string, wantSignals int) error {
	out, err := edf.Open(path)
	if err != nil {
		return apperrors.NewVerification(path, err)
	}
	defer out.Close()
	if got := out.SignalCount(); got != wantSignals {
		return apperrors.NewVerification(path,
			fmt.Errorf("rewrote %d signals, re-read %d", wantSignals, got))
	}
	return nil
}

func samplesPerRecord(rate float64, recordSeconds int) int {
	n := int(math.Round(rate * float64(recordSeconds)))
	if n < 1 {
		n = 1
	}
	return n
}

// bounds returns the smallest and largest sample values.
func bounds(samples []float64) (lo, hi float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	lo, hi = samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// extreme returns the largest absolute sample value.
func extreme(samples []float64) float64 {
	var m float64
	for _, v := range samples {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
