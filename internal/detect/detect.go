// Package detect classifies a recording by its annotation-storage variant so
// the dispatcher can pick a conversion strategy.
package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyeongsuk/RBDtector/internal/edf"
)

// Kind is the closed set of annotation-storage variants. The dispatcher
// switches over it exhaustively; adding a variant means teaching the
// dispatcher about it.
type Kind int

const (
	EmbeddedContinuous Kind = iota
	EmbeddedDiscontinuous
	StandardWithSpreadsheet
	StandardWithoutAnnotations
	Invalid
)

func (k Kind) String() string {
	switch k {
	case EmbeddedContinuous:
		return "EDF+C embedded annotations"
	case EmbeddedDiscontinuous:
		return "EDF+D discontinuous"
	case StandardWithSpreadsheet:
		return "standard EDF with companion spreadsheet"
	case StandardWithoutAnnotations:
		return "standard EDF without annotations"
	default:
		return "invalid"
	}
}

// Channel is a candidate muscle-activity channel.
type Channel struct {
	Index int
	Label string
}

// Verdict is the classification result for one file. Produced once per file
// and consumed by the dispatcher; not persisted.
type Verdict struct {
	Kind             Kind
	ReaderCompatible bool // strict reader opened the file
	AnnotationCount  int
	SignalCount      int
	SpreadsheetPath  string // companion xlsx, if present
	EMGChannels      []Channel
	Err              string // explanatory message for Invalid verdicts
}

// Classify inspects a recording read-only and returns its verdict.
// emgKeywords are the case-sensitive label fragments that mark a candidate
// muscle channel. Every handle opened here is closed before returning.
func Classify(path string, emgKeywords []string) Verdict {
	if _, err := os.Stat(path); err != nil {
		return Verdict{
			Kind: Invalid,
			Err:  fmt.Sprintf("file not found: %s", path),
		}
	}

	v := Verdict{SpreadsheetPath: findSpreadsheet(path)}

	r, err := edf.Open(path)
	if err != nil {
		// Non-compliant header: recover what the raw reader can and treat
		// the file as standard EDF.
		v.Kind = StandardWithoutAnnotations
		if v.SpreadsheetPath != "" {
			v.Kind = StandardWithSpreadsheet
		}
		if raw, rawErr := edf.ReadRawHeader(path); rawErr == nil && raw.SignalCount > 0 {
			v.SignalCount = raw.SignalCount
			if labels, labErr := edf.ReadRawLabels(path, raw.SignalCount); labErr == nil {
				v.EMGChannels = matchChannels(labels, emgKeywords)
			}
		} else if rawErr != nil {
			v.Err = fmt.Sprintf("structured reader: %v; header read: %v", err, rawErr)
		}
		return v
	}
	defer r.Close()

	v.ReaderCompatible = true
	v.SignalCount = r.SignalCount()
	v.EMGChannels = matchChannels(r.Labels(), emgKeywords)

	if n, annErr := r.AnnotationCount(); annErr == nil {
		v.AnnotationCount = n
	}

	switch {
	case r.FileType() == edf.TypeEDFPlusD:
		v.Kind = EmbeddedDiscontinuous
	case r.FileType() == edf.TypeEDFPlusC && v.AnnotationCount > 0:
		v.Kind = EmbeddedContinuous
	case v.SpreadsheetPath != "":
		v.Kind = StandardWithSpreadsheet
	default:
		v.Kind = StandardWithoutAnnotations
	}
	return v
}

// findSpreadsheet probes for a companion spreadsheet by trying case variants
// of the sibling filename.
func findSpreadsheet(path string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".xlsx", ".XLSX"} {
		candidate := stem + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func matchChannels(labels []string, keywords []string) []Channel {
	var out []Channel
	for i, label := range labels {
		for _, kw := range keywords {
			if strings.Contains(label, kw) {
				out = append(out, Channel{Index: i, Label: label})
				break
			}
		}
	}
	return out
}
