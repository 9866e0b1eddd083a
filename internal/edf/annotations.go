package edf

import (
	"bytes"
	"strconv"
)

// AnnotationLabel is the signal label that marks a TAL-carrying channel.
const AnnotationLabel = "EDF Annotations"

// Annotation is one timestamped event read from an EDF+ annotation signal.
// Onset and Duration are decimal seconds relative to the header start time,
// with sub-second precision retained.
type Annotation struct {
	Onset    float64
	Duration float64
	Label    string
}

// TAL byte structure: +onset[\x15duration]\x14label\x14...label\x14\x00
const (
	talDurationSep = 0x15
	talTextSep     = 0x14
	talTerminator  = 0x00
)

// parseTALs decodes every timestamped annotation list in one record's worth
// of annotation-signal bytes. Record-keeping TALs (the bare timestamp each
// record must carry) come back with an empty label; callers filter them.
func parseTALs(data []byte) ([]Annotation, error) {
	var out []Annotation

	for _, tal := range bytes.Split(data, []byte{talTerminator}) {
		if len(tal) == 0 {
			continue
		}
		anns, err := parseTAL(tal)
		if err != nil {
			return nil, err
		}
		out = append(out, anns...)
	}
	return out, nil
}

// parseTAL decodes a single TAL block into zero or more annotations sharing
// one onset and duration.
func parseTAL(tal []byte) ([]Annotation, error) {
	fields := bytes.Split(tal, []byte{talTextSep})
	if len(fields) < 2 {
		return nil, errMalformedTAL(tal)
	}

	head := fields[0]
	var onset, duration float64
	var err error

	if i := bytes.IndexByte(head, talDurationSep); i >= 0 {
		onset, err = parseTALSeconds(head[:i])
		if err != nil {
			return nil, err
		}
		duration, err = parseTALSeconds(head[i+1:])
		if err != nil {
			return nil, err
		}
	} else {
		onset, err = parseTALSeconds(head)
		if err != nil {
			return nil, err
		}
	}

	var out []Annotation
	for _, label := range fields[1:] {
		out = append(out, Annotation{
			Onset:    onset,
			Duration: duration,
			Label:    string(label),
		})
	}
	return out, nil
}

// parseTALSeconds parses a signed decimal seconds field. Onsets are required
// by the format to carry an explicit sign.
func parseTALSeconds(b []byte) (float64, error) {
	s := string(b)
	if s == "" {
		return 0, errMalformedTAL(b)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errMalformedTAL(b)
	}
	return v, nil
}

type talError struct {
	fragment string
}

func (e *talError) Error() string {
	return "malformed annotation block near " + strconv.Quote(e.fragment)
}

func errMalformedTAL(b []byte) error {
	frag := string(b)
	if len(frag) > 32 {
		frag = frag[:32]
	}
	return &talError{fragment: frag}
}
