package edf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// FileType is the recording variant taken from the header's reserved field.
type FileType int

const (
	TypeEDF      FileType = iota // plain EDF, no embedded annotations
	TypeEDFPlusC                 // EDF+ continuous
	TypeEDFPlusD                 // EDF+ discontinuous
)

func (t FileType) String() string {
	switch t {
	case TypeEDFPlusC:
		return "EDF+C"
	case TypeEDFPlusD:
		return "EDF+D"
	default:
		return "EDF"
	}
}

// SignalHeader describes one channel of a recording.
type SignalHeader struct {
	Label            string
	Transducer       string
	Dimension        string
	PhysicalMin      float64
	PhysicalMax      float64
	DigitalMin       int
	DigitalMax       int
	Prefilter        string
	SamplesPerRecord int
}

// Reader is the strict, structured EDF reader. Open validates every header
// field; files with non-compliant headers fail here and are handled by the
// raw helpers and the permissive reader instead.
type Reader struct {
	f    *os.File
	path string

	startTime     time.Time
	fileType      FileType
	recordCount   int
	recordSeconds float64

	signals    []SignalHeader // ordinary channels, annotation channels excluded
	sigOffsets []int          // byte offset of each ordinary channel within a record

	annSignals []annChannel
	annotated  bool
	anns       []Annotation

	dataOffset  int64
	recordBytes int
}

// annChannel locates an annotation channel inside a data record.
type annChannel struct {
	offset int // bytes from record start
	size   int // bytes
}

// Open opens and fully validates an EDF file header. Any unparsable numeric
// field, bad version, or impossible record geometry is an error.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := newReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File, path string) (*Reader, error) {
	lead := make([]byte, headerSize)
	if _, err := io.ReadFull(f, lead); err != nil {
		return nil, fmt.Errorf("short header: %w", err)
	}

	if v := asciiField(lead[offVersion : offVersion+8]); v != "0" {
		return nil, fmt.Errorf("unsupported version field %q", v)
	}

	ns, err := strconv.Atoi(asciiField(lead[offSignalCount : offSignalCount+4]))
	if err != nil || ns < 1 {
		return nil, fmt.Errorf("invalid signal count %q", asciiField(lead[offSignalCount:offSignalCount+4]))
	}

	headerBytes, err := strconv.Atoi(asciiField(lead[offHeaderBytes : offHeaderBytes+8]))
	if err != nil {
		return nil, fmt.Errorf("invalid header size field: %w", err)
	}
	if headerBytes != headerSize+ns*256 {
		return nil, fmt.Errorf("header size %d does not match %d signals", headerBytes, ns)
	}

	startTime, err := parseStrictStart(
		asciiField(lead[offStartDate:offStartDate+8]),
		asciiField(lead[offStartTime:offStartTime+8]),
	)
	if err != nil {
		return nil, err
	}

	recordCount, err := strconv.Atoi(asciiField(lead[offRecordCount : offRecordCount+8]))
	if err != nil {
		return nil, fmt.Errorf("invalid record count field: %w", err)
	}

	recordSeconds, err := strconv.ParseFloat(asciiField(lead[offRecordSecs:offRecordSecs+8]), 64)
	if err != nil || recordSeconds <= 0 {
		return nil, fmt.Errorf("invalid record duration field %q", asciiField(lead[offRecordSecs:offRecordSecs+8]))
	}

	fileType := TypeEDF
	switch reserved := asciiField(lead[offReserved : offReserved+44]); {
	case strings.HasPrefix(reserved, "EDF+C"):
		fileType = TypeEDFPlusC
	case strings.HasPrefix(reserved, "EDF+D"):
		fileType = TypeEDFPlusD
	}

	all, err := readSignalTable(f, ns)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		f:             f,
		path:          path,
		startTime:     startTime,
		fileType:      fileType,
		recordCount:   recordCount,
		recordSeconds: recordSeconds,
		dataOffset:    int64(headerBytes),
	}

	offset := 0
	for _, sh := range all {
		size := sh.SamplesPerRecord * 2
		if sh.Label == AnnotationLabel {
			r.annSignals = append(r.annSignals, annChannel{offset: offset, size: size})
		} else {
			r.signals = append(r.signals, sh)
			r.sigOffsets = append(r.sigOffsets, offset)
		}
		offset += size
	}
	r.recordBytes = offset

	// Geometry check against the actual file size. A record count of -1
	// (unknown) is tolerated and derived from the size instead.
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	dataBytes := st.Size() - r.dataOffset
	if r.recordCount == -1 {
		if r.recordBytes == 0 || dataBytes <= 0 {
			return nil, fmt.Errorf("cannot derive record count from %d data bytes", dataBytes)
		}
		r.recordCount = int(dataBytes) / r.recordBytes
	}
	if r.recordCount < 1 {
		return nil, fmt.Errorf("invalid record count %d", r.recordCount)
	}
	if int64(r.recordCount)*int64(r.recordBytes) > dataBytes {
		return nil, fmt.Errorf("file truncated: %d records of %d bytes exceed %d data bytes",
			r.recordCount, r.recordBytes, dataBytes)
	}

	return r, nil
}

// readSignalTable parses the per-signal header arrays that follow the leading
// block, strictly.
func readSignalTable(f *os.File, ns int) ([]SignalHeader, error) {
	buf := make([]byte, ns*256)
	if _, err := f.ReadAt(buf, headerSize); err != nil {
		return nil, fmt.Errorf("short signal header table: %w", err)
	}

	// The table is column-major: ns labels, then ns transducers, and so on.
	field := func(section, width, i int) string {
		return asciiField(buf[section+i*width : section+(i+1)*width])
	}
	const (
		secLabel      = 0
		secTransducer = 16
		secDimension  = 96
		secPhysMin    = 104
		secPhysMax    = 112
		secDigMin     = 120
		secDigMax     = 128
		secPrefilter  = 136
		secSamples    = 216
	)

	out := make([]SignalHeader, ns)
	for i := 0; i < ns; i++ {
		sh := SignalHeader{
			Label:      field(secLabel*ns, labelBytes, i),
			Transducer: field(secTransducer*ns, 80, i),
			Dimension:  field(secDimension*ns, 8, i),
			Prefilter:  field(secPrefilter*ns, 80, i),
		}
		var err error
		if sh.PhysicalMin, err = strconv.ParseFloat(field(secPhysMin*ns, 8, i), 64); err != nil {
			return nil, fmt.Errorf("signal %d: invalid physical minimum: %w", i, err)
		}
		if sh.PhysicalMax, err = strconv.ParseFloat(field(secPhysMax*ns, 8, i), 64); err != nil {
			return nil, fmt.Errorf("signal %d: invalid physical maximum: %w", i, err)
		}
		if sh.DigitalMin, err = strconv.Atoi(field(secDigMin*ns, 8, i)); err != nil {
			return nil, fmt.Errorf("signal %d: invalid digital minimum: %w", i, err)
		}
		if sh.DigitalMax, err = strconv.Atoi(field(secDigMax*ns, 8, i)); err != nil {
			return nil, fmt.Errorf("signal %d: invalid digital maximum: %w", i, err)
		}
		if sh.DigitalMin == sh.DigitalMax {
			return nil, fmt.Errorf("signal %d: empty digital range", i)
		}
		if sh.SamplesPerRecord, err = strconv.Atoi(field(secSamples*ns, 8, i)); err != nil || sh.SamplesPerRecord < 1 {
			return nil, fmt.Errorf("signal %d: invalid samples-per-record", i)
		}
		out[i] = sh
	}
	return out, nil
}

// parseStrictStart parses the header date and time fields with the EDF+ year
// pivot: two-digit years 85-99 are the 1900s, everything else the 2000s.
func parseStrictStart(date, clock string) (time.Time, error) {
	day, month, year, err := parseDotTriplet(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("start date %q: %w", date, err)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("start date %q out of range", date)
	}
	if year >= 85 && year <= 99 {
		year += 1900
	} else if year < 85 {
		year += 2000
	}

	hour, minute, second, err := parseDotTriplet(clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("start time %q: %w", clock, err)
	}
	if hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("start time %q out of range", clock)
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

// StartTime returns the recording start from the header.
func (r *Reader) StartTime() time.Time { return r.startTime }

// FileType returns the variant flag from the reserved header field.
func (r *Reader) FileType() FileType { return r.fileType }

// SignalCount returns the number of ordinary channels, annotation channels
// excluded.
func (r *Reader) SignalCount() int { return len(r.signals) }

// SignalHeaders returns the ordinary channel headers.
func (r *Reader) SignalHeaders() []SignalHeader { return r.signals }

// Labels returns the ordinary channel labels in file order.
func (r *Reader) Labels() []string {
	labels := make([]string, len(r.signals))
	for i, s := range r.signals {
		labels[i] = s.Label
	}
	return labels
}

// Duration returns the total recording length.
func (r *Reader) Duration() time.Duration {
	return time.Duration(float64(r.recordCount) * r.recordSeconds * float64(time.Second))
}

// SampleRate returns the sampling rate of ordinary channel i in Hz.
func (r *Reader) SampleRate(i int) float64 {
	return float64(r.signals[i].SamplesPerRecord) / r.recordSeconds
}

// Annotations decodes every labeled event from the file's annotation
// channels. Record-keeping timestamps (TALs with empty labels) are excluded.
// The result is cached; the file is scanned once.
func (r *Reader) Annotations() ([]Annotation, error) {
	if r.annotated {
		return r.anns, nil
	}

	buf := make([]byte, r.recordBytes)
	var out []Annotation
	for rec := 0; rec < r.recordCount; rec++ {
		if _, err := r.f.ReadAt(buf, r.dataOffset+int64(rec)*int64(r.recordBytes)); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec, err)
		}
		for _, ch := range r.annSignals {
			anns, err := parseTALs(buf[ch.offset : ch.offset+ch.size])
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", rec, err)
			}
			for _, a := range anns {
				if a.Label == "" {
					continue
				}
				out = append(out, a)
			}
		}
	}

	r.anns = out
	r.annotated = true
	return out, nil
}

// AnnotationCount returns the number of labeled events in the file.
func (r *Reader) AnnotationCount() (int, error) {
	anns, err := r.Annotations()
	if err != nil {
		return 0, err
	}
	return len(anns), nil
}

// ReadSignal reads the full sample stream of ordinary channel i, converted
// to physical units.
func (r *Reader) ReadSignal(i int) ([]float64, error) {
	if i < 0 || i >= len(r.signals) {
		return nil, fmt.Errorf("signal index %d out of range", i)
	}
	sh := r.signals[i]
	scale := (sh.PhysicalMax - sh.PhysicalMin) / float64(sh.DigitalMax-sh.DigitalMin)

	out := make([]float64, 0, sh.SamplesPerRecord*r.recordCount)
	buf := make([]byte, sh.SamplesPerRecord*2)
	for rec := 0; rec < r.recordCount; rec++ {
		at := r.dataOffset + int64(rec)*int64(r.recordBytes) + int64(r.sigOffsets[i])
		if _, err := r.f.ReadAt(buf, at); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec, err)
		}
		for s := 0; s < sh.SamplesPerRecord; s++ {
			dig := int16(binary.LittleEndian.Uint16(buf[s*2:]))
			out = append(out, (float64(dig)-float64(sh.DigitalMin))*scale+sh.PhysicalMin)
		}
	}
	return out, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }
