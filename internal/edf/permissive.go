package edf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// PermissiveFile is a best-effort decoding of a recording whose header the
// strict reader rejects. Malformed per-signal fields fall back to defaults
// instead of failing: an unusable physical range degrades that channel to raw
// digital values, which the normalizing converter rescales anyway.
type PermissiveFile struct {
	StartTime     time.Time
	RecordSeconds float64
	Signals       []SignalHeader
	Data          [][]float64 // full decoded sample matrix, one row per ordinary channel
}

// SampleRate returns the sampling rate of channel i in Hz.
func (p *PermissiveFile) SampleRate(i int) float64 {
	return float64(p.Signals[i].SamplesPerRecord) / p.RecordSeconds
}

// OpenPermissive decodes the entire signal matrix and per-channel metadata of
// an EDF file, tolerating the header defects that make the strict reader fail.
func OpenPermissive(path string) (*PermissiveFile, error) {
	raw, err := ReadRawHeader(path)
	if err != nil {
		return nil, err
	}
	if raw.SignalCount < 1 {
		return nil, fmt.Errorf("cannot recover signal count from header")
	}
	ns := raw.SignalCount

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table := make([]byte, ns*256)
	if _, err := f.ReadAt(table, headerSize); err != nil {
		return nil, fmt.Errorf("short signal header table: %w", err)
	}
	signals, physOK := permissiveSignalTable(table, ns)

	recordSeconds := raw.RecordSeconds
	if recordSeconds <= 0 {
		recordSeconds = 1
	}

	startTime, err := ReadRawStartTime(path)
	if err != nil {
		// Unrecoverable date fields: anchor at zero rather than refusing the
		// signal data.
		startTime = time.Time{}
	}

	recordBytes := 0
	for _, sh := range signals {
		recordBytes += sh.SamplesPerRecord * 2
	}
	if recordBytes == 0 {
		return nil, fmt.Errorf("no samples per record recoverable")
	}

	dataOffset := int64(headerSize + ns*256)
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	recordCount := int((st.Size() - dataOffset) / int64(recordBytes))
	if recordCount < 1 {
		return nil, fmt.Errorf("no complete data records in file")
	}

	// Decode the full matrix, splitting annotation channels out of the result.
	out := &PermissiveFile{
		StartTime:     startTime,
		RecordSeconds: recordSeconds,
	}

	type chState struct {
		hdr   SignalHeader
		scale float64
		data  []float64
	}
	var chans []*chState
	for i, sh := range signals {
		scale := 1.0
		offsetOK := physOK[i] && sh.DigitalMax != sh.DigitalMin && sh.PhysicalMax != sh.PhysicalMin
		if offsetOK {
			scale = (sh.PhysicalMax - sh.PhysicalMin) / float64(sh.DigitalMax-sh.DigitalMin)
		} else {
			// Degrade to identity: raw digital values.
			sh.PhysicalMin = float64(sh.DigitalMin)
			sh.PhysicalMax = float64(sh.DigitalMax)
		}
		chans = append(chans, &chState{
			hdr:   sh,
			scale: scale,
			data:  make([]float64, 0, sh.SamplesPerRecord*recordCount),
		})
	}

	buf := make([]byte, recordBytes)
	if _, err := f.Seek(dataOffset, io.SeekStart); err != nil {
		return nil, err
	}
	for rec := 0; rec < recordCount; rec++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec, err)
		}
		pos := 0
		for _, ch := range chans {
			for s := 0; s < ch.hdr.SamplesPerRecord; s++ {
				dig := int16(binary.LittleEndian.Uint16(buf[pos+s*2:]))
				ch.data = append(ch.data,
					(float64(dig)-float64(ch.hdr.DigitalMin))*ch.scale+ch.hdr.PhysicalMin)
			}
			pos += ch.hdr.SamplesPerRecord * 2
		}
	}

	for _, ch := range chans {
		if ch.hdr.Label == AnnotationLabel {
			continue
		}
		out.Signals = append(out.Signals, ch.hdr)
		out.Data = append(out.Data, ch.data)
	}
	if len(out.Signals) == 0 {
		return nil, fmt.Errorf("no ordinary signals in file")
	}
	return out, nil
}

// permissiveSignalTable decodes the per-signal header arrays, substituting
// defaults for unparsable fields. The second return value reports, per
// signal, whether both physical bounds actually parsed; a channel with a
// fabricated bound must not be scaled by it.
func permissiveSignalTable(buf []byte, ns int) ([]SignalHeader, []bool) {
	field := func(cum, width, i int) string {
		return asciiField(buf[cum*ns+i*width : cum*ns+(i+1)*width])
	}

	out := make([]SignalHeader, ns)
	physOK := make([]bool, ns)
	for i := 0; i < ns; i++ {
		sh := SignalHeader{
			Label:      field(0, labelBytes, i),
			Transducer: field(16, 80, i),
			Dimension:  field(96, 8, i),
			Prefilter:  field(136, 80, i),
		}
		var minOK, maxOK bool
		sh.PhysicalMin, minOK = permissiveFloat(field(104, 8, i))
		sh.PhysicalMax, maxOK = permissiveFloat(field(112, 8, i))
		physOK[i] = minOK && maxOK
		sh.DigitalMin = permissiveInt(field(120, 8, i), -32768)
		sh.DigitalMax = permissiveInt(field(128, 8, i), 32767)
		sh.SamplesPerRecord = permissiveInt(field(216, 8, i), 0)
		if sh.SamplesPerRecord < 0 {
			sh.SamplesPerRecord = 0
		}
		out[i] = sh
	}
	return out, physOK
}

func permissiveFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func permissiveInt(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
