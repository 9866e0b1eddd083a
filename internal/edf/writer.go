package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// WriterSignal describes one channel to be written.
type WriterSignal struct {
	Label            string
	Transducer       string
	Dimension        string
	Prefilter        string
	SamplesPerRecord int
	PhysicalMin      float64
	PhysicalMax      float64
	DigitalMin       int
	DigitalMax       int
}

// The annotation channel appended to every written file needs at least
// enough room per record for the record-keeping TAL.
const minAnnSamplesPerRecord = 30

// WriteContinuous writes an EDF+C file from a fully decoded sample matrix.
// data holds one row of physical values per signal. The stream is segmented
// into fixed-duration records; if the final record is short, every channel is
// padded by replicating its last sample. An annotation channel is appended
// automatically, carrying the mandatory record-keeping TALs plus any events
// in anns (assigned to the record containing their onset).
func WriteContinuous(path string, startTime time.Time, recordSeconds int, patient string, signals []WriterSignal, data [][]float64, anns []Annotation) error {
	if len(signals) == 0 || len(signals) != len(data) {
		return fmt.Errorf("signal headers and data rows mismatch: %d vs %d", len(signals), len(data))
	}
	if recordSeconds < 1 {
		return fmt.Errorf("invalid record duration %d", recordSeconds)
	}
	for i, sh := range signals {
		if sh.SamplesPerRecord < 1 {
			return fmt.Errorf("signal %d: invalid samples per record", i)
		}
		if sh.DigitalMin == sh.DigitalMax || sh.PhysicalMin == sh.PhysicalMax {
			return fmt.Errorf("signal %d: empty range", i)
		}
	}

	recordCount := 0
	for i, sh := range signals {
		n := (len(data[i]) + sh.SamplesPerRecord - 1) / sh.SamplesPerRecord
		if n > recordCount {
			recordCount = n
		}
	}
	if recordCount == 0 {
		return fmt.Errorf("no samples to write")
	}

	// Lay annotations into their records up front so the annotation channel
	// can be sized to the fullest record.
	recTALs := make([][]byte, recordCount)
	for rec := 0; rec < recordCount; rec++ {
		recTALs[rec] = []byte(fmt.Sprintf("+%d%c%c%c", rec*recordSeconds, talTextSep, talTextSep, talTerminator))
	}
	for _, a := range anns {
		rec := int(a.Onset) / recordSeconds
		if rec < 0 {
			rec = 0
		}
		if rec >= recordCount {
			rec = recordCount - 1
		}
		recTALs[rec] = append(recTALs[rec], formatTAL(a)...)
	}
	annSamples := minAnnSamplesPerRecord
	for _, tal := range recTALs {
		if need := (len(tal) + 1) / 2; need > annSamples {
			annSamples = need
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	if patient == "" {
		patient = "X X X X"
	}
	recording := fmt.Sprintf("Startdate %s X X X", strings.ToUpper(startTime.Format("02-Jan-2006")))

	ns := len(signals) + 1 // plus annotation channel
	headerBytes := headerSize + ns*256

	// Leading 256-byte block.
	writeField(w, "0", 8)
	writeField(w, patient, 80)
	writeField(w, recording, 80)
	writeField(w, startTime.Format("02.01.06"), 8)
	writeField(w, startTime.Format("15.04.05"), 8)
	writeField(w, strconv.Itoa(headerBytes), 8)
	writeField(w, "EDF+C", 44)
	writeField(w, strconv.Itoa(recordCount), 8)
	writeField(w, strconv.Itoa(recordSeconds), 8)
	writeField(w, strconv.Itoa(ns), 4)

	ann := WriterSignal{
		Label:            AnnotationLabel,
		SamplesPerRecord: annSamples,
		PhysicalMin:      -1,
		PhysicalMax:      1,
		DigitalMin:       -32768,
		DigitalMax:       32767,
	}
	all := append(append([]WriterSignal{}, signals...), ann)

	// Column-major signal header table.
	for _, sh := range all {
		writeField(w, sh.Label, labelBytes)
	}
	for _, sh := range all {
		writeField(w, sh.Transducer, 80)
	}
	for _, sh := range all {
		writeField(w, sh.Dimension, 8)
	}
	for _, sh := range all {
		writeField(w, formatRange(sh.PhysicalMin), 8)
	}
	for _, sh := range all {
		writeField(w, formatRange(sh.PhysicalMax), 8)
	}
	for _, sh := range all {
		writeField(w, strconv.Itoa(sh.DigitalMin), 8)
	}
	for _, sh := range all {
		writeField(w, strconv.Itoa(sh.DigitalMax), 8)
	}
	for _, sh := range all {
		writeField(w, sh.Prefilter, 80)
	}
	for _, sh := range all {
		writeField(w, strconv.Itoa(sh.SamplesPerRecord), 8)
	}
	for range all {
		writeField(w, "", 32)
	}

	// Data records.
	sample := make([]byte, 2)
	for rec := 0; rec < recordCount; rec++ {
		for i, sh := range signals {
			scale := (sh.PhysicalMax - sh.PhysicalMin) / float64(sh.DigitalMax-sh.DigitalMin)
			for s := 0; s < sh.SamplesPerRecord; s++ {
				idx := rec*sh.SamplesPerRecord + s
				var v float64
				if idx < len(data[i]) {
					v = data[i][idx]
				} else if len(data[i]) > 0 {
					v = data[i][len(data[i])-1] // edge-replicate the short final record
				}
				dig := int(math.Round((v-sh.PhysicalMin)/scale)) + sh.DigitalMin
				if dig < sh.DigitalMin {
					dig = sh.DigitalMin
				}
				if dig > sh.DigitalMax {
					dig = sh.DigitalMax
				}
				binary.LittleEndian.PutUint16(sample, uint16(int16(dig)))
				if _, err := w.Write(sample); err != nil {
					return err
				}
			}
		}
		buf := make([]byte, annSamples*2)
		copy(buf, recTALs[rec])
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// formatTAL renders one annotation as a TAL block.
func formatTAL(a Annotation) []byte {
	onset := strconv.FormatFloat(a.Onset, 'f', -1, 64)
	if a.Onset >= 0 {
		onset = "+" + onset
	}
	var sb strings.Builder
	sb.WriteString(onset)
	if a.Duration > 0 {
		sb.WriteByte(talDurationSep)
		sb.WriteString(strconv.FormatFloat(a.Duration, 'f', -1, 64))
	}
	sb.WriteByte(talTextSep)
	sb.WriteString(a.Label)
	sb.WriteByte(talTextSep)
	sb.WriteByte(talTerminator)
	return []byte(sb.String())
}

// formatRange renders a physical range bound into the 8-character header
// field, trading decimals for fit.
func formatRange(v float64) string {
	for prec := 6; prec >= 0; prec-- {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if len(s) <= 8 {
			return s
		}
	}
	// Out of fixed-point room; fall back to compact scientific form.
	return strconv.FormatFloat(v, 'g', 2, 64)
}

// writeField writes s space-padded (or truncated) to width bytes.
func writeField(w *bufio.Writer, s string, width int) {
	if len(s) > width {
		s = s[:width]
	}
	w.WriteString(s)
	for i := len(s); i < width; i++ {
		w.WriteByte(' ')
	}
}
