// Package edf reads and writes EDF and EDF+ recordings.
//
// Two read paths exist on purpose. The strict Reader validates every header
// field and rejects non-compliant files the way mainstream EDF toolkits do;
// the raw helpers and the permissive reader recover whatever they can from
// exactly those files, because clinical exports frequently pad or garble
// header fields without corrupting the sample data.
package edf

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Fixed offsets of the 256-byte leading header block.
const (
	headerSize = 256

	offVersion     = 0   // 8 bytes
	offPatient     = 8   // 80 bytes
	offRecording   = 88  // 80 bytes
	offStartDate   = 168 // 8 bytes, dd.mm.yy
	offStartTime   = 176 // 8 bytes, hh.mm.ss
	offHeaderBytes = 184 // 8 bytes
	offReserved    = 192 // 44 bytes, "EDF+C"/"EDF+D" flag
	offRecordCount = 236 // 8 bytes
	offRecordSecs  = 244 // 8 bytes
	offSignalCount = 252 // 4 bytes

	labelBytes = 16 // per-signal label width in the signal header table
)

// RawHeader holds the leading header block decoded permissively: fields that
// fail to parse are left zero-valued rather than causing an error, since this
// path exists precisely for files the strict reader already rejected.
type RawHeader struct {
	Version       string
	Patient       string
	Recording     string
	StartDate     string // as stored, dd.mm.yy
	StartTime     string // as stored, hh.mm.ss
	HeaderBytes   int
	Reserved      string
	RecordCount   int
	RecordSeconds float64
	SignalCount   int
}

// ReadRawHeader reads the fixed 256-byte leading block of an EDF file and
// decodes its ASCII fields permissively. It fails only when the file cannot
// be read or is shorter than one header block.
func ReadRawHeader(path string) (*RawHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("short header: %w", err)
	}

	h := &RawHeader{
		Version:   asciiField(buf[offVersion : offVersion+8]),
		Patient:   asciiField(buf[offPatient : offPatient+80]),
		Recording: asciiField(buf[offRecording : offRecording+80]),
		StartDate: asciiField(buf[offStartDate : offStartDate+8]),
		StartTime: asciiField(buf[offStartTime : offStartTime+8]),
		Reserved:  asciiField(buf[offReserved : offReserved+44]),
	}
	h.HeaderBytes, _ = strconv.Atoi(asciiField(buf[offHeaderBytes : offHeaderBytes+8]))
	h.RecordCount, _ = strconv.Atoi(asciiField(buf[offRecordCount : offRecordCount+8]))
	h.RecordSeconds, _ = strconv.ParseFloat(asciiField(buf[offRecordSecs:offRecordSecs+8]), 64)
	h.SignalCount, _ = strconv.Atoi(asciiField(buf[offSignalCount : offSignalCount+4]))

	return h, nil
}

// ReadRawLabels reads the 16-byte-per-signal label table that immediately
// follows the leading block. ns is the signal count, typically recovered by
// ReadRawHeader first.
func ReadRawLabels(path string, ns int) ([]string, error) {
	if ns <= 0 {
		return nil, fmt.Errorf("invalid signal count %d", ns)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, ns*labelBytes)
	if _, err := f.ReadAt(buf, headerSize); err != nil {
		return nil, fmt.Errorf("short label table: %w", err)
	}

	labels := make([]string, ns)
	for i := 0; i < ns; i++ {
		labels[i] = asciiField(buf[i*labelBytes : (i+1)*labelBytes])
	}
	return labels, nil
}

// ReadRawStartTime reads the recording start timestamp directly from the
// fixed-offset header fields, independent of whether the structured reader
// can open the file. Two-digit years are taken as 2000s: the recordings this
// fallback exists for are clinical exports, all post-2000.
func ReadRawStartTime(path string) (time.Time, error) {
	h, err := ReadRawHeader(path)
	if err != nil {
		return time.Time{}, err
	}

	day, month, year, err := parseDotTriplet(h.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("start date %q: %w", h.StartDate, err)
	}
	if year < 100 {
		year += 2000
	}

	hour, minute, second, err := parseDotTriplet(h.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("start time %q: %w", h.StartTime, err)
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

// parseDotTriplet parses "a.b.c" into three integers.
func parseDotTriplet(s string) (int, int, int, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("want three dot-separated fields, got %d", len(parts))
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, 0, err
	}
	b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, 0, err
	}
	c, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return 0, 0, 0, err
	}
	return a, b, c, nil
}

// asciiField decodes a fixed-width header field, dropping undecodable bytes
// and trimming the space padding.
func asciiField(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
		}
	}
	return strings.TrimSpace(sb.String())
}
