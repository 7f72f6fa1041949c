// Package instrument decodes the text exports of digital levels into
// observation sets.
package instrument

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/sigurn/crc16"
)

var (
	bfodLayout = dialectLayout{
		dialect:    types.DialectBFOD,
		fieldCount: 11,
		isSeparator: func(line string) bool {
			return strings.HasPrefix(line, "|---------|---------|---------|---------|------------")
		},
	}
	dnaLayout = dialectLayout{
		dialect:    types.DialectDNA,
		fieldCount: 10,
		isSeparator: func(line string) bool {
			return strings.HasSuffix(line, "| MS |___DEV__|___________|")
		},
	}
)

// DetectDialect scans the export for a dialect marker.
// "Level Type" ends the scan; "BFOD" is remembered until then.
func DetectDialect(content []byte) (types.Dialect, error) {
	dialect := types.DialectUnknown
	for _, line := range splitLines(content) {
		if strings.Contains(line, "BFOD") {
			dialect = types.DialectBFOD
		} else if strings.Contains(line, "Level Type") {
			dialect = types.DialectDNA
			break
		}
	}
	if dialect == types.DialectUnknown {
		return dialect, types.ErrUnsupportedFormat
	}
	return dialect, nil
}

// ParseFile detects the dialect and decodes every level run of the export.
func ParseFile(content []byte) (*types.ParsedFile, error) {
	dialect, err := DetectDialect(content)
	if err != nil {
		return nil, err
	}
	return ParseDialect(content, dialect)
}

// ParseDialect decodes an export whose dialect is already known.
func ParseDialect(content []byte, dialect types.Dialect) (*types.ParsedFile, error) {
	var layout dialectLayout
	switch dialect {
	case types.DialectBFOD:
		layout = bfodLayout
	case types.DialectDNA:
		layout = dnaLayout
	default:
		return nil, types.ErrUnsupportedFormat
	}

	blocks := splitBlocks(content, layout)

	parsed := &types.ParsedFile{Dialect: dialect}
	for _, b := range blocks {
		if len(b) < minBlockRecords {
			continue
		}
		set := types.ObservationSet{Label: types.SetLabel(len(parsed.Sets) + 1)}
		for _, rec := range b {
			row, ok, err := parseRecord(rec.fields)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", set.Label, rec.line, err)
			}
			if ok {
				set.Rows = append(set.Rows, row)
			}
		}
		parsed.Sets = append(parsed.Sets, set)
	}
	return parsed, nil
}

type record struct {
	line   int
	fields []string
}

// splitBlocks groups records between separator lines.
// A trailing block without a closing separator is kept.
// splitLines has no line length limit.
func splitLines(content []byte) []string {
	return strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
}

func splitBlocks(content []byte, layout dialectLayout) [][]record {
	var blocks [][]record
	var block []record

	lines := splitLines(content)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if layout.isSeparator(line) {
			if len(block) > 0 {
				blocks = append(blocks, block)
				block = nil
			}
			continue
		}
		cols := strings.Split(line, "|")[1:]
		if len(cols) != layout.fieldCount {
			continue
		}
		for j := range cols {
			cols[j] = strings.TrimSpace(cols[j])
		}
		block = append(block, record{line: i + 1, fields: cols})
	}
	if len(block) > 0 {
		blocks = append(blocks, block)
	}
	return blocks
}

// parseRecord takes the first of the three reading columns holding a number.
// Records without any reading are skipped.
func parseRecord(cols []string) (types.ObservationRow, bool, error) {
	var reading float64
	found := false
	for _, c := range []int{colReadingA, colReadingB, colReadingC} {
		if v, ok := parseNumber(cols[c]); ok {
			reading = v
			found = true
			break
		}
	}
	if !found {
		return types.ObservationRow{}, false, nil
	}

	stdDev, ok := parseNumber(cols[colStdDev])
	if !ok {
		return types.ObservationRow{}, false, fmt.Errorf("%w: standard deviation %q", types.ErrMalformedRecord, cols[colStdDev])
	}
	pin := cols[colPin]
	if pin == "" {
		return types.ObservationRow{}, false, fmt.Errorf("%w: missing pin", types.ErrMalformedRecord)
	}

	row := types.ObservationRow{
		Pin:     pin,
		Reading: reading,
		StdDev:  stdDev,
	}
	if n, err := strconv.Atoi(cols[colCount]); err == nil {
		row.ReplicateCount = &n
	}
	return row, true, nil
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseStaffCSV reads staff readings exported as pin,reading,count,stdDev
// with a header line.
func ParseStaffCSV(r io.Reader) (types.ObservationSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	set := types.ObservationSet{Label: types.SetLabel(1)}
	header := true
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return set, fmt.Errorf("%w: %v", types.ErrMalformedRecord, err)
		}
		if header {
			header = false
			continue
		}
		line, _ := reader.FieldPos(0)
		reading, ok := parseNumber(rec[1])
		if !ok {
			return set, fmt.Errorf("line %d: %w: reading %q", line, types.ErrMalformedRecord, rec[1])
		}
		stdDev, ok := parseNumber(rec[3])
		if !ok {
			return set, fmt.Errorf("line %d: %w: standard deviation %q", line, types.ErrMalformedRecord, rec[3])
		}
		row := types.ObservationRow{
			Pin:     strings.TrimSpace(rec[0]),
			Reading: reading,
			StdDev:  stdDev,
		}
		if n, err := strconv.Atoi(strings.TrimSpace(rec[2])); err == nil {
			row.ReplicateCount = &n
		}
		set.Rows = append(set.Rows, row)
	}
	if len(set.Rows) < 2 {
		return set, fmt.Errorf("%w: staff file holds %d readings", types.ErrInsufficientObservations, len(set.Rows))
	}
	return set, nil
}

// ParseStaffReadings accepts either an instrument export, using its first
// level run, or a CSV of staff readings.
func ParseStaffReadings(content []byte) (types.ObservationSet, error) {
	if _, err := DetectDialect(content); err == nil {
		parsed, err := ParseFile(content)
		if err != nil {
			return types.ObservationSet{}, err
		}
		if len(parsed.Sets) == 0 {
			return types.ObservationSet{}, fmt.Errorf("%w: no level run in file", types.ErrInsufficientObservations)
		}
		return parsed.Sets[0], nil
	}
	return ParseStaffCSV(bytes.NewReader(content))
}

// Fingerprint identifies an uploaded file by its CRC16/ARC checksum and size.
func Fingerprint(content []byte) string {
	table := crc16.MakeTable(crc16.CRC16_ARC)
	return fmt.Sprintf("%04X-%d", crc16.Checksum(content, table), len(content))
}
