package instrument

import "github.com/NotCoffee418/staff_calibration/pkg/types"

// Blocks shorter than this are headers or notes, not level runs.
const minBlockRecords = 8

// Column positions shared by both dialects.
const (
	colReadingA = 0
	colReadingB = 1
	colReadingC = 2
	colCount    = 6
	colStdDev   = 7
	colPin      = 8
)

type dialectLayout struct {
	dialect     types.Dialect
	fieldCount  int
	isSeparator func(line string) bool
}
