// Package record persists search results, one row per search run, to an
// append-only CSV file and optionally to a sqlite table.
package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/search"
)

// ncols is the number of fixed columns before the solution coordinates.
const ncols = 7

var ErrFormat = errors.New("malformed results file")

// Row is the outcome of one search run.
type Row struct {
	Workers int
	// Elapsed is the wall-clock runtime in seconds.
	Elapsed float64
	Score   float64
	Combo   psosearch.Combination
	Pos     []float64
}

// FromResult builds a row from a finished search.
func FromResult(res search.Result) Row {
	return Row{
		Workers: res.Workers,
		Elapsed: res.Elapsed.Seconds(),
		Score:   res.Best.Val,
		Combo:   res.Best.Combo,
		Pos:     append([]float64{}, res.Best.Pos...),
	}
}

// Duration returns Elapsed as a time.Duration.
func (r Row) Duration() time.Duration {
	return time.Duration(r.Elapsed * float64(time.Second))
}

func Header(ndim int) []string {
	h := []string{"workers", "elapsed", "score", "particles", "inertia", "cognition", "social"}
	for i := 0; i < ndim; i++ {
		h = append(h, fmt.Sprintf("x%v", i+1))
	}
	return h
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func (r Row) fields() []string {
	f := []string{
		strconv.Itoa(r.Workers),
		ftoa(r.Elapsed),
		ftoa(r.Score),
		strconv.Itoa(r.Combo.Particles),
		ftoa(r.Combo.Inertia),
		ftoa(r.Combo.Cognition),
		ftoa(r.Combo.Social),
	}
	for _, x := range r.Pos {
		f = append(f, ftoa(x))
	}
	return f
}

func parseRow(f []string) (Row, error) {
	if len(f) < ncols {
		return Row{}, fmt.Errorf("%w: %v fields", ErrFormat, len(f))
	}

	var r Row
	var err error
	if r.Workers, err = strconv.Atoi(f[0]); err != nil {
		return Row{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if r.Combo.Particles, err = strconv.Atoi(f[3]); err != nil {
		return Row{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	floats := map[int]*float64{1: &r.Elapsed, 2: &r.Score, 4: &r.Combo.Inertia, 5: &r.Combo.Cognition, 6: &r.Combo.Social}
	for idx, dst := range floats {
		if *dst, err = strconv.ParseFloat(f[idx], 64); err != nil {
			return Row{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}

	r.Pos = make([]float64, len(f)-ncols)
	for i := range r.Pos {
		if r.Pos[i], err = strconv.ParseFloat(f[ncols+i], 64); err != nil {
			return Row{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}
	return r, nil
}

// AppendCSV appends rows to the file at path, creating it and its directory
// if needed.  The header is written only when the file is new or empty.  All
// rows must have as many coordinates as the file's header, otherwise ErrDims
// is returned and the file is left untouched.
func AppendCSV(path string, rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}
	ndim := len(rows[0].Pos)
	for _, r := range rows[1:] {
		if len(r.Pos) != ndim {
			return fmt.Errorf("%w: rows have %v and %v coordinates", ErrDims, ndim, len(r.Pos))
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	fresh := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		fresh = false
		have, err := headerDims(path)
		if err != nil {
			return err
		} else if have != ndim {
			return fmt.Errorf("%w: %v has %v coordinates, rows have %v", ErrDims, path, have, ndim)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(Header(ndim)); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := w.Write(r.fields()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// headerDims returns the number of coordinate columns in the header of an
// existing results file.
func headerDims(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return 0, err
	} else if len(header) < ncols || header[0] != "workers" {
		return 0, fmt.Errorf("%w: unexpected header %v", ErrFormat, header)
	}
	return len(header) - ncols, nil
}

// ReadCSV reads every row of a file written by AppendCSV.
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, err
	} else if len(header) < ncols || header[0] != "workers" {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrFormat, header)
	}

	var rows []Row
	for {
		f, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		} else if err != nil {
			return rows, err
		}
		row, err := parseRow(f)
		if err != nil {
			return rows, fmt.Errorf("line %v: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}
}
