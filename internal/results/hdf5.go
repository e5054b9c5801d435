// Package results reads trial measurements back from the HDF5 timer file PINC
// writes during an mgRun.
package results

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/scigolib/hdf5"

	"github.com/pinc-sim/mgtune/internal/tuner"
	"github.com/pinc-sim/mgtune/pkg/config"
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrRowOutOfRange   = errors.New("row out of range")
)

// loader returns the flattened contents of the named datasets
type loader func(path string, names ...string) (map[string][]float64, error)

// Row is one run's entry in the timer file
type Row struct {
	RunIndex int
	Time     float64
	Cycles   int
}

// HDF5Reader reads (time, cycles) for a run index. The file is reopened on
// every read because PINC rewrites it after each trial.
type HDF5Reader struct {
	path          string
	timeDataset   string
	cyclesDataset string
	columns       int
	valueColumn   int
	load          loader
}

// NewHDF5Reader creates a reader for the timer file at path
func NewHDF5Reader(cfg config.Results, path string) *HDF5Reader {
	columns := cfg.Columns
	if columns <= 0 {
		columns = 1
	}
	return &HDF5Reader{
		path:          path,
		timeDataset:   strings.Trim(cfg.TimeDataset, "/"),
		cyclesDataset: strings.Trim(cfg.CyclesDataset, "/"),
		columns:       columns,
		valueColumn:   cfg.ValueColumn,
		load:          loadHDF5,
	}
}

// Read implements tuner.ResultsReader
func (r *HDF5Reader) Read(ctx context.Context, runIndex int) (tuner.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return tuner.Measurement{}, err
	}
	data, err := r.load(r.path, r.timeDataset, r.cyclesDataset)
	if err != nil {
		return tuner.Measurement{}, r.unavailable(runIndex, err)
	}

	t, err := r.cell(data, r.timeDataset, runIndex)
	if err != nil {
		return tuner.Measurement{}, r.unavailable(runIndex, err)
	}
	c, err := r.cell(data, r.cyclesDataset, runIndex)
	if err != nil {
		return tuner.Measurement{}, r.unavailable(runIndex, err)
	}
	return tuner.Measurement{Time: t, Cycles: int(math.Round(c))}, nil
}

// Rows returns every complete row in the file
func (r *HDF5Reader) Rows() ([]Row, error) {
	data, err := r.load(r.path, r.timeDataset, r.cyclesDataset)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", r.path, err)
	}
	n := min(len(data[r.timeDataset]), len(data[r.cyclesDataset])) / r.columns
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		t, _ := r.cell(data, r.timeDataset, i)
		c, _ := r.cell(data, r.cyclesDataset, i)
		rows = append(rows, Row{RunIndex: i, Time: t, Cycles: int(math.Round(c))})
	}
	return rows, nil
}

func (r *HDF5Reader) cell(data map[string][]float64, name string, row int) (float64, error) {
	values, ok := data[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	idx := row*r.columns + r.valueColumn
	if row < 0 || idx >= len(values) {
		return 0, fmt.Errorf("%w: %s has %d rows, want row %d", ErrRowOutOfRange, name, len(values)/r.columns, row)
	}
	return values[idx], nil
}

func (r *HDF5Reader) unavailable(runIndex int, err error) error {
	return &tuner.ResultsUnavailable{RunIndex: runIndex, Path: r.path, Err: err}
}

// loadHDF5 walks the file and reads every dataset whose name matches
func loadHDF5(path string, names ...string) (map[string][]float64, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.Trim(n, "/")] = true
	}

	out := make(map[string][]float64, len(names))
	var readErr error
	f.Walk(func(p string, obj hdf5.Object) {
		ds, ok := obj.(*hdf5.Dataset)
		if !ok || readErr != nil {
			return
		}
		name := strings.Trim(p, "/")
		if !wanted[name] {
			return
		}
		values, err := ds.Read()
		if err != nil {
			readErr = fmt.Errorf("failed to read dataset %s: %w", name, err)
			return
		}
		out[name] = values
	})
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}
