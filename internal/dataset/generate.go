package dataset

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SampleOptions shapes a synthetic sensor dataset.
type SampleOptions struct {
	Seed        int64
	Replicates  int     // readings per adulterant and concentration
	BaseVoltage float64 // pure honey reading in mV
	Noise       float64 // standard deviation of sensor noise in mV
	VoltageCol  string
	AdulterCol  string
	ConcCol     string
	QualityCol  string
}

// DefaultSampleOptions matches the column names the training run expects.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{
		Seed:        42,
		Replicates:  5,
		BaseVoltage: 520,
		Noise:       4,
		VoltageCol:  "Voltage_mV",
		AdulterCol:  "Adulterant_Type",
		ConcCol:     "Concentration",
		QualityCol:  "Quality",
	}
}

// adulterant describes how one contaminant pulls the reading down.
type adulterant struct {
	name   string
	levels []float64
	slope  float64 // mV lost per unit of concentration
	medium float64 // concentrations above this are Medium
	poor   float64 // concentrations above this are Poor
}

var adulterants = []adulterant{
	{name: "Water", levels: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}, slope: 100, medium: 0.1, poor: 0.3},
	{name: "Fe3O4", levels: []float64{0.5, 1, 2, 3}, slope: 25, medium: 0.5, poor: 1},
	{name: "Sugar_Syrup", levels: []float64{5, 10, 20, 30}, slope: 1.5, medium: 5, poor: 15},
}

// GenerateSample builds a reproducible table of readings. Voltage falls
// linearly with concentration plus gaussian noise; the grade follows the
// concentration thresholds of each adulterant.
func GenerateSample(opts SampleOptions) (*Table, error) {
	if opts.Replicates <= 0 {
		return nil, fmt.Errorf("replicates must be positive, got %d", opts.Replicates)
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	header := []string{opts.VoltageCol, opts.AdulterCol, opts.ConcCol, opts.QualityCol}
	var rows [][]string
	for rep := 0; rep < opts.Replicates; rep++ {
		for _, a := range adulterants {
			for _, conc := range a.levels {
				v := opts.BaseVoltage - a.slope*conc + rng.NormFloat64()*opts.Noise
				rows = append(rows, []string{
					strconv.FormatFloat(v, 'f', 1, 64),
					a.name,
					strconv.FormatFloat(conc, 'g', -1, 64),
					a.grade(conc),
				})
			}
		}
	}
	return NewTable(header, rows)
}

func (a adulterant) grade(conc float64) string {
	switch {
	case conc > a.poor:
		return "Poor"
	case conc > a.medium:
		return "Medium"
	default:
		return "Good"
	}
}

// WriteFile saves the table as xlsx when path ends in .xlsx, CSV otherwise.
func (t *Table) WriteFile(path string) error {
	if isXLSX(path) {
		return t.writeXLSX(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (t *Table) writeXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	write := func(r int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := write(1, t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := write(i+2, row); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
