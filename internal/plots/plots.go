// Package plots renders the exploratory and evaluation charts of a training
// run as PNG files.
package plots

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"honey-grader/internal/dataset"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrMissingColumns is returned when the table lacks a column a chart needs.
var ErrMissingColumns = dataset.ErrMissingColumns

// File names written into the output directory.
const (
	VoltagePatternsFile  = "voltage_patterns.png"
	VoltageByQualityFile = "voltage_by_quality.png"
	ConfusionMatrixFile  = "confusion_matrix.png"
	TreeDOTFile          = "decision_tree.dot"
	TreePNGFile          = "decision_tree.png"
)

// Columns names the table columns the charts read.
type Columns struct {
	Voltage       string
	Adulterant    string
	Concentration string
	Quality       string
}

var classColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
}

func gridLines(p *plot.Plot) {
	g := plotter.NewGrid()
	g.Vertical.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	g.Horizontal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	g.Vertical.Color = color.Gray{Y: 200}
	g.Horizontal.Color = color.Gray{Y: 200}
	p.Add(g)
}

// VoltagePatterns draws one panel per adulterant type, left to right in
// ascending name order. Each panel plots the mean voltage at every
// concentration, concentrations ascending, as a line with point markers.
func VoltagePatterns(t *dataset.Table, cols Columns, dir string) (string, error) {
	if err := t.Require(cols.Adulterant, cols.Concentration, cols.Voltage); err != nil {
		return "", err
	}
	adulterant, err := t.Strings(cols.Adulterant)
	if err != nil {
		return "", err
	}
	conc, err := t.Floats(cols.Concentration)
	if err != nil {
		return "", err
	}
	voltage, err := t.Floats(cols.Voltage)
	if err != nil {
		return "", err
	}

	byType := make(map[string]map[float64][]float64)
	for i, a := range adulterant {
		if byType[a] == nil {
			byType[a] = make(map[float64][]float64)
		}
		byType[a][conc[i]] = append(byType[a][conc[i]], voltage[i])
	}
	types := make([]string, 0, len(byType))
	for a := range byType {
		types = append(types, a)
	}
	slices.Sort(types)
	if len(types) == 0 {
		return "", fmt.Errorf("voltage patterns: table has no rows")
	}

	panels := make([][]*plot.Plot, 1)
	for i, a := range types {
		levels := make([]float64, 0, len(byType[a]))
		for c := range byType[a] {
			levels = append(levels, c)
		}
		slices.Sort(levels)

		pts := make(plotter.XYs, len(levels))
		ticks := make([]plot.Tick, len(levels))
		for j, c := range levels {
			pts[j] = plotter.XY{X: c, Y: stat.Mean(byType[a][c], nil)}
			ticks[j] = plot.Tick{Value: c, Label: strconv.FormatFloat(c, 'g', -1, 64)}
		}

		p := plot.New()
		p.Title.Text = "Voltage Pattern - " + a + " Adulteration"
		p.X.Label.Text = a + " " + cols.Concentration
		p.Y.Label.Text = "Voltage (mV)"
		p.X.Tick.Marker = plot.ConstantTicks(ticks)
		gridLines(p)

		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return "", fmt.Errorf("voltage patterns %s: %w", a, err)
		}
		c := classColors[i%len(classColors)]
		line.Color = c
		line.Width = vg.Points(1.5)
		points.Color = c
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(3)
		p.Add(line, points)

		panels[0] = append(panels[0], p)
	}

	path := filepath.Join(dir, VoltagePatternsFile)
	width := vg.Length(len(types)) * 6 * vg.Inch
	if err := saveGrid(panels, width, 6*vg.Inch, path); err != nil {
		return "", err
	}
	log.Info().Str("file", path).Strs("adulterants", types).Msg("Voltage patterns saved")
	return path, nil
}

// VoltageByQuality draws a box plot of voltage per quality class. Boxes
// follow order; classes in order with no rows leave an empty slot, and
// classes missing from order are appended in ascending name order.
func VoltageByQuality(t *dataset.Table, cols Columns, order []string, dir string) (string, error) {
	if err := t.Require(cols.Quality, cols.Voltage); err != nil {
		return "", err
	}
	quality, err := t.Strings(cols.Quality)
	if err != nil {
		return "", err
	}
	voltage, err := t.Floats(cols.Voltage)
	if err != nil {
		return "", err
	}

	groups := make(map[string]plotter.Values)
	var extra []string
	for i, q := range quality {
		if _, ok := groups[q]; !ok && !slices.Contains(order, q) && !slices.Contains(extra, q) {
			extra = append(extra, q)
		}
		groups[q] = append(groups[q], voltage[i])
	}
	slices.Sort(extra)
	names := append(slices.Clone(order), extra...)

	p := plot.New()
	p.Title.Text = "Distribution of Sensor Voltage across Honey Quality Categories"
	p.X.Label.Text = "Honey Quality"
	p.Y.Label.Text = "Voltage (mV)"
	grid := plotter.NewGrid()
	grid.Vertical.Width = 0
	grid.Horizontal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	grid.Horizontal.Color = color.Gray{Y: 200}
	p.Add(grid)

	for i, name := range names {
		values := groups[name]
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(40), float64(i), values)
		if err != nil {
			return "", fmt.Errorf("box plot %s: %w", name, err)
		}
		box.FillColor = classColors[i%len(classColors)]
		p.Add(box)
	}
	p.NominalX(names...)

	path := filepath.Join(dir, VoltageByQualityFile)
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	log.Info().Str("file", path).Strs("order", names).Msg("Voltage distribution saved")
	return path, nil
}

// saveGrid lays plots out in rows and columns on one PNG canvas.
func saveGrid(plots [][]*plot.Plot, width, height vg.Length, path string) error {
	img := vgimg.New(width, height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i, p := range plots[j] {
			p.Draw(canvases[j][i])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
