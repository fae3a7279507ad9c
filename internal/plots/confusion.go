package plots

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strconv"

	"honey-grader/internal/ml"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// cmGrid exposes a confusion matrix as a heat map grid. Column c is the
// predicted class c; row r is drawn bottom up, so the first true class ends
// up at the top like a printed matrix.
type cmGrid struct {
	cm ml.ConfusionMatrix
}

func (g cmGrid) Dims() (c, r int) { return len(g.cm), len(g.cm) }
func (g cmGrid) X(c int) float64 { return float64(c) }
func (g cmGrid) Y(r int) float64 { return float64(r) }
func (g cmGrid) Z(c, r int) float64 { return float64(g.cm[len(g.cm)-1-r][c]) }

// blues runs from near white to dark blue.
type blues struct{ n int }

func (b blues) Colors() []color.Color {
	out := make([]color.Color, b.n)
	for i := range out {
		f := float64(i) / float64(max(b.n-1, 1))
		out[i] = color.RGBA{
			R: uint8(247 - f*(247-8)),
			G: uint8(251 - f*(251-48)),
			B: uint8(255 - f*(255-107)),
			A: 255,
		}
	}
	return out
}

var _ palette.Palette = blues{}

// ConfusionHeatmap draws the matrix with every cell annotated by its count.
// classNames[i] labels code i on both axes.
func ConfusionHeatmap(cm ml.ConfusionMatrix, classNames []string, dir string) (string, error) {
	k := len(cm)
	if k == 0 || len(classNames) != k {
		return "", fmt.Errorf("confusion heatmap: %d class names for a %dx%d matrix", len(classNames), k, k)
	}

	grid := cmGrid{cm: cm}
	hm := plotter.NewHeatMap(grid, blues{n: 64})
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}

	var (
		xys    plotter.XYs
		labels []string
	)
	for r := 0; r < k; r++ {
		for c := 0; c < k; c++ {
			xys = append(xys, plotter.XY{X: float64(c), Y: float64(r)})
			labels = append(labels, strconv.Itoa(int(grid.Z(c, r))))
		}
	}
	annot, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return "", fmt.Errorf("confusion heatmap labels: %w", err)
	}
	for i := range annot.TextStyle {
		annot.TextStyle[i].XAlign = draw.XCenter
		annot.TextStyle[i].YAlign = draw.YCenter
		if z := grid.Z(int(xys[i].X), int(xys[i].Y)); z > (hm.Min+hm.Max)/2 {
			annot.TextStyle[i].Color = color.White
		}
	}

	xTicks := make([]plot.Tick, k)
	yTicks := make([]plot.Tick, k)
	for i, name := range classNames {
		xTicks[i] = plot.Tick{Value: float64(i), Label: name}
		yTicks[i] = plot.Tick{Value: float64(k - 1 - i), Label: name}
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted Label"
	p.Y.Label.Text = "True Label"
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)
	p.Add(hm, annot)
	p.X.Min, p.X.Max = -0.5, float64(k)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(k)-0.5

	path := filepath.Join(dir, ConfusionMatrixFile)
	if err := saveGrid([][]*plot.Plot{{p}}, 6*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", err
	}
	log.Info().Str("file", path).Int("classes", k).Msg("Confusion matrix saved")
	return path, nil
}
