// Package pipeline runs the honey quality training workflow end to end:
// load the sensor table, chart it, encode features, split, fit the decision
// tree, evaluate it on the held-out rows and persist the model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"honey-grader/internal/cfg"
	"honey-grader/internal/dataset"
	"honey-grader/internal/features"
	"honey-grader/internal/metrics"
	"honey-grader/internal/ml"
	"honey-grader/internal/plots"
	"honey-grader/internal/storage"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

const headRows = 5

// Pipeline holds the collaborators of a training run.
type Pipeline struct {
	settings cfg.Settings
	loader   *dataset.Loader
	metrics  *metrics.Metrics
	wrapper  *metrics.MetricsWrapper
	store    *storage.Store
	out      io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutput sends the console report to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithStore records every completed run in s.
func WithStore(s *storage.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithMetrics records into m instead of a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline for settings.
func New(settings cfg.Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		settings: settings,
		loader:   dataset.NewLoader(settings.HTTPTimeout),
		out:      os.Stdout,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	p.wrapper = metrics.NewWrapper(p.metrics)
	return p
}

// Result is what a completed run produced.
type Result struct {
	RunID        string
	Rows         int
	FeatureNames []string
	Mapping      []features.ClassCode
	TrainRows    int
	TestRows     int
	Accuracy     float64
	Confusion    ml.ConfusionMatrix
	Report       *ml.ClassificationReport
	Importances  []float64
	Charts       []string
	ModelPath    string
	EncoderPath  string
}

// Run executes every stage in order. A missing input file fails before any
// chart or artifact is written; charts whose columns are absent are skipped
// with a diagnostic.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	s := p.settings
	started := time.Now()
	res := &Result{ModelPath: s.ModelPath, EncoderPath: s.EncoderPath}

	// 1. Load
	stop := p.wrapper.StageTimer("load")
	table, err := p.loader.Load(ctx, s.DataPath)
	stop()
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			fmt.Fprintf(p.out, "Error: The file '%s' was not found.\n", s.DataPath)
		}
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	res.Rows = table.Len()
	p.metrics.DatasetRows.WithLabelValues("all").Set(float64(table.Len()))

	fmt.Fprintf(p.out, "Successfully loaded '%s'.\n", s.DataPath)
	fmt.Fprintln(p.out, "\nInitial Data Head:")
	if err := table.Head(headRows).Fprint(p.out); err != nil {
		return nil, err
	}
	p.printSummary(table)

	// 2. Exploratory charts
	if !s.SkipPlots {
		if err := os.MkdirAll(s.PlotsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create plots dir: %w", err)
		}
		stop = p.wrapper.StageTimer("charts")
		p.exploratoryCharts(table, res)
		stop()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Encode
	stop = p.wrapper.StageTimer("encode")
	enc, err := features.Encode(table, features.Schema{
		Voltage:    s.Columns.Voltage,
		Adulterant: s.Columns.Adulterant,
		Quality:    s.Columns.Quality,
	})
	stop()
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	res.FeatureNames = enc.FeatureNames
	res.Mapping = enc.Labels.Mapping()

	fmt.Fprintln(p.out, "\n--- Data Pre-processing Complete ---")
	fmt.Fprintf(p.out, "\nUnique Quality Labels Found: %v\n", enc.Labels.Classes)
	pairs := make([]string, len(res.Mapping))
	for i, m := range res.Mapping {
		pairs[i] = fmt.Sprintf("('%s', %d)", m.Class, m.Code)
	}
	fmt.Fprintf(p.out, "Mapping: [%s]\n", strings.Join(pairs, ", "))

	// 4. Split
	stop = p.wrapper.StageTimer("split")
	split, err := dataset.StratifiedSplit(enc.X, enc.Y, s.TestSize, s.Seed)
	stop()
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	res.TrainRows, res.TestRows = len(split.YTrain), len(split.YTest)
	p.metrics.DatasetRows.WithLabelValues("train").Set(float64(res.TrainRows))
	p.metrics.DatasetRows.WithLabelValues("test").Set(float64(res.TestRows))

	fmt.Fprintln(p.out, "\n--- Data Split Complete ---")
	fmt.Fprintf(p.out, "Total samples: %d\n", table.Len())
	fmt.Fprintf(p.out, "Training set size: %d samples\n", res.TrainRows)
	fmt.Fprintf(p.out, "Testing set size: %d samples\n", res.TestRows)

	// 5. Train
	tree := ml.NewDecisionTreeClassifier(
		ml.WithRandomState(s.Seed),
		ml.WithMaxDepth(s.MaxDepth),
		ml.WithCriterion(s.Criterion),
	)
	fmt.Fprintln(p.out, "\n--- Training Decision Tree Classifier ---")
	stop = p.wrapper.StageTimer("fit")
	err = tree.Fit(split.XTrain, split.YTrain)
	stop()
	if err != nil {
		return nil, fmt.Errorf("fit decision tree: %w", err)
	}
	fmt.Fprintln(p.out, "Model training complete.")
	log.Info().Int("depth", tree.Depth()).Int("leaves", tree.LeafCount()).Msg("Decision tree fitted")

	// 6. Evaluate
	stop = p.wrapper.StageTimer("evaluate")
	err = p.evaluate(tree, split, enc, res)
	stop()
	if err != nil {
		return nil, err
	}

	if !s.SkipPlots {
		fmt.Fprintln(p.out, "\n--- Visualizing the Confusion Matrix ---")
		p.chart(res, "confusion matrix", func() (string, error) {
			return plots.ConfusionHeatmap(res.Confusion, enc.Labels.Classes, s.PlotsDir)
		})
	}

	// 7. Persist
	fmt.Fprintln(p.out, "\n--- Saving Model and Label Encoder ---")
	stop = p.wrapper.StageTimer("save")
	err = ml.SaveModel(s.ModelPath, &ml.ModelArtifact{
		Tree:          tree,
		FeatureNames:  enc.FeatureNames,
		VoltageColumn: s.Columns.Voltage,
		Categories:    *enc.Categories,
	})
	if err == nil {
		err = ml.SaveLabelEncoder(s.EncoderPath, enc.Labels)
	}
	stop()
	if err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	// 8. Tree diagram
	if !s.SkipPlots {
		fmt.Fprintln(p.out, "\n--- Visualizing the Decision Tree Structure ---")
		p.chart(res, "decision tree", func() (string, error) {
			_, png, err := plots.TreeDiagram(tree, enc.FeatureNames, enc.Labels.Classes, s.PlotsDir)
			return png, err
		})
	}

	fmt.Fprintf(p.out, "Trained Decision Tree Model saved as '%s'\n", s.ModelPath)
	fmt.Fprintf(p.out, "Label Encoder saved as '%s'\n", s.EncoderPath)

	p.record(tree, res, started)

	fmt.Fprintln(p.out, "\n--- Execution Complete ---")
	return res, nil
}

func (p *Pipeline) evaluate(tree *ml.DecisionTreeClassifier, split *dataset.Split, enc *features.Encoded, res *Result) error {
	fmt.Fprintln(p.out, "\n--- Model Validation ---")

	yPred, err := tree.Predict(split.XTest)
	if err != nil {
		return fmt.Errorf("predict test set: %w", err)
	}
	res.Accuracy = ml.Accuracy(split.YTest, yPred)
	fmt.Fprintf(p.out, "Model Accuracy on Test Set: %.2f\n", res.Accuracy)

	k := len(enc.Labels.Classes)
	res.Confusion, err = ml.NewConfusionMatrix(split.YTest, yPred, k)
	if err != nil {
		return err
	}
	res.Report, err = ml.NewClassificationReport(res.Confusion, enc.Labels.Classes)
	if err != nil {
		return err
	}
	fmt.Fprintln(p.out, "\nClassification Report (Test Set):")
	fmt.Fprintln(p.out, res.Report.String())

	data := make([]float64, 0, k*k)
	for _, row := range res.Confusion {
		for _, v := range row {
			data = append(data, float64(v))
		}
	}
	fmt.Fprintf(p.out, "Confusion Matrix (rows: true, columns: predicted; order %v):\n", enc.Labels.Classes)
	fmt.Fprintf(p.out, "%v\n", mat.Formatted(mat.NewDense(k, k, data), mat.Squeeze()))

	res.Importances, err = tree.FeatureImportances()
	if err != nil {
		return err
	}
	fmt.Fprintln(p.out, "\nFeature Importances:")
	for i, name := range enc.FeatureNames {
		fmt.Fprintf(p.out, "  %-*s %.4f\n", longest(enc.FeatureNames), name, res.Importances[i])
	}

	log.Info().
		Float64("accuracy", res.Accuracy).
		Float64("macro_f1", res.Report.MacroAvg.F1).
		Int("test_rows", len(yPred)).
		Msg("Model evaluated")
	return nil
}

func (p *Pipeline) exploratoryCharts(table *dataset.Table, res *Result) {
	s := p.settings
	cols := plots.Columns{
		Voltage:       s.Columns.Voltage,
		Adulterant:    s.Columns.Adulterant,
		Concentration: s.Columns.Concentration,
		Quality:       s.Columns.Quality,
	}

	fmt.Fprintln(p.out, "\n--- Visualizing Voltage Patterns for Each Adulterant Type (by Concentration) ---")
	p.chart(res, "voltage patterns", func() (string, error) {
		return plots.VoltagePatterns(table, cols, s.PlotsDir)
	})

	fmt.Fprintln(p.out, "\n--- Visualizing Voltage Distribution by Quality ---")
	p.chart(res, "voltage by quality", func() (string, error) {
		return plots.VoltageByQuality(table, cols, s.QualityOrder, s.PlotsDir)
	})
}

// chart runs one chart renderer. Charts never abort a run: missing columns
// print a diagnostic, other failures are logged.
func (p *Pipeline) chart(res *Result, name string, render func() (string, error)) {
	path, err := render()
	switch {
	case err == nil:
		res.Charts = append(res.Charts, path)
		fmt.Fprintf(p.out, "Chart saved to %s\n", path)
	case errors.Is(err, plots.ErrMissingColumns):
		p.metrics.ChartsSkipped.Inc()
		fmt.Fprintf(p.out, "Error: %v. Skipping %s plot.\n", err, name)
		log.Warn().Err(err).Str("chart", name).Msg("Chart skipped")
	default:
		p.metrics.ChartsSkipped.Inc()
		log.Error().Err(err).Str("chart", name).Msg("Chart failed")
	}
}

func (p *Pipeline) printSummary(table *dataset.Table) {
	c := p.settings.Columns
	summaries, err := dataset.Summarize(table, c.Voltage, c.Quality)
	if err != nil {
		log.Debug().Err(err).Msg("Voltage summary unavailable")
		return
	}
	fmt.Fprintf(p.out, "\n%s by %s:\n", c.Voltage, c.Quality)
	if err := dataset.FprintSummaries(p.out, summaries); err != nil {
		log.Debug().Err(err).Msg("Voltage summary not printed")
	}
}

// record publishes run metrics and history. Failures here are logged and
// do not fail the run, the artifacts are already written.
func (p *Pipeline) record(tree *ml.DecisionTreeClassifier, res *Result, started time.Time) {
	s := p.settings

	p.metrics.Accuracy.Set(res.Accuracy)
	p.metrics.MacroF1.Set(res.Report.MacroAvg.F1)
	for _, c := range res.Report.Classes {
		p.metrics.SetClassScores(c.Name, c.Precision, c.Recall, c.F1)
	}
	p.metrics.TreeDepth.Set(float64(tree.Depth()))
	p.metrics.TreeLeaves.Set(float64(tree.LeafCount()))
	p.metrics.RunsTotal.Inc()

	if p.store != nil {
		classes := make([]string, len(res.Mapping))
		for i, m := range res.Mapping {
			classes[i] = m.Class
		}
		run := &storage.RunRecord{
			StartedAt:    started,
			Duration:     time.Since(started).Seconds(),
			DataPath:     s.DataPath,
			Rows:         res.Rows,
			TrainRows:    res.TrainRows,
			TestRows:     res.TestRows,
			Seed:         s.Seed,
			TestSize:     s.TestSize,
			Criterion:    s.Criterion,
			Accuracy:     res.Accuracy,
			MacroF1:      res.Report.MacroAvg.F1,
			Classes:      classes,
			FeatureNames: res.FeatureNames,
			Confusion:    res.Confusion,
			TreeDepth:    tree.Depth(),
			TreeLeaves:   tree.LeafCount(),
			ModelPath:    s.ModelPath,
			EncoderPath:  s.EncoderPath,
		}
		if err := p.store.SaveRun(run); err != nil {
			log.Error().Err(err).Msg("Failed to record run")
		} else {
			res.RunID = run.ID
			log.Info().Str("run_id", run.ID).Msg("Run recorded")
		}
	}

	if s.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(s.MetricsFile); err != nil {
			log.Error().Err(err).Msg("Failed to write metrics textfile")
		}
	}
}

func longest(names []string) int {
	n := 0
	for _, s := range names {
		n = max(n, len(s))
	}
	return n
}
