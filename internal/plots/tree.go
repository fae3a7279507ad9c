package plots

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"honey-grader/internal/ml"

	"github.com/goccy/go-graphviz"
	"github.com/rs/zerolog/log"
)

// TreeDOT renders a fitted tree as Graphviz DOT. Internal nodes show their
// test, every node shows impurity, samples, class counts and the majority
// class; fill colour follows the majority class and darkens with purity.
func TreeDOT(tree *ml.DecisionTreeClassifier, featureNames, classNames []string) (string, error) {
	if tree.Root == nil {
		return "", ml.ErrNotFitted
	}
	if len(featureNames) != tree.NFeatures {
		return "", fmt.Errorf("%w: %d feature names for %d features", ml.ErrFeatureMismatch, len(featureNames), tree.NFeatures)
	}
	for _, c := range tree.Classes {
		if c < 0 || c >= len(classNames) {
			return "", fmt.Errorf("tree class %d has no name in %v", c, classNames)
		}
	}

	var b strings.Builder
	b.WriteString("digraph Tree {\n")
	b.WriteString("node [shape=box, style=\"filled, rounded\", color=\"black\", fontname=\"helvetica\", fontsize=10] ;\n")
	b.WriteString("edge [fontname=\"helvetica\"] ;\n")

	ids := make(map[*ml.Node]int)
	tree.Walk(func(n *ml.Node, id, _ int) {
		ids[n] = id

		var label []string
		if !n.IsLeaf() {
			label = append(label, fmt.Sprintf("%s <= %s", featureNames[n.Feature], formatFloat(n.Threshold)))
		}
		counts := make([]string, len(n.Counts))
		for i, c := range n.Counts {
			counts[i] = strconv.Itoa(c)
		}
		major := n.Majority()
		label = append(label,
			fmt.Sprintf("%s = %s", tree.Criterion, formatFloat(n.Impurity)),
			fmt.Sprintf("samples = %d", n.Samples),
			fmt.Sprintf("value = [%s]", strings.Join(counts, ", ")),
			fmt.Sprintf("class = %s", classNames[tree.Classes[major]]),
		)
		fmt.Fprintf(&b, "%d [label=\"%s\", fillcolor=\"%s\"] ;\n",
			id, escapeDOT(strings.Join(label, "\n")), fillColor(n, tree.Classes[major]))
	})

	tree.Walk(func(n *ml.Node, id, _ int) {
		if n.IsLeaf() {
			return
		}
		left, right := ids[n.Left], ids[n.Right]
		if n == tree.Root {
			fmt.Fprintf(&b, "%d -> %d [labeldistance=2.5, labelangle=45, headlabel=\"True\"] ;\n", id, left)
			fmt.Fprintf(&b, "%d -> %d [labeldistance=2.5, labelangle=-45, headlabel=\"False\"] ;\n", id, right)
			return
		}
		fmt.Fprintf(&b, "%d -> %d ;\n", id, left)
		fmt.Fprintf(&b, "%d -> %d ;\n", id, right)
	})
	b.WriteString("}\n")
	return b.String(), nil
}

// TreeDiagram writes the DOT source and a PNG rendering of the tree into
// dir and returns both paths.
func TreeDiagram(tree *ml.DecisionTreeClassifier, featureNames, classNames []string, dir string) (string, string, error) {
	dot, err := TreeDOT(tree, featureNames, classNames)
	if err != nil {
		return "", "", err
	}

	dotPath := filepath.Join(dir, TreeDOTFile)
	if err := os.WriteFile(dotPath, []byte(dot), 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", dotPath, err)
	}

	g := graphviz.New()
	defer g.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return "", "", fmt.Errorf("parse tree graph: %w", err)
	}
	defer graph.Close()

	pngPath := filepath.Join(dir, TreePNGFile)
	if err := g.RenderFilename(graph, graphviz.PNG, pngPath); err != nil {
		return "", "", fmt.Errorf("render %s: %w", pngPath, err)
	}

	log.Info().
		Str("dot", dotPath).
		Str("png", pngPath).
		Int("depth", tree.Depth()).
		Int("leaves", tree.LeafCount()).
		Msg("Decision tree diagram saved")
	return dotPath, pngPath, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

// fillColor is the class colour with an alpha that grows from 0 for an even
// split to 255 for a pure node.
func fillColor(n *ml.Node, class int) string {
	total, top := 0, 0
	for _, c := range n.Counts {
		total += c
		top = max(top, c)
	}
	alpha := 255
	if k := len(n.Counts); k > 1 && total > 0 {
		p := float64(top) / float64(total)
		even := 1 / float64(k)
		alpha = int(255 * (p - even) / (1 - even))
	}
	r, g, bl, _ := classColors[class%len(classColors)].RGBA()
	return fmt.Sprintf("#%02x%02x%02x%02x", r>>8, g>>8, bl>>8, alpha)
}
