package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFitted is returned when a tree is used before Fit.
	ErrNotFitted = errors.New("decision tree not fitted")
	// ErrFeatureMismatch is returned when input columns differ from the
	// columns the tree was fitted on.
	ErrFeatureMismatch = errors.New("feature mismatch")
)

// Values closer than this are treated as equal when placing thresholds.
const featureThreshold = 1e-7

// DecisionTreeClassifier is a CART classifier. With the default options the
// tree grows until every leaf is pure or no split separates its samples.
//
// All fields are exported so the fitted tree can be gob encoded as is.
type DecisionTreeClassifier struct {
	MaxDepth            int     // 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples on each side of a split
	Criterion           string  // "gini" (default) or "entropy"
	MinImpurityDecrease float64 // weighted impurity decrease required to split
	RandomState         int64   // seeds the feature visiting order

	Classes   []int // sorted distinct labels; counts in nodes align with it
	NFeatures int
	Root      *Node
}

// Node is one node of a fitted tree. Leaves have nil children.
type Node struct {
	Feature   int
	Threshold float64 // x[Feature] <= Threshold goes left
	Left      *Node
	Right     *Node
	Samples   int
	Impurity  float64
	Counts    []int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// Majority returns the index into Classes of the most frequent class, the
// lowest index on ties.
func (n *Node) Majority() int {
	best := 0
	for i := 1; i < len(n.Counts); i++ {
		if n.Counts[i] > n.Counts[best] {
			best = i
		}
	}
	return best
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns an unfitted tree. The defaults leave the
// depth unlimited and seed the feature order with 42.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	t := &DecisionTreeClassifier{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Criterion:       "gini",
		RandomState:     42,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Fit grows the tree on X (n x p) and labels y.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return errors.New("dtree: empty X")
	}
	if len(y) != n {
		return fmt.Errorf("dtree: X has %d rows, y has %d", n, len(y))
	}
	p := len(X[0])
	if p == 0 {
		return errors.New("dtree: rows have no features")
	}
	for i := range X {
		if len(X[i]) != p {
			return fmt.Errorf("dtree: row %d has %d features, expected %d", i, len(X[i]), p)
		}
	}
	if t.Criterion != "gini" && t.Criterion != "entropy" {
		return fmt.Errorf("dtree: unknown criterion %q", t.Criterion)
	}

	t.Classes = distinctInts(y)
	t.NFeatures = p

	yIdx := make([]int, n)
	for i, label := range y {
		yIdx[i] = sort.SearchInts(t.Classes, label)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	b := &builder{
		tree: t,
		X:    X,
		y:    yIdx,
		k:    len(t.Classes),
		rnd:  rand.New(rand.NewSource(t.RandomState)),
	}
	if t.Criterion == "entropy" {
		b.impurity = entropyFromCounts
	} else {
		b.impurity = giniFromCounts
	}
	t.Root = b.build(idx, 0)
	return nil
}

// Predict returns the predicted label of every row.
func (t *DecisionTreeClassifier) Predict(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, x := range X {
		leaf, err := t.leaf(x)
		if err != nil {
			return nil, err
		}
		out[i] = t.Classes[leaf.Majority()]
	}
	return out, nil
}

// PredictProba returns per-class probabilities aligned with Classes.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		leaf, err := t.leaf(x)
		if err != nil {
			return nil, err
		}
		out[i] = countsToProbas(leaf.Counts)
	}
	return out, nil
}

func (t *DecisionTreeClassifier) leaf(x []float64) (*Node, error) {
	if t.Root == nil {
		return nil, ErrNotFitted
	}
	if len(x) != t.NFeatures {
		return nil, fmt.Errorf("%w: got %d features, fitted on %d", ErrFeatureMismatch, len(x), t.NFeatures)
	}
	node := t.Root
	for !node.IsLeaf() {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node, nil
}

// Depth returns the length of the longest root-to-leaf path.
func (t *DecisionTreeClassifier) Depth() int {
	var depth func(n *Node) int
	depth = func(n *Node) int {
		if n == nil || n.IsLeaf() {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(t.Root)
}

// LeafCount returns the number of leaves.
func (t *DecisionTreeClassifier) LeafCount() int {
	count := 0
	t.Walk(func(n *Node, _, _ int) {
		if n.IsLeaf() {
			count++
		}
	})
	return count
}

// Walk visits nodes in pre-order. id numbers nodes in visiting order starting
// at 0; depth is 0 at the root.
func (t *DecisionTreeClassifier) Walk(fn func(n *Node, id, depth int)) {
	id := 0
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if n == nil {
			return
		}
		fn(n, id, depth)
		id++
		walk(n.Left, depth+1)
		walk(n.Right, depth+1)
	}
	walk(t.Root, 0)
}

// FeatureImportances returns the normalized total impurity decrease brought
// by each feature.
func (t *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if t.Root == nil {
		return nil, ErrNotFitted
	}
	imp := make([]float64, t.NFeatures)
	t.Walk(func(n *Node, _, _ int) {
		if n.IsLeaf() {
			return
		}
		imp[n.Feature] += float64(n.Samples)*n.Impurity -
			float64(n.Left.Samples)*n.Left.Impurity -
			float64(n.Right.Samples)*n.Right.Impurity
	})
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp, nil
}

// builder holds the state of one Fit call.
type builder struct {
	tree     *DecisionTreeClassifier
	X        [][]float64
	y        []int // class positions, not raw labels
	k        int
	impurity func([]int) float64
	rnd      *rand.Rand
}

type splitResult struct {
	valid     bool
	gain      float64
	threshold float64
	leftIdx   []int
	rightIdx  []int
}

func (b *builder) build(idx []int, depth int) *Node {
	t := b.tree
	counts := make([]int, b.k)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	node := &Node{
		Samples:  len(idx),
		Impurity: b.impurity(counts),
		Counts:   counts,
	}

	if isPure(counts) || len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf {
		return node
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return node
	}

	// Features are visited in a seeded random order; the first feature with
	// the best gain wins, so the order decides ties.
	order := b.rnd.Perm(len(b.X[0]))
	results := make([]splitResult, len(order))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k, f := range order {
		k, f := k, f
		g.Go(func() error {
			results[k] = b.bestSplit(idx, f, node.Impurity)
			return nil
		})
	}
	_ = g.Wait()

	best := -1
	for k, r := range results {
		if r.valid && (best < 0 || r.gain > results[best].gain) {
			best = k
		}
	}
	if best < 0 {
		return node
	}
	weighted := results[best].gain * float64(len(idx)) / float64(len(b.X))
	if weighted+1e-12 < t.MinImpurityDecrease {
		return node
	}

	node.Feature = order[best]
	node.Threshold = results[best].threshold
	node.Left = b.build(results[best].leftIdx, depth+1)
	node.Right = b.build(results[best].rightIdx, depth+1)
	return node
}

// bestSplit scans the sorted values of feature f once, moving samples from
// the right side to the left and scoring every threshold between distinct
// neighbouring values.
func (b *builder) bestSplit(idx []int, f int, parentImpurity float64) splitResult {
	minLeaf := b.tree.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	sorted := append([]int(nil), idx...)
	sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

	n := len(sorted)
	left := make([]int, b.k)
	right := make([]int, b.k)
	for _, i := range sorted {
		right[b.y[i]]++
	}

	var res splitResult
	bestPos := -1
	for s := 1; s < n; s++ {
		moved := b.y[sorted[s-1]]
		left[moved]++
		right[moved]--

		lo, hi := b.X[sorted[s-1]][f], b.X[sorted[s]][f]
		if hi <= lo+featureThreshold {
			continue
		}
		if s < minLeaf || n-s < minLeaf {
			continue
		}

		weighted := (float64(s)*b.impurity(left) + float64(n-s)*b.impurity(right)) / float64(n)
		gain := parentImpurity - weighted
		if bestPos < 0 || gain > res.gain {
			bestPos = s
			res.gain = gain
			res.threshold = lo + (hi-lo)/2
			if res.threshold == hi {
				res.threshold = lo
			}
		}
	}
	if bestPos < 0 {
		return res
	}

	res.valid = true
	res.leftIdx = sorted[:bestPos]
	res.rightIdx = sorted[bestPos:]
	return res
}

func giniFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := float64(c) / n
		res -= p * p
	}
	return res
}

func entropyFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func countsToProbas(counts []int) []float64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i := range counts {
		p[i] = float64(counts[i]) / float64(n)
	}
	return p
}

func distinctInts(y []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
