package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Split holds a train/test partition of encoded rows. TrainIdx and TestIdx
// are row positions in the input and never overlap.
type Split struct {
	XTrain, XTest [][]float64
	YTrain, YTest []int
	TrainIdx      []int
	TestIdx       []int
}

// StratifiedSplit partitions X and y so that each label keeps its share of
// rows in both sides. The test side holds ceil(testSize*n) rows. The same
// inputs and seed always produce the same partition.
func StratifiedSplit(X [][]float64, y []int, testSize float64, seed int64) (*Split, error) {
	n := len(y)
	if len(X) != n {
		return nil, fmt.Errorf("split: X has %d rows, y has %d", len(X), n)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, fmt.Errorf("split: test size must be in (0, 1), got %v", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest

	classes, members := groupByClass(y)
	for _, c := range classes {
		if len(members[c]) < 2 {
			return nil, fmt.Errorf("split: class %d has %d member(s), at least 2 required", c, len(members[c]))
		}
	}
	if nTest < len(classes) || nTrain < len(classes) {
		return nil, fmt.Errorf("split: %d test and %d train rows cannot hold %d classes", nTest, nTrain, len(classes))
	}

	counts := make([]int, len(classes))
	for i, c := range classes {
		counts[i] = len(members[c])
	}
	testCounts := allocate(counts, n, nTest)

	rng := rand.New(rand.NewSource(seed))
	var trainIdx, testIdx []int
	for i, c := range classes {
		idx := append([]int(nil), members[c]...)
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		testIdx = append(testIdx, idx[:testCounts[i]]...)
		trainIdx = append(trainIdx, idx[testCounts[i]:]...)
	}
	rng.Shuffle(len(trainIdx), func(a, b int) { trainIdx[a], trainIdx[b] = trainIdx[b], trainIdx[a] })
	rng.Shuffle(len(testIdx), func(a, b int) { testIdx[a], testIdx[b] = testIdx[b], testIdx[a] })

	s := &Split{TrainIdx: trainIdx, TestIdx: testIdx}
	s.XTrain, s.YTrain = take(X, y, trainIdx)
	s.XTest, s.YTest = take(X, y, testIdx)
	return s, nil
}

// groupByClass returns the distinct labels in ascending order and the row
// positions of each label in input order.
func groupByClass(y []int) ([]int, map[int][]int) {
	members := make(map[int][]int)
	for i, label := range y {
		members[label] = append(members[label], i)
	}
	classes := make([]int, 0, len(members))
	for c := range members {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes, members
}

// allocate distributes total draws over classes proportionally to counts.
// Floors are taken first, then the remaining draws go to the classes with the
// largest fractional parts, lower class position first on ties. No class gets
// more draws than it has members.
func allocate(counts []int, n, total int) []int {
	out := make([]int, len(counts))
	type frac struct {
		pos int
		rem float64
	}
	rems := make([]frac, len(counts))
	assigned := 0
	for i, c := range counts {
		exact := float64(total) * float64(c) / float64(n)
		out[i] = int(math.Floor(exact))
		if out[i] > c-1 {
			out[i] = c - 1
		}
		assigned += out[i]
		rems[i] = frac{pos: i, rem: exact - float64(out[i])}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].rem > rems[b].rem })
	for assigned < total {
		progressed := false
		for _, r := range rems {
			if assigned == total {
				break
			}
			if out[r.pos] < counts[r.pos]-1 {
				out[r.pos]++
				assigned++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

func take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
