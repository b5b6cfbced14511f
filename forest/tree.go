// Package forest implements the bootstrap tree ensemble the pipeline trains
// each iteration: CART trees grown on bootstrap samples, with soft-vote
// aggregation and out-of-bag prediction extraction.
package forest

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a flattened decision tree. Leaf nodes carry Value;
// internal nodes route rows with feature <= Threshold to Left and the rest
// to Right.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Leaf      bool
}

// Tree is a single CART tree stored as a flat node array, so the whole
// ensemble is gob-encodable without pointer chasing.
type Tree struct {
	Nodes []Node
}

// Predict routes one feature row to its leaf value.
func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		if row[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Value
}

// treeBuilder grows one tree under the ensemble's hyperparameter bounds.
type treeBuilder struct {
	x       *mat.Dense
	y       []float64
	mode    Mode
	mtry    int
	minLeaf int
	// maxNodes bounds the total node count; growth is breadth-first so the
	// shallow structure is kept when the cap is reached.
	maxNodes int
	rng      *rand.Rand

	nodes []Node
}

type buildItem struct {
	node int
	idx  []int
}

func (b *treeBuilder) build(idx []int) Tree {
	b.nodes = b.nodes[:0]
	b.nodes = append(b.nodes, Node{})
	queue := []buildItem{{node: 0, idx: idx}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		leafValue := mean(b.y, item.idx)
		if len(item.idx) < 2*b.minLeaf ||
			len(b.nodes)+2 > b.maxNodes ||
			pure(b.y, item.idx) {
			b.nodes[item.node] = Node{Leaf: true, Value: leafValue}
			continue
		}

		feature, threshold, ok := b.bestSplit(item.idx)
		if !ok {
			b.nodes[item.node] = Node{Leaf: true, Value: leafValue}
			continue
		}

		var left, right []int
		for _, i := range item.idx {
			if b.x.At(i, feature) <= threshold {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}

		l := len(b.nodes)
		r := l + 1
		b.nodes = append(b.nodes, Node{}, Node{})
		b.nodes[item.node] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
		queue = append(queue, buildItem{node: l, idx: left}, buildItem{node: r, idx: right})
	}

	out := Tree{Nodes: make([]Node, len(b.nodes))}
	copy(out.Nodes, b.nodes)
	return out
}

// bestSplit scans mtry randomly drawn features for the split minimizing
// weighted child impurity: gini for occurrence trees, variance for cover
// trees.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	_, nFeat := b.x.Dims()
	candidates := b.sampleFeatures(nFeat)

	bestScore := math.Inf(1)
	values := make([]float64, 0, len(idx))
	order := make([]int, len(idx))

	for _, f := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool {
			return b.x.At(order[a], f) < b.x.At(order[c], f)
		})
		values = values[:0]
		for _, i := range order {
			values = append(values, b.x.At(i, f))
		}

		score, thr, found := b.scanFeature(order, values)
		if found && score < bestScore {
			bestScore = score
			feature = f
			threshold = thr
			ok = true
		}
	}
	return feature, threshold, ok
}

// scanFeature sweeps the sorted rows of one feature, maintaining prefix
// statistics of the labels, and returns the best impurity score and the
// midpoint threshold achieving it.
func (b *treeBuilder) scanFeature(order []int, values []float64) (score, threshold float64, ok bool) {
	n := len(order)
	score = math.Inf(1)

	var lSum, lSq, lPos float64
	var rSum, rSq, rPos float64
	for _, i := range order {
		rSum += b.y[i]
		rSq += b.y[i] * b.y[i]
		if b.y[i] == 1 {
			rPos++
		}
	}

	for k := 0; k < n-1; k++ {
		yi := b.y[order[k]]
		lSum += yi
		lSq += yi * yi
		rSum -= yi
		rSq -= yi * yi
		if yi == 1 {
			lPos++
			rPos--
		}

		// Identical adjacent values cannot be separated.
		if values[k] == values[k+1] {
			continue
		}
		nl, nr := k+1, n-k-1
		if nl < b.minLeaf || nr < b.minLeaf {
			continue
		}

		var s float64
		if b.mode == ModeClassification {
			s = giniImpurity(lPos, float64(nl)) + giniImpurity(rPos, float64(nr))
		} else {
			s = sse(lSum, lSq, float64(nl)) + sse(rSum, rSq, float64(nr))
		}
		if s < score {
			score = s
			threshold = (values[k] + values[k+1]) / 2
			ok = true
		}
	}
	return score, threshold, ok
}

// sampleFeatures draws mtry distinct feature indices.
func (b *treeBuilder) sampleFeatures(nFeat int) []int {
	m := b.mtry
	if m <= 0 || m > nFeat {
		m = nFeat
	}
	perm := b.rng.Perm(nFeat)
	return perm[:m]
}

// giniImpurity is the binary gini of a child weighted by its size.
func giniImpurity(pos, n float64) float64 {
	p := pos / n
	return n * 2 * p * (1 - p)
}

// sse is the within-child sum of squared errors from sufficient statistics.
func sse(sum, sq, n float64) float64 {
	return sq - sum*sum/n
}

func mean(y []float64, idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

func pure(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}
