package ensemble

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// boostNode is one node of a second-order regression tree.
// Left < 0 marks a leaf.
type boostNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
}

// boostTree is a regression tree fitted to gradient statistics of one class.
type boostTree struct {
	Nodes []boostNode
}

func (t *boostTree) predictRow(X mat.Matrix, i int) float64 {
	n := 0
	for t.Nodes[n].Left >= 0 {
		node := &t.Nodes[n]
		if X.At(i, node.Feature) <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.Nodes[n].Value
}

// treeGrower grows a boostTree by exhaustive search over sorted feature
// values, scoring splits with the Newton gain
// 0.5 * (GL²/(HL+λ) + GR²/(HR+λ) - G²/(H+λ)).
type treeGrower struct {
	X              *mat.Dense
	grad           []float64
	hess           []float64
	maxDepth       int
	minSamplesLeaf int
	lambda         float64
	nodes          []boostNode
}

const minGain = 1e-12

func (g *treeGrower) build(rows []int) *boostTree {
	g.nodes = g.nodes[:0]
	g.grow(rows, 0)
	return &boostTree{Nodes: append([]boostNode(nil), g.nodes...)}
}

func (g *treeGrower) grow(rows []int, depth int) int {
	var sumG, sumH float64
	for _, i := range rows {
		sumG += g.grad[i]
		sumH += g.hess[i]
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, boostNode{Feature: -1, Left: -1, Right: -1, Value: g.leafValue(sumG, sumH)})

	if depth >= g.maxDepth || len(rows) < 2*g.minSamplesLeaf {
		return idx
	}

	feature, threshold, gain, ok := g.bestSplit(rows, sumG, sumH)
	if !ok {
		return idx
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, i := range rows {
		if g.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[idx].Feature = feature
	g.nodes[idx].Threshold = threshold
	g.nodes[idx].Gain = gain
	g.nodes[idx].Left = l
	g.nodes[idx].Right = r
	return idx
}

func (g *treeGrower) bestSplit(rows []int, sumG, sumH float64) (feature int, threshold, gain float64, ok bool) {
	_, nFeatures := g.X.Dims()
	parent := sumG * sumG / (sumH + g.lambda)
	sorted := make([]int, len(rows))

	for j := 0; j < nFeatures; j++ {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, b int) bool {
			return g.X.At(sorted[a], j) < g.X.At(sorted[b], j)
		})

		var gl, hl float64
		for k := 0; k < len(sorted)-1; k++ {
			gl += g.grad[sorted[k]]
			hl += g.hess[sorted[k]]
			nLeft := k + 1
			if nLeft < g.minSamplesLeaf || len(sorted)-nLeft < g.minSamplesLeaf {
				continue
			}
			x0, x1 := g.X.At(sorted[k], j), g.X.At(sorted[k+1], j)
			if x0 == x1 {
				continue
			}
			gr, hr := sumG-gl, sumH-hl
			s := 0.5 * (gl*gl/(hl+g.lambda) + gr*gr/(hr+g.lambda) - parent)
			if s > gain+minGain {
				feature, threshold, gain, ok = j, (x0+x1)/2, s, true
			}
		}
	}
	return feature, threshold, gain, ok
}

func (g *treeGrower) leafValue(sumG, sumH float64) float64 {
	return -sumG / (sumH + g.lambda + 1e-16)
}
