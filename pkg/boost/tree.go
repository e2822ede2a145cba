package boost

import (
	"math"
	"sort"
)

// Node is a single tree node. Leaf nodes carry a value; internal nodes
// route on Feature < Threshold. Children are indices into Tree.Nodes so
// the structure round-trips through JSON without pointer surgery.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a regression tree over dense float vectors.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict routes x to a leaf and returns its value. An empty tree
// predicts zero.
func (t *Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeGrower holds the per-tree fitting state. Trees are fit to the
// pseudo-residuals with weighted squared loss; leaf values are then
// replaced by the weighted alpha-quantile of the true residuals, so each
// tree steps toward the target quantile rather than the mean.
type treeGrower struct {
	x        [][]float64
	grad     []float64 // pseudo-residuals the splits are scored on
	resid    []float64 // true residuals the leaf values are fit to
	weight   []float64
	params   Params
	monotone []int
}

type splitCandidate struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (g *treeGrower) grow() Tree {
	all := make([]int, len(g.grad))
	for i := range all {
		all[i] = i
	}
	tree := Tree{}
	g.growNode(&tree, all, 0, math.Inf(-1), math.Inf(1))
	return tree
}

// growNode appends the subtree for the given sample index set and returns
// the new node's index. lo and hi bound the values this subtree may emit;
// monotone splits tighten them for the children.
func (g *treeGrower) growNode(tree *Tree, idx []int, depth int, lo, hi float64) int {
	leafValue := clamp(g.leafValue(idx), lo, hi)

	if depth >= g.params.MaxDepth || len(idx) < 2 {
		return appendLeaf(tree, leafValue)
	}

	best, ok := g.bestSplit(idx, lo, hi)
	if !ok {
		return appendLeaf(tree, leafValue)
	}

	childLo, childHi := lo, hi
	leftLo, leftHi := lo, hi
	rightLo, rightHi := childLo, childHi
	if c := g.constraint(best.feature); c != 0 {
		mid := (clamp(g.leafValue(best.left), lo, hi) + clamp(g.leafValue(best.right), lo, hi)) / 2
		if c > 0 {
			leftHi, rightLo = mid, mid
		} else {
			leftLo, rightHi = mid, mid
		}
	}

	self := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, Node{Feature: best.feature, Threshold: best.threshold})
	left := g.growNode(tree, best.left, depth+1, leftLo, leftHi)
	right := g.growNode(tree, best.right, depth+1, rightLo, rightHi)
	tree.Nodes[self].Left = left
	tree.Nodes[self].Right = right
	return self
}

func appendLeaf(tree *Tree, value float64) int {
	tree.Nodes = append(tree.Nodes, Node{Leaf: true, Value: value})
	return len(tree.Nodes) - 1
}

func (g *treeGrower) constraint(feature int) int {
	if feature < len(g.monotone) {
		return g.monotone[feature]
	}
	return 0
}

// bestSplit scans every feature for the weighted-SSE-reducing split with
// the highest gain. Splits that would violate a monotone constraint, or
// whose children fall under MinChildWeight, are discarded.
func (g *treeGrower) bestSplit(idx []int, lo, hi float64) (splitCandidate, bool) {
	var best splitCandidate
	found := false

	nFeatures := len(g.x[idx[0]])
	order := make([]int, len(idx))

	for f := 0; f < nFeatures; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool {
			return g.x[order[a]][f] < g.x[order[b]][f]
		})

		// Prefix sums over the sorted order let each threshold be
		// scored in O(1).
		sumW, sumWG := 0.0, 0.0
		for _, i := range order {
			sumW += g.weight[i]
			sumWG += g.weight[i] * g.grad[i]
		}

		leftW, leftWG := 0.0, 0.0
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftW += g.weight[i]
			leftWG += g.weight[i] * g.grad[i]

			cur, next := g.x[i][f], g.x[order[pos+1]][f]
			if cur == next {
				continue
			}
			rightW := sumW - leftW
			if leftW < g.params.MinChildWeight || rightW < g.params.MinChildWeight {
				continue
			}

			rightWG := sumWG - leftWG
			gain := leftWG*leftWG/(leftW+g.params.Lambda) +
				rightWG*rightWG/(rightW+g.params.Lambda) -
				sumWG*sumWG/(sumW+g.params.Lambda)
			if found && gain <= best.gain {
				continue
			}
			if gain <= 0 {
				continue
			}

			leftIdx := append([]int(nil), order[:pos+1]...)
			rightIdx := append([]int(nil), order[pos+1:]...)
			if c := g.constraint(f); c != 0 && !g.monotoneOK(c, leftIdx, rightIdx, lo, hi) {
				continue
			}

			best = splitCandidate{
				feature:   f,
				threshold: (cur + next) / 2,
				gain:      gain,
				left:      leftIdx,
				right:     rightIdx,
			}
			found = true
		}
	}
	return best, found
}

func (g *treeGrower) monotoneOK(c int, left, right []int, lo, hi float64) bool {
	lv := clamp(g.leafValue(left), lo, hi)
	rv := clamp(g.leafValue(right), lo, hi)
	if c > 0 {
		return lv <= rv
	}
	return lv >= rv
}

// leafValue is the weighted alpha-quantile of the true residuals, damped
// toward zero by Lambda.
func (g *treeGrower) leafValue(idx []int) float64 {
	values := make([]float64, 0, len(idx))
	weights := make([]float64, 0, len(idx))
	sumW := 0.0
	for _, i := range idx {
		values = append(values, g.resid[i])
		weights = append(weights, g.weight[i])
		sumW += g.weight[i]
	}
	if sumW == 0 {
		return 0
	}
	q := weightedQuantile(values, weights, g.params.Alpha)
	return q * sumW / (sumW + g.params.Lambda)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// weightedQuantile returns the alpha-quantile of values under the given
// weights: the smallest value whose cumulative weight reaches
// alpha * totalWeight.
func weightedQuantile(values, weights []float64, alpha float64) float64 {
	if len(values) == 0 {
		return 0
	}
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return values[order[len(order)/2]]
	}

	cutoff := alpha * total
	cum := 0.0
	for _, i := range order {
		cum += weights[i]
		if cum >= cutoff {
			return values[i]
		}
	}
	return values[order[len(order)-1]]
}
