package anomaly

import (
	"math"
	"math/rand"
)

const eulerMascheroni = 0.5772156649

// isolationForest is an ensemble of randomized binary trees. Outliers
// separate from the rest of the data in few splits, so short average path
// lengths translate into scores near 1 while dense cluster members settle
// around 0.5 or below.
type isolationForest struct {
	trees       []*isolationNode
	avgPathNorm float64
}

type isolationNode struct {
	left         *isolationNode
	right        *isolationNode
	splitValue   float64
	splitFeature int
	size         int
}

// fitForest trains an ensemble on the feature matrix. The caller owns the
// random source, which makes runs reproducible for a fixed seed.
func fitForest(matrix [][]float64, numTrees, subsample int, rng *rand.Rand) *isolationForest {
	sampleSize := subsample
	if sampleSize > len(matrix) {
		sampleSize = len(matrix)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	forest := &isolationForest{
		trees:       make([]*isolationNode, 0, numTrees),
		avgPathNorm: averagePathLength(sampleSize),
	}
	if forest.avgPathNorm <= 0 {
		forest.avgPathNorm = 1
	}

	for i := 0; i < numTrees; i++ {
		perm := rng.Perm(len(matrix))
		sample := make([][]float64, sampleSize)
		for j := 0; j < sampleSize; j++ {
			sample[j] = matrix[perm[j]]
		}
		forest.trees = append(forest.trees, buildIsolationTree(sample, 0, heightLimit, rng))
	}

	return forest
}

func buildIsolationTree(data [][]float64, depth, heightLimit int, rng *rand.Rand) *isolationNode {
	if len(data) <= 1 || depth >= heightLimit {
		return &isolationNode{size: len(data)}
	}

	feature, lo, hi, ok := pickSplitFeature(data, rng)
	if !ok {
		// Every feature is constant here; the points are indistinguishable.
		return &isolationNode{size: len(data)}
	}

	splitValue := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &isolationNode{
		left:         buildIsolationTree(left, depth+1, heightLimit, rng),
		right:        buildIsolationTree(right, depth+1, heightLimit, rng),
		splitValue:   splitValue,
		splitFeature: feature,
		size:         len(data),
	}
}

// pickSplitFeature chooses uniformly among features that still vary within
// this partition and reports its observed range.
func pickSplitFeature(data [][]float64, rng *rand.Rand) (feature int, lo, hi float64, ok bool) {
	type span struct {
		lo, hi  float64
		feature int
	}
	var candidates []span

	for f := 0; f < len(data[0]); f++ {
		minVal, maxVal := data[0][f], data[0][f]
		for _, row := range data[1:] {
			if row[f] < minVal {
				minVal = row[f]
			}
			if row[f] > maxVal {
				maxVal = row[f]
			}
		}
		if maxVal > minVal {
			candidates = append(candidates, span{lo: minVal, hi: maxVal, feature: f})
		}
	}

	if len(candidates) == 0 {
		return 0, 0, 0, false
	}
	chosen := candidates[rng.Intn(len(candidates))]
	return chosen.feature, chosen.lo, chosen.hi, true
}

// score returns the normalized anomaly score for a single point in [0, 1].
func (f *isolationForest) score(point []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var total float64
	for _, tree := range f.trees {
		total += pathLength(point, tree, 0)
	}
	mean := total / float64(len(f.trees))
	return math.Pow(2, -mean/f.avgPathNorm)
}

func pathLength(point []float64, node *isolationNode, depth int) float64 {
	for node.left != nil {
		if point[node.splitFeature] < node.splitValue {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(node.size)
}

// averagePathLength is the expected depth of an unsuccessful binary search
// tree lookup over n points, used to account for truncated subtrees.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	harmonic := math.Log(float64(n-1)) + eulerMascheroni
	return 2*harmonic - 2*float64(n-1)/float64(n)
}
