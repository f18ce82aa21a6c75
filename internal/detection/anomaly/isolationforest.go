package anomaly

import (
	"math"
	"math/rand"
)

// itreeNode is one node of an isolation tree: internal nodes carry a
// split feature/threshold, leaves carry the subsample size that reached
// them (used by the average-path-length correction c(n)).
type itreeNode struct {
	feature     int
	threshold   float64
	left, right *itreeNode
	size        int
}

// IsolationForest is an ensemble of randomized isolation trees (Liu,
// Ting & Zhou 2008), hand-rolled here since the example corpus carries
// no ML/stats library (gravwell has no detection/scoring subsystem at
// all) — DESIGN.md records this as the justified standard-library-only
// piece of the detection engine.
type IsolationForest struct {
	trees         []*itreeNode
	subsampleSize int
}

const (
	defaultTrees         = 100
	defaultSubsampleSize = 256
)

// Fit builds a forest from samples. Each tree is grown from an
// independently drawn subsample up to the standard heightLimit =
// ceil(log2(subsampleSize)).
func Fit(samples []Sample, rng *rand.Rand) *IsolationForest {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	sub := defaultSubsampleSize
	if len(samples) < sub {
		sub = len(samples)
	}
	if sub < 2 {
		sub = len(samples)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(max(sub, 2)))))

	f := &IsolationForest{subsampleSize: sub}
	for i := 0; i < defaultTrees; i++ {
		subsample := sampleWithoutReplacement(samples, sub, rng)
		f.trees = append(f.trees, buildTree(subsample, 0, heightLimit, rng))
	}
	return f
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func sampleWithoutReplacement(samples []Sample, n int, rng *rand.Rand) []Sample {
	if n >= len(samples) {
		out := make([]Sample, len(samples))
		copy(out, samples)
		return out
	}
	idx := rng.Perm(len(samples))[:n]
	out := make([]Sample, n)
	for i, j := range idx {
		out[i] = samples[j]
	}
	return out
}

func buildTree(samples []Sample, depth, heightLimit int, rng *rand.Rand) *itreeNode {
	if depth >= heightLimit || len(samples) <= 1 {
		return &itreeNode{feature: -1, size: len(samples)}
	}

	feature := rng.Intn(numFeatures)
	lo, hi := minMax(samples, feature)
	if lo == hi {
		return &itreeNode{feature: -1, size: len(samples)}
	}
	threshold := lo + rng.Float64()*(hi-lo)

	var left, right []Sample
	for _, s := range samples {
		if s[feature] < threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &itreeNode{feature: -1, size: len(samples)}
	}

	return &itreeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildTree(left, depth+1, heightLimit, rng),
		right:     buildTree(right, depth+1, heightLimit, rng),
	}
}

func minMax(samples []Sample, feature int) (lo, hi float64) {
	lo, hi = samples[0][feature], samples[0][feature]
	for _, s := range samples[1:] {
		if s[feature] < lo {
			lo = s[feature]
		}
		if s[feature] > hi {
			hi = s[feature]
		}
	}
	return lo, hi
}

// pathLength walks sample down to a leaf, returning depth + the average
// path length correction c(leaf.size) for unbuilt subtrees.
func pathLength(n *itreeNode, sample Sample, depth int) float64 {
	if n.feature == -1 {
		return float64(depth) + cFactor(n.size)
	}
	if sample[n.feature] < n.threshold {
		return pathLength(n.left, sample, depth+1)
	}
	return pathLength(n.right, sample, depth+1)
}

// cFactor is the average path length of an unsuccessful BST search of n
// items, the normalization constant from the isolation-forest paper.
func cFactor(n int) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(float64(n-1))+0.5772156649) - 2*float64(n-1)/float64(n)
}

// isolationScore is the classic isolation-forest anomaly score in [0,1]:
// s(x,n) = 2^(-E(h(x))/c(n)), where values near 1 indicate anomalies and
// values near 0.5 indicate normal points.
func (f *IsolationForest) isolationScore(sample Sample) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += pathLength(t, sample, 0)
	}
	avg := sum / float64(len(f.trees))
	c := cFactor(f.subsampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

// RawDecision returns the isolation forest's sklearn-style decision value
// (positive = normal, negative = anomalous) so AnomalyScore can apply the
// exact §4.5b mapping.
func (f *IsolationForest) RawDecision(sample Sample) float64 {
	return 0.5 - f.isolationScore(sample)
}

// AnomalyScore maps a raw decision value to the 0-1 scale via
// clip(0.5 - raw, 0, 1), per §4.5b. Because raw == 0.5 - isolationScore,
// this recovers isolationScore itself, clipped into [0,1].
func AnomalyScore(raw float64) float64 {
	return clip(0.5-raw, 0, 1)
}
