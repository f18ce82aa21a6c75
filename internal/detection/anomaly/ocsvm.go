package anomaly

import "math"

// OneClassSVM is a simplified radial outlier model standing in for a
// full kernel-SVM one-class classifier: it fits a per-feature mean and
// the mean/stddev of each training sample's Euclidean distance from that
// mean, then scores new samples by how many standard deviations their
// distance falls from the training mean distance, squashed to (0,1) with
// a logistic function. This is the standard-library-only piece of the
// detector: the example corpus carries no SVM/QP solver, and training a
// true kernel one-class SVM needs one; DESIGN.md records the
// justification. It shares IsolationForest's warming/trained lifecycle
// and fires independently (§4.5b: "both may fire on the same event").
type OneClassSVM struct {
	mean     []float64
	meanDist float64
	stdDist  float64
}

// FitOCSVM trains the centroid-distance model from samples.
func FitOCSVM(samples []Sample) *OneClassSVM {
	mean := make([]float64, numFeatures)
	for _, s := range samples {
		for i, v := range s {
			mean[i] += v
		}
	}
	n := float64(len(samples))
	if n == 0 {
		n = 1
	}
	for i := range mean {
		mean[i] /= n
	}

	dists := make([]float64, len(samples))
	var sumDist float64
	for i, s := range samples {
		d := euclidean(s, mean)
		dists[i] = d
		sumDist += d
	}
	meanDist := sumDist / n

	var sumSq float64
	for _, d := range dists {
		diff := d - meanDist
		sumSq += diff * diff
	}
	std := math.Sqrt(sumSq / n)
	if std == 0 {
		std = 1
	}

	return &OneClassSVM{mean: mean, meanDist: meanDist, stdDist: std}
}

func euclidean(s Sample, mean []float64) float64 {
	var sum float64
	for i, v := range s {
		d := v - mean[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Score returns an anomaly score in (0,1): values near 1 indicate the
// sample's distance from the training centroid is many standard
// deviations beyond the training population's average distance.
func (m *OneClassSVM) Score(sample Sample) float64 {
	d := euclidean(sample, m.mean)
	z := (d - m.meanDist) / m.stdDist
	return 1 / (1 + math.Exp(-z))
}
