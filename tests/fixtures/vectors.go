package fixtures

// GenerateTestVector creates a deterministic vector of the specified
// dimension. The seed shifts every component so different seeds produce
// different but reproducible vectors.
func GenerateTestVector(dimension int, seed float32) []float32 {
	vector := make([]float32, dimension)
	for i := range vector {
		vector[i] = seed + float32(i%10)*0.01
	}
	return vector
}

// SimilarVector derives a vector from base that retains the given ratio of
// the original signal. A retention close to 1.0 stays near the base, close
// to 0.0 drifts away from it.
func SimilarVector(base []float32, retentionRatio float32) []float32 {
	result := make([]float32, len(base))
	perturbation := 1.0 - retentionRatio
	for i := range base {
		noise := perturbation * float32(i%10) * 0.01
		result[i] = base[i]*retentionRatio + noise
	}
	return result
}
