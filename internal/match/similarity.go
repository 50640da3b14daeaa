package match

// JaroWinkler computes the Jaro-Winkler similarity between two
// comparison-form strings. The score is symmetric, deterministic and in
// [0,1]. Empty input on either side scores 0, never an error.
func JaroWinkler(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0
	}
	if s1 == s2 {
		return 1
	}

	len1, len2 := len(s1), len(s2)
	matchDistance := max(len1, len2)/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	matched1 := make([]bool, len1)
	matched2 := make([]bool, len2)

	matches := 0
	for i := 0; i < len1; i++ {
		lo := i - matchDistance
		if lo < 0 {
			lo = 0
		}
		hi := i + matchDistance + 1
		if hi > len2 {
			hi = len2
		}
		for j := lo; j < hi; j++ {
			if matched2[j] || s1[i] != s2[j] {
				continue
			}
			matched1[i] = true
			matched2[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !matched1[i] {
			continue
		}
		for !matched2[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len1) + m/float64(len2) + (m-float64(transpositions)/2)/m) / 3

	// Winkler prefix boost, capped at four characters.
	prefix := 0
	for i := 0; i < min(4, min(len1, len2)); i++ {
		if s1[i] != s2[i] {
			break
		}
		prefix++
	}
	return jaro + float64(prefix)*0.1*(1-jaro)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
