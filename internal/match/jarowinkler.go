package match

// winklerPrefixWeight scales the common-prefix boost; 0.1 is the standard
// Winkler constant, with the prefix capped at 4 characters.
const (
	winklerPrefixWeight = 0.1
	winklerMaxPrefix    = 4
)

// NameSimilarity scores two raw product names in [0,1]. Either name being
// absent or normalizing to empty yields 0. Equal normalized forms
// short-circuit to 1 before the character walk.
func NameSimilarity(a, b string) float64 {
	na := NormalizeName(a)
	nb := NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return jaroWinkler(na, nb)
}

// jaroWinkler boosts the Jaro similarity by the length of the common prefix.
func jaroWinkler(s1, s2 string) float64 {
	j := jaro(s1, s2)
	if j == 0 {
		return 0
	}

	prefix := 0
	for i := 0; i < len(s1) && i < len(s2) && i < winklerMaxPrefix; i++ {
		if s1[i] != s2[i] {
			break
		}
		prefix++
	}

	return j + float64(prefix)*winklerPrefixWeight*(1-j)
}

// jaro computes the Jaro similarity over bytes of the normalized strings.
// Characters match when identical and within a window of
// floor(max(len1,len2)/2)-1 positions; each position is claimed at most once.
func jaro(s1, s2 string) float64 {
	l1 := len(s1)
	l2 := len(s2)
	if l1 == 0 || l2 == 0 {
		return 0
	}

	window := max(l1, l2)/2 - 1
	if window < 0 {
		return 0
	}

	matched1 := make([]bool, l1)
	matched2 := make([]bool, l2)

	matches := 0
	for i := 0; i < l1; i++ {
		lo := max(0, i-window)
		hi := min(l2-1, i+window)
		for j := lo; j <= hi; j++ {
			if !matched2[j] && s1[i] == s2[j] {
				matched1[i] = true
				matched2[j] = true
				matches++
				break
			}
		}
	}

	if matches == 0 {
		return 0
	}

	// Transpositions: walk the matched characters of both strings in original
	// order and count positions where they differ.
	transpositions := 0
	k := 0
	for i := 0; i < l1; i++ {
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
	t := float64(transpositions) / 2
	return (m/float64(l1) + m/float64(l2) + (m-t)/m) / 3
}
