// Package match implements candidate blocking and the two-tier matcher:
// exact alias lookup first, fuzzy comparison within a blocking key second.
package match

// KeyGenerator derives the coarse blocking key that bounds which records are
// ever fuzzy-compared. Records missing last name or ZIP fall into the
// unblocked bucket and are eligible for alias lookup only.
type KeyGenerator struct {
	LastNameWidth int
	ZipWidth      int
}

// NewKeyGenerator returns the default widths: five characters of last name,
// three digits of ZIP.
func NewKeyGenerator() KeyGenerator {
	return KeyGenerator{LastNameWidth: 5, ZipWidth: 3}
}

// Key builds the blocking key from comparison-form fields. ok is false when
// last name or ZIP is missing; such records are never pairwise compared.
func (g KeyGenerator) Key(last, zip, first string) (key string, ok bool) {
	if last == "" || zip == "" {
		return "", false
	}
	ln := truncate(last, g.LastNameWidth)
	z := truncate(zip, g.ZipWidth)
	fi := truncate(first, 1)
	return ln + "|" + z + "|" + fi, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
