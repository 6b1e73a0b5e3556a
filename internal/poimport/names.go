package poimport

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MatchKind tells how a name matched a candidate.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchSubstring
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchSubstring:
		return "substring"
	default:
		return "none"
	}
}

var (
	legalSuffixPattern = regexp.MustCompile(`\b(inc|ltd|llc|co|company|corp|corporation)\b`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	punctuationToSpace = strings.NewReplacer(".", " ", ",", " ")
)

// NormalizeName folds a vendor name for fuzzy equality: lower case, periods
// and commas to spaces, legal suffix words removed, whitespace collapsed.
func NormalizeName(name string) string {
	s := strings.ToLower(norm.NFKC.String(name))
	s = punctuationToSpace.Replace(s)
	s = legalSuffixPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FindMatch returns the index of the candidate matching name, trying exact
// normalized equality first and substring containment (either direction)
// second. Ties go to the first candidate in slice order.
func FindMatch(name string, candidates []string) (int, MatchKind) {
	normalized := make([]string, len(candidates))
	for i, c := range candidates {
		normalized[i] = NormalizeName(c)
	}
	return matchNormalized(NormalizeName(name), normalized)
}

func matchNormalized(n string, candidates []string) (int, MatchKind) {
	for i, c := range candidates {
		if c == n {
			return i, MatchExact
		}
	}
	if n == "" {
		return -1, MatchNone
	}
	for i, c := range candidates {
		if c == "" {
			continue
		}
		if strings.Contains(n, c) || strings.Contains(c, n) {
			return i, MatchSubstring
		}
	}
	return -1, MatchNone
}

// VendorIndex is the per-batch vendor snapshot with normalized names cached.
// It is owned by a single batch and is not safe for concurrent use.
type VendorIndex struct {
	vendors    []Vendor
	normalized []string
}

// NewVendorIndex builds an index preserving the given order.
func NewVendorIndex(vendors []Vendor) *VendorIndex {
	ix := &VendorIndex{
		vendors:    make([]Vendor, 0, len(vendors)),
		normalized: make([]string, 0, len(vendors)),
	}
	for _, v := range vendors {
		ix.Add(v)
	}
	return ix
}

// Add appends a vendor to the end of the index.
func (ix *VendorIndex) Add(v Vendor) {
	ix.vendors = append(ix.vendors, v)
	ix.normalized = append(ix.normalized, NormalizeName(v.Name))
}

// Len reports the number of indexed vendors.
func (ix *VendorIndex) Len() int {
	return len(ix.vendors)
}

// Match looks name up with the same two tiers as FindMatch.
func (ix *VendorIndex) Match(name string) (Vendor, MatchKind, bool) {
	i, kind := matchNormalized(NormalizeName(name), ix.normalized)
	if kind == MatchNone {
		return Vendor{}, MatchNone, false
	}
	return ix.vendors[i], kind, true
}
