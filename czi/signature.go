package czi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/btree"
)

// Signature fields, in comparison order.
const (
	sigScene = iota
	sigBlock
	sigView
	sigMosaic
	sigDownscale
	numSigFields
)

var sigLetters = [numSigFields]byte{'S', 'B', 'V', 'M', 'R'}

// Signature identifies the group a sub-block belongs to: the scene, block,
// view and mosaic indices plus the downscale factor. Entries with equal
// signatures share a resolution level of one series.
type Signature [numSigFields]int

// Compare orders signatures field by field. The downscale factor is the
// least significant field, so all levels of a series sort together with
// full resolution first.
func (s Signature) Compare(o Signature) int {
	for i := range s {
		switch {
		case s[i] < o[i]:
			return -1
		case s[i] > o[i]:
			return 1
		}
	}
	return 0
}

// Downscale returns the resolution factor of the signature.
func (s Signature) Downscale() int {
	return s[sigDownscale]
}

// SameSeries reports whether two signatures differ only in downscale.
func (s Signature) SameSeries(o Signature) bool {
	for i := 0; i < sigDownscale; i++ {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	return fmt.Sprintf("S%d B%d V%d M%d R%d", s[sigScene], s[sigBlock], s[sigView], s[sigMosaic], s[sigDownscale])
}

// SignatureLayout holds per-field widths derived from the maxima of a whole
// directory, so padded signatures of one file compare lexically in the same
// order as Compare.
type SignatureLayout struct {
	widths [numSigFields]int
}

func newSignatureLayout(st *dimensionStats) SignatureLayout {
	maxima := [numSigFields]int{
		int(st.maxStart(DimS)),
		int(st.maxStart(DimB)),
		int(st.maxStart(DimV)),
		int(st.maxStart(DimM)),
		st.maxDownscale,
	}
	var l SignatureLayout
	for i, m := range maxima {
		l.widths[i] = len(strconv.Itoa(max(m, 0)))
	}
	return l
}

// Format renders s with every field zero-padded to the layout width.
func (l SignatureLayout) Format(s Signature) string {
	var b strings.Builder
	for i, v := range s {
		b.WriteByte(sigLetters[i])
		digits := strconv.Itoa(v)
		for n := len(digits); n < l.widths[i]; n++ {
			b.WriteByte('0')
		}
		b.WriteString(digits)
	}
	return b.String()
}

// dimensionStats holds the directory-wide maxima gathered before grouping.
type dimensionStats struct {
	maxima       map[string]int32
	maxDownscale int
}

func scanRecords(records []Record) *dimensionStats {
	st := &dimensionStats{maxima: make(map[string]int32), maxDownscale: 1}
	for i := range records {
		for _, d := range records[i].Dimensions {
			if m, ok := st.maxima[d.Dimension]; !ok || d.Start > m {
				st.maxima[d.Dimension] = d.Start
			}
		}
		if f := downscaleOf(records[i].Dimension(DimX)); f > st.maxDownscale {
			st.maxDownscale = f
		}
	}
	return st
}

func (st *dimensionStats) maxStart(dim string) int32 {
	return st.maxima[dim]
}

// count returns the number of positions along dim, at least 1.
func (st *dimensionStats) count(dim string) int {
	m, ok := st.maxima[dim]
	if !ok || m < 0 {
		return 1
	}
	return int(m) + 1
}

// dimensionFolds maps rotation, illumination and phase onto Z, C and T.
type dimensionFolds struct {
	sizeZ, sizeC, sizeT int
}

func (st *dimensionStats) folds() dimensionFolds {
	return dimensionFolds{
		sizeZ: st.count(DimZ),
		sizeC: st.count(DimC),
		sizeT: st.count(DimT),
	}
}

func (f dimensionFolds) key(rec *Record) DimensionKey {
	start := func(dim string) int { return int(rec.Dimension(dim).Start) }
	return DimensionKey{
		C: start(DimI)*f.sizeC + start(DimC),
		Z: start(DimR)*f.sizeZ + start(DimZ),
		T: start(DimH)*f.sizeT + start(DimT),
	}
}

func signatureOf(rec *Record, downscale int, autostitch bool) Signature {
	field := func(dim string) int {
		return max(int(rec.Dimension(dim).Start), 0)
	}
	s := Signature{
		sigScene:     field(DimS),
		sigBlock:     field(DimB),
		sigView:      field(DimV),
		sigMosaic:    field(DimM),
		sigDownscale: downscale,
	}
	if autostitch {
		s[sigMosaic] = 0
	}
	return s
}

type group struct {
	sig     Signature
	entries []*Entry
}

func newGroupTree() *btree.BTreeG[*group] {
	less := func(a, b *group) bool {
		return a.sig.Compare(b.sig) < 0
	}
	return btree.NewBTreeGOptions(less, btree.Options{NoLocks: true})
}

// groupEntries buckets entries by signature and returns the groups in
// signature order.
func groupEntries(entries []*Entry, sigs []Signature) []*group {
	tree := newGroupTree()
	for i, e := range entries {
		g, ok := tree.Get(&group{sig: sigs[i]})
		if !ok {
			g = &group{sig: sigs[i]}
			tree.Set(g)
		}
		g.entries = append(g.entries, e)
	}
	groups := make([]*group, 0, tree.Len())
	tree.Scan(func(g *group) bool {
		groups = append(groups, g)
		return true
	})
	return groups
}

// chainSeries walks groups in signature order. A group opens a new series
// when it is full resolution or belongs to different S/B/V/M indices than
// the current one; otherwise it becomes the next level of that series.
func chainSeries(groups []*group) [][]*group {
	var chains [][]*group
	for _, g := range groups {
		n := len(chains)
		if n == 0 || g.sig.Downscale() == 1 || !chains[n-1][0].sig.SameSeries(g.sig) {
			chains = append(chains, []*group{g})
			continue
		}
		chains[n-1] = append(chains[n-1], g)
	}
	return chains
}
