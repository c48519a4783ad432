// Package purification implements matrix product states of purified mixed states.
//
// A purification doubles every physical site with an auxiliary site, so that
// a mixed state of the physical chain becomes a pure state of the doubled
// chain. Tracing out the auxiliary sites recovers the mixed state. Site
// tensors therefore carry four axes {vL, p, q, vR}, where p is the physical
// and q the auxiliary leg.
//
// References:
//   - Section 7.2 Finite temperature simulations, The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
//   - Matrix product density operators: simulation of finite-temperature and dissipative systems, Verstraete, Garcia-Ripoll, Cirac
package purification

import (
	"fmt"
	"math"
	"slices"

	"github.com/fumin/tensor"
)

const (
	// SiteLeftAxis is the left virtual axis of a site tensor.
	SiteLeftAxis = 0
	// SitePhysAxis is the physical axis of a site tensor.
	SitePhysAxis = 1
	// SiteAuxAxis is the auxiliary axis of a site tensor.
	SiteAuxAxis = 2
	// SiteRightAxis is the right virtual axis of a site tensor.
	SiteRightAxis = 3
)

// Form is the canonical form of a stored site tensor.
type Form int

const (
	// FormNone marks a tensor with no canonical property.
	FormNone Form = iota
	// FormA marks a left-canonical tensor.
	FormA
	// FormB marks a right-canonical tensor.
	FormB
)

// MPS is a finite purification matrix product state.
// The bond weights are stored separately from the site tensors, with bond i
// sitting between sites i-1 and i. The two boundary bonds 0 and Len carry
// the sentinel weight {1}.
type MPS struct {
	sites []*tensor.Dense
	forms []Form
	ss    [][]float64
}

// InfiniteT returns the infinite temperature state of l sites with physical
// dimension d. Every physical site is maximally entangled with its auxiliary
// partner, while the bonds between sites carry no entanglement at all.
func InfiniteT(l, d int) *MPS {
	psi := &MPS{
		sites: make([]*tensor.Dense, l),
		forms: make([]Form, l),
		ss:    make([][]float64, l+1),
	}
	c := complex(float32(1/math.Sqrt(float64(d))), 0)
	for i := range psi.sites {
		b := tensor.Zeros(1, d, d, 1)
		for p := range d {
			b.SetAt([]int{0, p, p, 0}, c)
		}
		psi.sites[i] = b
		psi.forms[i] = FormB
	}
	for i := range psi.ss {
		psi.ss[i] = []float64{1}
	}
	return psi
}

// Len returns the number of sites.
func (psi *MPS) Len() int { return len(psi.sites) }

// Site returns the tensor stored at position i.
func (psi *MPS) Site(i int) *tensor.Dense { return psi.sites[i] }

// Form returns the canonical form of the tensor at position i.
func (psi *MPS) Form(i int) Form { return psi.forms[i] }

// SetSite replaces the tensor at position i.
func (psi *MPS) SetSite(i int, b *tensor.Dense, form Form) {
	if len(b.Shape()) != 4 {
		panic(fmt.Sprintf("%#v", b.Shape()))
	}
	psi.sites[i] = b
	psi.forms[i] = form
}

// BondWeight returns the weights on bond i.
func (psi *MPS) BondWeight(i int) []float64 { return psi.ss[i] }

// SetBondWeight replaces the weights on bond i.
func (psi *MPS) SetBondWeight(i int, s []float64) {
	if i <= 0 || i >= len(psi.sites) {
		panic(fmt.Sprintf("%d %d", i, len(psi.sites)))
	}
	psi.ss[i] = s
}

// Theta returns the two-site wavefunction on bond i with axes
// {vL, p0, q0, p1, q1, vR}. The weights of the bond to the left of the pair
// are raised to the power formL and folded in, so that with right-canonical
// site tensors, formL=1 gives the wavefunction itself and formL=0 the bare
// product of the two stored tensors.
func (psi *MPS) Theta(out *tensor.Dense, i int, formL float64, bufs [2]*tensor.Dense) *tensor.Dense {
	if i < 1 || i >= len(psi.sites) {
		panic(fmt.Sprintf("%d %d", i, len(psi.sites)))
	}
	b0, b1 := psi.sites[i-1], psi.sites[i]

	if formL == 0 {
		return tensor.Product(out, b0, b1, [][2]int{{SiteRightAxis, SiteLeftAxis}})
	}
	w := diag(bufs[0], psi.ss[i-1], formL)
	wb := tensor.Product(bufs[1], w, b0, [][2]int{{1, SiteLeftAxis}})
	return tensor.Product(out, wb, b1, [][2]int{{SiteRightAxis, SiteLeftAxis}})
}

// InnerProduct computes the inner product between x and y.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y *MPS, bufs [2]*tensor.Dense) complex64 {
	if x.Len() != y.Len() {
		panic(fmt.Sprintf("%d %d", x.Len(), y.Len()))
	}

	f := ones(bufs[0], 1, 1)
	const fTopAxis, fBottomAxis = 0, 1
	for i, xi := range x.sites {
		yi := y.sites[i]

		fyi := tensor.Product(bufs[1], f, yi, [][2]int{{fBottomAxis, SiteLeftAxis}})
		tensor.Product(f, xi.Conj(), fyi, [][2]int{{SiteLeftAxis, fTopAxis}, {SitePhysAxis, 1}, {SiteAuxAxis, 2}})
	}

	if !slices.Equal(f.Shape(), []int{1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0)
}

// EntanglementEntropy returns the von Neumann entanglement entropy at every
// bond between sites, computed from the bond weights.
func (psi *MPS) EntanglementEntropy() []float64 {
	es := make([]float64, 0, len(psi.sites)-1)
	for i := 1; i < len(psi.sites); i++ {
		var e float64
		for _, v := range psi.ss[i] {
			p := v * v
			if p > 0 {
				e -= p * math.Log(p)
			}
		}
		es = append(es, e)
	}
	return es
}

// diag writes diag(s^pow) into out.
func diag(out *tensor.Dense, s []float64, pow float64) *tensor.Dense {
	out.Reset(len(s), len(s))
	for i, v := range s {
		out.SetAt([]int{i, i}, complex(float32(math.Pow(v, pow)), 0))
	}
	return out
}

func ones(t *tensor.Dense, shape ...int) *tensor.Dense {
	t.Reset(shape...)
	for ijk := range t.All() {
		t.SetAt(ijk, 1)
	}
	return t
}
