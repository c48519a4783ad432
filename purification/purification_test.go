package purification

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"slices"
	"testing"

	"github.com/fumin/tensor"
)

func TestInfiniteT(t *testing.T) {
	t.Parallel()
	const l, d = 3, 2
	psi := InfiniteT(l, d)
	if psi.Len() != l {
		t.Fatalf("%d", psi.Len())
	}
	c := complex(float32(1/math.Sqrt(d)), 0)
	for i := range l {
		b := psi.Site(i)
		if !slices.Equal(b.Shape(), []int{1, d, d, 1}) {
			t.Fatalf("%d %#v", i, b.Shape())
		}
		if psi.Form(i) != FormB {
			t.Fatalf("%d %d", i, psi.Form(i))
		}
		for ix, v := range b.All() {
			var want complex64
			if ix[SitePhysAxis] == ix[SiteAuxAxis] {
				want = c
			}
			if v != want {
				t.Fatalf("%#v %v %v", ix, v, want)
			}
		}
	}
	for i := 0; i <= l; i++ {
		if !slices.Equal(psi.BondWeight(i), []float64{1}) {
			t.Fatalf("%d %#v", i, psi.BondWeight(i))
		}
	}
}

func TestTheta(t *testing.T) {
	t.Parallel()
	// A chain with physical and auxiliary dimension 1, so that theta is
	// determined by the virtual entries and the bond weights alone.
	psi := InfiniteT(3, 1)
	b0 := tensor.Zeros(1, 1, 1, 2)
	b0.SetAt([]int{0, 0, 0, 0}, 1)
	b0.SetAt([]int{0, 0, 0, 1}, 1)
	psi.SetSite(0, b0, FormNone)
	b1 := tensor.Zeros(2, 1, 1, 2)
	b1.SetAt([]int{0, 0, 0, 0}, 1)
	b1.SetAt([]int{0, 0, 0, 1}, 2)
	b1.SetAt([]int{1, 0, 0, 0}, 3)
	b1.SetAt([]int{1, 0, 0, 1}, 4)
	psi.SetSite(1, b1, FormNone)
	b2 := tensor.Zeros(2, 1, 1, 1)
	b2.SetAt([]int{0, 0, 0, 0}, 5)
	b2.SetAt([]int{1, 0, 0, 0}, 7)
	psi.SetSite(2, b2, FormNone)
	psi.SetBondWeight(1, []float64{0.6, 0.8})

	// Contracting over the bond gives {5+2*7, 3*5+4*7} = {19, 43}, scaled
	// by the left weights {0.6, 0.8} raised to formL.
	tests := []struct {
		formL float64
		want  []complex64
	}{
		{formL: 0, want: []complex64{19, 43}},
		{formL: 1, want: []complex64{11.4, 34.4}},
		{formL: 0.5, want: []complex64{cf(math.Sqrt(0.6) * 19), cf(math.Sqrt(0.8) * 43)}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.formL), func(t *testing.T) {
			t.Parallel()
			out := tensor.Zeros(1)
			bufs := [2]*tensor.Dense{tensor.Zeros(1), tensor.Zeros(1)}
			theta := psi.Theta(out, 2, test.formL, bufs)
			if !slices.Equal(theta.Shape(), []int{2, 1, 1, 1, 1, 1}) {
				t.Fatalf("%#v", theta.Shape())
			}
			for k, want := range test.want {
				if got := theta.At(k, 0, 0, 0, 0, 0); dist(got, want) > 1e-5 {
					t.Fatalf("%d %v %v", k, got, want)
				}
			}
		})
	}
}

func TestInnerProduct(t *testing.T) {
	t.Parallel()
	bufs := [2]*tensor.Dense{tensor.Zeros(1), tensor.Zeros(1)}
	x := InfiniteT(3, 2)
	if got := InnerProduct(x, x, bufs); dist(got, 1) > 1e-6 {
		t.Fatalf("%v", got)
	}

	// Scaling the sites scales the inner product.
	y := InfiniteT(3, 2)
	y.Site(1).Mul(2)
	y.Site(2).Mul(3)
	if got := InnerProduct(x, y, bufs); dist(got, 6) > 1e-5 {
		t.Fatalf("%v", got)
	}
}

func TestEntanglementEntropy(t *testing.T) {
	t.Parallel()
	psi := InfiniteT(3, 2)
	psi.SetBondWeight(1, []float64{1 / math.Sqrt2, 1 / math.Sqrt2})
	psi.SetBondWeight(2, []float64{0.6, 0.8})
	es := psi.EntanglementEntropy()
	want := []float64{math.Ln2, 0.6534181947936617}
	if len(es) != len(want) {
		t.Fatalf("%d", len(es))
	}
	for i, e := range es {
		if math.Abs(e-want[i]) > 1e-6 {
			t.Fatalf("%d %f %f", i, e, want[i])
		}
	}

	// Vanishing weights carry no entropy.
	psi.SetBondWeight(2, []float64{1, 0})
	if e := psi.EntanglementEntropy()[1]; e != 0 {
		t.Fatalf("%f", e)
	}
}

func cf(x float64) complex64 {
	return complex(float32(x), 0)
}

func dist(a, b complex64) float64 {
	return cmplx.Abs(complex128(a - b))
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
