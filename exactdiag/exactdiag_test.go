package exactdiag

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/bits"
	"math/cmplx"
	"slices"
	"testing"

	"github.com/fumin/tensor"

	"github.com/bartandrews/tenpy/linalg"
)

func TestHamiltonian(t *testing.T) {
	t.Parallel()
	// The transverse field Ising chain of two sites, with the full field
	// on both sites.
	h := isingBond(1, 1, 1)
	got := Hamiltonian([]*tensor.Dense{nil, h}, 2, 2)

	want := [][]complex64{
		{-1, -1, -1, 0},
		{-1, 1, 0, -1},
		{-1, 0, 1, -1},
		{0, -1, -1, -1},
	}
	if !slices.Equal(got.Shape(), []int{4, 4}) {
		t.Fatalf("%#v", got.Shape())
	}
	for ix, v := range got.All() {
		if v != want[ix[0]][ix[1]] {
			t.Fatalf("%#v %v %v", ix, v, want[ix[0]][ix[1]])
		}
	}
}

func TestHamiltonianChain(t *testing.T) {
	t.Parallel()
	const l = 3
	bonds := make([]*tensor.Dense, l)
	for i := 1; i < l; i++ {
		gl, gr := 0.5, 0.5
		if i == 1 {
			gl = 1
		}
		if i == l-1 {
			gr = 1
		}
		bonds[i] = isingBond(1, gl, gr)
	}
	got := Hamiltonian(bonds, l, 2)

	// Compare against the explicit matrix elements of
	// H = -sum(Z_i*Z_{i+1}) - sum(X_i). Site 0 is the most significant
	// bit of a basis state.
	z := func(s, i int) float64 {
		if s>>(l-1-i)&1 == 0 {
			return 1
		}
		return -1
	}
	const dim = 1 << l
	if !slices.Equal(got.Shape(), []int{dim, dim}) {
		t.Fatalf("%#v", got.Shape())
	}
	for r := range dim {
		for c := range dim {
			var want float64
			switch {
			case r == c:
				for i := 0; i < l-1; i++ {
					want -= z(r, i) * z(r, i+1)
				}
			case bits.OnesCount(uint(r^c)) == 1:
				want = -1
			}
			if v := got.At(r, c); dist(v, cf(want)) > 1e-6 {
				t.Fatalf("%d %d %v %f", r, c, v, want)
			}
		}
	}
}

func TestThermalEnergy(t *testing.T) {
	t.Parallel()
	h := Hamiltonian([]*tensor.Dense{nil, isingBond(1, 1, 1)}, 2, 2)

	// The spectrum of the two site chain is {-sqrt(5), -1, 1, sqrt(5)}.
	sqrt5 := math.Sqrt(5)
	lambdas := []float64{-sqrt5, -1, 1, sqrt5}
	for _, beta := range []float64{0, 0.7, 3, 200} {
		t.Run(fmt.Sprintf("%v", beta), func(t *testing.T) {
			t.Parallel()
			var z, e float64
			for _, l := range lambdas {
				w := math.Exp(-beta * (l + sqrt5))
				z += w
				e += l * w
			}
			want := e / z

			got, err := ThermalEnergy(h, beta)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if math.Abs(got-want) > 1e-5 {
				t.Fatalf("%f %f", got, want)
			}
		})
	}
}

// isingBond is the transverse field Ising bond term
// -j*ZZ - gl*XI - gr*IX.
func isingBond(j, gl, gr float64) *tensor.Dense {
	h := linalg.TwoSite(linalg.PauliZ, linalg.PauliZ).Mul(cf(-j))
	linalg.Axpy(h, cf(-gl), linalg.TwoSite(linalg.PauliX, linalg.Eye(2)))
	linalg.Axpy(h, cf(-gr), linalg.TwoSite(linalg.Eye(2), linalg.PauliX))
	return h
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
