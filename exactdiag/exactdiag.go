// Package exactdiag computes thermal properties of small spin chains by
// exact diagonalization, as an independent check on tensor network results.
package exactdiag

import (
	"fmt"
	"math"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/bartandrews/tenpy/linalg"
)

// Hamiltonian assembles the dense Hamiltonian of a chain of l sites with d
// states per site from its two-site bond terms. hBonds[i] acts on the sites
// of bond i with axes {p0, p1, p0*, p1*}, and entry zero is unused.
func Hamiltonian(hBonds []*tensor.Dense, l, d int) *tensor.Dense {
	if len(hBonds) != l {
		panic(fmt.Sprintf("%d %d", len(hBonds), l))
	}
	dim := pow(d, l)
	h := tensor.Zeros(dim, dim)
	for i := 1; i < l; i++ {
		// Bond i couples sites i-1 and i, acting as the identity on the
		// dl basis states to their left and the dr states to their right.
		dl, dr := pow(d, i-1), pow(d, l-1-i)
		hb := hBonds[i]
		for a := range dl {
			for b := range dr {
				for r := range d * d {
					row := (a*d*d+r)*dr + b
					for c := range d * d {
						v := hb.At(r/d, r%d, c/d, c%d)
						if v == 0 {
							continue
						}
						col := (a*d*d+c)*dr + b
						h.SetAt([]int{row, col}, h.At(row, col)+v)
					}
				}
			}
		}
	}
	return h
}

// ThermalEnergy returns the energy of the Gibbs ensemble of h at inverse
// temperature beta, tr(h exp(-beta*h)) / tr(exp(-beta*h)).
func ThermalEnergy(h *tensor.Dense, beta float64) (float64, error) {
	lambdas, _, err := linalg.EigHermitian(h)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	// Shift by the ground state energy so that no Boltzmann weight
	// overflows. The average is unchanged.
	var z, e float64
	for _, l := range lambdas {
		w := math.Exp(-beta * (l - lambdas[0]))
		z += w
		e += l * w
	}
	return e / z, nil
}

func pow(d, n int) int {
	p := 1
	for range n {
		p *= d
	}
	return p
}
