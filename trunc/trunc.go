// Package trunc performs truncated singular value decompositions of two-site
// wavefunctions.
//
// References:
//   - Section 4.5.1 Controlling the truncation error, The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package trunc

import (
	"math"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/bartandrews/tenpy/linalg"
)

// Params control how many singular values a decomposition keeps.
// Zero valued fields impose no constraint beyond the svdFloor cutoff, and at
// least one value is always kept no matter how aggressive the parameters are.
type Params struct {
	// ChiMax is the maximum number of kept singular values.
	ChiMax int `yaml:"chi_max"`
	// SVDMin is the threshold below which singular values are discarded.
	SVDMin float64 `yaml:"svd_min"`
	// TruncCut discards the largest tail of singular values whose cumulative
	// squared weight stays below it.
	TruncCut float64 `yaml:"trunc_cut"`
}

// svdFloor is the fraction of the leading singular value below which the
// remaining values are numerically zero. Such values are always discarded:
// they carry no weight, but once written back to a bond they enlarge every
// later decomposition on it.
const svdFloor = 1e-14

// SVDTheta decomposes a wavefunction reshaped as a matrix into
// u @ diag(s) @ vh, keeping only the singular values allowed by params.
// The kept values are rescaled to unit squared weight, and the scaling factor
// is returned as renormalize together with the squared weight of the
// discarded values as truncErr.
func SVDTheta(theta *tensor.Dense, params Params) (*tensor.Dense, []float64, *tensor.Dense, float64, float64, error) {
	u, s, vh, err := linalg.SVD(theta)
	if err != nil {
		return nil, nil, nil, 0, 0, errors.Wrap(err, "")
	}

	keep := cut(s, params)
	var truncErr float64
	for _, v := range s[keep:] {
		truncErr += v * v
	}
	var kept float64
	for _, v := range s[:keep] {
		kept += v * v
	}
	renormalize := math.Sqrt(kept)
	if renormalize == 0 {
		return nil, nil, nil, 0, 0, errors.Errorf("%v", s)
	}

	sKept := make([]float64, keep)
	for i, v := range s[:keep] {
		sKept[i] = v / renormalize
	}
	shape := theta.Shape()
	uKept := resetCopy(tensor.Zeros(1), u.Slice([][2]int{{0, shape[0]}, {0, keep}}))
	vhKept := resetCopy(tensor.Zeros(1), vh.Slice([][2]int{{0, keep}, {0, shape[1]}}))
	return uKept, sKept, vhKept, truncErr, renormalize, nil
}

// cut returns how many of the descending singular values s survive params.
// The constraints are evaluated independently and the strictest one wins.
func cut(s []float64, params Params) int {
	keep := len(s)
	for keep > 1 && s[keep-1] <= s[0]*svdFloor {
		keep--
	}
	if params.ChiMax > 0 && params.ChiMax < keep {
		keep = params.ChiMax
	}
	if params.SVDMin > 0 {
		for keep > 1 && s[keep-1] < params.SVDMin {
			keep--
		}
	}
	if params.TruncCut > 0 {
		k, discarded := len(s), float64(0)
		for k > 1 && discarded+s[k-1]*s[k-1] < params.TruncCut {
			discarded += s[k-1] * s[k-1]
			k--
		}
		if k < keep {
			keep = k
		}
	}
	return keep
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}
