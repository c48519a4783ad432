// Package linalg provides complex linear algebra on tensors.
//
// Factorizations are computed with gonum, which handles real matrices only.
// A complex matrix A = X + iY is therefore embedded as the real matrix
//
//	M = [[X, -Y],
//	     [Y,  X]]
//
// whose singular values are those of A, each counted twice. A real pair
// (u, v) of M with M@v = s*u maps back to the complex pair (p + iq, w + ix)
// of A, where u = [p, q] and v = [w, x]. The embedding commutes with
// multiplication by J = [[0, -I], [I, 0]], so every pair of A appears in M
// together with its J-duplicate, and the duplicates are filtered out when
// mapping back.
package linalg

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pauli matrices.
var (
	PauliX = [][]complex64{
		{0, 1},
		{1, 0},
	}
	PauliY = [][]complex64{
		{0, -1i},
		{1i, 0},
	}
	PauliZ = [][]complex64{
		{1, 0},
		{0, -1},
	}
)

// Eye returns the d dimensional identity matrix.
func Eye(d int) [][]complex64 {
	m := make([][]complex64, d)
	for i := range m {
		m[i] = make([]complex64, d)
		m[i][i] = 1
	}
	return m
}

// TwoSite returns the operator a⊗b acting on two neighbouring sites,
// with axes {p0, p1, p0*, p1*}.
func TwoSite(a, b [][]complex64) *tensor.Dense {
	d0, d1 := len(a), len(b)
	t := tensor.Zeros(d0, d1, d0, d1)
	for p0 := range d0 {
		for p1 := range d1 {
			for q0 := range d0 {
				for q1 := range d1 {
					t.SetAt([]int{p0, p1, q0, q1}, a[p0][q0]*b[p1][q1])
				}
			}
		}
	}
	return t
}

// Axpy adds c*src to dst elementwise.
func Axpy(dst *tensor.Dense, c complex64, src *tensor.Dense) {
	if !slices.Equal(dst.Shape(), src.Shape()) {
		panic(fmt.Sprintf("%#v %#v", dst.Shape(), src.Shape()))
	}
	for ijk, v := range src.All() {
		dst.SetAt(ijk, dst.At(ijk...)+c*v)
	}
}

// pairTol separates genuine new pairs from J-duplicates of already selected
// ones, whose residual after projection is zero.
const pairTol = 0.1

// SVD computes the singular value decomposition a = u @ diag(s) @ vh.
// Singular values are returned in descending order.
func SVD(a *tensor.Dense) (*tensor.Dense, []float64, *tensor.Dense, error) {
	shape := a.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("%#v", shape))
	}
	m, n := shape[0], shape[1]

	var svd mat.SVD
	if ok := svd.Factorize(embed(a), mat.SVDThin); !ok {
		return nil, nil, nil, errors.Errorf("factorize %d %d", m, n)
	}
	sv := svd.Values(nil)
	var ue, ve mat.Dense
	svd.UTo(&ue)
	svd.VTo(&ve)

	// Each singular value of a shows up twice, keep one complex pair per
	// doublet. Within a group of equal singular values any real pair maps to
	// a valid complex pair, so it suffices to project out the pairs already
	// kept and normalize. The projection coefficients are shared between u
	// and v because the u's inner products equal those of the v's.
	k := min(m, n)
	us := make([][]complex128, 0, k)
	vs := make([][]complex128, 0, k)
	s := make([]float64, 0, k)
	for i := 0; i < len(sv) && len(s) < k; i++ {
		uc := column(&ue, m, i)
		vc := column(&ve, n, i)
		for j := range vs {
			c := dot(vs[j], vc)
			axpy(vc, -c, vs[j])
			axpy(uc, -c, us[j])
		}
		nv := norm(vc)
		if nv < pairTol {
			continue
		}
		scale(vc, complex(1/nv, 0))
		scale(uc, complex(1/norm(uc), 0))
		us, vs, s = append(us, uc), append(vs, vc), append(s, sv[i])
	}
	if len(s) != k {
		return nil, nil, nil, errors.Errorf("%d pairs out of %d", len(s), k)
	}

	u, vh := tensor.Zeros(m, k), tensor.Zeros(k, n)
	for j := range k {
		for i := range m {
			u.SetAt([]int{i, j}, complex64(us[j][i]))
		}
		for i := range n {
			vh.SetAt([]int{j, i}, complex64(cmplx.Conj(vs[j][i])))
		}
	}
	return u, s, vh, nil
}

const hermTol = 1e-5

// EigHermitian computes the eigendecomposition of a hermitian matrix.
// It returns the eigenvalues in ascending order, together with the matrix
// whose k-th column is the k-th orthonormal eigenvector.
func EigHermitian(a *tensor.Dense) ([]float64, *tensor.Dense, error) {
	shape := a.Shape()
	if len(shape) != 2 || shape[0] != shape[1] {
		panic(fmt.Sprintf("%#v", shape))
	}
	n := shape[0]
	for i := range n {
		for j := range n {
			d := complex128(a.At(i, j)) - cmplx.Conj(complex128(a.At(j, i)))
			if cmplx.Abs(d) > hermTol {
				return nil, nil, errors.Errorf("not hermitian %d %d %v", i, j, d)
			}
		}
	}

	// The embedding of a hermitian matrix is real symmetric.
	e := embed(a)
	sym := mat.NewSymDense(2*n, nil)
	for i := range 2 * n {
		for j := i; j < 2*n; j++ {
			sym.SetSym(i, j, e.At(i, j))
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, errors.Errorf("factorize %d", n)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	lambdas := make([]float64, 0, n)
	vs := make([][]complex128, 0, n)
	for i := 0; i < len(vals) && len(vs) < n; i++ {
		vc := column(&vecs, n, i)
		for j := range vs {
			axpy(vc, -dot(vs[j], vc), vs[j])
		}
		nv := norm(vc)
		if nv < pairTol {
			continue
		}
		scale(vc, complex(1/nv, 0))
		vs, lambdas = append(vs, vc), append(lambdas, vals[i])
	}
	if len(vs) != n {
		return nil, nil, errors.Errorf("%d pairs out of %d", len(vs), n)
	}

	v := tensor.Zeros(n, n)
	for k, vk := range vs {
		for i := range n {
			v.SetAt([]int{i, k}, complex64(vk[i]))
		}
	}
	return lambdas, v, nil
}

// ExpHermitian computes exp(z*a) for a hermitian matrix a.
func ExpHermitian(a *tensor.Dense, z complex128) (*tensor.Dense, error) {
	lambdas, v, err := EigHermitian(a)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	// exp(z*a) = sum_k exp(z*lambda_k) v_k v_k^H.
	n := len(lambdas)
	out := tensor.Zeros(n, n)
	for k, lambda := range lambdas {
		ez := cmplx.Exp(z * complex(lambda, 0))
		for i := range n {
			vi := ez * complex128(v.At(i, k))
			for j := range n {
				x := complex128(out.At(i, j)) + vi*cmplx.Conj(complex128(v.At(j, k)))
				out.SetAt([]int{i, j}, complex64(x))
			}
		}
	}
	return out, nil
}

// embed returns the real embedding [[X, -Y], [Y, X]] of a.
func embed(a *tensor.Dense) *mat.Dense {
	shape := a.Shape()
	m, n := shape[0], shape[1]
	e := mat.NewDense(2*m, 2*n, nil)
	for i := range m {
		for j := range n {
			v := a.At(i, j)
			x, y := float64(real(v)), float64(imag(v))
			e.Set(i, j, x)
			e.Set(i, n+j, -y)
			e.Set(m+i, j, y)
			e.Set(m+i, n+j, x)
		}
	}
	return e
}

// column reads the complex vector of length n embedded in the i-th column.
func column(e *mat.Dense, n, i int) []complex128 {
	v := make([]complex128, n)
	for r := range n {
		v[r] = complex(e.At(r, i), e.At(n+r, i))
	}
	return v
}

func dot(a, b []complex128) complex128 {
	var s complex128
	for i, v := range a {
		s += cmplx.Conj(v) * b[i]
	}
	return s
}

func axpy(dst []complex128, c complex128, src []complex128) {
	for i, v := range src {
		dst[i] += c * v
	}
}

func scale(v []complex128, c complex128) {
	for i := range v {
		v[i] *= c
	}
}

func norm(v []complex128) float64 {
	var s float64
	for _, x := range v {
		s += real(x)*real(x) + imag(x)*imag(x)
	}
	return math.Sqrt(s)
}
