package spectral

import "math"

// Single precision ln(1+x) in the fdlibm formulation, with the thresholds
// used by glibc. The mel band edges depend on the exact float32 result, and
// rounding math.Log1p to float32 gives a different value for some bins.
const (
	ln2Hi = 6.9313812256e-01 // 0x3f317180
	ln2Lo = 9.0580006145e-06 // 0x3717f7d1

	lp1 = 6.6666668653e-01 // 0x3f2aaaab
	lp2 = 4.0000000596e-01 // 0x3ecccccd
	lp3 = 2.8571429849e-01 // 0x3e924925
	lp4 = 2.2222198546e-01 // 0x3e638e29
	lp5 = 1.8183572590e-01 // 0x3e3a3325
	lp6 = 1.5313838422e-01 // 0x3e1cd04f
	lp7 = 1.4798198640e-01 // 0x3e178897
)

// log1pf computes ln(1+x) entirely in float32. Every product that feeds an
// addition is converted explicitly so it is never fused.
func log1pf(x float32) float32 {
	hx := int32(math.Float32bits(x))
	ax := hx & 0x7fffffff

	var f, c float32
	var hu int32
	k := int32(1)

	if hx < 0x3ed413d7 { // 1+x < sqrt(2)
		if ax >= 0x3f800000 { // x <= -1
			if x == -1 {
				return float32(math.Inf(-1))
			}
			return float32(math.NaN())
		}
		if ax < 0x31000000 { // |x| < 2^-29
			if ax < 0x24800000 { // |x| < 2^-54
				return x
			}
			return x - float32(float32(x*x)*0.5)
		}
		if hx > 0 || hx <= -0x416a09e7 { // sqrt(2)/2 <= 1+x < sqrt(2)
			k = 0
			f = x
			hu = 1
		}
	}
	if hx >= 0x7f800000 {
		return x + x
	}

	if k != 0 {
		var u float32
		if hx < 0x5a000000 {
			u = 1 + x
			hu = int32(math.Float32bits(u))
			k = hu>>23 - 127
			// Correction term for the rounding of 1+x.
			if k > 0 {
				c = 1 - (u - x)
			} else {
				c = x - (u - 1)
			}
			c /= u
		} else {
			u = x
			hu = int32(math.Float32bits(u))
			k = hu>>23 - 127
			c = 0
		}
		hu &= 0x007fffff
		if hu < 0x3504f7 { // u < sqrt(2)
			u = math.Float32frombits(uint32(hu) | 0x3f800000)
		} else {
			k++
			u = math.Float32frombits(uint32(hu) | 0x3f000000)
			hu = (0x00800000 - hu) >> 2
		}
		f = u - 1
	}

	fk := float32(k)
	hfsq := float32(float32(0.5*f) * f)
	if hu == 0 { // |f| < 2^-20
		if f == 0 {
			if k == 0 {
				return 0
			}
			c += float32(fk * ln2Lo)
			return float32(fk*ln2Hi) + c
		}
		r := float32(hfsq * (1 - float32(0.66666666666666666*f)))
		if k == 0 {
			return f - r
		}
		return float32(fk*ln2Hi) - ((r - (float32(fk*ln2Lo) + c)) - f)
	}

	s := f / (2 + f)
	z := float32(s * s)
	r := float32(z * (lp1 + float32(z*(lp2+float32(z*(lp3+float32(z*(lp4+float32(z*(lp5+float32(z*(lp6+float32(z*lp7))))))))))))
	if k == 0 {
		return f - (hfsq - float32(s*(hfsq+r)))
	}
	return float32(fk*ln2Hi) - ((hfsq - (float32(s*(hfsq+r)) + (float32(fk*ln2Lo) + c))) - f)
}
