package tissue

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Fresnel returns the unpolarised reflectance for light going from
// refractive index n1 into n2 with incidence cosine cosI,
// and the cosine of the transmitted angle.
// Beyond the critical angle the reflectance is 1.
func Fresnel(n1, n2, cosI float64) (reflectance, cosT float64) {
	cosI = math.Abs(cosI)
	if n1 == n2 {
		return 0, cosI
	}
	if cosI > 1-1e-12 {
		r := (n1 - n2) / (n1 + n2)
		return r * r, cosI
	}
	if cosI < 1e-6 {
		return 1, 0
	}
	sinI := math.Sqrt(math.FMA(cosI, -cosI, 1.))
	sinT := n1 / n2 * sinI
	if sinT >= 1 {
		return 1, 0
	}
	cosT = math.Sqrt(math.FMA(sinT, -sinT, 1.))

	cAP := cosI*cosT - sinI*sinT // cos(a+b)
	cAM := cosI*cosT + sinI*sinT // cos(a-b)
	sAP := sinI*cosT + cosI*sinT // sin(a+b)
	sAM := sinI*cosT - cosI*sinT // sin(a-b)
	reflectance = 0.5 * sAM * sAM * (cAM*cAM + cAP*cAP) / (sAP * sAP * cAM * cAM)
	return reflectance, cosT
}

// Specular is the normal incidence reflectance between n1 and n2.
func Specular(n1, n2 float64) float64 {
	r := (n1 - n2) / (n1 + n2)
	return r * r
}

// Reflect mirrors d on the plane with normal n.
func Reflect(d, n r3.Vec) r3.Vec {
	return r3.Sub(d, r3.Scale(2*r3.Dot(d, n), n))
}

// Refract bends d crossing from n1 into n2 through the surface with normal n,
// cosT being the transmitted cosine returned by Fresnel.
func Refract(d, n r3.Vec, n1, n2, cosT float64) r3.Vec {
	if n1 == n2 {
		return d
	}
	cosI := r3.Dot(d, n)
	if cosI < 0 {
		n = r3.Scale(-1, n)
		cosI = -cosI
	}
	eta := n1 / n2
	t := r3.Add(r3.Scale(eta, d), r3.Scale(cosT-eta*cosI, n))
	return r3.Unit(t)
}
