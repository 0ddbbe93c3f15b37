package domain

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/unit"
)

const jdJ2000 = 2451545.0

// Ephemeris supplies the mean longitudes of the moon and the sun, in degrees,
// for a Julian date.
type Ephemeris interface {
	MeanLunarLongitude(jd float64) float64
	MeanSolarLongitude(jd float64) float64
}

// MeanEphemeris evaluates the Meeus polynomial mean longitudes.
type MeanEphemeris struct{}

// MeanLunarLongitude returns the moon's mean longitude s.
func (MeanEphemeris) MeanLunarLongitude(jd float64) float64 {
	c := julianCenturies(jd)
	return fixAngle(218.3164477 + c*(481267.88123421+c*(-0.0015786+c*(1.0/538841.0-c/65194000.0))))
}

// MeanSolarLongitude returns the sun's mean longitude h.
func (MeanEphemeris) MeanSolarLongitude(jd float64) float64 {
	c := julianCenturies(jd)
	return fixAngle(280.46646 + c*(36000.76983+c*0.0003032))
}

// AstronomicalArguments holds the angles, in degrees, that the equilibrium
// arguments and node factors are built from.
type AstronomicalArguments struct {
	JD float64

	T  float64 // Hour angle of the mean sun.
	S  float64 // Mean longitude of the moon.
	H  float64 // Mean longitude of the sun.
	P  float64 // Longitude of lunar perigee.
	P1 float64 // Longitude of solar perigee.
	N  float64 // Longitude of the moon's ascending node.

	I        float64 // Obliquity of the lunar orbit to the equator.
	Xi       float64
	Nu       float64
	NuPrime  float64
	Nu2Prime float64 // 2ν″.
	KappaP   float64 // P = p - ξ.
	R        float64
	Q        float64
}

// JulianDate converts a timestamp to a Julian date.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// ComputeArguments evaluates the astronomical arguments at t. A nil ephemeris
// selects MeanEphemeris.
func ComputeArguments(t time.Time, eph Ephemeris) AstronomicalArguments {
	if eph == nil {
		eph = MeanEphemeris{}
	}
	jd := JulianDate(t)
	c := julianCenturies(jd)

	a := AstronomicalArguments{JD: jd}
	// Julian days start at noon, so the fractional day is the mean solar hour angle.
	a.T = 360.0 * (jd - math.Floor(jd))
	a.S = fixAngle(eph.MeanLunarLongitude(jd))
	a.H = fixAngle(eph.MeanSolarLongitude(jd))
	a.P = fixAngle(83.3532465 + c*(4069.0137287+c*(-0.0103200+c*(-1.0/80053.0+c/18999000.0))))
	a.N = fixAngle(125.0445479 + c*(-1934.1362891+c*(0.0020754+c*(1.0/467441.0-c/60616000.0))))
	cc := c + 1
	a.P1 = fixAngle((1012395.0 + cc*(6189.03+cc*(1.63+cc*0.012))) / 3600.0)

	// Keep N in (-180, 180] so the half-angle tangents stay on one branch.
	n := a.N
	if n > 180 {
		n -= 360
	}
	nRad := Deg2Rad(n)

	iRad := math.Acos(0.9136949 - 0.0356926*math.Cos(nRad))
	half := math.Tan(nRad / 2)
	c3 := 2*math.Atan(1.01883*half) - nRad
	c4 := 2*math.Atan(0.64412*half) - nRad
	xi := -0.5 * (c3 + c4)
	nu := 0.5 * (c3 - c4)

	sin2I := math.Sin(2 * iRad)
	sinI := math.Sin(iRad)
	nuPrime := math.Atan(sin2I * math.Sin(nu) / (sin2I*math.Cos(nu) + 0.3347))
	nu2Prime := math.Atan(sinI * sinI * math.Sin(2*nu) / (sinI*sinI*math.Cos(2*nu) + 0.0727))

	a.I = Rad2Deg(iRad)
	a.Xi = Rad2Deg(xi)
	a.Nu = Rad2Deg(nu)
	a.NuPrime = Rad2Deg(nuPrime)
	a.Nu2Prime = Rad2Deg(nu2Prime)
	a.KappaP = fixAngle(a.P - a.Xi)

	pRad := Deg2Rad(a.KappaP)
	cotHalfI := 1 / math.Tan(iRad/2)
	a.R = Rad2Deg(math.Atan(math.Sin(2*pRad) / (cotHalfI*cotHalfI/6 - math.Cos(2*pRad))))
	// Q follows the quadrant of P.
	a.Q = fixAngle(Rad2Deg(math.Atan2(0.483*math.Sin(pRad), math.Cos(pRad))))

	return a
}

func julianCenturies(jd float64) float64 {
	return (jd - jdJ2000) / 36525.0
}

// fixAngle wraps degrees into [0, 360).
func fixAngle(deg float64) float64 {
	r := unit.PMod(deg, 360)
	if r >= 360 {
		return 0
	}
	return r
}
