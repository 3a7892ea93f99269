package geo

import "math"

// Israeli Transverse Mercator (ITM) grid on the GRS80 ellipsoid.
const (
	itmLat0      = 31.7343936111111
	itmLon0      = 35.2045169444444
	itmScale     = 1.0000067
	itmFalseEast = 219529.584
	itmFalseNrth = 626907.39

	grs80A = 6378137.0
	grs80F = 1 / 298.257222101
)

// ITMToWGS84 converts ITM easting/northing in metres to latitude and longitude in degrees.
// The grid is defined without a datum shift, so GRS80 geodetic coordinates are used as WGS84.
func ITMToWGS84(x, y float64) (lat, lon float64) {
	e2 := grs80F * (2 - grs80F)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	lat0 := itmLat0 * math.Pi / 180
	lon0 := itmLon0 * math.Pi / 180

	m := meridianArc(lat0, e2, e4, e6) + (y-itmFalseNrth)/itmScale
	mu := m / (grs80A * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1, cos1, tan1 := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	den := 1 - e2*sin1*sin1
	n1 := grs80A / math.Sqrt(den)
	r1 := grs80A * (1 - e2) / math.Pow(den, 1.5)
	d := (x - itmFalseEast) / (n1 * itmScale)

	phi := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lambda := lon0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cos1

	return phi * 180 / math.Pi, lambda * 180 / math.Pi
}

func meridianArc(phi, e2, e4, e6 float64) float64 {
	return grs80A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}
