package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidCategory is returned when an EF rating outside 0-5 reaches the
// energy estimator. Unrated events must be resolved upstream (see parse.go).
var ErrInvalidCategory = errors.New("intensity category outside 0-5")

// mpsPerMPH converts statute miles per hour to meters per second.
const mpsPerMPH = 0.44704

// efThresholdMPH holds the lower-bound wind speed of each EF rating on the
// operational Enhanced Fujita scale, in mph.
var efThresholdMPH = [6]float64{65, 86, 111, 136, 166, 200}

// topBandOffsetMS is added to the EF5 threshold to obtain a representative
// EF5 wind speed. EF5 has no upper bound; 7.5 m/s is half the speed gap
// between the EF4 and EF5 thresholds, mirroring the midpoint rule used for
// the bounded bands.
const topBandOffsetMS = 7.5

// midpointSpeedMS is the representative wind speed per EF sub-band in m/s:
// the midpoint of the band's threshold speeds, except the unbounded EF5 band
// which uses threshold + topBandOffsetMS.
var midpointSpeedMS = midpointSpeeds()

func midpointSpeeds() [6]float64 {
	var m [6]float64
	for j := 0; j < 5; j++ {
		m[j] = (efThresholdMPH[j] + efThresholdMPH[j+1]) / 2 * mpsPerMPH
	}
	m[5] = efThresholdMPH[5]*mpsPerMPH + topBandOffsetMS
	return m
}

// areaFraction[i][j] is the fraction of an EF-i tornado's damage path that
// experienced winds in EF sub-band j, from the Nuclear Regulatory Commission
// rapid assessment tables (NUREG/CR-4461 lineage). Rows sum to 1 (the EF2
// row sums to 0.999 due to rounding in the published source). Lower ratings
// cannot contain higher-speed sub-bands, hence the right zero padding.
var areaFraction = [6][6]float64{
	{1.000, 0, 0, 0, 0, 0},
	{0.772, 0.228, 0, 0, 0, 0},
	{0.616, 0.268, 0.115, 0, 0, 0},
	{0.529, 0.271, 0.133, 0.067, 0, 0},
	{0.543, 0.238, 0.131, 0.056, 0.032, 0},
	{0.538, 0.223, 0.119, 0.070, 0.033, 0.017},
}

// EnergyDissipation estimates the kinetic energy dissipated over a tornado's
// damage path, in Joules-equivalent (air density folded into the constant as
// 1 kg/m^3):
//
//	E = area * sum_j areaFraction[category][j] * midpointSpeed[j]^3
//
// It is pure and deterministic, monotonic in area for a fixed category, and
// zero only when the area is zero. Category must be 0-5 and area
// non-negative.
func EnergyDissipation(category int, areaM2 float64) (float64, error) {
	if category < 0 || category > 5 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCategory, category)
	}
	if areaM2 < 0 {
		return 0, fmt.Errorf("negative path area: %g", areaM2)
	}

	var perArea float64
	for j := 0; j <= category; j++ {
		v := midpointSpeedMS[j]
		perArea += areaFraction[category][j] * v * v * v
	}
	return areaM2 * perArea, nil
}
