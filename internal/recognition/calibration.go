package recognition

import (
	"fmt"
	"math"
)

// Logistic calibration defaults.
const (
	CalibrationVersion = "logistic-v1"
	DefaultSlope       = 10.0
	DefaultMidpoint    = 0.65
)

// Calibration maps an L2 distance to a confidence in [0, 100]:
//
//	confidence = 100 / (1 + exp(slope * (distance - midpoint)))
//
// Version tags every score so results produced with different parameters are never mixed.
type Calibration struct {
	Version  string
	Slope    float64
	Midpoint float64
}

// DefaultCalibration returns the tuned logistic-v1 calibration.
func DefaultCalibration() Calibration {
	return Calibration{Version: CalibrationVersion, Slope: DefaultSlope, Midpoint: DefaultMidpoint}
}

// NewCalibration returns a logistic calibration. Non-default parameters get their own
// version tag derived from the base version.
func NewCalibration(version string, slope, midpoint float64) Calibration {
	if version == "" {
		version = CalibrationVersion
	}
	if slope <= 0 {
		slope = DefaultSlope
	}
	if midpoint <= 0 {
		midpoint = DefaultMidpoint
	}
	if version == CalibrationVersion && (slope != DefaultSlope || midpoint != DefaultMidpoint) {
		version = fmt.Sprintf("%s(slope=%g,midpoint=%g)", CalibrationVersion, slope, midpoint)
	}
	return Calibration{Version: version, Slope: slope, Midpoint: midpoint}
}

// Confidence converts a distance to a confidence percentage.
func (c Calibration) Confidence(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	conf := 100 / (1 + math.Exp(c.Slope*(distance-c.Midpoint)))
	return min(100, max(0, conf))
}
