// Package predict fits a closed-form least-squares time trend over
// sold prices and evaluates it at the present for a "price today"
// estimate, validated against a chronological holdout.
package predict

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/guarzo/flipwatch/internal/listing"
	"github.com/guarzo/flipwatch/internal/trend"
)

const (
	// MinObservations is the hard precondition for fitting; fewer
	// qualifying sales means no fit at all, not a noisy one.
	MinObservations = 12

	// trainFraction of rows, chronologically first, form the fit set.
	trainFraction = 0.8

	// bandWidth scales the holdout MAE into the presentation range.
	bandWidth = 1.2

	// rankTol decides, relative to the matrix magnitude, when the
	// normal matrix counts as rank-deficient.
	rankTol = 1e-12
)

// ErrInsufficientData reports too few qualifying sales to fit a trend.
var ErrInsufficientData = errors.New("insufficient data for a trend fit")

// Observation is one sale as a (seconds-since-epoch, price) pair.
type Observation struct {
	TS    float64
	Price float64
}

// Prepare filters stored rows down to qualifying sales and converts
// them to chronologically ordered observations.
func Prepare(rows []listing.Listing, f trend.Filter) []Observation {
	sales := trend.SalesOf(rows, f)
	obs := make([]Observation, 0, len(sales))
	for _, s := range sales {
		obs = append(obs, Observation{TS: float64(s.When.Unix()), Price: s.Price})
	}
	return obs
}

// Model is a fitted price-over-time line.
type Model struct {
	Slope     float64
	Intercept float64

	// MAE is the mean absolute error on the holdout set, nil when the
	// holdout was empty.
	MAE *float64

	TrainSize   int
	HoldoutSize int
}

// Fit solves ordinary least squares of price on time with a bias term,
// in closed form via the normal equations. The normal matrix goes
// through a pseudo-inverse so collinear input, such as all-identical
// timestamps, degrades gracefully instead of producing infinities.
// Observations must arrive in chronological order: the first 80% fit
// the line, the remainder scores it.
func Fit(obs []Observation) (*Model, error) {
	if len(obs) < MinObservations {
		return nil, fmt.Errorf("%w: have %d sales, need %d", ErrInsufficientData, len(obs), MinObservations)
	}

	trainN := int(trainFraction * float64(len(obs)))
	if trainN < 1 {
		trainN = 1
	}
	train, holdout := obs[:trainN], obs[trainN:]

	var sx, sy, sxx, sxy float64
	for _, o := range train {
		sx += o.TS
		sy += o.Price
		sxx += o.TS * o.TS
		sxy += o.TS * o.Price
	}
	n := float64(len(train))

	ia, ib, ic := pinv2x2(sxx, sx, n)
	m := &Model{
		Slope:       ia*sxy + ib*sy,
		Intercept:   ib*sxy + ic*sy,
		TrainSize:   len(train),
		HoldoutSize: len(holdout),
	}

	if len(holdout) > 0 {
		sum := 0.0
		for _, o := range holdout {
			sum += math.Abs(m.at(o.TS) - o.Price)
		}
		mae := sum / float64(len(holdout))
		m.MAE = &mae
	}
	return m, nil
}

func (m *Model) at(ts float64) float64 {
	return m.Slope*ts + m.Intercept
}

// PredictAt evaluates the fitted line at t.
func (m *Model) PredictAt(t time.Time) float64 {
	return m.at(float64(t.Unix()))
}

// Band widens an estimate by the holdout error for display, flooring
// the low side at zero. ok is false when no holdout MAE exists.
func (m *Model) Band(estimate float64) (low, high float64, ok bool) {
	if m.MAE == nil {
		return 0, 0, false
	}
	spread := bandWidth * *m.MAE
	low = estimate - spread
	if low < 0 {
		low = 0
	}
	return low, estimate + spread, true
}

// pinv2x2 returns the Moore-Penrose pseudo-inverse of the symmetric
// matrix [[a, b], [b, c]]. Well-conditioned input takes the plain
// inverse; rank-one input uses A/tr(A)^2, which for a symmetric
// rank-one matrix equals the pseudo-inverse; a zero matrix stays zero.
func pinv2x2(a, b, c float64) (ia, ib, ic float64) {
	det := a*c - b*b
	if math.Abs(det) > rankTol*(math.Abs(a*c)+b*b) {
		return c / det, -b / det, a / det
	}
	tr := a + c
	if tr == 0 {
		return 0, 0, 0
	}
	return a / (tr * tr), b / (tr * tr), c / (tr * tr)
}
