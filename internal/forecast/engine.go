// Package forecast projects a closing-price series forward with an iterated
// trailing moving average.
package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"stock-analyzer-api/internal/models"
)

const (
	// Window is the number of trailing values averaged per step.
	Window = 5
	// Horizon is the number of projected days.
	Horizon = 10
	// PricePlaces is the number of fractional digits kept in projected prices.
	PricePlaces = 2
)

var (
	ErrEmptyInput    = errors.New("closing series is empty")
	ErrMalformedData = errors.New("malformed price data")
)

// MalformedDataError reports the first record that could not yield a usable close.
type MalformedDataError struct {
	Index  int
	Reason string
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed price data at index %d: %s", e.Index, e.Reason)
}

func (e *MalformedDataError) Is(target error) bool {
	return target == ErrMalformedData
}

// ExtractCloses returns the closing prices of points in the same order.
// It fails on the first point without a finite close instead of substituting a value.
func ExtractCloses(points []models.PricePoint) ([]float64, error) {
	if len(points) == 0 {
		return nil, ErrEmptyInput
	}
	closes := make([]float64, len(points))
	for i, p := range points {
		if len(p.RawClose) > 0 {
			return nil, &MalformedDataError{Index: i, Reason: "close is not numeric"}
		}
		if !p.Close.Valid {
			return nil, &MalformedDataError{Index: i, Reason: "missing close"}
		}
		v := p.Close.Decimal.InexactFloat64()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &MalformedDataError{Index: i, Reason: "close is not a finite number"}
		}
		closes[i] = v
	}
	return closes, nil
}

// Forecast projects Horizon days from closes.
//
// Each step sums the last min(Window, n) values of the working series and divides by
// Window, even when fewer values exist. The unrounded average is appended to the working
// series; the published price is rounded half away from zero to PricePlaces.
// closes is not modified.
func Forecast(closes []float64) (*models.Forecast, error) {
	if len(closes) == 0 {
		return nil, ErrEmptyInput
	}
	for i, v := range closes {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &MalformedDataError{Index: i, Reason: "close is not a finite number"}
		}
	}

	work := make([]float64, len(closes), len(closes)+Horizon)
	copy(work, closes)

	points := make([]models.ForecastPoint, 0, Horizon)
	for day := 1; day <= Horizon; day++ {
		start := len(work) - Window
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, v := range work[start:] {
			sum += v
		}
		avg := sum / Window

		points = append(points, models.ForecastPoint{
			Day:   day,
			Price: decimal.NewFromFloat(avg).Round(PricePlaces),
		})
		work = append(work, avg)
	}

	return &models.Forecast{
		Points: points,
		Trend:  TrendOf(points),
	}, nil
}

// FromPoints extracts closes from points and forecasts them.
func FromPoints(points []models.PricePoint) (*models.Forecast, error) {
	closes, err := ExtractCloses(points)
	if err != nil {
		return nil, err
	}
	return Forecast(closes)
}

// TrendOf compares the first and last projected prices; a tie counts as up.
func TrendOf(points []models.ForecastPoint) models.Trend {
	if len(points) == 0 {
		return models.TrendUp
	}
	first, last := points[0].Price, points[len(points)-1].Price
	if last.GreaterThanOrEqual(first) {
		return models.TrendUp
	}
	return models.TrendDown
}
