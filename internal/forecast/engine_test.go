package forecast

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock-analyzer-api/internal/models"
)

func prices(t *testing.T, f *models.Forecast) []string {
	t.Helper()
	out := make([]string, len(f.Points))
	for i, p := range f.Points {
		out[i] = p.Price.StringFixed(PricePlaces)
	}
	return out
}

func TestForecast_KnownSeries(t *testing.T) {
	cases := []struct {
		name   string
		closes []float64
		want   []string
		trend  models.Trend
	}{
		{
			name:   "full window",
			closes: []float64{10, 12, 11, 13, 14},
			want:   []string{"12.00", "12.40", "12.48", "12.78", "12.73", "12.48", "12.57", "12.61", "12.63", "12.60"},
			trend:  models.TrendUp,
		},
		{
			name:   "longer than window uses the tail",
			closes: []float64{100, 90, 80, 70, 60, 50},
			want:   []string{"70.00", "66.00", "63.20", "61.84", "62.21", "64.65", "63.58", "63.10", "63.07", "63.32"},
			trend:  models.TrendDown,
		},
		{
			name:   "two closes divided by window",
			closes: []float64{10, 20},
			want:   []string{"6.00", "7.20", "8.64", "10.37", "10.44", "8.53", "9.04", "9.40", "9.56", "9.39"},
			trend:  models.TrendUp,
		},
		{
			name:   "single close",
			closes: []float64{7},
			want:   []string{"1.40", "1.68", "2.02", "2.42", "2.90", "2.08", "2.22", "2.33", "2.39", "2.39"},
			trend:  models.TrendUp,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Forecast(tc.closes)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := prices(t, f)
			if len(got) != Horizon {
				t.Fatalf("expected %d points, got %d", Horizon, len(got))
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("day %d: got %s, want %s", i+1, got[i], tc.want[i])
				}
			}
			if f.Trend != tc.trend {
				t.Errorf("trend: got %s, want %s", f.Trend, tc.trend)
			}
		})
	}
}

func TestForecast_FirstValueIsTrailingMean(t *testing.T) {
	closes := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	f, err := Forecast(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.NewFromFloat((1 + 5 + 9 + 2 + 6) / 5.0).Round(PricePlaces)
	if !f.Points[0].Price.Equal(want) {
		t.Errorf("first point: got %s, want %s", f.Points[0].Price, want)
	}
}

func TestForecast_ShortSeriesUsesFixedDivisor(t *testing.T) {
	for k := 1; k < Window; k++ {
		closes := make([]float64, k)
		sum := 0.0
		for i := range closes {
			closes[i] = float64(10 + i)
			sum += closes[i]
		}
		f, err := Forecast(closes)
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		want := decimal.NewFromFloat(sum / Window).Round(PricePlaces)
		if !f.Points[0].Price.Equal(want) {
			t.Errorf("k=%d: got %s, want %s", k, f.Points[0].Price, want)
		}
	}
}

func TestForecast_DaysAreSequential(t *testing.T) {
	f, err := Forecast([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, p := range f.Points {
		if p.Day != i+1 {
			t.Fatalf("point %d has day %d", i, p.Day)
		}
	}
}

func TestForecast_FlatSeriesTrendsUp(t *testing.T) {
	f, err := Forecast([]float64{5, 5, 5, 5, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range f.Points {
		if p.Price.StringFixed(2) != "5.00" {
			t.Fatalf("expected flat 5.00, got %s", p.Price)
		}
	}
	if f.Trend != models.TrendUp {
		t.Errorf("tie should resolve to up, got %s", f.Trend)
	}
}

func TestForecast_RoundsHalfAwayFromZero(t *testing.T) {
	f, err := Forecast([]float64{0.125, 0.125, 0.125, 0.125, 0.125})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.Points[0].Price.StringFixed(2); got != "0.13" {
		t.Errorf("got %s, want 0.13", got)
	}

	f, err = Forecast([]float64{-0.125, -0.125, -0.125, -0.125, -0.125})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.Points[0].Price.StringFixed(2); got != "-0.13" {
		t.Errorf("got %s, want -0.13", got)
	}
}

func TestForecast_EmptyInput(t *testing.T) {
	f, err := Forecast(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if f != nil {
		t.Fatal("expected no forecast on empty input")
	}
}

func TestForecast_NonFiniteInput(t *testing.T) {
	_, err := Forecast([]float64{1, math.NaN(), 3})
	if !errors.Is(err, ErrMalformedData) {
		t.Fatalf("expected ErrMalformedData, got %v", err)
	}
	var mde *MalformedDataError
	if !errors.As(err, &mde) || mde.Index != 1 {
		t.Fatalf("expected MalformedDataError at index 1, got %v", err)
	}
}

func TestForecast_DoesNotMutateInput(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 14}
	orig := append([]float64(nil), closes...)

	first, err := Forecast(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Forecast(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(closes) != len(orig) {
		t.Fatalf("input length changed: %d", len(closes))
	}
	for i := range orig {
		if closes[i] != orig[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
	for i := range first.Points {
		if !first.Points[i].Price.Equal(second.Points[i].Price) {
			t.Fatalf("non-idempotent at day %d", i+1)
		}
	}
}

func TestForecast_ConcurrentCalls(t *testing.T) {
	closes := []float64{100, 90, 80, 70, 60, 50}
	want, err := Forecast(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Forecast(closes)
			if err != nil {
				errs <- err.Error()
				return
			}
			for d := range want.Points {
				if !got.Points[d].Price.Equal(want.Points[d].Price) {
					errs <- "mismatch"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func point(day int, close *float64) models.PricePoint {
	p := models.PricePoint{Date: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)}
	if close != nil {
		p.Close = decimal.NewNullDecimal(decimal.NewFromFloat(*close))
	}
	return p
}

func TestExtractCloses(t *testing.T) {
	a, b := 10.5, 11.25
	closes, err := ExtractCloses([]models.PricePoint{point(1, &a), point(2, &b)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(closes) != 2 || closes[0] != 10.5 || closes[1] != 11.25 {
		t.Fatalf("unexpected closes: %v", closes)
	}
}

func TestExtractCloses_MissingClose(t *testing.T) {
	a := 10.0
	closes, err := ExtractCloses([]models.PricePoint{point(1, &a), point(2, nil), point(3, &a)})
	if !errors.Is(err, ErrMalformedData) {
		t.Fatalf("expected ErrMalformedData, got %v", err)
	}
	if closes != nil {
		t.Fatal("expected no partial output")
	}
	var mde *MalformedDataError
	if !errors.As(err, &mde) || mde.Index != 1 {
		t.Fatalf("expected index 1, got %v", err)
	}
}

func TestExtractCloses_NonNumericClose(t *testing.T) {
	var points []models.PricePoint
	body := `[{"close":10},{"close":"12.5"},{"close":"abc"},{"close":11}]`
	if err := json.Unmarshal([]byte(body), &points); err != nil {
		t.Fatalf("decode points: %v", err)
	}
	if !points[1].Close.Valid || points[1].Close.Decimal.String() != "12.5" {
		t.Fatalf("numeric string close not read: %+v", points[1])
	}

	_, err := ExtractCloses(points)
	var mde *MalformedDataError
	if !errors.As(err, &mde) {
		t.Fatalf("expected MalformedDataError, got %v", err)
	}
	if mde.Index != 2 || mde.Reason != "close is not numeric" {
		t.Fatalf("unexpected error: %+v", mde)
	}
}

func TestFromPoints_Empty(t *testing.T) {
	if _, err := FromPoints(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}
