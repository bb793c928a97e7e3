package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyPrediction_UnmarshalShapes(t *testing.T) {
	body := `{
		"success": true,
		"predicted_temperature": 29.4,
		"predictions": [
			29.4,
			{"day": 2, "date": "2026-09-16", "temperature": 30.1},
			{"day": 3, "predicted_temperature": 28.7}
		]
	}`

	var got ForecastResult
	require.NoError(t, json.Unmarshal([]byte(body), &got))

	want := []DailyPrediction{
		{Temperature: 29.4},
		{Day: 2, Date: "2026-09-16", Temperature: 30.1},
		{Day: 3, Temperature: 28.7},
	}
	if diff := cmp.Diff(want, got.Predictions); diff != "" {
		t.Fatalf("predictions mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, got.PredictedTemperature)
	assert.InDelta(t, 29.4, *got.PredictedTemperature, 1e-9)
}

func TestDailyPrediction_RejectsUnknownShape(t *testing.T) {
	var p DailyPrediction
	assert.Error(t, json.Unmarshal([]byte(`{"day": 1}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`"warm"`), &p))
}

func TestCurrentWeatherSnapshot_NullTemperature(t *testing.T) {
	var s CurrentWeatherSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"temperature": {"current": null}, "timestamp": 0}`), &s))
	assert.Nil(t, s.Temperature.Current)
	assert.True(t, s.CapturedAt().IsZero())

	require.NoError(t, json.Unmarshal([]byte(`{"temperature": {"current": 31.2}, "timestamp": 1789000000}`), &s))
	require.NotNil(t, s.Temperature.Current)
	assert.InDelta(t, 31.2, *s.Temperature.Current, 1e-9)
	assert.Equal(t, time.Unix(1789000000, 0).UTC(), s.CapturedAt())
}

func TestCurrentWeatherSnapshot_DtFallback(t *testing.T) {
	var s CurrentWeatherSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"temperature": {"current": 30}, "dt": 1700000000}`), &s))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), s.CapturedAt())

	s.Timestamp = 1789000000
	assert.Equal(t, time.Unix(1789000000, 0).UTC(), s.CapturedAt(), "timestamp wins over dt")
}

func TestForecastRequest_OmitsMissingCurrentTemp(t *testing.T) {
	data, err := json.Marshal(ForecastRequest{Data: []FeatureVector{{}}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "current_temp")

	data, err = json.Marshal(ForecastRequest{Data: []FeatureVector{{}}, CurrentTemp: f(30)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"current_temp":30`)
}

func TestNewAnalysisResult(t *testing.T) {
	fixed := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	loc := GeoPoint{Name: "Paradise", Latitude: 39.76, Longitude: -121.62}
	classification := ClassificationResult{IsWildfire: true, Confidence: 0.93, Label: "wildfire"}
	current := CurrentWeatherSnapshot{Temperature: Temperature{Current: f(33.5)}}
	forecast := ForecastResult{
		Success:              true,
		PredictedTemperature: f(35.2),
		Predictions:          []DailyPrediction{{Day: 1, Temperature: 35.2}},
		Summary:              json.RawMessage(`{"trend":"rising"}`),
	}

	r := NewAnalysisResult("run-1", loc, classification, current, forecast)

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, loc, r.Location)
	assert.True(t, r.IsWildfire)
	assert.InDelta(t, 0.93, r.Confidence, 1e-9)
	assert.Equal(t, "wildfire", r.Label)
	assert.InDelta(t, 35.2, *r.PredictedTemperature, 1e-9)
	assert.InDelta(t, 33.5, *r.CurrentTemperature, 1e-9)
	assert.Equal(t, fixed, r.CompletedAt)
	assert.JSONEq(t, `{"trend":"rising"}`, string(r.Summary))

	// Result owns its copies.
	*forecast.PredictedTemperature = 0
	forecast.Predictions[0].Temperature = 0
	forecast.Summary[2] = 'X'
	assert.JSONEq(t, `{"trend":"rising"}`, string(r.Summary))
	assert.InDelta(t, 35.2, *r.PredictedTemperature, 1e-9)
	assert.InDelta(t, 35.2, r.Predictions[0].Temperature, 1e-9)
}

func TestAnalysisResult_Clone(t *testing.T) {
	orig := AnalysisResult{
		RunID:                "run-2",
		PredictedTemperature: f(20),
		Predictions:          []DailyPrediction{{Day: 1, Temperature: 20}},
		Summary:              json.RawMessage(`{"days":1}`),
	}
	c := orig.Clone()
	if diff := cmp.Diff(orig, c); diff != "" {
		t.Fatalf("clone mismatch (-orig +clone):\n%s", diff)
	}

	*c.PredictedTemperature = 99
	c.Predictions[0].Temperature = 99
	c.Summary[2] = 'X'
	assert.JSONEq(t, `{"days":1}`, string(orig.Summary))
	assert.InDelta(t, 20.0, *orig.PredictedTemperature, 1e-9)
	assert.InDelta(t, 20.0, orig.Predictions[0].Temperature, 1e-9)
	assert.Nil(t, AnalysisResult{}.Clone().CurrentTemperature)
}
