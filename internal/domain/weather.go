package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// CurrentWeatherSnapshot is the /weather/current response for one point.
type CurrentWeatherSnapshot struct {
	Location      WeatherLocation `json:"location"`
	Temperature   Temperature     `json:"temperature"`
	Wind          Wind            `json:"wind"`
	ConditionCode int             `json:"condition_code,omitempty"`
	Timestamp     int64           `json:"timestamp,omitempty"` // unix seconds
	Dt            int64           `json:"dt,omitempty"`        // unix seconds, older backends
}

// WeatherLocation is the backend's echo of the requested point.
type WeatherLocation struct {
	Name    string  `json:"name,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
}

// Temperature readings in °C, humidity in percent.
type Temperature struct {
	Current   *float64 `json:"current"`
	FeelsLike float64  `json:"feels_like,omitempty"`
	Min       float64  `json:"min,omitempty"`
	Max       float64  `json:"max,omitempty"`
	Humidity  float64  `json:"humidity,omitempty"`
}

// Wind speed in m/s, direction in degrees.
type Wind struct {
	Speed     float64 `json:"speed,omitempty"`
	Direction float64 `json:"direction,omitempty"`
}

// CapturedAt converts the snapshot timestamp, preferring timestamp over dt.
// Zero when the backend sent neither.
func (s CurrentWeatherSnapshot) CapturedAt() time.Time {
	ts := s.Timestamp
	if ts == 0 {
		ts = s.Dt
	}
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

// ClassificationResult is the /classify response.
type ClassificationResult struct {
	IsWildfire bool    `json:"is_wildfire"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"classification"`
}

// ForecastRequest is the /predict request body: exactly HistoryDays vectors
// plus an optional current temperature hint.
type ForecastRequest struct {
	Data        []FeatureVector `json:"data"`
	CurrentTemp *float64        `json:"current_temp,omitempty"`
}

// ForecastResult is the /predict response.
type ForecastResult struct {
	Success              bool              `json:"success"`
	PredictedTemperature *float64          `json:"predicted_temperature"`
	Predictions          []DailyPrediction `json:"predictions,omitempty"`
	Summary              json.RawMessage   `json:"summary,omitempty"`
	AdditionalParameters map[string]any    `json:"additional_parameters,omitempty"`
	Confidence           *float64          `json:"confidence,omitempty"`
}

// DailyPrediction is one forecast day. The backend sends either a bare number or
// an object; both decode here.
type DailyPrediction struct {
	Day         int     `json:"day"`
	Date        string  `json:"date,omitempty"`
	Temperature float64 `json:"temperature"`
}

var errBadPrediction = errors.New("prediction must be a number or an object with a temperature")

func (p *DailyPrediction) UnmarshalJSON(data []byte) error {
	var temp float64
	if err := json.Unmarshal(data, &temp); err == nil {
		*p = DailyPrediction{Temperature: temp}
		return nil
	}

	var obj struct {
		Day                  int      `json:"day"`
		Date                 string   `json:"date"`
		Temperature          *float64 `json:"temperature"`
		PredictedTemperature *float64 `json:"predicted_temperature"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errBadPrediction
	}
	switch {
	case obj.Temperature != nil:
		temp = *obj.Temperature
	case obj.PredictedTemperature != nil:
		temp = *obj.PredictedTemperature
	default:
		return errBadPrediction
	}
	*p = DailyPrediction{Day: obj.Day, Date: obj.Date, Temperature: temp}
	return nil
}

// Image is a captured raster packaged as a named upload.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// AnalysisResult merges one run's classification and forecast. It is the only
// value held in the location store's result slot.
type AnalysisResult struct {
	RunID                string            `json:"run_id"`
	Location             GeoPoint          `json:"location"`
	IsWildfire           bool              `json:"is_wildfire"`
	Confidence           float64           `json:"confidence"`
	Label                string            `json:"label,omitempty"`
	PredictedTemperature *float64          `json:"predicted_temperature,omitempty"`
	CurrentTemperature   *float64          `json:"current_temperature,omitempty"`
	Predictions          []DailyPrediction `json:"predictions,omitempty"`
	Summary              json.RawMessage   `json:"summary,omitempty"`
	CompletedAt          time.Time         `json:"completed_at"`
}

// NewAnalysisResult merges the outputs of a completed run.
func NewAnalysisResult(runID string, loc GeoPoint, c ClassificationResult, current CurrentWeatherSnapshot, f ForecastResult) AnalysisResult {
	r := AnalysisResult{
		RunID:                runID,
		Location:             loc,
		IsWildfire:           c.IsWildfire,
		Confidence:           c.Confidence,
		Label:                c.Label,
		PredictedTemperature: copyFloat(f.PredictedTemperature),
		CurrentTemperature:   copyFloat(current.Temperature.Current),
		CompletedAt:          clock.Now().UTC(),
	}
	if len(f.Predictions) > 0 {
		r.Predictions = append([]DailyPrediction(nil), f.Predictions...)
	}
	if len(f.Summary) > 0 {
		r.Summary = append(json.RawMessage(nil), f.Summary...)
	}
	return r
}

// Clone returns a deep copy so observers never share mutable state.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.PredictedTemperature = copyFloat(r.PredictedTemperature)
	out.CurrentTemperature = copyFloat(r.CurrentTemperature)
	if r.Predictions != nil {
		out.Predictions = append([]DailyPrediction(nil), r.Predictions...)
	}
	if r.Summary != nil {
		out.Summary = append(json.RawMessage(nil), r.Summary...)
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
