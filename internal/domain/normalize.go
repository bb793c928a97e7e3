package domain

import (
	"encoding/json"
	"math"
)

// HistoryDays is the number of daily records the forecaster is trained on.
const HistoryDays = 14

// FeatureCount is the width of one normalized day.
const FeatureCount = 10

// Feature indices into a FeatureVector, in forecaster order.
const (
	FeatureT2M = iota
	FeatureT2MMin
	FeatureT2MMax
	FeatureRH2M
	FeatureWS10M
	FeatureWD10M
	FeaturePS
	FeaturePrecTotCorr
	FeatureAllSkySWDown
	FeatureAllSkyUVA
)

// FeatureNames are the wire keys for each feature index.
var FeatureNames = [FeatureCount]string{
	"T2M",
	"T2M_MIN",
	"T2M_MAX",
	"RH2M",
	"WS10M",
	"WD10M",
	"PS",
	"PRECTOTCORR",
	"ALLSKY_SFC_SW_DWN",
	"ALLSKY_SFC_UVA",
}

// Fallbacks for fields absent from both shapes. They keep the vector shape
// valid and do not describe real conditions.
const (
	defaultTemperature   = 25.0
	defaultHumidity      = 75.0
	defaultWindSpeed     = 2.0
	defaultWindDirection = 180.0
	defaultPressure      = 1013.0
	defaultPrecipitation = 0.0
	defaultSolar         = 200.0
	defaultUV            = 30.0

	// minMaxSpread approximates a missing daily min/max around the mean.
	minMaxSpread = 3.0

	// kpaThreshold separates kPa-scale pressure readings from hPa.
	kpaThreshold = 200.0
)

// FeatureVector is one normalized day: °C, %, m/s, degrees, hPa, mm, kW/m², UV.
type FeatureVector [FeatureCount]float64

// MarshalJSON encodes the vector as an object keyed by FeatureNames.
func (v FeatureVector) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, FeatureCount)
	for i, name := range FeatureNames {
		m[name] = v[i]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the object form written by MarshalJSON. Missing keys
// decode to zero.
func (v *FeatureVector) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for i, name := range FeatureNames {
		v[i] = m[name]
	}
	return nil
}

// NormalizeHistory converts a historical series into exactly days feature
// vectors. A series of any other length fails with *IncompleteHistoryError.
func NormalizeHistory(records []HistoricalRecord, days int) ([]FeatureVector, error) {
	if len(records) != days {
		return nil, &IncompleteHistoryError{Want: days, Got: len(records)}
	}
	out := make([]FeatureVector, len(records))
	for i, rec := range records {
		out[i] = NormalizeRecord(rec)
	}
	return out, nil
}

// NormalizeRecord coerces one record of either shape. Flat keys win over the
// legacy nested fields; whatever is still missing gets a fixed default.
func NormalizeRecord(rec HistoricalRecord) FeatureVector {
	var v FeatureVector

	temp := firstOr(defaultTemperature, rec.T2M, rec.Temperature.temp())
	v[FeatureT2M] = temp
	v[FeatureT2MMin] = firstOr(temp-minMaxSpread, rec.T2MMin, rec.Temperature.min())
	v[FeatureT2MMax] = firstOr(temp+minMaxSpread, rec.T2MMax, rec.Temperature.max())
	v[FeatureRH2M] = firstOr(defaultHumidity, rec.RH2M, rec.Temperature.humidity(), rec.Humidity)
	v[FeatureWS10M] = firstOr(defaultWindSpeed, rec.WS10M, rec.Wind.speed())
	v[FeatureWD10M] = normalizeDirection(firstOr(defaultWindDirection, rec.WD10M, rec.Wind.direction()))
	v[FeaturePS] = normalizePressure(firstOr(defaultPressure, rec.PS, rec.Pressure))
	v[FeaturePrecTotCorr] = firstOr(defaultPrecipitation, rec.PrecTotCorr, rec.Precipitation)
	v[FeatureAllSkySWDown] = firstOr(defaultSolar, rec.AllSkySWDown)
	v[FeatureAllSkyUVA] = firstOr(defaultUV, rec.AllSkyUVA)

	return v
}

// normalizePressure converts kPa-looking values (< 200) to hPa. The forecaster
// was trained on hPa, so the threshold must not change.
func normalizePressure(p float64) float64 {
	if p <= 0 {
		return defaultPressure
	}
	if p < kpaThreshold {
		return p * 10
	}
	return p
}

// normalizeDirection wraps a bearing into [0, 360).
func normalizeDirection(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// firstOr returns the first present, finite value or def.
func firstOr(def float64, vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
			return *v
		}
	}
	return def
}
