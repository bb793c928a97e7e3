package domain

import (
	"encoding/json"
	"fmt"
)

// RecordShape tags which source schema a historical record was written in.
type RecordShape int

const (
	ShapeEmpty RecordShape = iota
	ShapeModelReady
	ShapeLegacy
	ShapeMixed
)

func (s RecordShape) String() string {
	switch s {
	case ShapeModelReady:
		return "model_ready"
	case ShapeLegacy:
		return "legacy"
	case ShapeMixed:
		return "mixed"
	default:
		return "empty"
	}
}

// HistoricalResponse is the /weather/historical response body.
type HistoricalResponse struct {
	HistoricalData []HistoricalRecord `json:"historical_data"`
	DataSource     string             `json:"data_source,omitempty"`
}

// HistoricalRecord is one day of history in either source schema. Every field
// is optional; absent and null values decode to nil.
type HistoricalRecord struct {
	Date string `json:"date,omitempty"`

	// Model-ready flat keys.
	T2M          *float64 `json:"T2M,omitempty"`
	T2MMin       *float64 `json:"T2M_MIN,omitempty"`
	T2MMax       *float64 `json:"T2M_MAX,omitempty"`
	RH2M         *float64 `json:"RH2M,omitempty"`
	WS10M        *float64 `json:"WS10M,omitempty"`
	WD10M        *float64 `json:"WD10M,omitempty"`
	PS           *float64 `json:"PS,omitempty"`
	PrecTotCorr  *float64 `json:"PRECTOTCORR,omitempty"`
	AllSkySWDown *float64 `json:"ALLSKY_SFC_SW_DWN,omitempty"`
	AllSkyUVA    *float64 `json:"ALLSKY_SFC_UVA,omitempty"`

	// Legacy nested shape.
	Temperature   *LegacyTemperature `json:"temperature,omitempty"`
	Wind          *LegacyWind        `json:"wind,omitempty"`
	Pressure      *float64           `json:"pressure,omitempty"`
	Humidity      *float64           `json:"humidity,omitempty"`
	Precipitation *float64           `json:"precipitation,omitempty"`
}

// LegacyTemperature is the nested temperature block of the legacy shape.
type LegacyTemperature struct {
	Temp      *float64 `json:"temp,omitempty"`
	TempMin   *float64 `json:"temp_min,omitempty"`
	TempMax   *float64 `json:"temp_max,omitempty"`
	FeelsLike *float64 `json:"feels_like,omitempty"`
	Humidity  *float64 `json:"humidity,omitempty"`
}

// LegacyWind is the nested wind block of the legacy shape.
type LegacyWind struct {
	Speed     *float64 `json:"speed,omitempty"`
	Direction *float64 `json:"direction,omitempty"`
	Deg       *float64 `json:"deg,omitempty"`
}

// Shape reports which schema the record carries.
func (r HistoricalRecord) Shape() RecordShape {
	flat := r.T2M != nil || r.T2MMin != nil || r.T2MMax != nil || r.RH2M != nil ||
		r.WS10M != nil || r.WD10M != nil || r.PS != nil || r.PrecTotCorr != nil ||
		r.AllSkySWDown != nil || r.AllSkyUVA != nil
	legacy := r.Temperature != nil || r.Wind != nil || r.Pressure != nil ||
		r.Humidity != nil || r.Precipitation != nil

	switch {
	case flat && legacy:
		return ShapeMixed
	case flat:
		return ShapeModelReady
	case legacy:
		return ShapeLegacy
	default:
		return ShapeEmpty
	}
}

// ParseHistoricalResponse decodes a /weather/historical body.
func ParseHistoricalResponse(data []byte) (HistoricalResponse, error) {
	var resp HistoricalResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return HistoricalResponse{}, fmt.Errorf("parse historical response: %w", err)
	}
	return resp, nil
}

func (t *LegacyTemperature) temp() *float64 {
	if t == nil {
		return nil
	}
	return t.Temp
}

func (t *LegacyTemperature) min() *float64 {
	if t == nil {
		return nil
	}
	return t.TempMin
}

func (t *LegacyTemperature) max() *float64 {
	if t == nil {
		return nil
	}
	return t.TempMax
}

func (t *LegacyTemperature) humidity() *float64 {
	if t == nil {
		return nil
	}
	return t.Humidity
}

func (w *LegacyWind) speed() *float64 {
	if w == nil {
		return nil
	}
	return w.Speed
}

func (w *LegacyWind) direction() *float64 {
	if w == nil {
		return nil
	}
	if w.Direction != nil {
		return w.Direction
	}
	return w.Deg
}
