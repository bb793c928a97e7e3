// Package domain models the wildfire analysis data flowing between the Flame
// Prophet backend, the location store, and the analysis pipeline.
//
// # Historical Weather Schemas
//
// The /weather/historical endpoint returns one record per day in one of two
// shapes, depending on which upstream source answered:
//
//	Model-ready (NASA POWER style), flat keys:
//	  {"T2M": 27.1, "T2M_MIN": 22.4, "T2M_MAX": 31.9, "RH2M": 81, "WS10M": 2.7,
//	   "WD10M": 214, "PS": 100.9, "PRECTOTCORR": 4.2,
//	   "ALLSKY_SFC_SW_DWN": 189, "ALLSKY_SFC_UVA": 27}
//
//	Legacy (OpenWeather style), nested:
//	  {"temperature": {"temp": 27.1, "humidity": 81},
//	   "wind": {"speed": 2.7, "direction": 214}, "pressure": 1009}
//
// Records are coerced field by field, so a record carrying both shapes is
// valid. Flat keys take precedence. See [NormalizeRecord].
//
// # Feature Vector
//
// The forecaster consumes exactly [HistoryDays] vectors of [FeatureCount]
// values in this order and these units:
//
//	T2M, T2M_MIN, T2M_MAX   °C
//	RH2M                    % relative humidity
//	WS10M                   m/s
//	WD10M                   degrees, wrapped into [0, 360)
//	PS                      hPa
//	PRECTOTCORR             mm
//	ALLSKY_SFC_SW_DWN       kW/m² (source scale)
//	ALLSKY_SFC_UVA          UV index (source scale)
//
// # Approximations
//
// Missing min/max temperature is derived as mean ∓ 3°C. This is accepted
// policy, not a data-quality signal.
//
// Pressure has no unit tag. Values under 200 are assumed to be kPa and are
// multiplied by 10 (101.3 → 1013); anything else is taken as hPa. Non-positive
// readings are treated as absent.
//
// Fields absent from both shapes fall back to fixed placeholders:
//
//	temperature 25, humidity 75, wind speed 2.0, wind direction 180,
//	pressure 1013, precipitation 0, solar 200, UV 30
//
// NaN and ±Inf inputs count as absent.
//
// # Length Contract
//
// A history that is not exactly the requested length fails with
// [IncompleteHistoryError]. It is never padded or truncated, and the forecast
// is never requested on it.
package domain
