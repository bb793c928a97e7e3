package domain

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func loadHistory(t *testing.T, name string) HistoricalResponse {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	resp, err := ParseHistoricalResponse(data)
	require.NoError(t, err)
	return resp
}

func assertWellFormed(t *testing.T, vectors []FeatureVector) {
	t.Helper()
	for day, v := range vectors {
		for i, x := range v {
			assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), "day %d feature %s is not finite", day, FeatureNames[i])
		}
		assert.GreaterOrEqual(t, v[FeatureWD10M], 0.0)
		assert.Less(t, v[FeatureWD10M], 360.0)
		assert.GreaterOrEqual(t, v[FeaturePS], kpaThreshold, "day %d pressure should be hPa scale", day)
		assert.LessOrEqual(t, v[FeatureT2MMin], v[FeatureT2M])
		assert.GreaterOrEqual(t, v[FeatureT2MMax], v[FeatureT2M])
	}
}

func TestNormalizeHistory_ModelReadyFixture(t *testing.T) {
	resp := loadHistory(t, "history_model_ready.json")
	assert.Equal(t, "nasa_power", resp.DataSource)

	vectors, err := NormalizeHistory(resp.HistoricalData, HistoryDays)
	require.NoError(t, err)
	require.Len(t, vectors, HistoryDays)
	assertWellFormed(t, vectors)

	first := vectors[0]
	assert.InDelta(t, 27.0, first[FeatureT2M], 1e-9)
	assert.InDelta(t, 22.9, first[FeatureT2MMin], 1e-9)
	assert.InDelta(t, 31.6, first[FeatureT2MMax], 1e-9)
	assert.InDelta(t, 1008.0, first[FeaturePS], 1e-6)
	assert.InDelta(t, 180.0, first[FeatureAllSkySWDown], 1e-9)
	for _, rec := range resp.HistoricalData {
		assert.Equal(t, ShapeModelReady, rec.Shape())
	}
}

func TestNormalizeHistory_LegacyFixture(t *testing.T) {
	resp := loadHistory(t, "history_legacy.json")

	vectors, err := NormalizeHistory(resp.HistoricalData, HistoryDays)
	require.NoError(t, err)
	require.Len(t, vectors, HistoryDays)
	assertWellFormed(t, vectors)

	first := vectors[0]
	assert.InDelta(t, 27.0, first[FeatureT2M], 1e-9)
	assert.InDelta(t, 24.0, first[FeatureT2MMin], 1e-9, "min derived as temp - 3")
	assert.InDelta(t, 30.0, first[FeatureT2MMax], 1e-9, "max derived as temp + 3")
	assert.InDelta(t, 70.0, first[FeatureRH2M], 1e-9)
	assert.InDelta(t, 3.0, first[FeatureWS10M], 1e-9)
	assert.InDelta(t, 90.0, first[FeatureWD10M], 1e-9)
	assert.InDelta(t, 1008.0, first[FeaturePS], 1e-9)
	assert.InDelta(t, defaultPrecipitation, first[FeaturePrecTotCorr], 1e-9)
	assert.InDelta(t, defaultSolar, first[FeatureAllSkySWDown], 1e-9)
	assert.InDelta(t, defaultUV, first[FeatureAllSkyUVA], 1e-9)
	for _, rec := range resp.HistoricalData {
		assert.Equal(t, ShapeLegacy, rec.Shape())
	}
}

func TestNormalizeHistory_ShortSeriesFails(t *testing.T) {
	resp := loadHistory(t, "history_short.json")

	vectors, err := NormalizeHistory(resp.HistoricalData, HistoryDays)
	require.Error(t, err)
	assert.Nil(t, vectors)

	var incomplete *IncompleteHistoryError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, HistoryDays, incomplete.Want)
	assert.Equal(t, 9, incomplete.Got)
}

func TestNormalizeHistory_LengthMismatch(t *testing.T) {
	records := make([]HistoricalRecord, 20)

	for _, n := range []int{0, 1, 13, 15, 20} {
		_, err := NormalizeHistory(records[:n], HistoryDays)
		var incomplete *IncompleteHistoryError
		assert.True(t, errors.As(err, &incomplete), "length %d should be rejected", n)
	}

	_, err := NormalizeHistory(records[:HistoryDays], HistoryDays)
	assert.NoError(t, err)
}

func TestNormalizeRecord_Pressure(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "kPa scaled to hPa", in: 101.3, want: 1013},
		{name: "hPa unchanged", in: 1013, want: 1013},
		{name: "just under threshold", in: 199.9, want: 1999},
		{name: "at threshold", in: 200, want: 200},
		{name: "zero treated as absent", in: 0, want: defaultPressure},
		{name: "negative treated as absent", in: -5, want: defaultPressure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flat := NormalizeRecord(HistoricalRecord{PS: f(tc.in)})
			assert.InDelta(t, tc.want, flat[FeaturePS], 1e-9)

			legacy := NormalizeRecord(HistoricalRecord{Pressure: f(tc.in)})
			assert.InDelta(t, tc.want, legacy[FeaturePS], 1e-9)
		})
	}
}

func TestNormalizeRecord_FlatKeysWinOverLegacy(t *testing.T) {
	rec := HistoricalRecord{
		T2M:         f(30),
		RH2M:        f(40),
		WS10M:       f(5),
		PS:          f(1000),
		Temperature: &LegacyTemperature{Temp: f(10), Humidity: f(90)},
		Wind:        &LegacyWind{Speed: f(1), Direction: f(45)},
		Pressure:    f(95),
	}
	assert.Equal(t, ShapeMixed, rec.Shape())

	v := NormalizeRecord(rec)
	assert.InDelta(t, 30.0, v[FeatureT2M], 1e-9)
	assert.InDelta(t, 40.0, v[FeatureRH2M], 1e-9)
	assert.InDelta(t, 5.0, v[FeatureWS10M], 1e-9)
	assert.InDelta(t, 45.0, v[FeatureWD10M], 1e-9, "WD10M absent, legacy direction used")
	assert.InDelta(t, 1000.0, v[FeaturePS], 1e-9)
}

func TestNormalizeRecord_EmptyRecordUsesDefaults(t *testing.T) {
	v := NormalizeRecord(HistoricalRecord{})

	want := FeatureVector{
		defaultTemperature,
		defaultTemperature - minMaxSpread,
		defaultTemperature + minMaxSpread,
		defaultHumidity,
		defaultWindSpeed,
		defaultWindDirection,
		defaultPressure,
		defaultPrecipitation,
		defaultSolar,
		defaultUV,
	}
	if diff := cmp.Diff(want, v, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("default vector mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, ShapeEmpty, HistoricalRecord{}.Shape())
}

func TestNormalizeRecord_NonFiniteTreatedAsAbsent(t *testing.T) {
	v := NormalizeRecord(HistoricalRecord{
		T2M:         f(math.NaN()),
		Temperature: &LegacyTemperature{Temp: f(21)},
		RH2M:        f(math.Inf(1)),
	})
	assert.InDelta(t, 21.0, v[FeatureT2M], 1e-9)
	assert.InDelta(t, defaultHumidity, v[FeatureRH2M], 1e-9)
}

func TestNormalizeRecord_WindDirectionWrapped(t *testing.T) {
	assert.InDelta(t, 10.0, NormalizeRecord(HistoricalRecord{WD10M: f(370)})[FeatureWD10M], 1e-9)
	assert.InDelta(t, 270.0, NormalizeRecord(HistoricalRecord{WD10M: f(-90)})[FeatureWD10M], 1e-9)
	assert.InDelta(t, 0.0, NormalizeRecord(HistoricalRecord{Wind: &LegacyWind{Deg: f(360)}})[FeatureWD10M], 1e-9)
}

func TestNormalizeHistory_Deterministic(t *testing.T) {
	resp := loadHistory(t, "history_legacy.json")

	a, err := NormalizeHistory(resp.HistoricalData, HistoryDays)
	require.NoError(t, err)
	b, err := NormalizeHistory(resp.HistoricalData, HistoryDays)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("normalization not deterministic (-first +second):\n%s", diff)
	}
}

func TestFeatureVector_JSONKeys(t *testing.T) {
	v := NormalizeRecord(HistoricalRecord{T2M: f(28), PS: f(101.3)})

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var obj map[string]float64
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.Len(t, obj, FeatureCount)
	for _, name := range FeatureNames {
		assert.Contains(t, obj, name)
	}
	assert.InDelta(t, 1013.0, obj["PS"], 1e-9)

	var back FeatureVector
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(v, back); diff != "" {
		t.Fatalf("vector mismatch (-want +got):\n%s", diff)
	}
}
