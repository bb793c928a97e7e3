package pipeline

// Phase is a state of the analysis state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCapturingArea
	PhaseClassifying
	PhaseFetchingWeather
	PhaseNormalizing
	PhaseForecasting
	PhaseCompleted
	PhaseFailed
	PhaseCancelled
)

var phaseNames = [...]string{
	PhaseIdle:            "idle",
	PhaseCapturingArea:   "capturing_area",
	PhaseClassifying:     "classifying",
	PhaseFetchingWeather: "fetching_weather",
	PhaseNormalizing:     "normalizing",
	PhaseForecasting:     "forecasting",
	PhaseCompleted:       "completed",
	PhaseFailed:          "failed",
	PhaseCancelled:       "cancelled",
}

var phaseDescriptions = [...]string{
	PhaseIdle:            "Ready",
	PhaseCapturingArea:   "Capturing map area",
	PhaseClassifying:     "Classifying image and fetching current weather",
	PhaseFetchingWeather: "Fetching weather history",
	PhaseNormalizing:     "Preparing weather data",
	PhaseForecasting:     "Forecasting temperature",
	PhaseCompleted:       "Analysis complete",
	PhaseFailed:          "Analysis failed",
	PhaseCancelled:       "Analysis cancelled",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Description is the progress text shown to users.
func (p Phase) Description() string {
	if p < 0 || int(p) >= len(phaseDescriptions) {
		return ""
	}
	return phaseDescriptions[p]
}

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
