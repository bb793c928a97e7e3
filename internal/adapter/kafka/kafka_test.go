package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/couchcryptid/wildfire-analysis/internal/observability"
	"github.com/couchcryptid/wildfire-analysis/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafkago.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func (w *recordingWriter) keys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.msgs))
	for i, m := range w.msgs {
		out[i] = string(m.Key)
	}
	return out
}

func testResult(runID string) domain.AnalysisResult {
	temp := 33.4
	return domain.AnalysisResult{
		RunID:                runID,
		Location:             domain.GeoPoint{Name: "Jakarta", Latitude: -6.2, Longitude: 106.8},
		IsWildfire:           true,
		Confidence:           0.82,
		PredictedTemperature: &temp,
		CompletedAt:          time.Date(2026, 9, 14, 8, 30, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(testResult("run-1"))
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"is_wildfire":true`)
	assert.Contains(t, string(msg.Value), `"predicted_temperature":33.4`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "completed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-09-14T08:30:00Z"), msg.Headers[1].Value)
}

func TestPublisher_RunPublishesNewCommits(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Select(domain.GeoPoint{Latitude: -6.2, Longitude: 106.8}))
	v := s.Snapshot().LocationVersion
	require.True(t, s.CommitResult(v, testResult("before-subscribe")))

	w := &recordingWriter{}
	metrics := observability.NewMetricsForTesting()
	p := newPublisher(w, metrics, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, s) }()

	// Give Run a chance to subscribe before committing.
	assert.Eventually(t, func() bool {
		s.CommitResult(v, testResult("run-2"))
		return len(w.keys()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	keys := w.keys()
	assert.NotContains(t, keys, "before-subscribe")
	assert.Contains(t, keys, "run-2")
	assert.InDelta(t, float64(len(keys)), testutil.ToFloat64(metrics.ResultsPublished), 0)
}

func TestPublisher_RunSurvivesWriteErrors(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Select(domain.GeoPoint{Latitude: 1, Longitude: 2}))
	v := s.Snapshot().LocationVersion

	w := &recordingWriter{err: errors.New("broker unavailable")}
	metrics := observability.NewMetricsForTesting()
	p := newPublisher(w, metrics, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, s) }()

	assert.Eventually(t, func() bool {
		s.CommitResult(v, testResult("run-x"))
		return testutil.ToFloat64(metrics.PublishErrors) >= 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, testutil.ToFloat64(metrics.ResultsPublished))
}
