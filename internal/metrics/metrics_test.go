package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestQueueDepthGaugeUpdates(t *testing.T) {
	m := New(nil)
	m.QueueDepth.Set(7)

	var d dto.Metric
	require.NoError(t, m.QueueDepth.Write(&d))
	require.Equal(t, 7.0, d.GetGauge().GetValue())
}

func TestMessagesPublishedCounterVec(t *testing.T) {
	m := New(nil)
	m.MessagesPublished.WithLabelValues("/a").Inc()
	m.MessagesPublished.WithLabelValues("/a").Inc()
	m.MessagesPublished.WithLabelValues("/b").Inc()

	var d dto.Metric
	require.NoError(t, m.MessagesPublished.WithLabelValues("/a").Write(&d))
	require.Equal(t, 2.0, d.GetCounter().GetValue())
}
