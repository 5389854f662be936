package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersUseNormalizedLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordSequenceAllocation("INV_VAT")
	m.RecordSequenceAllocation("inv_vat")
	m.RecordAllocation("")
	m.RecordReceiptIssued()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sequenceAllocations.WithLabelValues("inv_vat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.receiptsIssued))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordInvoiceIssued("VAT")
		m.RecordAllocation("accepted")
		m.RecordReceiptIssued()
	})
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
