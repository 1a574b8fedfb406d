package cds

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hyperjump/pama/internal/metrics"
	"github.com/hyperjump/pama/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHookRequest(t *testing.T) {
	hctx := PamaHandler{}.GenerateContext(State{DraftID: "d-1", Patient: models.Patient{ID: "p-1"}})
	a := NewHookRequest("order-sign", "p-1", hctx)
	b := NewHookRequest("order-sign", "p-1", hctx)

	assert.Equal(t, "order-sign", a.Hook)
	assert.Equal(t, "p-1", a.Context.PatientID)
	assert.Equal(t, hctx.Selections, a.Context.Selections)
	assert.Equal(t, hctx.DraftOrders, a.Context.DraftOrders)
	_, err := uuid.Parse(a.HookInstance)
	require.NoError(t, err)
	assert.NotEqual(t, a.HookInstance, b.HookInstance)
}

func TestCountingDispatcher(t *testing.T) {
	m := metrics.NewCollector()
	var forwarded []models.Action
	d := CountingDispatcher("pama/order-select", m, DispatchFunc(func(a models.Action) {
		forwarded = append(forwarded, a)
	}))

	d.Dispatch(models.Action{Type: models.ActionApplyPamaRating, ResourceID: "x", Rating: models.RatingAppropriate})
	d.Dispatch(models.Action{Type: models.ActionRemoveStudy})

	assert.Len(t, forwarded, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CDSRatingsDispatched.WithLabelValues("pama/order-select", "appropriate")))
}
