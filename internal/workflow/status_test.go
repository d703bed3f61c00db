package workflow

import (
	"testing"

	"github.com/localnerve/nodues/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDeriveAggregate(t *testing.T) {
	const (
		p = models.ApprovalPending
		a = models.ApprovalApproved
		r = models.ApprovalRejected
	)
	tests := []struct {
		name     string
		current  models.AggregateStatus
		statuses []models.ApprovalStatus
		want     models.AggregateStatus
	}{
		{"untouched", models.AggregatePending, []models.ApprovalStatus{p, p}, models.AggregatePending},
		{"one approved", models.AggregatePending, []models.ApprovalStatus{a, p}, models.AggregateInProgress},
		{"all approved", models.AggregateInProgress, []models.ApprovalStatus{a, a}, models.AggregateCompleted},
		{"rejection wins over approvals", models.AggregateInProgress, []models.ApprovalStatus{a, r, a}, models.AggregateRejected},
		{"rejection wins over pending", models.AggregatePending, []models.ApprovalStatus{p, r}, models.AggregateRejected},
		{"no regress after reapply", models.AggregateRejected, []models.ApprovalStatus{p, p}, models.AggregateInProgress},
		{"no regress from in progress", models.AggregateInProgress, []models.ApprovalStatus{p}, models.AggregateInProgress},
		{"new application", "", []models.ApprovalStatus{p}, models.AggregatePending},
		{"empty keeps current", models.AggregateInProgress, nil, models.AggregateInProgress},
		{"empty new", "", nil, models.AggregatePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveAggregate(tt.current, tt.statuses))
		})
	}
}

func TestManualAggregate(t *testing.T) {
	assert.Equal(t, models.AggregatePending, manualAggregate(models.ManualPendingReview))
	assert.Equal(t, models.AggregateCompleted, manualAggregate(models.ManualApproved))
	assert.Equal(t, models.AggregateRejected, manualAggregate(models.ManualRejected))
}
