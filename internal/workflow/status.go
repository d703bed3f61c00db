package workflow

import "github.com/localnerve/nodues/internal/models"

// DeriveAggregate computes an application's aggregate status from its
// approval records. current is the stored aggregate; it only matters for the
// rule that pending is never re-entered once any record has left pending.
//
//   - any rejected            -> rejected
//   - all approved            -> completed
//   - all pending, untouched  -> pending
//   - otherwise               -> in_progress
func DeriveAggregate(current models.AggregateStatus, statuses []models.ApprovalStatus) models.AggregateStatus {
	if len(statuses) == 0 {
		if current == "" {
			return models.AggregatePending
		}
		return current
	}

	approved, pending := 0, 0
	for _, s := range statuses {
		switch s {
		case models.ApprovalRejected:
			return models.AggregateRejected
		case models.ApprovalApproved:
			approved++
		default:
			pending++
		}
	}

	switch {
	case approved == len(statuses):
		return models.AggregateCompleted
	case pending == len(statuses) && (current == "" || current == models.AggregatePending):
		return models.AggregatePending
	}
	return models.AggregateInProgress
}

// manualAggregate maps a manual entry's admin status onto the aggregate.
func manualAggregate(s models.ManualStatus) models.AggregateStatus {
	switch s {
	case models.ManualApproved:
		return models.AggregateCompleted
	case models.ManualRejected:
		return models.AggregateRejected
	}
	return models.AggregatePending
}

func statusesOf(recs []models.ApprovalRecord) []models.ApprovalStatus {
	out := make([]models.ApprovalStatus, len(recs))
	for i, r := range recs {
		out[i] = r.Status
	}
	return out
}
