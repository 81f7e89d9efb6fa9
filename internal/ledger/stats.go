package ledger

import (
	"context"

	"shuttle-ticket/models"
)

// CountTripsByStatus returns the number of trips per status.
func (s *Store) CountTripsByStatus(ctx context.Context) (map[models.TripStatus]int64, error) {
	var rows []struct {
		Status string `db:"status"`
		Total  int64  `db:"total"`
	}
	err := s.builder(ctx).
		Select("status", "COUNT(*) AS total").
		From("trips").
		GroupBy("status").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, translate(err)
	}

	counts := make(map[models.TripStatus]int64, len(rows))
	for _, r := range rows {
		counts[models.TripStatus(r.Status)] = r.Total
	}
	return counts, nil
}
