package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"pinit/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func (r *eventRepository) ListActive(ctx context.Context, viewer string, now time.Time) ([]*domain.Event, error) {
	query := `
		SELECT e.id, e.title, e.host, e.is_public, e.invited_friends, e.event_type,
		       e.latitude, e.longitude, e.is_auto_matched,
		       EXISTS (
		           SELECT 1 FROM event_attendees a
		           WHERE a.event_id = e.id AND a.username = $1
		       ) AS is_user_attending,
		       e.start_time, e.end_time
		FROM events e
		WHERE e.end_time >= $2
		ORDER BY e.start_time ASC, e.id ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, viewer, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		e := &domain.Event{}
		var invited []string
		var typeNull sql.NullString
		var latNull, lngNull sql.NullFloat64
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Host, &e.IsPublic, pq.Array(&invited), &typeNull,
			&latNull, &lngNull, &e.IsAutoMatched, &e.IsUserAttending,
			&e.StartTime, &e.EndTime,
		); err != nil {
			return nil, err
		}
		if invited == nil {
			invited = []string{}
		}
		e.InvitedFriends = invited
		if typeNull.Valid {
			e.EventType = domain.EventType(typeNull.String)
		}
		if latNull.Valid && lngNull.Valid {
			e.Coordinate = &domain.Coordinate{Latitude: latNull.Float64, Longitude: lngNull.Float64}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
