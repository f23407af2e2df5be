package postgres

import (
	"context"
	"database/sql"

	"pinit/internal/domain"
)

type eventInvitationRepository struct {
	DB *sql.DB
}

func NewEventInvitationRepository(db *sql.DB) domain.EventInvitationRepository {
	return &eventInvitationRepository{
		DB: db,
	}
}

func (r *eventInvitationRepository) ListByInvitee(ctx context.Context, username string) ([]*domain.EventInvitation, error) {
	query := `
		SELECT event_id, invitee, auto_matched, status, created_at
		FROM event_invitations
		WHERE invitee = $1
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []*domain.EventInvitation
	for rows.Next() {
		inv := &domain.EventInvitation{}
		var status string
		if err := rows.Scan(&inv.EventID, &inv.Invitee, &inv.AutoMatched, &status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.Status = domain.InvitationStatus(status)
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if invs == nil {
		invs = []*domain.EventInvitation{}
	}
	return invs, nil
}
