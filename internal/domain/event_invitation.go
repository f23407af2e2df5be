package domain

import (
	"context"
	"time"
)

// InvitationStatus is the invitee's response to an invitation.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
)

// EventInvitation invites a user to an event. AutoMatched is set when the backend suggested
// the event from interest and skill similarity rather than a host inviting a friend.
// swagger:model EventInvitation
type EventInvitation struct {
	EventID     string           `json:"event_id"`
	Invitee     string           `json:"invitee"`
	AutoMatched bool             `json:"auto_matched"`
	Status      InvitationStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}

// IsPotentialMatch reports whether the invitation is an auto-match the invitee has not answered.
func (i *EventInvitation) IsPotentialMatch() bool {
	return i.AutoMatched && i.Status == InvitationStatusPending
}

// EventInvitationRepository defines storage operations for event invitations.
type EventInvitationRepository interface {
	ListByInvitee(ctx context.Context, username string) ([]*EventInvitation, error)
}
