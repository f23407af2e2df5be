package matching

import "pinit/internal/domain"

// ScanInvitations builds a fresh Registry from the viewer's invitations. Only pending,
// auto-matched invitations addressed to viewer are registered.
func ScanInvitations(invitations []*domain.EventInvitation, viewer string) *Registry {
	reg := NewRegistry()
	for _, inv := range invitations {
		if inv == nil || inv.Invitee != viewer {
			continue
		}
		if inv.IsPotentialMatch() {
			reg.Register(inv.EventID)
		}
	}
	return reg
}
