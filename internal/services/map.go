package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pinit/internal/cluster"
	"pinit/internal/domain"
	"pinit/internal/feed"
	"pinit/internal/matching"
)

// refreshAllLimit bounds how many viewers RefreshAll fetches at once.
const refreshAllLimit = 4

type mapService struct {
	eventRepo      domain.EventRepository
	invitationRepo domain.EventInvitationRepository
	userRepo       domain.UserRepository
	emailService   domain.EmailService
	store          *feed.Store
	clusterer      *cluster.Clusterer
	logger         *slog.Logger
	contextTimeout time.Duration
	idleTTL        time.Duration
	now            func() time.Time
}

// NewMapService returns a MapService backed by the given repositories and feed store.
// emailService may be nil to disable potential match notifications. Feeds nobody asked for
// within idleTTL are dropped by RefreshAll; zero keeps them forever.
func NewMapService(
	eventRepo domain.EventRepository,
	invitationRepo domain.EventInvitationRepository,
	userRepo domain.UserRepository,
	emailService domain.EmailService,
	store *feed.Store,
	clusterer *cluster.Clusterer,
	logger *slog.Logger,
	timeout time.Duration,
	idleTTL time.Duration,
) domain.MapService {
	return &mapService{
		eventRepo:      eventRepo,
		invitationRepo: invitationRepo,
		userRepo:       userRepo,
		emailService:   emailService,
		store:          store,
		clusterer:      clusterer,
		logger:         logger,
		contextTimeout: timeout,
		idleTTL:        idleTTL,
		now:            time.Now,
	}
}

func (s *mapService) Refresh(ctx context.Context, viewer string) (uint64, error) {
	if viewer == "" {
		return 0, domain.ErrInvalidInput
	}
	return s.refresh(ctx, viewer, true)
}

// refresh fetches viewer's events and invitations into a new generation. Background
// refreshes pass accessed=false so they do not keep an idle feed alive.
func (s *mapService) refresh(ctx context.Context, viewer string, accessed bool) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	gen := s.store.Begin(viewer)
	if accessed {
		s.store.Touch(viewer, s.now())
	}

	// Both fetches run to completion so that one failing does not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		events, err := s.eventRepo.ListActive(ctx, viewer, s.now())
		if err != nil {
			s.store.Dispatch(viewer, feed.RefreshFailed{Generation: gen, Err: err, At: s.now()})
			return fmt.Errorf("list events: %w", err)
		}
		s.store.Dispatch(viewer, feed.EventsFetched{Generation: gen, Events: events, At: s.now()})
		return nil
	})

	var added []string
	g.Go(func() error {
		invs, err := s.invitationRepo.ListByInvitee(ctx, viewer)
		if err != nil {
			s.store.Dispatch(viewer, feed.RefreshFailed{Generation: gen, Err: err, At: s.now()})
			return fmt.Errorf("list invitations: %w", err)
		}
		scanned := matching.ScanInvitations(invs, viewer)
		// Diff against the registry this scan replaced, not one read earlier, so that two
		// overlapping refreshes never both report the same match.
		before, applied := s.store.Apply(viewer, feed.MatchesScanned{Generation: gen, Registry: scanned, At: s.now()})
		if applied && before.MatchesLoaded {
			added = scanned.Added(before.Matches)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "feed refresh failed", "viewer", viewer, "generation", gen, "err", err)
		return gen, err
	}

	if len(added) > 0 {
		current, _ := s.store.Get(viewer)
		s.notifyNewMatches(ctx, viewer, current, added)
	}
	s.logger.DebugContext(ctx, "feed refreshed", "viewer", viewer, "generation", gen)
	return gen, nil
}

// load returns viewer's feed, refreshing it first if no event list was fetched yet.
// A failed first refresh yields an empty feed carrying the error.
func (s *mapService) load(ctx context.Context, viewer string) (feed.Feed, error) {
	if viewer == "" {
		return feed.Feed{}, domain.ErrInvalidInput
	}
	if f, ok := s.store.Get(viewer); ok && f.Loaded() {
		s.store.Touch(viewer, s.now())
		return f, nil
	}
	// refresh records its failure in the feed.
	_, _ = s.refresh(ctx, viewer, true)
	f, _ := s.store.Get(viewer)
	return f, nil
}

func (s *mapService) GetMap(ctx context.Context, viewer string, q domain.MapQuery) (*domain.MapView, error) {
	if math.IsNaN(q.Zoom) || math.IsInf(q.Zoom, 0) {
		return nil, domain.ErrInvalidInput
	}
	f, err := s.load(ctx, viewer)
	if err != nil {
		return nil, err
	}

	visible := matching.Filter(f.Events, viewer, q.Settings, f.Matches)
	if q.Bounds != nil {
		visible = withinBounds(visible, *q.Bounds)
	}
	clusters := s.clusterer.Cluster(visible, q.Zoom, q.Width, q.Height)

	return &domain.MapView{
		Generation:          f.Generation,
		Clusters:            clusters,
		VisibleCount:        len(visible),
		PotentialMatchCount: len(potentialMatches(f, viewer)),
		LastError:           f.LastError,
		UpdatedAt:           f.UpdatedAt,
	}, nil
}

func (s *mapService) ListVisible(ctx context.Context, viewer string, settings domain.FilterSettings, params domain.PaginationParams) ([]*domain.Event, int, error) {
	f, err := s.load(ctx, viewer)
	if err != nil {
		return nil, 0, err
	}
	visible := matching.Filter(f.Events, viewer, settings, f.Matches)
	start, end := params.Bounds(len(visible))
	return visible[start:end], len(visible), nil
}

func (s *mapService) ListPotentialMatches(ctx context.Context, viewer string) ([]*domain.Event, error) {
	f, err := s.load(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return potentialMatches(f, viewer), nil
}

func (s *mapService) RefreshAll(ctx context.Context) error {
	if s.idleTTL > 0 {
		if evicted := s.store.Evict(s.now().Add(-s.idleTTL)); len(evicted) > 0 {
			s.logger.InfoContext(ctx, "idle feeds evicted", "viewers", evicted)
		}
	}
	viewers := s.store.Viewers()
	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(refreshAllLimit)
	for _, viewer := range viewers {
		g.Go(func() error {
			if _, err := s.refresh(ctx, viewer, false); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("refresh %s: %w", viewer, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	s.logger.InfoContext(ctx, "feeds refreshed", "viewers", len(viewers), "failed", len(errs))
	return errors.Join(errs...)
}

func (s *mapService) Subscribe(viewer string) (<-chan domain.FeedUpdate, func()) {
	return s.store.Subscribe(viewer)
}

func (s *mapService) notifyNewMatches(ctx context.Context, viewer string, f feed.Feed, added []string) {
	if s.emailService == nil || s.userRepo == nil {
		return
	}
	wanted := make(map[string]struct{}, len(added))
	for _, id := range added {
		wanted[id] = struct{}{}
	}
	var events []*domain.Event
	for _, e := range f.Events {
		if _, ok := wanted[e.ID]; ok && matching.IsPotentialMatch(e, viewer, f.Matches) {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return
	}
	user, err := s.userRepo.GetByUsername(ctx, viewer)
	if err != nil {
		s.logger.WarnContext(ctx, "potential match notification skipped", "viewer", viewer, "err", err)
		return
	}
	data := &domain.PotentialMatchEmailData{Email: user.Email, FullName: user.FullName, Events: events}
	if err := s.emailService.SendPotentialMatch(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "potential match notification failed", "viewer", viewer, "err", err)
	}
}

// potentialMatches returns the feed's auto-matched events the viewer is invited to and not attending.
func potentialMatches(f feed.Feed, viewer string) []*domain.Event {
	out := make([]*domain.Event, 0)
	for _, e := range f.Events {
		if e.Host == viewer || e.IsUserAttending {
			continue
		}
		if matching.IsPotentialMatch(e, viewer, f.Matches) {
			out = append(out, e)
		}
	}
	return out
}

func withinBounds(events []*domain.Event, b domain.Bounds) []*domain.Event {
	out := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		if e.HasValidCoordinate() && b.Contains(*e.Coordinate) {
			out = append(out, e)
		}
	}
	return out
}
