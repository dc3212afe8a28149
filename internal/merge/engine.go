// Package merge reconciles incoming shared-game snapshots with local
// storage, identity-matching existing entities and creating missing ones.
package merge

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
	"github.com/justinlawrence/disc-golf-tracker/internal/metrics"
	"github.com/justinlawrence/disc-golf-tracker/internal/snapshot"
	"github.com/justinlawrence/disc-golf-tracker/internal/store"
)

// CourseHook is invoked after a merge materializes a course that was not
// present locally, e.g. to fill its locality asynchronously.
type CourseHook func(domain.Course)

// Engine applies snapshots to a local store.
type Engine struct {
	store    store.Store
	logger   *slog.Logger
	metrics  *metrics.Recorder
	now      func() time.Time
	onCourse CourseHook
}

// New constructs an Engine over the given store.
func New(st store.Store, logger *slog.Logger, recorder *metrics.Recorder) *Engine {
	return &Engine{
		store:   st,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
}

// OnCourseCreated registers a hook called for every course the engine
// materializes. Best-effort consumers only; the merge result does not depend
// on the hook.
func (e *Engine) OnCourseCreated(hook CourseHook) {
	e.onCourse = hook
}

// Import reconciles a snapshot with the local store. It returns the local
// game and whether it was newly materialized. A game that already exists is
// returned unchanged: game rows are immutable by identity once created, and
// score updates flow only through the live-relay apply path.
//
// All writes happen in one store transaction; a fault between steps rolls
// everything back.
func (e *Engine) Import(snap snapshot.SharedGame) (domain.Game, bool, error) {
	start := time.Now()
	game, created, err := e.importSnapshot(snap)
	if e.metrics != nil {
		e.metrics.RecordMerge(created, time.Since(start), err)
	}
	if err != nil {
		logging.Error(e.logger, "merge failed", err, logging.FieldGameID, snap.UUID)
		return domain.Game{}, false, err
	}
	return game, created, nil
}

func (e *Engine) importSnapshot(snap snapshot.SharedGame) (domain.Game, bool, error) {
	if snap.UUID == "" {
		return domain.Game{}, false, fmt.Errorf("snapshot has no game uuid")
	}

	// Step 1: a game we already have is a no-op, surfaced to the caller as
	// created=false so the UI can say "already exists" instead of opening a
	// duplicate.
	if existing, ok, err := e.store.Game(snap.UUID); err != nil {
		return domain.Game{}, false, fmt.Errorf("looking up game: %w", err)
	} else if ok {
		logging.Info(e.logger, "merge found existing game", logging.FieldGameID, snap.UUID)
		return existing, false, nil
	}

	// Step 2: course resolution. A local course satisfies the snapshot only
	// when it exists and its basket count matches. Count equality is the
	// documented stand-in for structural equality: matching par/distance is
	// not checked.
	rc, err := e.resolveCourse(snap)
	if err != nil {
		return domain.Game{}, false, err
	}
	course := rc.course

	// Step 4 reads happen before the write transaction opens.
	newPlayers, allPlayers, err := e.resolvePlayers(snap)
	if err != nil {
		return domain.Game{}, false, err
	}

	game := domain.Game{
		UUID:             snap.UUID,
		CourseUUID:       course.UUID,
		StartDate:        startDate(snap, e.now),
		EndDate:          endDate(snap),
		CurrentHoleIndex: snap.CurrentBasketIndex,
		IsShared:         true,
	}

	scores := materializeScores(game, rc.baskets, allPlayers, snap)

	err = e.store.Update(func(tx store.Tx) error {
		if rc.created {
			if err := tx.PutCourse(course); err != nil {
				return fmt.Errorf("creating course: %w", err)
			}
		}
		if rc.rebuilt {
			for _, b := range rc.stale {
				if err := tx.DeleteBasket(b.UUID); err != nil {
					return fmt.Errorf("removing basket %d: %w", b.Number, err)
				}
			}
			for _, b := range rc.baskets {
				if err := tx.PutBasket(b); err != nil {
					return fmt.Errorf("creating basket %d: %w", b.Number, err)
				}
			}
		}
		if err := tx.PutGame(game); err != nil {
			return fmt.Errorf("creating game: %w", err)
		}
		for _, p := range newPlayers {
			if err := tx.PutPlayer(p); err != nil {
				return fmt.Errorf("creating player %s: %w", p.UUID, err)
			}
		}
		for _, s := range scores {
			if err := tx.PutScore(s); err != nil {
				return fmt.Errorf("creating score: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Game{}, false, err
	}

	if rc.created && e.onCourse != nil {
		e.onCourse(course)
	}
	logging.Info(e.logger, "merge materialized game",
		logging.FieldGameID, game.UUID,
		logging.FieldCourseID, course.UUID,
		logging.FieldCount, len(scores),
	)
	return game, true, nil
}

// resolvedCourse carries the course a merge will attach the game to. When the
// local hole layout does not satisfy the snapshot, rebuilt is set and baskets
// holds the snapshot-derived replacement; stale lists local baskets that are
// no longer part of the layout.
type resolvedCourse struct {
	course  domain.Course
	baskets []domain.Basket
	stale   []domain.Basket
	created bool
	rebuilt bool
}

func (e *Engine) resolveCourse(snap snapshot.SharedGame) (resolvedCourse, error) {
	existing, ok, err := e.store.Course(snap.CourseID)
	if err != nil {
		return resolvedCourse{}, fmt.Errorf("looking up course: %w", err)
	}
	var local []domain.Basket
	if ok {
		local, err = e.store.BasketsByCourse(existing.UUID)
		if err != nil {
			return resolvedCourse{}, fmt.Errorf("loading baskets: %w", err)
		}
		if len(local) == len(snap.Baskets) {
			return resolvedCourse{course: existing, baskets: local}, nil
		}
	}

	// A known course keeps its row: the user's name, locality, and
	// coordinates are local facts the wire must not overwrite. Only the hole
	// layout is replaced.
	course := existing
	if !ok {
		course = domain.Course{
			UUID:      snap.CourseID,
			Name:      snap.CourseName,
			Latitude:  snap.CourseLatitude,
			Longitude: snap.CourseLongitude,
			IsShared:  true,
		}
	}
	baskets := make([]domain.Basket, 0, len(snap.Baskets))
	for _, sb := range snap.Baskets {
		b := domain.Basket{
			UUID:             sb.BasketID,
			CourseUUID:       course.UUID,
			Number:           sb.Number,
			Par:              sb.Par,
			Distance:         sb.Distance,
			TeeLatitudes:     sb.TeeLatitudes,
			TeeLongitudes:    sb.TeeLongitudes,
			BasketLatitudes:  sb.BasketLatitudes,
			BasketLongitudes: sb.BasketLongitudes,
		}
		if b.UUID == "" {
			b.UUID = domain.BasketUUID(course.UUID, sb.Number)
		}
		baskets = append(baskets, b)
	}
	domain.SortBaskets(baskets)

	keep := make(map[string]struct{}, len(baskets))
	for _, b := range baskets {
		keep[b.UUID] = struct{}{}
	}
	var stale []domain.Basket
	for _, b := range local {
		if _, kept := keep[b.UUID]; !kept {
			stale = append(stale, b)
		}
	}
	if ok {
		logging.Warn(e.logger, "course hole layout replaced from snapshot",
			logging.FieldCourseID, course.UUID,
			logging.FieldCount, len(baskets),
		)
	}
	return resolvedCourse{course: course, baskets: baskets, stale: stale, created: !ok, rebuilt: true}, nil
}

// resolvePlayers matches snapshot players by uuid. Missing ones are created
// flagged IsShared; existing local players are never renamed or recolored
// from the wire.
func (e *Engine) resolvePlayers(snap snapshot.SharedGame) (newPlayers, allPlayers []domain.Player, err error) {
	for _, sp := range snap.Players {
		existing, ok, err := e.store.Player(sp.PlayerUUID)
		if err != nil {
			return nil, nil, fmt.Errorf("looking up player: %w", err)
		}
		if ok {
			allPlayers = append(allPlayers, existing)
			continue
		}
		p := domain.Player{
			UUID:     sp.PlayerUUID,
			Name:     sp.Name,
			Color:    sp.Color,
			IsShared: true,
		}
		newPlayers = append(newPlayers, p)
		allPlayers = append(allPlayers, p)
	}
	return newPlayers, allPlayers, nil
}

// materializeScores builds one row per basket×player, seeded from the
// snapshot entry matched by basket number + player uuid, else the unplayed
// sentinel.
func materializeScores(game domain.Game, baskets []domain.Basket, players []domain.Player, snap snapshot.SharedGame) []domain.PlayerScore {
	byNumber := make(map[int]map[string]int, len(snap.Baskets))
	for _, sb := range snap.Baskets {
		cells := make(map[string]int, len(sb.PlayerScores))
		for _, ps := range sb.PlayerScores {
			cells[ps.Player.PlayerUUID] = ps.Score
		}
		byNumber[sb.Number] = cells
	}

	out := make([]domain.PlayerScore, 0, len(baskets)*len(players))
	for _, b := range baskets {
		for _, p := range players {
			s := domain.PlayerScore{
				GameUUID:   game.UUID,
				BasketUUID: b.UUID,
				PlayerUUID: p.UUID,
			}
			if cells, ok := byNumber[b.Number]; ok {
				s.Score = cells[p.UUID]
			}
			out = append(out, s)
		}
	}
	return out
}

func startDate(snap snapshot.SharedGame, now func() time.Time) time.Time {
	if t, ok := snapshot.ParseDate(snap.StartDate); ok {
		return t
	}
	return now()
}

func endDate(snap snapshot.SharedGame) *time.Time {
	if t, ok := snapshot.ParseDate(snap.EndDate); ok {
		return &t
	}
	return nil
}
