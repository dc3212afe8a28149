// Package scorecard drives local play: course and player management, game
// lifecycle, and per-hole score entry.
package scorecard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
	"github.com/justinlawrence/disc-golf-tracker/internal/metrics"
	"github.com/justinlawrence/disc-golf-tracker/internal/score"
	"github.com/justinlawrence/disc-golf-tracker/internal/snapshot"
	"github.com/justinlawrence/disc-golf-tracker/internal/store"
)

const (
	opIncrement = "increment"
	opDecrement = "decrement"
)

// Broadcaster receives a notification after every committed game mutation.
// The live-session relay implements it; without a session it stays nil.
type Broadcaster interface {
	GameChanged(ctx context.Context, gameUUID string)
}

// HoleSpec describes one hole when creating or extending a course.
type HoleSpec struct {
	Number   int
	Par      string
	Distance string
}

// Scorecard is the full view of one game.
type Scorecard struct {
	Game    domain.Game
	Course  domain.Course
	Baskets []domain.Basket
	Scores  []domain.PlayerScore
	Players []domain.Player
}

// Service owns all local game mutations. Score entry is a read-modify-write
// sequence, so the service serializes mutations with a lock rather than
// relying on store atomicity alone.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	mu          sync.Mutex
	broadcaster Broadcaster
}

// New constructs a Service over the given store.
func New(st store.Store, logger *slog.Logger, recorder *metrics.Recorder) *Service {
	return &Service{
		store:   st,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
}

// SetBroadcaster wires the live-session notifier. Passing nil detaches it.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	s.broadcaster = b
	s.mu.Unlock()
}

// CreatePlayer adds a locally owned player.
func (s *Service) CreatePlayer(name, color string) (domain.Player, error) {
	if name == "" {
		return domain.Player{}, fmt.Errorf("player name is required")
	}
	p := domain.NewPlayer(name, color)
	err := s.store.Update(func(tx store.Tx) error {
		return tx.PutPlayer(p)
	})
	if err != nil {
		return domain.Player{}, fmt.Errorf("creating player: %w", err)
	}
	logging.Info(s.logger, "player created", logging.FieldPlayerID, p.UUID)
	return p, nil
}

// CreateCourse adds a course with its holes. Holes without an explicit
// number are numbered by position, starting at 1.
func (s *Service) CreateCourse(name string, lat, lon *float64, holes []HoleSpec) (domain.Course, []domain.Basket, error) {
	if name == "" {
		return domain.Course{}, nil, fmt.Errorf("course name is required")
	}
	course := domain.NewCourse(name)
	course.Latitude = lat
	course.Longitude = lon

	baskets := make([]domain.Basket, 0, len(holes))
	for i, h := range holes {
		number := h.Number
		if number <= 0 {
			number = i + 1
		}
		b := domain.NewBasket(course.UUID, number)
		b.Par = h.Par
		b.Distance = h.Distance
		baskets = append(baskets, b)
	}
	domain.SortBaskets(baskets)

	err := s.store.Update(func(tx store.Tx) error {
		if err := tx.PutCourse(course); err != nil {
			return err
		}
		for _, b := range baskets {
			if err := tx.PutBasket(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Course{}, nil, fmt.Errorf("creating course: %w", err)
	}
	logging.Info(s.logger, "course created",
		logging.FieldCourseID, course.UUID, logging.FieldCount, len(baskets))
	return course, baskets, nil
}

// AddBasket appends a hole to an existing course. Games already started on
// the course keep their score matrix as it was at start time; the new hole
// only appears in games started afterwards.
func (s *Service) AddBasket(courseUUID string, spec HoleSpec) (domain.Basket, error) {
	course, ok, err := s.store.Course(courseUUID)
	if err != nil {
		return domain.Basket{}, fmt.Errorf("loading course: %w", err)
	}
	if !ok {
		return domain.Basket{}, fmt.Errorf("course %s: %w", courseUUID, store.ErrNotFound)
	}

	number := spec.Number
	if number <= 0 {
		existing, err := s.store.BasketsByCourse(course.UUID)
		if err != nil {
			return domain.Basket{}, fmt.Errorf("loading baskets: %w", err)
		}
		for _, b := range existing {
			if b.Number >= number {
				number = b.Number + 1
			}
		}
		if number <= 0 {
			number = 1
		}
	}
	b := domain.NewBasket(course.UUID, number)
	b.Par = spec.Par
	b.Distance = spec.Distance

	err = s.store.Update(func(tx store.Tx) error {
		return tx.PutBasket(b)
	})
	if err != nil {
		return domain.Basket{}, fmt.Errorf("creating basket: %w", err)
	}
	return b, nil
}

// StartGame begins a round on a course and materializes one unplayed score
// row per hole and player. The matrix is fixed at this moment; holes added
// to the course later do not join a running game.
func (s *Service) StartGame(courseUUID string, playerUUIDs []string) (domain.Game, error) {
	if len(playerUUIDs) == 0 {
		return domain.Game{}, fmt.Errorf("at least one player is required")
	}
	course, ok, err := s.store.Course(courseUUID)
	if err != nil {
		return domain.Game{}, fmt.Errorf("loading course: %w", err)
	}
	if !ok {
		return domain.Game{}, fmt.Errorf("course %s: %w", courseUUID, store.ErrNotFound)
	}

	players := make([]domain.Player, 0, len(playerUUIDs))
	for _, id := range playerUUIDs {
		p, ok, err := s.store.Player(id)
		if err != nil {
			return domain.Game{}, fmt.Errorf("loading player: %w", err)
		}
		if !ok {
			return domain.Game{}, fmt.Errorf("player %s: %w", id, store.ErrNotFound)
		}
		players = append(players, p)
	}
	baskets, err := s.store.BasketsByCourse(course.UUID)
	if err != nil {
		return domain.Game{}, fmt.Errorf("loading baskets: %w", err)
	}

	game := domain.NewGame(course.UUID, s.now())
	err = s.store.Update(func(tx store.Tx) error {
		if err := tx.PutGame(game); err != nil {
			return err
		}
		for _, b := range baskets {
			for _, p := range players {
				cell := domain.PlayerScore{
					GameUUID:   game.UUID,
					BasketUUID: b.UUID,
					PlayerUUID: p.UUID,
				}
				if err := tx.PutScore(cell); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return domain.Game{}, fmt.Errorf("starting game: %w", err)
	}
	logging.Info(s.logger, "game started",
		logging.FieldGameID, game.UUID,
		logging.FieldCourseID, course.UUID,
		logging.FieldCount, len(baskets)*len(players),
	)
	return game, nil
}

// IncrementScore advances one cell. An unplayed cell jumps straight to the
// hole's par so the common "made par" entry is a single tap.
func (s *Service) IncrementScore(ctx context.Context, gameUUID, basketUUID, playerUUID string) (int, error) {
	return s.mutateScore(ctx, gameUUID, basketUUID, playerUUID, opIncrement)
}

// DecrementScore lowers one cell, never below the unplayed sentinel.
func (s *Service) DecrementScore(ctx context.Context, gameUUID, basketUUID, playerUUID string) (int, error) {
	return s.mutateScore(ctx, gameUUID, basketUUID, playerUUID, opDecrement)
}

func (s *Service) mutateScore(ctx context.Context, gameUUID, basketUUID, playerUUID, op string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, err := s.game(gameUUID)
	if err != nil {
		return 0, err
	}
	cell, err := s.scoreCell(gameUUID, basketUUID, playerUUID)
	if err != nil {
		return 0, err
	}

	switch op {
	case opIncrement:
		par := ""
		baskets, err := s.store.BasketsByCourse(game.CourseUUID)
		if err != nil {
			return 0, fmt.Errorf("loading baskets: %w", err)
		}
		for _, b := range baskets {
			if b.UUID == basketUUID {
				par = b.Par
				break
			}
		}
		cell.Score = score.Increment(cell.Score, par)
	case opDecrement:
		cell.Score = score.Decrement(cell.Score)
	default:
		return 0, fmt.Errorf("unknown score operation %q", op)
	}

	err = s.store.Update(func(tx store.Tx) error {
		return tx.PutScore(cell)
	})
	if err != nil {
		return 0, fmt.Errorf("saving score: %w", err)
	}
	s.metrics.RecordScoreMutation(op)
	s.notify(ctx, gameUUID)
	return cell.Score, nil
}

// SetCurrentHole moves the shared position cursor. The index may point one
// past the last hole, which is the results view.
func (s *Service) SetCurrentHole(ctx context.Context, gameUUID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, err := s.game(gameUUID)
	if err != nil {
		return err
	}
	baskets, err := s.store.BasketsByCourse(game.CourseUUID)
	if err != nil {
		return fmt.Errorf("loading baskets: %w", err)
	}
	if index < 0 || index > len(baskets) {
		return fmt.Errorf("hole index %d out of range [0, %d]", index, len(baskets))
	}

	game.CurrentHoleIndex = index
	err = s.store.Update(func(tx store.Tx) error {
		return tx.PutGame(game)
	})
	if err != nil {
		return fmt.Errorf("saving game: %w", err)
	}
	s.notify(ctx, gameUUID)
	return nil
}

// FinishGame stamps the end date. Finishing a finished game is a no-op.
func (s *Service) FinishGame(ctx context.Context, gameUUID string) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, err := s.game(gameUUID)
	if err != nil {
		return domain.Game{}, err
	}
	if !game.InProgress() {
		return game, nil
	}

	ended := s.now()
	game.EndDate = &ended
	err = s.store.Update(func(tx store.Tx) error {
		return tx.PutGame(game)
	})
	if err != nil {
		return domain.Game{}, fmt.Errorf("finishing game: %w", err)
	}
	logging.Info(s.logger, "game finished", logging.FieldGameID, game.UUID)
	s.notify(ctx, gameUUID)
	return game, nil
}

// Scorecard assembles the full view of one game.
func (s *Service) Scorecard(gameUUID string) (Scorecard, error) {
	game, err := s.game(gameUUID)
	if err != nil {
		return Scorecard{}, err
	}
	course, _, err := s.store.Course(game.CourseUUID)
	if err != nil {
		return Scorecard{}, fmt.Errorf("loading course: %w", err)
	}
	baskets, err := s.store.BasketsByCourse(game.CourseUUID)
	if err != nil {
		return Scorecard{}, fmt.Errorf("loading baskets: %w", err)
	}
	scores, err := s.store.ScoresByGame(game.UUID)
	if err != nil {
		return Scorecard{}, fmt.Errorf("loading scores: %w", err)
	}

	seen := make(map[string]struct{})
	var players []domain.Player
	for _, sc := range scores {
		if _, dup := seen[sc.PlayerUUID]; dup {
			continue
		}
		seen[sc.PlayerUUID] = struct{}{}
		if p, ok, err := s.store.Player(sc.PlayerUUID); err != nil {
			return Scorecard{}, fmt.Errorf("loading player: %w", err)
		} else if ok {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].UUID < players[j].UUID })

	return Scorecard{
		Game:    game,
		Course:  course,
		Baskets: baskets,
		Scores:  scores,
		Players: players,
	}, nil
}

// Snapshot flattens one game into its transferable form.
func (s *Service) Snapshot(gameUUID string) (snapshot.SharedGame, error) {
	card, err := s.Scorecard(gameUUID)
	if err != nil {
		return snapshot.SharedGame{}, err
	}
	return snapshot.Encode(card.Game, card.Course, card.Baskets, card.Scores, card.Players), nil
}

// BestRound returns the lowest finished round ever recorded on a course.
func (s *Service) BestRound(courseUUID string) (domain.RoundResult, bool, error) {
	games, err := s.store.GamesByCourse(courseUUID)
	if err != nil {
		return domain.RoundResult{}, false, fmt.Errorf("loading games: %w", err)
	}
	scoresByGame := make(map[string][]domain.PlayerScore, len(games))
	for _, g := range games {
		scores, err := s.store.ScoresByGame(g.UUID)
		if err != nil {
			return domain.RoundResult{}, false, fmt.Errorf("loading scores: %w", err)
		}
		scoresByGame[g.UUID] = scores
	}
	all, err := s.store.Players()
	if err != nil {
		return domain.RoundResult{}, false, fmt.Errorf("loading players: %w", err)
	}
	players := make(map[string]domain.Player, len(all))
	for _, p := range all {
		players[p.UUID] = p
	}
	best, ok := domain.BestRound(games, scoresByGame, players)
	return best, ok, nil
}

// Players lists all known players.
func (s *Service) Players() ([]domain.Player, error) {
	players, err := s.store.Players()
	if err != nil {
		return nil, err
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players, nil
}

// Courses lists all known courses.
func (s *Service) Courses() ([]domain.Course, error) {
	courses, err := s.store.Courses()
	if err != nil {
		return nil, err
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

// DeleteGame removes a game and its scores.
func (s *Service) DeleteGame(gameUUID string) error {
	if err := s.store.DeleteGame(gameUUID); err != nil {
		return fmt.Errorf("deleting game: %w", err)
	}
	logging.Info(s.logger, "game deleted", logging.FieldGameID, gameUUID)
	return nil
}

// DeletePlayer removes a player and their score rows.
func (s *Service) DeletePlayer(playerUUID string) error {
	if err := s.store.DeletePlayer(playerUUID); err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	logging.Info(s.logger, "player deleted", logging.FieldPlayerID, playerUUID)
	return nil
}

// DeleteCourse removes a course with its baskets, games, and scores.
func (s *Service) DeleteCourse(courseUUID string) error {
	if err := s.store.DeleteCourse(courseUUID); err != nil {
		return fmt.Errorf("deleting course: %w", err)
	}
	logging.Info(s.logger, "course deleted", logging.FieldCourseID, courseUUID)
	return nil
}

func (s *Service) game(gameUUID string) (domain.Game, error) {
	game, ok, err := s.store.Game(gameUUID)
	if err != nil {
		return domain.Game{}, fmt.Errorf("loading game: %w", err)
	}
	if !ok {
		return domain.Game{}, fmt.Errorf("game %s: %w", gameUUID, store.ErrNotFound)
	}
	return game, nil
}

func (s *Service) scoreCell(gameUUID, basketUUID, playerUUID string) (domain.PlayerScore, error) {
	scores, err := s.store.ScoresByGame(gameUUID)
	if err != nil {
		return domain.PlayerScore{}, fmt.Errorf("loading scores: %w", err)
	}
	for _, sc := range scores {
		if sc.BasketUUID == basketUUID && sc.PlayerUUID == playerUUID {
			return sc, nil
		}
	}
	return domain.PlayerScore{}, fmt.Errorf("score %s: %w",
		domain.ScoreKey(gameUUID, basketUUID, playerUUID), store.ErrNotFound)
}

func (s *Service) notify(ctx context.Context, gameUUID string) {
	if s.broadcaster != nil {
		s.broadcaster.GameChanged(ctx, gameUUID)
	}
}
