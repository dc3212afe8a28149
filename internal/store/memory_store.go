package store

import (
	"sync"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
)

// MemoryStore keeps a thread-safe copy of the entity graph in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[string]domain.Player
	courses map[string]domain.Course
	baskets map[string]domain.Basket
	games   map[string]domain.Game
	scores  map[string]domain.PlayerScore
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]domain.Player),
		courses: make(map[string]domain.Course),
		baskets: make(map[string]domain.Basket),
		games:   make(map[string]domain.Game),
		scores:  make(map[string]domain.PlayerScore),
	}
}

func (s *MemoryStore) Player(uuid string) (domain.Player, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[uuid]
	return p, ok, nil
}

func (s *MemoryStore) Players() ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) Course(uuid string) (domain.Course, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[uuid]
	return c, ok, nil
}

func (s *MemoryStore) Courses() ([]domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) BasketsByCourse(courseUUID string) ([]domain.Basket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Basket, 0)
	for _, b := range s.baskets {
		if b.CourseUUID == courseUUID {
			out = append(out, b)
		}
	}
	domain.SortBaskets(out)
	return out, nil
}

func (s *MemoryStore) Game(uuid string) (domain.Game, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[uuid]
	return g, ok, nil
}

func (s *MemoryStore) Games() ([]domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	return out, nil
}

func (s *MemoryStore) GamesByCourse(courseUUID string) ([]domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Game, 0)
	for _, g := range s.games {
		if g.CourseUUID == courseUUID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *MemoryStore) ScoresByGame(gameUUID string) ([]domain.PlayerScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PlayerScore, 0)
	for _, sc := range s.scores {
		if sc.GameUUID == gameUUID {
			out = append(out, sc)
		}
	}
	return out, nil
}

// memTx buffers writes and commits them under the store lock only when the
// unit of work succeeds.
type memTx struct {
	players       []domain.Player
	courses       []domain.Course
	baskets       []domain.Basket
	games         []domain.Game
	scores        []domain.PlayerScore
	basketDeletes []string
}

func (t *memTx) PutPlayer(p domain.Player) error     { t.players = append(t.players, p); return nil }
func (t *memTx) PutCourse(c domain.Course) error     { t.courses = append(t.courses, c); return nil }
func (t *memTx) PutBasket(b domain.Basket) error     { t.baskets = append(t.baskets, b); return nil }
func (t *memTx) PutGame(g domain.Game) error         { t.games = append(t.games, g); return nil }
func (t *memTx) PutScore(s domain.PlayerScore) error { t.scores = append(t.scores, s); return nil }

func (t *memTx) DeleteBasket(uuid string) error {
	t.basketDeletes = append(t.basketDeletes, uuid)
	return nil
}

func (s *MemoryStore) Update(fn func(Tx) error) error {
	tx := &memTx{}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uuid := range tx.basketDeletes {
		delete(s.baskets, uuid)
	}
	for _, p := range tx.players {
		s.players[p.UUID] = p
	}
	for _, c := range tx.courses {
		s.courses[c.UUID] = c
	}
	for _, b := range tx.baskets {
		s.baskets[b.UUID] = b
	}
	for _, g := range tx.games {
		s.games[g.UUID] = g
	}
	for _, sc := range tx.scores {
		s.scores[sc.Key()] = sc
	}
	return nil
}

func (s *MemoryStore) DeleteGame(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, uuid)
	for key, sc := range s.scores {
		if sc.GameUUID == uuid {
			delete(s.scores, key)
		}
	}
	return nil
}

func (s *MemoryStore) DeletePlayer(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, uuid)
	for key, sc := range s.scores {
		if sc.PlayerUUID == uuid {
			delete(s.scores, key)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteCourse(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.courses, uuid)
	for key, b := range s.baskets {
		if b.CourseUUID == uuid {
			delete(s.baskets, key)
		}
	}
	for key, g := range s.games {
		if g.CourseUUID != uuid {
			continue
		}
		delete(s.games, key)
		for skey, sc := range s.scores {
			if sc.GameUUID == g.UUID {
				delete(s.scores, skey)
			}
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
