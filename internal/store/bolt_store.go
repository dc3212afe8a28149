package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
)

const (
	bucketPlayers = "players"
	bucketCourses = "courses"
	bucketBaskets = "baskets"
	bucketGames   = "games"
	bucketScores  = "scores"
)

var buckets = []string{bucketPlayers, bucketCourses, bucketBaskets, bucketGames, bucketScores}

// BoltStore persists the entity graph in a bbolt database, one bucket per
// entity kind with JSON-encoded values.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at dbPath.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) get(bucket, key string, dst any) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, dst)
	})
	if err != nil {
		return false, fmt.Errorf("reading %s row: %w", bucket, err)
	}
	return found, nil
}

func (s *BoltStore) Player(uuid string) (domain.Player, bool, error) {
	var p domain.Player
	found, err := s.get(bucketPlayers, uuid, &p)
	return p, found, err
}

func (s *BoltStore) Players() ([]domain.Player, error) {
	var out []domain.Player
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketPlayers)).ForEach(func(k, v []byte) error {
			var p domain.Player
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Course(uuid string) (domain.Course, bool, error) {
	var c domain.Course
	found, err := s.get(bucketCourses, uuid, &c)
	return c, found, err
}

func (s *BoltStore) Courses() ([]domain.Course, error) {
	var out []domain.Course
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketCourses)).ForEach(func(k, v []byte) error {
			var c domain.Course
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) BasketsByCourse(courseUUID string) ([]domain.Basket, error) {
	out := make([]domain.Basket, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBaskets)).ForEach(func(k, v []byte) error {
			var b domain.Basket
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			if b.CourseUUID == courseUUID {
				out = append(out, b)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	domain.SortBaskets(out)
	return out, nil
}

func (s *BoltStore) Game(uuid string) (domain.Game, bool, error) {
	var g domain.Game
	found, err := s.get(bucketGames, uuid, &g)
	return g, found, err
}

func (s *BoltStore) Games() ([]domain.Game, error) {
	var out []domain.Game
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketGames)).ForEach(func(k, v []byte) error {
			var g domain.Game
			if err := json.Unmarshal(v, &g); err != nil {
				return err
			}
			out = append(out, g)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) GamesByCourse(courseUUID string) ([]domain.Game, error) {
	all, err := s.Games()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Game, 0)
	for _, g := range all {
		if g.CourseUUID == courseUUID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *BoltStore) ScoresByGame(gameUUID string) ([]domain.PlayerScore, error) {
	out := make([]domain.PlayerScore, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketScores)).ForEach(func(k, v []byte) error {
			var sc domain.PlayerScore
			if err := json.Unmarshal(v, &sc); err != nil {
				return err
			}
			if sc.GameUUID == gameUUID {
				out = append(out, sc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// boltTx writes directly into the open bbolt transaction; bbolt gives the
// all-or-nothing commit.
type boltTx struct {
	tx *bolt.Tx
}

func (t boltTx) put(bucket, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling %s row: %w", bucket, err)
	}
	return t.tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

func (t boltTx) PutPlayer(p domain.Player) error     { return t.put(bucketPlayers, p.UUID, p) }
func (t boltTx) PutCourse(c domain.Course) error     { return t.put(bucketCourses, c.UUID, c) }
func (t boltTx) PutBasket(b domain.Basket) error     { return t.put(bucketBaskets, b.UUID, b) }
func (t boltTx) PutGame(g domain.Game) error         { return t.put(bucketGames, g.UUID, g) }
func (t boltTx) PutScore(s domain.PlayerScore) error { return t.put(bucketScores, s.Key(), s) }

func (t boltTx) DeleteBasket(uuid string) error {
	return t.tx.Bucket([]byte(bucketBaskets)).Delete([]byte(uuid))
}

func (s *BoltStore) Update(fn func(Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

func (s *BoltStore) DeleteGame(uuid string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketGames)).Delete([]byte(uuid)); err != nil {
			return err
		}
		return deleteScoresWhere(tx, func(sc domain.PlayerScore) bool {
			return sc.GameUUID == uuid
		})
	})
}

func (s *BoltStore) DeletePlayer(uuid string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketPlayers)).Delete([]byte(uuid)); err != nil {
			return err
		}
		return deleteScoresWhere(tx, func(sc domain.PlayerScore) bool {
			return sc.PlayerUUID == uuid
		})
	})
}

func (s *BoltStore) DeleteCourse(uuid string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketCourses)).Delete([]byte(uuid)); err != nil {
			return err
		}
		if err := deleteWhere(tx, bucketBaskets, func(v []byte) (bool, error) {
			var b domain.Basket
			if err := json.Unmarshal(v, &b); err != nil {
				return false, err
			}
			return b.CourseUUID == uuid, nil
		}); err != nil {
			return err
		}

		gameIDs := make(map[string]struct{})
		if err := deleteWhere(tx, bucketGames, func(v []byte) (bool, error) {
			var g domain.Game
			if err := json.Unmarshal(v, &g); err != nil {
				return false, err
			}
			if g.CourseUUID == uuid {
				gameIDs[g.UUID] = struct{}{}
				return true, nil
			}
			return false, nil
		}); err != nil {
			return err
		}
		return deleteScoresWhere(tx, func(sc domain.PlayerScore) bool {
			_, ok := gameIDs[sc.GameUUID]
			return ok
		})
	})
}

func deleteScoresWhere(tx *bolt.Tx, match func(domain.PlayerScore) bool) error {
	return deleteWhere(tx, bucketScores, func(v []byte) (bool, error) {
		var sc domain.PlayerScore
		if err := json.Unmarshal(v, &sc); err != nil {
			return false, err
		}
		return match(sc), nil
	})
}

func deleteWhere(tx *bolt.Tx, bucket string, match func(v []byte) (bool, error)) error {
	b := tx.Bucket([]byte(bucket))

	var keys [][]byte
	err := b.ForEach(func(k, v []byte) error {
		ok, err := match(v)
		if err != nil {
			return err
		}
		if ok {
			keys = append(keys, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
