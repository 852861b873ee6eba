package service

import (
	"sort"
	"time"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"

	"github.com/joinguard/joinguard/model"
	"github.com/joinguard/joinguard/pkg/log"
)

// Store persists verification records in a bolt bucket keyed by chatID:userID.
// It is the single source of truth; all mutation goes through the engine.
type Store struct {
	db *bolt.DB
}

func NewStore(db *bolt.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(key model.RecordKey) (*model.VerificationRecord, error) {
	var rec model.VerificationRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(model.BucketVerification))
		if bkt == nil {
			return model.ErrRecordNotFound
		}
		b := bkt.Get(key.Bytes())
		if b == nil {
			return model.ErrRecordNotFound
		}
		return jsoniter.Unmarshal(b, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) Upsert(rec *model.VerificationRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketVerification))
		if err != nil {
			return err
		}
		b, err := jsoniter.Marshal(rec)
		if err != nil {
			return err
		}
		return bkt.Put(rec.Key().Bytes(), b)
	})
}

func (s *Store) forEach(f func(rec *model.VerificationRecord)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(model.BucketVerification))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, b []byte) error {
			var rec model.VerificationRecord
			if err := jsoniter.Unmarshal(b, &rec); err != nil {
				log.Warn("store: skip invalid record %v: %v", string(k), err)
				return nil
			}
			f(&rec)
			return nil
		})
	})
}

// ListNonTerminal returns every pending record, used to rebuild timers after a
// restart.
func (s *Store) ListNonTerminal() ([]*model.VerificationRecord, error) {
	var recs []*model.VerificationRecord
	err := s.forEach(func(rec *model.VerificationRecord) {
		if !rec.Terminal() {
			recs = append(recs, rec)
		}
	})
	return recs, err
}

// ListExpiringBefore returns pending records whose deadline falls before t.
func (s *Store) ListExpiringBefore(t time.Time) ([]*model.VerificationRecord, error) {
	var recs []*model.VerificationRecord
	err := s.forEach(func(rec *model.VerificationRecord) {
		if !rec.Terminal() && rec.DeadlineAt.Before(t) {
			recs = append(recs, rec)
		}
	})
	return recs, err
}

func (s *Store) ListByState(state model.State, limit int) ([]*model.VerificationRecord, error) {
	var recs []*model.VerificationRecord
	err := s.forEach(func(rec *model.VerificationRecord) {
		if rec.State == state {
			recs = append(recs, rec)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].JoinedAt.Before(recs[j].JoinedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// ListRecentDecisions returns terminal records, newest first.
func (s *Store) ListRecentDecisions(limit int) ([]*model.VerificationRecord, error) {
	var recs []*model.VerificationRecord
	err := s.forEach(func(rec *model.VerificationRecord) {
		if rec.Terminal() {
			recs = append(recs, rec)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].ResolvedAt.After(recs[j].ResolvedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// CountByStateSince counts records joined at or after since, grouped by state.
func (s *Store) CountByStateSince(since time.Time) (map[model.State]int, error) {
	counts := make(map[model.State]int)
	err := s.forEach(func(rec *model.VerificationRecord) {
		if rec.JoinedAt.Before(since) {
			return
		}
		counts[rec.State]++
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
