// Package session holds the per-chat pending link between the moment a link
// is recognized and the moment the user picks a quality. Entries live in a
// bounded, expiring key-value store keyed by chat ID; an absent or expired
// entry means the session has expired and no download may start.
package session

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var Buckets = struct {
	Metadata []byte
	Pending  []byte
}{
	Metadata: []byte("__metadata__"),
	Pending:  []byte("pending"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

// DefaultTTL bounds how long a stored link stays valid; expiry is how the
// store stays bounded without any explicit "session end" signal.
const DefaultTTL = time.Hour

// Pending is the session state stored between link recognition and quality
// selection.
type Pending struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Uploader string    `json:"uploader"`
	StoredAt time.Time `json:"stored_at"`
}

type Store struct {
	db  *bbolt.DB
	ttl time.Duration
	log *zap.SugaredLogger
}

func Open(path string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(Buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Pending); err != nil {
			return err
		}
		versionBytes, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(MetadataKeys.Version, versionBytes)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db:  db,
		ttl: ttl,
		log: zap.S().Named("session"),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores (or replaces) the pending link for a chat, stamping it with the
// current time for expiry.
func (s *Store) Put(chatID int64, p Pending) error {
	p.StoredAt = time.Now()
	data, err := json.Marshal(&p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Pending).Put(chatKey(chatID), data)
	})
}

// Get returns the pending link for a chat, or nil if there is none or the
// stored one has expired. An expired entry is deleted on the way out, so
// "expired" and "absent" are indistinguishable to callers.
func (s *Store) Get(chatID int64) (*Pending, error) {
	var p *Pending
	expired := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(Buckets.Pending).Get(chatKey(chatID))
		if data == nil {
			return nil
		}
		var stored Pending
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		if time.Since(stored.StoredAt) > s.ttl {
			expired = true
			return nil
		}
		p = &stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		if err := s.Delete(chatID); err != nil {
			s.log.Warnw("failed to delete expired session", "chat_id", chatID, "error", err)
		}
	}
	return p, nil
}

// Delete removes a chat's pending link, if any.
func (s *Store) Delete(chatID int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Pending).Delete(chatKey(chatID))
	})
}

// Sweep deletes every expired entry, returning how many were removed. Run it
// periodically to keep the store bounded even for chats that never come back.
func (s *Store) Sweep() (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Pending)
		c := bucket.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var stored Pending
			if err := json.Unmarshal(v, &stored); err != nil || time.Since(stored.StoredAt) > s.ttl {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// SweepEvery runs Sweep at the given interval until stop is closed.
func (s *Store) SweepEvery(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n, err := s.Sweep(); err != nil {
				s.log.Warnw("session sweep failed", "error", err)
			} else if n > 0 {
				s.log.Debugw("session sweep removed expired entries", "count", n)
			}
		}
	}
}

func chatKey(chatID int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(chatID))
	return key
}
