package session

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("sessions")

// BoltStorage keeps sessions in a local bbolt file, so logins survive a
// restart of a single-node deployment without needing a Redis.
type BoltStorage struct {
	db *bolt.DB
}

func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

func (b *BoltStorage) Put(s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(s.ID), payload)
	})
}

func (b *BoltStorage) Get(id string) (*Session, error) {
	var payload []byte

	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(id))
		if v != nil {
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	s := &Session{}
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *BoltStorage) Delete(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(id))
	})
}

func (b *BoltStorage) Sweep(now time.Time) error {
	var expired [][]byte

	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, v []byte) error {
			s := &Session{}
			if err := json.Unmarshal(v, s); err != nil {
				// Unreadable record, reap it.
				expired = append(expired, append([]byte(nil), k...))
				return nil
			}
			if now.After(s.ExpiresAt) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltStorage) Close() error {
	return b.db.Close()
}
