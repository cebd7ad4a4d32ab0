// Package bbolt provides a BoltDB-backed draft store.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/addonbay/portal/internal/catalog/draft"
	"go.etcd.io/bbolt"
)

const draftBucket = "draft"

// Store persists wizard drafts in a BoltDB file, one record per token.
type Store struct {
	db    *bbolt.DB
	clock func() time.Time
}

// Open opens a BoltDB-backed draft store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open draft db: %w", err)
	}

	store := &Store{db: db, clock: time.Now}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a draft under its token, overwriting any previous value.
func (s *Store) Put(ctx context.Context, d draft.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("draft storage is not configured")
	}
	if strings.TrimSpace(d.Token) == "" {
		return fmt.Errorf("draft token is required")
	}

	now := s.clock().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucket))
		if bucket == nil {
			return fmt.Errorf("draft bucket is missing")
		}
		return bucket.Put(draftKey(d.Token), payload)
	})
}

// Get fetches the draft stored under token.
func (s *Store) Get(ctx context.Context, token string) (draft.Draft, error) {
	if err := ctx.Err(); err != nil {
		return draft.Draft{}, err
	}
	if s == nil || s.db == nil {
		return draft.Draft{}, fmt.Errorf("draft storage is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return draft.Draft{}, fmt.Errorf("draft token is required")
	}

	var d draft.Draft
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucket))
		if bucket == nil {
			return fmt.Errorf("draft bucket is missing")
		}
		payload := bucket.Get(draftKey(token))
		if payload == nil {
			return draft.ErrNotFound
		}
		if err := json.Unmarshal(payload, &d); err != nil {
			return fmt.Errorf("unmarshal draft: %w", err)
		}
		return nil
	})
	if err != nil {
		return draft.Draft{}, err
	}
	return d, nil
}

// Delete removes the draft for token. Deleting an absent draft succeeds.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("draft storage is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("draft token is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucket))
		if bucket == nil {
			return fmt.Errorf("draft bucket is missing")
		}
		return bucket.Delete(draftKey(token))
	})
}

// PruneExpired evicts drafts whose UpdatedAt is older than ttl.
func (s *Store) PruneExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("draft storage is not configured")
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("ttl must be positive")
	}

	cutoff := s.clock().UTC().Add(-ttl)
	pruned := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucket))
		if bucket == nil {
			return fmt.Errorf("draft bucket is missing")
		}

		var expired [][]byte
		cursor := bucket.Cursor()
		for key, payload := cursor.First(); key != nil; key, payload = cursor.Next() {
			var d draft.Draft
			if err := json.Unmarshal(payload, &d); err != nil {
				// Unreadable records count as expired.
				expired = append(expired, append([]byte(nil), key...))
				continue
			}
			if d.UpdatedAt.Before(cutoff) {
				expired = append(expired, append([]byte(nil), key...))
			}
		}
		for _, key := range expired {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		pruned = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(draftBucket)); err != nil {
			return fmt.Errorf("create draft bucket: %w", err)
		}
		return nil
	})
}

func draftKey(token string) []byte {
	return []byte(token)
}

var _ draft.Store = (*Store)(nil)
