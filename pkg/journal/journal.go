package journal

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/roller/pkg/types"
)

var bucketPasses = []byte("passes")

// Journal is a bbolt-backed history of completed reconciliation passes.
// It exists purely for observability (the history command and the passes
// endpoint); the planner never reads it — decisions are always re-derived
// from live provider state.
type Journal struct {
	db        *bolt.DB
	retention int
}

// Open opens or creates the journal file. Retention bounds how many pass
// records are kept; zero keeps everything.
func Open(path string, retention int) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPasses)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}

	return &Journal{db: db, retention: retention}, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores one pass record and prunes beyond retention
func (j *Journal) Append(record *types.PassRecord) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPasses)

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := b.Put(passKey(record), data); err != nil {
			return err
		}

		if j.retention <= 0 {
			return nil
		}
		var keys [][]byte
		cursor := b.Cursor()
		for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
			keys = append(keys, k)
		}
		for i := 0; len(keys)-i > j.retention; i++ {
			if err := b.Delete(keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to limit pass records, newest first
func (j *Journal) Recent(limit int) ([]*types.PassRecord, error) {
	var records []*types.PassRecord

	err := j.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketPasses).Cursor()
		for k, v := cursor.Last(); k != nil && len(records) < limit; k, v = cursor.Prev() {
			var record types.PassRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// passKey orders records chronologically; the pass id suffix keeps keys
// unique when two passes start within the same nanosecond
func passKey(record *types.PassRecord) []byte {
	return []byte(record.StartedAt.UTC().Format(time.RFC3339Nano) + "/" + record.ID)
}
