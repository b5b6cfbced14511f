// Package store persists run outputs: per-iteration model artifacts and
// metric rows in a BoltDB file, and prediction surfaces as batched CSV.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/habitatlab/sdmgo/forest"
	"github.com/habitatlab/sdmgo/pipeline"
	"github.com/habitatlab/sdmgo/pkg/errors"
)

const (
	modelsBucket  = "models"  // gob-encoded forest per iteration
	metricsBucket = "metrics" // JSON metric map per iteration
)

// Store is the BoltDB-backed artifact sink. Artifacts are keyed by
// iteration index, so re-running an iteration overwrites its own artifact
// and nothing else.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the store file and its buckets.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "store.Open")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(modelsBucket)); err != nil {
			return fmt.Errorf("create models bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metricsBucket)); err != nil {
			return fmt.Errorf("create metrics bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store.Open")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveModel implements pipeline.ModelSink: one serialized model per
// iteration index.
func (s *Store) SaveModel(iteration int, m pipeline.Model) error {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))
		return b.Put(iterationKey(iteration), buf.Bytes())
	})
}

// LoadForest reloads one iteration's forest artifact.
func (s *Store) LoadForest(iteration int) (*forest.Forest, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(modelsBucket)).Get(iterationKey(iteration))
		if v == nil {
			return errors.Newf("no model artifact for iteration %d", iteration)
		}
		raw = append(raw, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return forest.Decode(bytes.NewReader(raw))
}

// ModelCount returns the number of persisted model artifacts.
func (s *Store) ModelCount() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(modelsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// SaveIterationMetrics stores one iteration's metric row.
func (s *Store) SaveIterationMetrics(iteration int, values map[string]float64) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "marshal metrics")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(metricsBucket))
		return b.Put(iterationKey(iteration), data)
	})
}

// LoadIterationMetrics reloads one iteration's metric row.
func (s *Store) LoadIterationMetrics(iteration int) (map[string]float64, error) {
	var out map[string]float64
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(metricsBucket)).Get(iterationKey(iteration))
		if v == nil {
			return errors.Newf("no metrics for iteration %d", iteration)
		}
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func iterationKey(iteration int) []byte {
	return []byte(fmt.Sprintf("iteration-%04d", iteration))
}
