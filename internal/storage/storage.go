// Package storage keeps the history of training runs and served predictions
// in a BoltDB file so results can be compared across runs.
package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	runsBucket = "runs" // Bucket name for training run records
	dbFile     = "honeygrader.db"
)

// ErrNoRuns is returned by LatestRun when nothing has been recorded.
var ErrNoRuns = errors.New("no runs recorded")

// Store provides persistent storage for run history using BoltDB.
type Store struct {
	db *bbolt.DB
}

// RunRecord summarizes one training run.
type RunRecord struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	Duration     float64   `json:"duration_seconds"`
	DataPath     string    `json:"data_path"`
	Rows         int       `json:"rows"`
	TrainRows    int       `json:"train_rows"`
	TestRows     int       `json:"test_rows"`
	Seed         int64     `json:"seed"`
	TestSize     float64   `json:"test_size"`
	Criterion    string    `json:"criterion"`
	Accuracy     float64   `json:"accuracy"`
	MacroF1      float64   `json:"macro_f1"`
	Classes      []string  `json:"classes"`
	FeatureNames []string  `json:"feature_names"`
	Confusion    [][]int   `json:"confusion"`
	TreeDepth    int       `json:"tree_depth"`
	TreeLeaves   int       `json:"tree_leaves"`
	ModelPath    string    `json:"model_path"`
	EncoderPath  string    `json:"encoder_path"`
}

// New opens (or creates) the database under dataPath and makes sure the
// buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// SaveRun stores a run. A missing ID or start time is filled in. Keys are
// "run_<unixnano>_<id>" so a cursor walks runs in start order.
func (s *Store) SaveRun(run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return b.Put(runKey(run), data)
	})
}

func runKey(run *RunRecord) []byte {
	// Fixed width keeps lexical and numeric order the same.
	return []byte(fmt.Sprintf("run_%020d_%s", run.StartedAt.UnixNano(), run.ID))
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		prefix := []byte("run_")

		for k, v := c.Last(); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) == limit {
				break
			}
		}
		return nil
	})

	return runs, err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun() (*RunRecord, error) {
	runs, err := s.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return &runs[0], nil
}

// ExportRunsToCSV writes every run, oldest first, to filename.
func (s *Store) ExportRunsToCSV(filename string) error {
	runs, err := s.ListRuns(0)
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "started_at", "data_path", "rows", "train_rows", "test_rows", "seed", "criterion", "accuracy", "macro_f1", "tree_depth", "tree_leaves"}); err != nil {
		return err
	}
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		err := w.Write([]string{
			r.ID,
			r.StartedAt.UTC().Format(time.RFC3339),
			r.DataPath,
			strconv.Itoa(r.Rows),
			strconv.Itoa(r.TrainRows),
			strconv.Itoa(r.TestRows),
			strconv.FormatInt(r.Seed, 10),
			r.Criterion,
			strconv.FormatFloat(r.Accuracy, 'f', 4, 64),
			strconv.FormatFloat(r.MacroF1, 'f', 4, 64),
			strconv.Itoa(r.TreeDepth),
			strconv.Itoa(r.TreeLeaves),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
