package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const predictionsBucket = "predictions"

// PredictionRecord is one prediction served over HTTP.
type PredictionRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	Features    []float64 `json:"features"`
	Adulterant  string    `json:"adulterant,omitempty"`
	Quality     string    `json:"quality"`
	Probability float64   `json:"probability"`
}

// StorePrediction appends a served prediction.
func (s *Store) StorePrediction(record PredictionRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket))
		if err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%020d_%08d", record.Timestamp.UnixNano(), seq)
		return b.Put([]byte(key), data)
	})
}

// GetPredictionsInRange returns predictions with start <= timestamp <= end,
// oldest first.
func (s *Store) GetPredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		for k, v := c.Seek(startKey); k != nil; k, v = c.Next() {
			var record PredictionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			if record.Timestamp.After(end) {
				break
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}
