package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/coda-infos/internal/coda"
)

// Evaluation is one persisted prediction evaluation.
type Evaluation struct {
	EvaluationID string             `json:"evaluation_id"`
	Split        string             `json:"split"`
	ClassNames   []string           `json:"class_names"`
	NumFrames    int                `json:"num_frames"`
	Available    bool               `json:"available"`
	Report       string             `json:"report"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	CreatedAt    int64              `json:"created_at"`
}

// NewEvaluation wraps an evaluation result for storage.
func NewEvaluation(split string, classNames []string, numFrames int, res coda.EvalResult) *Evaluation {
	return &Evaluation{
		Split:      split,
		ClassNames: classNames,
		NumFrames:  numFrames,
		Available:  res.Available,
		Report:     res.Report,
		Metrics:    res.Metrics,
	}
}

// ErrEvaluationNotFound is returned by Get for an unknown id.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// EvaluationStore provides persistence for evaluation results.
type EvaluationStore struct {
	db *sql.DB
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(db *sql.DB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

// Insert persists eval. If EvaluationID is empty, a UUID is generated.
func (s *EvaluationStore) Insert(ctx context.Context, eval *Evaluation) error {
	if eval.EvaluationID == "" {
		eval.EvaluationID = uuid.New().String()
	}
	if eval.CreatedAt == 0 {
		eval.CreatedAt = time.Now().UnixNano()
	}

	classes, err := json.Marshal(eval.ClassNames)
	if err != nil {
		return fmt.Errorf("encode class names: %w", err)
	}
	var metrics interface{}
	if eval.Metrics != nil {
		b, err := json.Marshal(eval.Metrics)
		if err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
		metrics = string(b)
	}

	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO evaluations (
				evaluation_id, split, class_names, num_frames, available,
				report, metrics_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			eval.EvaluationID, eval.Split, string(classes), eval.NumFrames, eval.Available,
			eval.Report, metrics, eval.CreatedAt,
		)
		return err
	})
}

const selectEvaluation = `
	SELECT evaluation_id, split, class_names, num_frames, available,
	       report, metrics_json, created_at
	FROM evaluations`

// Get returns a single evaluation by id.
func (s *EvaluationStore) Get(ctx context.Context, evaluationID string) (*Evaluation, error) {
	row := s.db.QueryRowContext(ctx, selectEvaluation+` WHERE evaluation_id = ?`, evaluationID)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEvaluationNotFound, evaluationID)
	}
	return e, err
}

// List returns the evaluations of split, newest first. An empty split
// lists every evaluation.
func (s *EvaluationStore) List(ctx context.Context, split string) ([]*Evaluation, error) {
	query := selectEvaluation + ` ORDER BY created_at DESC`
	var args []interface{}
	if split != "" {
		query = selectEvaluation + ` WHERE split = ? ORDER BY created_at DESC`
		args = append(args, split)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []*Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvaluation(row rowScanner) (*Evaluation, error) {
	var e Evaluation
	var classes string
	var metrics sql.NullString
	err := row.Scan(&e.EvaluationID, &e.Split, &classes, &e.NumFrames, &e.Available,
		&e.Report, &metrics, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan evaluation row: %w", err)
	}
	if err := json.Unmarshal([]byte(classes), &e.ClassNames); err != nil {
		return nil, fmt.Errorf("decode class names: %w", err)
	}
	if metrics.Valid {
		if err := json.Unmarshal([]byte(metrics.String), &e.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
	}
	return &e, nil
}
