package calculation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/taxestimator-api/internal/calculator"
	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/db"
)

// Calculation is a saved computation. Inputs and results are stored verbatim.
type Calculation struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	CalcType  calculator.Kind `json:"calc_type"`
	Inputs    json.RawMessage `json:"inputs"`
	Results   json.RawMessage `json:"results"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists calculations. Delete returns common.ErrNotFound for rows the user does not own.
type Store interface {
	Create(ctx context.Context, c Calculation) (Calculation, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Calculation, int, error)
	Delete(ctx context.Context, userID, id string) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	DB db.DBTX
}

const insertCalculation = `INSERT INTO calculations (user_id, calc_type, inputs, results)
	VALUES ($1, $2, $3, $4) RETURNING id, created_at`

func (s PGStore) Create(ctx context.Context, c Calculation) (Calculation, error) {
	userID, ok := db.ParseUUID(c.UserID)
	if !ok {
		return Calculation{}, fmt.Errorf("create calculation: invalid user id %q", c.UserID)
	}
	var id pgtype.UUID
	if err := s.DB.QueryRow(ctx, insertCalculation, userID, string(c.CalcType), []byte(c.Inputs), []byte(c.Results)).Scan(&id, &c.CreatedAt); err != nil {
		return Calculation{}, fmt.Errorf("create calculation: %w", err)
	}
	c.ID = db.UUIDString(id)
	return c, nil
}

const listCalculations = `SELECT id, user_id, calc_type, inputs, results, created_at, count(*) OVER ()
	FROM calculations WHERE user_id = $1
	ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

func (s PGStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Calculation, int, error) {
	uid, ok := db.ParseUUID(userID)
	if !ok {
		return []Calculation{}, 0, nil
	}
	rows, err := s.DB.Query(ctx, listCalculations, uid, int32(limit), int32(offset))
	if err != nil {
		return nil, 0, fmt.Errorf("list calculations: %w", err)
	}
	defer rows.Close()

	out := make([]Calculation, 0, limit)
	total := 0
	for rows.Next() {
		var (
			c               Calculation
			id, owner       pgtype.UUID
			kind            string
			inputs, results []byte
			count           int64
		)
		if err := rows.Scan(&id, &owner, &kind, &inputs, &results, &c.CreatedAt, &count); err != nil {
			return nil, 0, fmt.Errorf("scan calculation: %w", err)
		}
		c.ID = db.UUIDString(id)
		c.UserID = db.UUIDString(owner)
		c.CalcType = calculator.Kind(kind)
		c.Inputs = inputs
		c.Results = results
		total = int(count)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list calculations: %w", err)
	}
	return out, total, nil
}

const deleteCalculation = `DELETE FROM calculations WHERE id = $1 AND user_id = $2`

func (s PGStore) Delete(ctx context.Context, userID, id string) error {
	cid, ok := db.ParseUUID(id)
	if !ok {
		return common.ErrNotFound
	}
	uid, ok := db.ParseUUID(userID)
	if !ok {
		return common.ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, deleteCalculation, cid, uid)
	if err != nil {
		return fmt.Errorf("delete calculation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
