// Package calculation stores a user's saved tax computations.
package calculation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/taxestimator-api/internal/cache"
	"github.com/noah-isme/taxestimator-api/internal/calculator"
	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/obs"
)

const defaultMaxList = 100

// Page is one page of a user's calculations, newest first.
type Page struct {
	Items      []Calculation     `json:"data"`
	Pagination common.Pagination `json:"pagination"`
}

// Service recomputes, stores and lists saved calculations.
type Service struct {
	Store   Store
	Calc    *calculator.Calculator
	Cache   *cache.JSON
	MaxList int
	Logger  zerolog.Logger
}

// Create recomputes the result for inputs server-side and saves both.
func (s *Service) Create(ctx context.Context, userID, calcType string, inputs json.RawMessage) (Calculation, error) {
	kind, ok := calculator.ParseKind(calcType)
	if !ok {
		return Calculation{}, common.ValidationError(map[string]string{"calc_type": "must be one of: " + calculator.KindList()})
	}
	trimmed := bytes.TrimSpace(inputs)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Calculation{}, common.ValidationError(map[string]string{"inputs": "must be a JSON object"})
	}

	result, err := s.Calc.Compute(kind, trimmed)
	if err != nil {
		return Calculation{}, common.ValidationError(map[string]string{"inputs": err.Error()})
	}
	results, err := json.Marshal(result)
	if err != nil {
		return Calculation{}, err
	}

	saved, err := s.Store.Create(ctx, Calculation{
		UserID:   userID,
		CalcType: kind,
		Inputs:   trimmed,
		Results:  results,
	})
	if err != nil {
		return Calculation{}, err
	}
	obs.IncCalculationsSaved(string(kind))
	s.invalidate(ctx, userID)
	return saved, nil
}

// List returns one page, served from the cache when possible.
func (s *Service) List(ctx context.Context, userID string, page, perPage int) (Page, error) {
	maxList := s.MaxList
	if maxList <= 0 || maxList > defaultMaxList {
		maxList = defaultMaxList
	}
	perPage = min(max(perPage, 1), maxList)
	page = max(page, 1)

	ns := cache.CalculationsNamespace(userID)
	version, err := s.Cache.Version(ctx, ns)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("calculation cache version lookup failed")
	}
	key := ""
	if err == nil {
		key = cache.CalculationsPage(userID, version, page, perPage)
		var cached Page
		if hit, err := s.Cache.GetJSON(ctx, key, &cached); err != nil {
			s.logger(ctx).Warn().Err(err).Str("key", key).Msg("calculation cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	items, total, err := s.Store.ListByUser(ctx, userID, perPage, common.Offset(page, perPage))
	if err != nil {
		return Page{}, err
	}
	out := Page{Items: items, Pagination: common.Pagination{Page: page, PerPage: perPage, TotalItems: total}}
	if key != "" {
		if err := s.Cache.SetJSON(ctx, key, out); err != nil {
			s.logger(ctx).Warn().Err(err).Str("key", key).Msg("calculation cache write failed")
		}
	}
	return out, nil
}

// Delete removes a calculation owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.Store.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NotFound("calculation")
		}
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.Cache.Bump(ctx, cache.CalculationsNamespace(userID)); err != nil {
		s.logger(ctx).Warn().Err(err).Msg("calculation cache invalidation failed")
	}
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	l := obs.LoggerFrom(ctx, s.Logger)
	return &l
}
