package suggestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/goto/sift/core/engine"
	"github.com/goto/salt/log"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// SuggestRequest is one call of the suggest read path.
type SuggestRequest struct {
	SuggesterID int64
	Prefix      string
	// Field restricts the suggestions to the values of one property term.
	Field  string
	SiteID int64
	Public bool
	Limit  int
}

func (r SuggestRequest) cacheKey() string {
	return fmt.Sprintf("%s|%s|%d|%t|%d", Fold(r.Prefix), r.Field, r.SiteID, r.Public, r.Limit)
}

type Service struct {
	repo       Repository
	suggesters engine.SuggesterRepository
	cache      Cache
	logger     log.Logger
}

type ServiceOption func(*Service)

func ServiceWithCache(c Cache) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func ServiceWithLogger(l log.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(repo Repository, suggesters engine.SuggesterRepository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:       repo,
		suggesters: suggesters,
		cache:      NoopCache{},
		logger:     log.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns the suggestions starting with the request prefix, ordered
// by descending total of the requested partition, then text.
func (s *Service) Suggest(ctx context.Context, req SuggestRequest) ([]string, error) {
	if req.SuggesterID == 0 {
		return nil, ErrNoSuggester
	}
	req.Prefix = strings.TrimLeft(lineBreaks.Replace(req.Prefix), " \t")
	if strings.TrimSpace(req.Prefix) == "" {
		return nil, ErrEmptyPrefix
	}
	switch {
	case req.Limit <= 0:
		req.Limit = DefaultLimit
	case req.Limit > MaxLimit:
		req.Limit = MaxLimit
	}

	sgst, err := s.suggesters.GetByID(ctx, req.SuggesterID)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	key := req.cacheKey()
	if texts, ok, err := s.cache.Get(ctx, sgst.ID, key); err != nil {
		s.logger.Warn("suggest cache read failed", "suggester_id", sgst.ID, "err", err)
	} else if ok {
		return texts, nil
	}

	var texts []string
	if req.Field != "" {
		texts, err = s.repo.SearchValues(ctx, ValueFilter{
			Field:  req.Field,
			Prefix: req.Prefix,
			Types:  sgst.Settings.ResourceTypes,
			SiteID: req.SiteID,
			Public: req.Public,
			Limit:  req.Limit,
		})
	} else {
		texts, err = s.repo.Search(ctx, SearchFilter{
			SuggesterID: sgst.ID,
			Prefix:      req.Prefix,
			SiteID:      req.SiteID,
			Public:      req.Public,
			Limit:       req.Limit,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	if err := s.cache.Set(ctx, sgst.ID, key, texts); err != nil {
		s.logger.Warn("suggest cache write failed", "suggester_id", sgst.ID, "err", err)
	}
	return texts, nil
}
