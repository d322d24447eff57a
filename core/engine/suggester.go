package engine

import (
	"context"
	"time"
)

//go:generate mockery --name=SuggesterRepository -r --case underscore --with-expecter --structname SuggesterRepository --filename suggester_repository_mock.go --output=./mocks

type SuggesterRepository interface {
	GetByID(ctx context.Context, id int64) (Suggester, error)
	GetAll(ctx context.Context) ([]Suggester, error)
	Upsert(ctx context.Context, s *Suggester) (int64, error)
}

// StopWordsMode tells which boundary tokens of a suggestion are checked
// against the stop words.
type StopWordsMode string

const (
	StopWordsNone     StopWordsMode = "none"
	StopWordsStart    StopWordsMode = "start"
	StopWordsEnd      StopWordsMode = "end"
	StopWordsStartEnd StopWordsMode = "start_end"
)

// Visibility partitions counted by the suggestion indexer.
const (
	PartitionAll    = "all"
	PartitionPublic = "public"
)

// Suggester configures one autosuggest index, bound to a search engine.
type Suggester struct {
	ID        int64             `json:"id" db:"id"`
	EngineID  int64             `json:"engine_id" db:"engine_id" validate:"required"`
	Name      string            `json:"name" db:"name" validate:"required"`
	Settings  SuggesterSettings `json:"settings" db:"settings"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

type SuggesterSettings struct {
	// ResourceTypes restricts the engine types. Empty means all of them.
	ResourceTypes []string `json:"resource_types,omitempty" validate:"dive,oneof=items item_sets media"`
	// Fields are the property terms read. Empty means every text field.
	Fields         []string      `json:"fields,omitempty"`
	ExcludedFields []string      `json:"excluded_fields,omitempty"`
	StopWords      []string      `json:"stop_words,omitempty"`
	StopWordsMode  StopWordsMode `json:"stop_words_mode,omitempty" validate:"omitempty,oneof=none start end start_end"`
	// Widths are the n-gram widths extracted from the front of each value.
	Widths []int `json:"widths,omitempty" validate:"dive,min=1,max=5"`
}

var DefaultWidths = []int{1, 2}

// NgramWidths returns the configured widths or the defaults.
func (s SuggesterSettings) NgramWidths() []int {
	if len(s.Widths) == 0 {
		return DefaultWidths
	}
	return s.Widths
}

func (s SuggesterSettings) Mode() StopWordsMode {
	if s.StopWordsMode == "" {
		return StopWordsNone
	}
	return s.StopWordsMode
}

func (s *Suggester) Validate() error {
	return ValidateStruct(s)
}
