package workermanager

import (
	"context"
	"fmt"

	"github.com/goto/sift/internal/indexer"
	"github.com/robfig/cron/v3"
)

// Schedule enqueues a suggestion reindex of a suggester on a cron spec with
// seconds, e.g. "0 30 3 * * *", or a descriptor such as "@daily".
type Schedule struct {
	Spec              string `yaml:"spec" mapstructure:"spec"`
	SearchSuggesterID int64  `yaml:"search_suggester_id" mapstructure:"search_suggester_id"`
}

// startSchedules enqueues the scheduled jobs until the returned func is
// called.
func (m *Manager) startSchedules(ctx context.Context) (func(), error) {
	if len(m.schedules) == 0 {
		return func() {}, nil
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(m.location),
		cron.WithChain(
			cron.Recover(cron.DefaultLogger),
		),
	)
	for _, sch := range m.schedules {
		sch := sch
		_, err := c.AddFunc(sch.Spec, func() {
			err := m.EnqueueIndexSuggestionsJob(ctx, indexer.SuggestionArgs{SearchSuggesterID: sch.SearchSuggesterID})
			if err != nil {
				m.logger.Error("scheduled suggestion reindex", "suggester_id", sch.SearchSuggesterID, "err", err)
				return
			}
			m.logger.Info("scheduled suggestion reindex enqueued", "suggester_id", sch.SearchSuggesterID)
		})
		if err != nil {
			return nil, fmt.Errorf("schedule suggester %d with %q: %w", sch.SearchSuggesterID, sch.Spec, err)
		}
	}

	c.Start()
	m.logger.Info("suggestion reindex schedules started", "count", len(c.Entries()))
	return func() { <-c.Stop().Done() }, nil
}
