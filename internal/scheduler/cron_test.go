package scheduler

import (
	"context"
	"testing"

	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct{ runs int }

func (c *countingSyncer) SyncAll(ctx context.Context) (*controllers.ImportReport, error) {
	c.runs++
	return &controllers.ImportReport{Result: &models.ImportResult{}}, nil
}

type countingRefresher struct{ runs int }

func (c *countingRefresher) RefreshAllPodcasts(ctx context.Context) error {
	c.runs++
	return nil
}

func TestStartRegistersConfiguredJobs(t *testing.T) {
	s := NewScheduler(Jobs{
		TraktSync:              &countingSyncer{},
		TraktSyncSchedule:      "0 */6 * * *",
		PodcastRefresh:         &countingRefresher{},
		PodcastRefreshSchedule: "30 3 * * *",
	}, utils.NewNopLogger())

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 2)
}

func TestStartSkipsMissingJobs(t *testing.T) {
	s := NewScheduler(Jobs{
		TraktSyncSchedule: "0 */6 * * *",
		PodcastRefresh:    &countingRefresher{},
	}, utils.NewNopLogger())

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Empty(t, s.cron.Entries())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(Jobs{
		TraktSync:         &countingSyncer{},
		TraktSyncSchedule: "every tuesday",
	}, utils.NewNopLogger())

	assert.Error(t, s.Start())
}

func TestJobsRunWithSchedulerContext(t *testing.T) {
	syncer := &countingSyncer{}
	refresher := &countingRefresher{}
	s := NewScheduler(Jobs{TraktSync: syncer, PodcastRefresh: refresher}, utils.NewNopLogger())

	s.runTraktSync()
	s.runPodcastRefresh()

	assert.Equal(t, 1, syncer.runs)
	assert.Equal(t, 1, refresher.runs)
}

func TestPanickingJobIsRecovered(t *testing.T) {
	s := NewScheduler(Jobs{}, utils.NewNopLogger())
	_, err := s.cron.AddFunc("@every 1h", func() { panic("index out of range") })
	require.NoError(t, err)

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	assert.NotPanics(t, entries[0].WrappedJob.Run)
}
