package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forPelevin/podclip/internal/types"
)

func TestJobStore_CreateGetUpdate(t *testing.T) {
	s, err := NewJobStore(t.TempDir())
	require.NoError(t, err)

	job := &types.Job{ID: "j1", Status: types.JobQueued, Progress: "queued"}
	require.NoError(t, s.Create(job))

	got, err := s.Get("j1")
	require.NoError(t, err)
	require.Equal(t, types.JobQueued, got.Status)
	require.False(t, got.CreatedAt.IsZero())

	updated, err := s.Update("j1", func(j *types.Job) error {
		j.Status = types.JobAcquiring
		j.Progress = "downloading source"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, types.JobAcquiring, updated.Status)

	got, err = s.Get("j1")
	require.NoError(t, err)
	require.Equal(t, "downloading source", got.Progress)
	require.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestJobStore_GetMissing(t *testing.T) {
	s, err := NewJobStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Update("nope", func(*types.Job) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJobStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	s, err := NewJobStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create(&types.Job{ID: "j1", Status: types.JobQueued}))

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update("j1", func(j *types.Job) error {
				j.Clips = append(j.Clips, types.Clip{StartTimestamp: "00:00", EndTimestamp: "00:30"})
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get("j1")
	require.NoError(t, err)
	require.Len(t, got.Clips, n)
}

func TestJobStore_List(t *testing.T) {
	s, err := NewJobStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create(&types.Job{ID: "a"}))
	require.NoError(t, s.Create(&types.Job{ID: "b"}))

	jobs, err := s.List()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
}
