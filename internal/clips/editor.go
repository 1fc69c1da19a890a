// Package clips edits clip boundaries at word precision and renders clips
// to standalone media artifacts.
package clips

import (
	"errors"
	"fmt"
	"time"

	"github.com/forPelevin/podclip/internal/domain/words"
	"github.com/forPelevin/podclip/internal/timecode"
	"github.com/forPelevin/podclip/internal/types"
)

var (
	ErrClipNotFound = errors.New("clip not found")
	ErrWordRange    = errors.New("invalid word index range")
	ErrTooLong      = errors.New("clip duration exceeds maximum")
)

// EditResult carries the updated clip plus nudge affordances: whether the
// boundary could be extended by one more word on either side without
// breaking the duration limit.
type EditResult struct {
	Clip           types.Clip `json:"clip"`
	CanExtendStart bool       `json:"can_extend_start"`
	CanExtendEnd   bool       `json:"can_extend_end"`
}

// UpdateByWords moves the boundaries of job.Clips[clipIndex] to cover the
// inclusive word range [startWord, endWord]. Only the timestamp pair,
// duration and updated_at change; title, quote, excerpt and rationale are
// left untouched. The job is mutated in place, persistence is the caller's
// concern.
func UpdateByWords(job *types.Job, clipIndex, startWord, endWord int, model *words.Model, maxDuration time.Duration) (EditResult, error) {
	if clipIndex < 0 || clipIndex >= len(job.Clips) {
		return EditResult{}, fmt.Errorf("%w: index %d of %d", ErrClipNotFound, clipIndex, len(job.Clips))
	}
	if startWord < 0 || endWord < startWord || endWord >= model.Count() {
		return EditResult{}, fmt.Errorf("%w: [%d, %d] over %d words", ErrWordRange, startWord, endWord, model.Count())
	}

	start, end, err := model.TimeRangeForIndices(startWord, endWord)
	if err != nil {
		return EditResult{}, fmt.Errorf("%w: %v", ErrWordRange, err)
	}
	if end <= start {
		return EditResult{}, fmt.Errorf("%w: degenerate span [%v, %v]", ErrWordRange, start, end)
	}
	maxSeconds := maxDuration.Seconds()
	if maxSeconds > 0 && end-start > maxSeconds {
		return EditResult{}, fmt.Errorf("%w: %.1fs > %.0fs", ErrTooLong, end-start, maxSeconds)
	}

	clip := &job.Clips[clipIndex]
	clip.StartTimestamp = timecode.Format(start)
	clip.EndTimestamp = timecode.Format(end)
	clip.DurationMinutes = (end - start) / 60
	clip.UpdatedAt = time.Now().UTC()

	res := EditResult{Clip: *clip}
	if prev, ok := model.At(startWord - 1); ok {
		res.CanExtendStart = maxSeconds <= 0 || end-prev.Start <= maxSeconds
	}
	if next, ok := model.At(endWord + 1); ok {
		res.CanExtendEnd = maxSeconds <= 0 || next.End-start <= maxSeconds
	}
	return res, nil
}
