package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkItem(t *testing.T) {
	t.Parallel()

	item, err := NewWorkItem("owner-1", "file:///tmp/a.ogg", "", "ru")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.Equal(t, "owner-1", item.OwnerRef)
	assert.Equal(t, MediaKindVoice, item.MediaKind)
	assert.Equal(t, StatusQueued, item.Status)
	assert.False(t, item.QueuedAt.IsZero())
	assert.Nil(t, item.StartedAt)
	assert.Nil(t, item.CompletedAt)

	_, err = NewWorkItem("", "file:///tmp/a.ogg", MediaKindAudio, "")
	assert.ErrorIs(t, err, ErrEmptyOwnerRef)

	_, err = NewWorkItem("owner-1", "  ", MediaKindAudio, "")
	assert.ErrorIs(t, err, ErrEmptySourceLocator)

	_, err = NewWorkItem("owner-1", "file:///tmp/a.ogg", MediaKind("photo"), "")
	assert.ErrorIs(t, err, ErrInvalidMediaKind)
}

func TestWorkItemAdvance_ForwardOnly(t *testing.T) {
	t.Parallel()

	item, err := NewWorkItem("owner", "file:///a.ogg", MediaKindVoice, "")
	require.NoError(t, err)

	require.NoError(t, item.Advance(StatusTranscribing))
	require.NotNil(t, item.StartedAt)
	require.NoError(t, item.Advance(StatusClassifying))

	err = item.Advance(StatusTranscribing)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusClassifying, item.Status, "rejected transition must not change status")

	require.NoError(t, item.Advance(StatusExtracting))
	require.NoError(t, item.Complete(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, StatusDone, item.Status)
	assert.NotNil(t, item.CompletedAt)
	assert.NoError(t, item.Validate())

	for _, next := range []Status{StatusQueued, StatusTranscribing, StatusFailed, StatusDone} {
		assert.ErrorIs(t, item.Advance(next), ErrInvalidTransition, "done -> %s", next)
	}
}

func TestStatusCanAdvanceTo(t *testing.T) {
	t.Parallel()

	order := []Status{StatusQueued, StatusTranscribing, StatusClassifying, StatusExtracting, StatusDone}
	for i, from := range order {
		for j, to := range order {
			want := j > i && !from.IsTerminal()
			assert.Equal(t, want, from.CanAdvanceTo(to), "%s -> %s", from, to)
		}
	}

	for _, from := range order[:4] {
		assert.True(t, from.CanAdvanceTo(StatusFailed), "%s -> failed", from)
	}
	assert.False(t, StatusFailed.CanAdvanceTo(StatusDone))
	assert.False(t, Status("bogus").CanAdvanceTo(StatusDone))
	assert.False(t, StatusQueued.CanAdvanceTo(Status("bogus")))
}

func TestWorkItemFail(t *testing.T) {
	t.Parallel()

	item, err := NewWorkItem("owner", "file:///a.ogg", MediaKindVideoNote, "auto")
	require.NoError(t, err)
	require.NoError(t, item.Advance(StatusTranscribing))

	require.NoError(t, item.Fail(FailureEmptyTranscription))
	require.NotNil(t, item.FailureReason)
	assert.Equal(t, FailureEmptyTranscription, *item.FailureReason)
	assert.Nil(t, item.ExtractedRecord)
	assert.NoError(t, item.Validate())

	assert.ErrorIs(t, item.Fail("again"), ErrInvalidTransition)
	assert.Equal(t, FailureEmptyTranscription, *item.FailureReason)
}

func TestWorkItemValidate_StatusInvariants(t *testing.T) {
	t.Parallel()

	reason := "boom"
	tests := []struct {
		name   string
		mutate func(w *WorkItem)
		want   error
	}{
		{"queued ok", func(w *WorkItem) {}, nil},
		{"record while queued", func(w *WorkItem) { w.ExtractedRecord = json.RawMessage(`{}`) }, ErrRecordWithoutDone},
		{"done without record", func(w *WorkItem) { w.Status = StatusDone }, ErrRecordWithoutDone},
		{"failed without reason", func(w *WorkItem) { w.Status = StatusFailed }, ErrReasonWithoutFail},
		{"reason while extracting", func(w *WorkItem) {
			w.Status = StatusExtracting
			w.FailureReason = &reason
		}, ErrReasonWithoutFail},
		{"bad status", func(w *WorkItem) { w.Status = "paused" }, ErrInvalidStatus},
		{"nil id", func(w *WorkItem) { w.ID = uuid.Nil }, ErrEmptyItemID},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			item, err := NewWorkItem("owner", "file:///a.ogg", MediaKindAudio, "")
			require.NoError(t, err)
			tc.mutate(item)

			err = item.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)
		})
	}
}

func TestWorkItemComplete_RequiresRecord(t *testing.T) {
	t.Parallel()

	item, err := NewWorkItem("owner", "file:///a.ogg", MediaKindAudio, "")
	require.NoError(t, err)
	require.NoError(t, item.Advance(StatusExtracting))

	assert.ErrorIs(t, item.Complete(nil), ErrValidation)
	assert.Equal(t, StatusExtracting, item.Status)
}

func TestWorkItemClone(t *testing.T) {
	t.Parallel()

	item, err := NewWorkItem("owner", "file:///a.ogg", MediaKindVoice, "ru")
	require.NoError(t, err)
	item.SetTranscript("hello")
	item.SetClassification(CategoryIdeas, 0.4)
	require.NoError(t, item.Advance(StatusExtracting))
	require.NoError(t, item.Complete([]byte(`{"ideas":[]}`)))

	c := item.Clone()
	assert.Equal(t, item, c)

	*c.Transcript = "changed"
	c.ExtractedRecord[2] = 'X'
	assert.Equal(t, "hello", *item.Transcript)
	assert.Equal(t, `{"ideas":[]}`, string(item.ExtractedRecord))
}
