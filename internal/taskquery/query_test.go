package taskquery

import (
	"net/url"
	"testing"

	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

func TestBuildListQueryEmptyFilterHasOnlySortDefaults(t *testing.T) {
	got := BuildListQuery(model.Filter{})

	assert.Equal(t, url.Values{
		"sortBy":         {"created"},
		"sortDescending": {"true"},
	}, got)
}

func TestBuildListQueryStatusOnly(t *testing.T) {
	got := BuildListQuery(model.Filter{Status: ptr(model.StatusInProgress)})

	assert.Equal(t, url.Values{
		"status":         {"1"},
		"sortBy":         {"created"},
		"sortDescending": {"true"},
	}, got)
}

func TestBuildListQueryZeroStatusIsStillSent(t *testing.T) {
	got := BuildListQuery(model.Filter{Status: ptr(model.StatusToDo)})

	assert.Equal(t, "0", got.Get("status"))
}

func TestBuildListQuerySearchAndSortOverride(t *testing.T) {
	got := BuildListQuery(model.Filter{
		SearchTerm:     "report",
		SortBy:         "deadline",
		SortDescending: ptr(false),
	})

	assert.Equal(t, url.Values{
		"searchTerm":     {"report"},
		"sortBy":         {"deadline"},
		"sortDescending": {"false"},
	}, got)
	assert.False(t, got.Has("status"))
}

func TestBuildListQueryTriStateBooleans(t *testing.T) {
	unset := BuildListQuery(model.Filter{})
	assert.False(t, unset.Has("isDelayed"))

	falseSet := BuildListQuery(model.Filter{IsDelayed: ptr(false)})
	assert.Equal(t, "false", falseSet.Get("isDelayed"))

	trueSet := BuildListQuery(model.Filter{IsDelayed: ptr(true)})
	assert.Equal(t, "true", trueSet.Get("isDelayed"))
}

func TestBuildListQueryOmitsBlankValues(t *testing.T) {
	got := BuildListQuery(model.Filter{
		SearchTerm:     "   ",
		AssignedUserID: ptr(int64(0)),
	})

	assert.False(t, got.Has("searchTerm"))
	assert.False(t, got.Has("assignedUserID"))

	assigned := BuildListQuery(model.Filter{AssignedUserID: ptr(int64(42))})
	assert.Equal(t, "42", assigned.Get("assignedUserID"))
}

func TestNextSortFieldCycles(t *testing.T) {
	assert.Equal(t, "deadline", NextSortField(""))
	assert.Equal(t, "deadline", NextSortField("created"))
	assert.Equal(t, "created", NextSortField("updated"))
	assert.Equal(t, "created", NextSortField("bogus"))
}

func TestSequenceLatest(t *testing.T) {
	var seq Sequence
	first := seq.Begin()
	second := seq.Begin()

	assert.False(t, seq.Latest(first))
	assert.True(t, seq.Latest(second))
}
