// Package taskquery turns UI filter and form state into API request shapes.
// Everything here is a pure function of its inputs and the local time zone.
package taskquery

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/Joseda-hg/taskdesk/internal/model"
)

const DefaultSortBy = "created"

// SortFields is the order the UI cycles sort keys in.
var SortFields = []string{"created", "deadline", "name", "status", "updated"}

// BuildListQuery encodes filter sparsely: unset fields are left out so the
// API applies its own defaults. Sort keys always appear.
func BuildListQuery(filter model.Filter) url.Values {
	params := url.Values{}

	if filter.Status != nil {
		params.Set("status", strconv.Itoa(int(*filter.Status)))
	}
	if filter.AssignedUserID != nil && *filter.AssignedUserID != 0 {
		params.Set("assignedUserID", strconv.FormatInt(*filter.AssignedUserID, 10))
	}
	if filter.IsDelayed != nil {
		params.Set("isDelayed", strconv.FormatBool(*filter.IsDelayed))
	}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		params.Set("searchTerm", term)
	}

	sortBy := strings.TrimSpace(filter.SortBy)
	if sortBy == "" {
		sortBy = DefaultSortBy
	}
	params.Set("sortBy", sortBy)

	descending := true
	if filter.SortDescending != nil {
		descending = *filter.SortDescending
	}
	params.Set("sortDescending", strconv.FormatBool(descending))

	return params
}

func NextSortField(current string) string {
	value := strings.TrimSpace(current)
	if value == "" {
		value = DefaultSortBy
	}
	for i, field := range SortFields {
		if field == value {
			return SortFields[(i+1)%len(SortFields)]
		}
	}
	return SortFields[0]
}

// SortDescending resolves the tri-state sort direction to its effective value.
func SortDescending(filter model.Filter) bool {
	if filter.SortDescending == nil {
		return true
	}
	return *filter.SortDescending
}
