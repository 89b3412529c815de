package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/wlrs/internal/library"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByName   SortField = "name"
	SortByLayers SortField = "layers"
	SortByLoaded SortField = "loaded"
	SortBySource SortField = "source"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions sorts by name, A to Z.
func DefaultSortOptions() SortOptions {
	return SortOptions{Field: SortByName, Order: SortAsc}
}

// Sort sorts summaries in place. Ties keep their name order.
func Sort(list []library.Summary, opts SortOptions) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		var less, equal bool
		switch opts.Field {
		case SortByLayers:
			less, equal = a.Layers < b.Layers, a.Layers == b.Layers
		case SortByLoaded:
			less, equal = a.LoadedAt.Before(b.LoadedAt), a.LoadedAt.Equal(b.LoadedAt)
		case SortBySource:
			less, equal = a.Source < b.Source, a.Source == b.Source
		default:
			na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name)
			less, equal = na < nb, na == nb
		}
		if equal {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
		if opts.Order == SortDesc {
			return !less
		}
		return less
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "n", "":
		return SortByName, nil
	case "layers", "l":
		return SortByLayers, nil
	case "loaded", "time", "t":
		return SortByLoaded, nil
	case "source", "s":
		return SortBySource, nil
	default:
		return "", fmt.Errorf("invalid sort field: %s (use name, layers, loaded or source)", s)
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a", "":
		return SortAsc, nil
	case "desc", "descending", "d":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (use asc or desc)", s)
	}
}
