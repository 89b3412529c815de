// Package core provides filtering and sorting of wallpaper listings.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/wlrs/internal/library"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Greater than
	FilterOpLess      FilterOp = "<"  // Less than
	FilterOpGreaterEq FilterOp = ">=" // Greater than or equal
	FilterOpLessEq    FilterOp = "<=" // Less than or equal
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // name, author, description, source, path, version, framerate, tickrate, layers, loaded
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex    *regexp.Regexp
	intVal   int
	loadedAt time.Time
}

// FilterExpr is a set of conditions that must all match.
type FilterExpr struct {
	Conditions []FilterCondition
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" || s == "" {
		return 0, nil
	}
	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
//
// Examples:
//   - "source=installed" - wallpapers in the install directory
//   - "name~ocean" - name contains "ocean"
//   - "layers>=3" - at least three layers
//   - "author~=(?i)^jm" - author matches a regex
//   - "loaded<1h" - loaded within the last hour
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}
	return filter, nil
}

func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first so "!=" is not read as "=".
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx <= 0 {
			continue
		}
		cond := FilterCondition{
			Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
			Operator: op,
			Value:    strings.TrimSpace(s[idx+len(op):]),
		}
		if err := cond.init(); err != nil {
			return FilterCondition{}, err
		}
		return cond, nil
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

func (c *FilterCondition) init() error {
	switch c.Field {
	case "name", "author", "description", "source", "path", "version", "framerate", "tickrate":
	case "desc":
		c.Field = "description"
	case "layers", "layer":
		c.Field = "layers"
		n, err := strconv.Atoi(c.Value)
		if err != nil {
			return fmt.Errorf("invalid layer count: %s", c.Value)
		}
		c.intVal = n
	case "loaded", "loaded_at", "age":
		c.Field = "loaded"
		dur, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid loaded value: %w", err)
		}
		c.loadedAt = time.Now().Add(-dur)
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}
	return nil
}

// Match reports whether s satisfies every condition.
func (f *FilterExpr) Match(s library.Summary) bool {
	for _, cond := range f.Conditions {
		if !cond.Match(s) {
			return false
		}
	}
	return true
}

// Match tests s against this single condition.
func (c *FilterCondition) Match(s library.Summary) bool {
	switch c.Field {
	case "name":
		return c.matchString(s.Name)
	case "author":
		return c.matchString(s.Author)
	case "description":
		return c.matchString(s.Description)
	case "source":
		return c.matchString(string(s.Source))
	case "path":
		return c.matchString(s.Path)
	case "version":
		return c.matchString(s.Version)
	case "framerate":
		return c.matchString(s.Framerate)
	case "tickrate":
		return c.matchString(s.Tickrate)
	case "layers":
		return c.matchInt(s.Layers)
	case "loaded":
		return c.matchAge(s.LoadedAt)
	default:
		return false
	}
}

func (c *FilterCondition) matchString(v string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return strings.EqualFold(v, c.Value)
	case FilterOpNotEqual:
		return !strings.EqualFold(v, c.Value)
	case FilterOpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(v)
	default:
		return false
	}
}

func (c *FilterCondition) matchInt(v int) bool {
	switch c.Operator {
	case FilterOpEqual:
		return v == c.intVal
	case FilterOpNotEqual:
		return v != c.intVal
	case FilterOpGreater:
		return v > c.intVal
	case FilterOpLess:
		return v < c.intVal
	case FilterOpGreaterEq:
		return v >= c.intVal
	case FilterOpLessEq:
		return v <= c.intVal
	default:
		return false
	}
}

// matchAge compares ages: "loaded<1h" means loaded less than an hour ago.
func (c *FilterCondition) matchAge(t time.Time) bool {
	switch c.Operator {
	case FilterOpLess:
		return t.After(c.loadedAt)
	case FilterOpLessEq:
		return !t.Before(c.loadedAt)
	case FilterOpGreater:
		return t.Before(c.loadedAt)
	case FilterOpGreaterEq:
		return !t.After(c.loadedAt)
	default:
		return false
	}
}

// Filter returns the summaries matching expr, in order.
func Filter(list []library.Summary, expr *FilterExpr) []library.Summary {
	if expr == nil || len(expr.Conditions) == 0 {
		return list
	}
	result := make([]library.Summary, 0, len(list))
	for _, s := range list {
		if expr.Match(s) {
			result = append(result, s)
		}
	}
	return result
}

// Search keeps summaries whose name, author or description contains term,
// case-insensitively.
func Search(list []library.Summary, term string) []library.Summary {
	if term == "" {
		return list
	}
	term = strings.ToLower(term)
	var result []library.Summary
	for _, s := range list {
		if strings.Contains(strings.ToLower(s.Name), term) ||
			strings.Contains(strings.ToLower(s.Author), term) ||
			strings.Contains(strings.ToLower(s.Description), term) {
			result = append(result, s)
		}
	}
	return result
}
