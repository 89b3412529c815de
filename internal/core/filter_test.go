package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/wlrs/internal/library"
)

func sampleSummaries() []library.Summary {
	now := time.Now()
	return []library.Summary{
		{ID: "1", Name: "Ocean", Author: "jm", Source: library.SourceInstalled, Layers: 4, Framerate: "30", LoadedAt: now.Add(-10 * time.Minute)},
		{ID: "2", Name: "Forest", Author: "ana", Description: "Misty pines", Source: library.SourceSearch, Layers: 2, Framerate: "compositor", LoadedAt: now.Add(-3 * time.Hour)},
		{ID: "3", Name: "Ocean Night", Author: "jm", Source: library.SourceLoaded, Layers: 6, Framerate: "60", LoadedAt: now.Add(-48 * time.Hour)},
	}
}

func ids(list []library.Summary) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"empty", "", []string{"1", "2", "3"}},
		{"exact is case-insensitive", "name=ocean", []string{"1"}},
		{"contains", "name~ocean", []string{"1", "3"}},
		{"not equal", "source!=installed", []string{"2", "3"}},
		{"regex", "name~=^Ocean$", []string{"1"}},
		{"layers", "layers>=4", []string{"1", "3"}},
		{"layers less", "layers<4", []string{"2"}},
		{"recent", "loaded<1h", []string{"1"}},
		{"older", "loaded>1d", []string{"3"}},
		{"compound", "author=jm,layers>4", []string{"3"}},
		{"description alias", "desc~pines", []string{"2"}},
		{"framerate", "framerate=compositor", []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseFilter(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(Filter(sampleSummaries(), expr)))
		})
	}
}

func TestParseFilter_Errors(t *testing.T) {
	for _, expr := range []string{
		"colour=blue",
		"layers>many",
		"loaded<soon",
		"name~=(",
		"justtext",
	} {
		_, err := ParseFilter(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"0", 0},
		{"", 0},
		{"90m", 90 * time.Minute},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseDuration("xd")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	assert.Equal(t, []string{"2"}, ids(Search(sampleSummaries(), "MISTY")))
	assert.Equal(t, []string{"1", "3"}, ids(Search(sampleSummaries(), "jm")))
	assert.Len(t, Search(sampleSummaries(), ""), 3)
}
