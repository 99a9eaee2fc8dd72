package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docwatch-engine/internal/domain"
)

func ts(value string) *time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestFilterNewerIsStrict(t *testing.T) {
	baseline := *ts("2025-01-01")
	candidates := []domain.Candidate{
		{Title: "newer", Published: ts("2025-02-01")},
		{Title: "tie", Published: ts("2025-01-01")},
		{Title: "older", Published: ts("2024-12-01")},
		{Title: "dateless", Published: nil},
	}

	kept := FilterNewer(candidates, baseline)
	require.Len(t, kept, 1)
	assert.Equal(t, "newer", kept[0].Title)
}

// Job {query: "policy X", baseline: 2025-01-01}; listing yields items dated
// 2025-02-01 and 2024-12-01; only the first survives.
func TestFilterNewerScenario(t *testing.T) {
	kept := FilterNewer([]domain.Candidate{
		{Title: "policy X update", Published: ts("2025-02-01")},
		{Title: "policy X archive", Published: ts("2024-12-01")},
	}, *ts("2025-01-01"))

	require.Len(t, kept, 1)
	assert.Equal(t, "policy X update", kept[0].Title)
}

func TestParseDateFormats(t *testing.T) {
	cases := map[string]string{
		"2025-02-01":          "2025-02-01",
		"2025-2-1":            "2025-02-01",
		"2025/02/01":          "2025-02-01",
		"2025.02.01":          "2025-02-01",
		"2025年2月1日":           "2025-02-01",
		"2025-02-01 08:30":    "2025-02-01",
		"2025-02-01 08:30:15": "2025-02-01",
	}
	for input, wantDay := range cases {
		got := ParseDate(input, nil)
		require.NotNil(t, got, "input %q", input)
		assert.Equal(t, wantDay, got.Format("2006-01-02"), "input %q", input)
	}
}

func TestParseDateUnparseable(t *testing.T) {
	assert.Nil(t, ParseDate("no date here", nil))
	assert.Nil(t, ParseDate("", nil))
}

func TestParseDateCustomFormats(t *testing.T) {
	got := ParseDate("01|02|2025", []string{"02|01|2006"})
	require.NotNil(t, got)
	assert.Equal(t, "2025-02-01", got.Format("2006-01-02"))
}

// Rows often carry several dates; the latest one is the publish date.
func TestMineDatePicksLatest(t *testing.T) {
	got := MineDate("effective 2024-06-01, published 2025-02-01, expires 2024-12-31", nil)
	require.NotNil(t, got)
	assert.Equal(t, "2025-02-01", got.Format("2006-01-02"))
}

func TestMineDateChinese(t *testing.T) {
	got := MineDate("发布日期：2025年2月1日", nil)
	require.NotNil(t, got)
	assert.Equal(t, "2025-02-01", got.Format("2006-01-02"))
}

func TestMineDateNothingFound(t *testing.T) {
	assert.Nil(t, MineDate("nothing datelike at all", nil))
}

func TestMatchesKeywordIgnoresWhitespaceAndCase(t *testing.T) {
	assert.True(t, MatchesKeyword("Annual  Report\n2025", "annual report"))
	assert.True(t, MatchesKeyword("关于 发布 管理办法 的通知", "发布管理办法"))
	assert.False(t, MatchesKeyword("something else", "annual report"))
	assert.False(t, MatchesKeyword("anything", "   "))
}
