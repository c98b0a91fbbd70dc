package intel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	testRevenueRanges = []string{
		"1億円未満", "1-5億円", "5-10億円", "10-50億円", "50-100億円", "100-500億円", "500億円以上",
	}
	testEmployeeRanges = []string{
		"1-9名", "10-29名", "30-49名", "50-99名", "100-299名", "300-499名", "500-999名", "1000名以上",
	}
)

func TestMapRevenueToRange(t *testing.T) {
	cases := []struct {
		oku  float64
		want string
	}{
		{0.5, "1億円未満"},
		{3, "1-5億円"},
		{7, "5-10億円"},
		{20, "10-50億円"},
		{75, "50-100億円"},
		{300, "100-500億円"},
		{600, "500億円以上"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MapRevenueToRange(c.oku, testRevenueRanges), "oku=%v", c.oku)
	}
}

func TestMapRevenueToRangeCosmeticVariant(t *testing.T) {
	ranges := []string{"〜1億円未満", "1-5億", "5-10億", "10-50億", "50-100億", "100-500億", "500億円以上"}
	assert.Equal(t, "10-50億", MapRevenueToRange(12, ranges))
}

func TestMapEmployeesToRange(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{5, "1-9名"},
		{15, "10-29名"},
		{40, "30-49名"},
		{80, "50-99名"},
		{120, "100-299名"},
		{400, "300-499名"},
		{800, "500-999名"},
		{4500, "1000名以上"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MapEmployeesToRange(c.n, testEmployeeRanges), "n=%d", c.n)
	}
}

func TestMapToRangeNoCandidate(t *testing.T) {
	assert.Equal(t, "", MapRevenueToRange(20, []string{"小規模", "大規模"}))
	assert.Equal(t, "", MapEmployeesToRange(120, nil))
}

func TestIsExactRange(t *testing.T) {
	assert.True(t, IsExactRange("10-50億円", testRevenueRanges))
	assert.False(t, IsExactRange("10〜50億円", testRevenueRanges))
	assert.False(t, IsExactRange("", testRevenueRanges))
}
