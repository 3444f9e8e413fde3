package util_test

import (
	"strconv"
	"testing"

	"github.com/hbomb79/Grabber/internal/api/util"
	"github.com/stretchr/testify/assert"
)

func TestApplyConversion(t *testing.T) {
	out := util.ApplyConversion([]int{1, 2, 3}, strconv.Itoa)
	assert.Equal(t, []string{"1", "2", "3"}, out)

	empty := util.ApplyConversion[int, string](nil, strconv.Itoa)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", util.FirstNonEmpty("", "b", "c"))
	assert.Equal(t, "a", util.FirstNonEmpty("a", "b"))
	assert.Equal(t, "", util.FirstNonEmpty("", ""))
	assert.Equal(t, "", util.FirstNonEmpty())
}
