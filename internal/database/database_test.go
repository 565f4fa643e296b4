package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferentialErrorMessage(t *testing.T) {
	err := &ReferentialError{Entity: "group", InvalidIDs: []int64{3, 9}}
	assert.Equal(t, "unknown group ids: [3 9]", err.Error())
}

func TestDedupeIDsPreservesOrder(t *testing.T) {
	assert.Equal(t, []int64{4, 2, 7}, dedupeIDs([]int64{4, 2, 4, 7, 2}))
	assert.Empty(t, dedupeIDs(nil))
}
