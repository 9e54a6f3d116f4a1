package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 3, Distance("kitten", "sitting"))
	assert.Equal(t, 0, Distance("", ""))
	assert.Equal(t, 4, Distance("", "abcd"))
	assert.Equal(t, 1, Distance("héllo", "hello"))
}

func TestSuggest(t *testing.T) {
	candidates := []string{"Orders", "OrderItems", "Customer", "Order"}
	assert.Equal(t, []string{"Order", "Orders"}, Suggest("ordr", candidates, 3))
	assert.Equal(t, []string{"Order"}, Suggest("ordr", candidates, 1))
	assert.Empty(t, Suggest("Shipment", candidates, 3))
}
