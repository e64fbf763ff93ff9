package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thriftx/storefront/internal/domain/order"
)

func TestLockOrder(t *testing.T) {
	items := []order.Item{
		{ProductID: "tx-0005", Quantity: 1},
		{ProductID: "tx-0001", Quantity: 2},
		{ProductID: "tx-0003", Quantity: 1},
	}

	got := lockOrder(items)

	var ids []string
	for _, it := range got {
		ids = append(ids, it.ProductID)
	}
	assert.Equal(t, []string{"tx-0001", "tx-0003", "tx-0005"}, ids)
	assert.Equal(t, "tx-0005", items[0].ProductID, "stored item order is untouched")
	assert.Empty(t, lockOrder(nil))
}
