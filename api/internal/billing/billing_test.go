package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	start, ok := c.Get("start")
	require.True(t, ok)
	assert.True(t, start.Free())
	assert.Equal(t, "Старт", start.Name)

	pro, ok := c.Get("pro")
	require.True(t, ok)
	assert.Equal(t, "990.00", pro.AmountValue())
	assert.Equal(t, 30, pro.DurationDays)

	biz, _ := c.Get("business")
	assert.Equal(t, "2990.00", biz.AmountValue())

	_, ok = c.Get("enterprise")
	assert.False(t, ok)
	assert.Equal(t, "pro", c.GetOrDefault("enterprise").ID)

	ids := []string{}
	for _, p := range c.All() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"start", "pro", "business"}, ids)
}

func TestLoadRejectsBadPlans(t *testing.T) {
	_, err := Load([]byte("plans:\n  - id: x\n    price: 1\n"))
	assert.ErrorContains(t, err, "positive duration")

	_, err = Load([]byte("plans:\n  - {id: a, price: 1, duration_days: 1}\n  - {id: a, price: 2, duration_days: 1}\n"))
	assert.ErrorContains(t, err, "declared twice")

	_, err = Load([]byte("plans: ["))
	assert.Error(t, err)
}
