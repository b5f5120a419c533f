package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/order"
)

func defaultCheckout() CheckoutConfig {
	return CheckoutConfig{
		FreeShippingThreshold: "500",
		ShippingFee:           "50",
		TaxEnabled:            true,
		TaxRate:               "0.18",
		CODEnabled:            true,
		CODFee:                "25",
	}
}

func TestCheckoutConfig_Policy(t *testing.T) {
	p, err := defaultCheckout().Policy()
	require.NoError(t, err)

	want := order.DefaultPolicy()
	assert.True(t, want.FreeShippingThreshold.Equal(p.FreeShippingThreshold))
	assert.True(t, want.StandardShippingFee.Equal(p.StandardShippingFee))
	assert.True(t, want.TaxRate.Equal(p.TaxRate))
	assert.True(t, want.CODFee.Equal(p.CODFee))
	assert.Equal(t, want.TaxEnabled, p.TaxEnabled)
	assert.Equal(t, want.CODEnabled, p.CODEnabled)

	total, err := order.ComputeTotal(decimal.NewFromInt(1000), order.MethodCOD, p)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1205).Equal(total.GrandTotal), "got %s", total.GrandTotal)
}

func TestCheckoutConfig_PolicyErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *CheckoutConfig)
	}{
		{name: "bad threshold", mutate: func(c *CheckoutConfig) { c.FreeShippingThreshold = "lots" }},
		{name: "negative fee", mutate: func(c *CheckoutConfig) { c.ShippingFee = "-1" }},
		{name: "bad tax", mutate: func(c *CheckoutConfig) { c.TaxRate = "" }},
		{name: "negative cod", mutate: func(c *CheckoutConfig) { c.CODFee = "-25" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultCheckout()
			tt.mutate(&c)
			_, err := c.Policy()
			require.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://localhost/storefront",
			Snapshots:   SnapshotsConfig{Backend: "postgres"},
			Checkout:    defaultCheckout(),
		}
	}

	c := valid()
	require.NoError(t, c.validate())

	c = valid()
	c.Snapshots.Backend = "redis"
	require.NoError(t, c.validate())

	c = valid()
	c.DatabaseURL = ""
	require.Error(t, c.validate())

	c = valid()
	c.Snapshots.Backend = "memcached"
	require.Error(t, c.validate())

	c = valid()
	c.Checkout.TaxRate = "x"
	require.Error(t, c.validate())
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	c := Config{Addr: "0.0.0.0:8080"}
	c.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", c.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", c.Addr)

	c = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	c.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", c.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", c.Addr)
}
