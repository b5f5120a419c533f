package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dims(t *testing.T, w, h string) *Dimensions {
	t.Helper()
	d, err := ParseDimensions(w, h)
	require.NoError(t, err)
	return &d
}

func TestEngine_AreaUnits(t *testing.T) {
	e := NewEngine(decimal.NewFromInt(DefaultUnitsPerAreaUnit))

	tests := []struct {
		name   string
		w, h   string
		expect int64
	}{
		{name: "exact", w: "40", h: "90", expect: 25},
		{name: "rounds up a sliver", w: "40", h: "90.01", expect: 26},
		{name: "below one unit", w: "1", h: "1", expect: 1},
		{name: "fractional inputs", w: "12.5", h: "11.52", expect: 1},
		{name: "fractional inputs over", w: "12.5", h: "11.53", expect: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.AreaUnits(*dims(t, tt.w, tt.h))
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestEngine_AreaUnitsMonotonic(t *testing.T) {
	e := NewEngine(decimal.NewFromInt(DefaultUnitsPerAreaUnit))
	step := decimal.RequireFromString("0.7")

	w := decimal.RequireFromString("0.3")
	var prev int64
	for range 200 {
		got, err := e.AreaUnits(Dimensions{Width: w, Height: decimal.NewFromInt(37)})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev, "width %s", w)
		prev = got
		w = w.Add(step)
	}

	h := decimal.RequireFromString("0.3")
	prev = 0
	for range 200 {
		got, err := e.AreaUnits(Dimensions{Width: decimal.NewFromInt(53), Height: h})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev, "height %s", h)
		prev = got
		h = h.Add(step)
	}
}

func TestEngine_Compute(t *testing.T) {
	e := NewEngine(decimal.Zero)
	media := PerAreaMedia{Options: []MediaOption{
		{Name: "Vinyl", PricePerAreaUnit: decimal.NewFromInt(80)},
		{Name: "Fabric", PricePerAreaUnit: decimal.NewFromInt(120)},
	}}

	t.Run("standard ignores dimensions", func(t *testing.T) {
		q, err := e.Compute(Standard{}, decimal.NewFromInt(499), dims(t, "40", "90"), "Vinyl")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(499).Equal(q.Total))
		assert.Zero(t, q.AreaUnits)
	})

	t.Run("standard without dimensions", func(t *testing.T) {
		q, err := e.Compute(Standard{}, decimal.NewFromInt(10), nil, "")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(10).Equal(q.Total))
	})

	t.Run("per area flat", func(t *testing.T) {
		q, err := e.Compute(PerAreaFlat{}, decimal.NewFromInt(60), dims(t, "40", "90"), "")
		require.NoError(t, err)
		assert.Equal(t, int64(25), q.AreaUnits)
		assert.True(t, decimal.NewFromInt(1500).Equal(q.Total), "got %s", q.Total)
	})

	t.Run("per area media", func(t *testing.T) {
		q, err := e.Compute(media, decimal.NewFromInt(1), dims(t, "40", "90"), "Fabric")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(3000).Equal(q.Total), "got %s", q.Total)
		assert.Equal(t, "Fabric", q.Media)
	})

	t.Run("per area media without selection", func(t *testing.T) {
		_, err := e.Compute(media, decimal.NewFromInt(1), dims(t, "40", "90"), "")
		var selErr *MissingSelectionError
		require.ErrorAs(t, err, &selErr)
		assert.Equal(t, "media", selErr.Field)
	})

	t.Run("per area media unknown option", func(t *testing.T) {
		_, err := e.Compute(media, decimal.NewFromInt(1), dims(t, "40", "90"), "Silk")
		var optErr *UnknownOptionError
		require.ErrorAs(t, err, &optErr)
	})

	t.Run("per roll", func(t *testing.T) {
		// 120 area units: 144 * 120 = 17280 = 120 x 144.
		q, err := e.Compute(PerRoll{AreaUnitsPerRoll: decimal.NewFromInt(50)}, decimal.NewFromInt(900), dims(t, "120", "144"), "")
		require.NoError(t, err)
		assert.Equal(t, int64(120), q.AreaUnits)
		assert.Equal(t, int64(3), q.RollCount)
		assert.True(t, decimal.NewFromInt(2700).Equal(q.Total), "got %s", q.Total)
	})

	t.Run("per roll misconfigured", func(t *testing.T) {
		_, err := e.Compute(PerRoll{}, decimal.NewFromInt(900), dims(t, "10", "10"), "")
		var polErr *InvalidPolicyError
		require.ErrorAs(t, err, &polErr)
	})

	t.Run("missing dimensions", func(t *testing.T) {
		_, err := e.Compute(PerAreaFlat{}, decimal.NewFromInt(60), nil, "")
		var dimErr *InvalidDimensionsError
		require.ErrorAs(t, err, &dimErr)
	})

	t.Run("largest dimensions", func(t *testing.T) {
		q, err := e.Compute(PerAreaFlat{}, decimal.NewFromInt(60), dims(t, "100000", "100000"), "")
		require.NoError(t, err)
		// 1e10 / 144 rounded up.
		assert.Equal(t, int64(69444445), q.AreaUnits)
		assert.True(t, decimal.NewFromInt(69444445*60).Equal(q.Total), "got %s", q.Total)
	})

	t.Run("out of range dimensions", func(t *testing.T) {
		for _, d := range []Dimensions{
			{Width: decimal.RequireFromString("1e15"), Height: decimal.RequireFromString("1e15")},
			{Width: decimal.RequireFromString("99999999999"), Height: decimal.NewFromInt(10)},
			{Width: decimal.New(1, 2_000_000_000), Height: decimal.New(1, 2_000_000_000)},
			{Width: decimal.NewFromInt(10), Height: decimal.New(1, -2_000_000_000)},
		} {
			var q Quote
			var err error
			require.NotPanics(t, func() {
				q, err = e.Compute(PerAreaFlat{}, decimal.NewFromInt(60), &d, "")
			})
			var dimErr *InvalidDimensionsError
			require.ErrorAs(t, err, &dimErr, "dims %s x %s", d.Width, d.Height)
			assert.True(t, q.Total.IsZero())
		}
	})

	t.Run("area beyond int64", func(t *testing.T) {
		tiny := NewEngine(decimal.New(1, -18))
		_, err := tiny.Compute(PerAreaFlat{}, decimal.NewFromInt(60), dims(t, "100000", "100000"), "")
		var dimErr *InvalidDimensionsError
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, "area", dimErr.Field)
		assert.Equal(t, "too large", dimErr.Reason)
	})

	t.Run("zero dimension", func(t *testing.T) {
		_, err := e.Compute(PerAreaFlat{}, decimal.NewFromInt(60), &Dimensions{Width: decimal.Zero, Height: decimal.NewFromInt(3)}, "")
		var dimErr *InvalidDimensionsError
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, "width", dimErr.Field)
	})
}

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		name       string
		w, h       string
		wantField  string
		wantReason string
	}{
		{name: "missing width", w: "", h: "3", wantField: "width"},
		{name: "non numeric height", w: "3", h: "abc", wantField: "height"},
		{name: "negative width", w: "-1", h: "3", wantField: "width"},
		{name: "zero height", w: "3", h: "0", wantField: "height"},
		{name: "nan", w: "NaN", h: "3", wantField: "width"},
		{name: "above max", w: "100000.01", h: "3", wantField: "width", wantReason: "too large"},
		{name: "huge", w: "1e15", h: "1e15", wantField: "width", wantReason: "too large"},
		{name: "many digits", w: "3", h: "99999999999", wantField: "height", wantReason: "too large"},
		{name: "huge exponent", w: "1e2000000000", h: "1e2000000000", wantField: "width", wantReason: "too large"},
		{name: "tiny exponent", w: "3", h: "1e-2000000000", wantField: "height", wantReason: "too many decimal places"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDimensions(tt.w, tt.h)
			var dimErr *InvalidDimensionsError
			require.ErrorAs(t, err, &dimErr)
			assert.Equal(t, tt.wantField, dimErr.Field)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, dimErr.Reason)
			}
		})
	}

	d, err := ParseDimensions(" 40 ", "90.5")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(d.Width))
	assert.True(t, decimal.RequireFromString("90.5").Equal(d.Height))
}

func TestEngine_DisplayPrice(t *testing.T) {
	e := NewEngine(decimal.Zero)

	price, computed := e.DisplayPrice(PerAreaFlat{}, decimal.NewFromInt(60), nil, "")
	assert.False(t, computed)
	assert.True(t, decimal.NewFromInt(60).Equal(price))

	price, computed = e.DisplayPrice(PerAreaFlat{}, decimal.NewFromInt(60), dims(t, "40", "90"), "")
	assert.True(t, computed)
	assert.True(t, decimal.NewFromInt(1500).Equal(price))
}

func TestQuote_Describe(t *testing.T) {
	e := NewEngine(decimal.Zero)

	q, err := e.Compute(PerAreaFlat{}, decimal.NewFromInt(60), dims(t, "40", "90"), "")
	require.NoError(t, err)
	assert.Equal(t, "Blind (40 x 90 in, 25 sq ft)", q.Describe("Blind"))

	q, err = e.Compute(Standard{}, decimal.NewFromInt(60), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Lamp", q.Describe("Lamp"))
}

func TestPolicyCodec(t *testing.T) {
	policies := []Policy{
		Standard{},
		PerAreaFlat{},
		PerAreaMedia{Options: []MediaOption{{Name: "Vinyl", PricePerAreaUnit: decimal.NewFromInt(80)}}},
		PerRoll{AreaUnitsPerRoll: decimal.NewFromInt(50)},
	}
	for _, p := range policies {
		t.Run(string(p.Kind()), func(t *testing.T) {
			data, err := MarshalPolicy(p)
			require.NoError(t, err)
			got, err := UnmarshalPolicy(data)
			require.NoError(t, err)
			assert.Equal(t, p.Kind(), got.Kind())
		})
	}

	got, err := UnmarshalPolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, KindStandard, got.Kind())

	_, err = UnmarshalPolicy([]byte(`{"kind":"per_roll"}`))
	var polErr *InvalidPolicyError
	require.ErrorAs(t, err, &polErr)

	_, err = UnmarshalPolicy([]byte(`{"kind":"bogus"}`))
	require.ErrorAs(t, err, &polErr)
}
