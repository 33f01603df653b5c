package dispatch

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpterminal/internal/adapters/pricefeed"
)

var observed = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func TestFormatConversion(t *testing.T) {
	q := pricefeed.Quote{Symbol: "BTC", PriceUSD: decimal.NewFromInt(50000), ObservedAt: observed}

	out, err := FormatConversion(decimal.NewFromInt(100), q)
	require.NoError(t, err)

	assert.Contains(t, out, "100 / 50000 = 0.002000 BTC")
	assert.Contains(t, out, "$50,000.00")
	assert.Contains(t, out, "2024-03-01 12:30:00 UTC")
}

func TestFormatListing(t *testing.T) {
	quotes := map[string]pricefeed.Quote{
		"SOL": {Symbol: "SOL", PriceUSD: decimal.RequireFromString("142.5"), ObservedAt: observed},
		"BTC": {Symbol: "BTC", PriceUSD: decimal.RequireFromString("64123.456"), ObservedAt: observed},
	}

	out, err := FormatListing(quotes)
	require.NoError(t, err)

	assert.Contains(t, out, "BTC: $64,123.46")
	assert.Contains(t, out, "SOL: $142.50")
	assert.NotContains(t, out, "ETH")
	assert.Less(t, strings.Index(out, "BTC"), strings.Index(out, "SOL"))
}

func TestFormatTimestampConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	assert.Equal(t, "2024-03-01 12:30:00 UTC", FormatTimestamp(observed.In(loc)))
}

func TestFormatConversionLayout(t *testing.T) {
	q := pricefeed.Quote{Symbol: "ETH", PriceUSD: decimal.RequireFromString("2500.5"), ObservedAt: observed}

	out, err := FormatConversion(decimal.RequireFromString("1000.25"), q)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "💱 $1000.25 in ETH:", lines[0])
	assert.Equal(t, "1000.25 / 2500.5 = 0.400020 ETH", lines[1])
	assert.Equal(t, "Rate: 1 ETH = $2,500.50", lines[2])
	assert.Equal(t, "Updated: 2024-03-01 12:30:00 UTC", lines[3])
}

func TestFormatListingEmpty(t *testing.T) {
	out, err := FormatListing(nil)
	require.NoError(t, err)
	assert.Equal(t, "📈 Live crypto prices:", out)
}
