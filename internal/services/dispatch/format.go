package dispatch

import (
	"embed"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"dpterminal/internal/adapters/pricefeed"
	"dpterminal/pkg/templates"
)

// Fixed user-facing texts
const (
	ImageReadyText       = "🎨 Your masterpiece is ready! Check out the generated image below."
	ImageFailedText      = "⚠️ Image generation failed - the artist is on strike. Try a different description!"
	ImageDisabledText    = "⚠️ Image generation isn't enabled on this terminal."
	PriceUnavailableText = "⚠️ Couldn't fetch live prices right now. The price feed may be down or rate-limiting - please try again in a minute."
	GenericFailureText   = "⚠️ Something went wrong while handling your message. Please try again."
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

//go:embed messages
var messageFS embed.FS

var messages = templates.MustRegistryFromFS(mustSub(messageFS, "messages"), template.FuncMap{
	"usd":       FormatUSD,
	"timestamp": FormatTimestamp,
})

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// FormatTimestamp renders an observation time in UTC
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// FormatUSD renders a price with thousands separators and two decimals
func FormatUSD(d decimal.Decimal) string {
	return "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

type conversionView struct {
	Symbol     string
	Amount     string
	Price      decimal.Decimal
	Units      string
	ObservedAt time.Time
}

// FormatConversion answers "how much <asset> is $amount" as amount / price with 6 decimals
func FormatConversion(amount decimal.Decimal, q pricefeed.Quote) (string, error) {
	out, err := messages.Render("price/conversion", conversionView{
		Symbol:     q.Symbol,
		Amount:     amount.String(),
		Price:      q.PriceUSD,
		Units:      amount.DivRound(q.PriceUSD, 6).StringFixed(6),
		ObservedAt: q.ObservedAt,
	})
	return strings.TrimSpace(out), err
}

// FormatListing lists every available quote in asset order
func FormatListing(quotes map[string]pricefeed.Quote) (string, error) {
	ordered := make([]pricefeed.Quote, 0, len(quotes))
	for _, a := range pricefeed.Assets {
		if q, ok := quotes[a.Symbol]; ok {
			ordered = append(ordered, q)
		}
	}
	out, err := messages.Render("price/listing", ordered)
	return strings.TrimSpace(out), err
}
