package dispatch

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Intent is the handling strategy chosen for a message
type Intent string

const (
	IntentImage  Intent = "image"
	IntentWallet Intent = "wallet"
	IntentPrice  Intent = "price"
	IntentChat   Intent = "chat"
)

// Keywords holds the term sets used for classification
type Keywords struct {
	// ImageTriggers match as case-insensitive substrings
	ImageTriggers []string
	// The remaining sets match as case-insensitive whole words
	WalletTerms []string
	PriceTerms  []string
	CryptoTerms []string
	// AssetTerms maps a tracked symbol to the words naming it
	AssetTerms map[string][]string
}

// DefaultKeywords returns the production term sets
func DefaultKeywords() Keywords {
	return Keywords{
		ImageTriggers: []string{
			"generate image", "generate an image", "create picture", "create an image",
			"draw me", "visualize this", "show me a", "make a picture",
		},
		WalletTerms: []string{"wallet", "address", "contract address", "ca"},
		PriceTerms:  []string{"price", "prices", "value", "worth", "how much", "rate", "cost", "trading at"},
		CryptoTerms: []string{"bitcoin", "btc", "ethereum", "eth", "ether", "solana", "sol", "crypto"},
		AssetTerms: map[string][]string{
			"BTC": {"bitcoin", "btc"},
			"ETH": {"ethereum", "eth", "ether"},
			"SOL": {"solana", "sol"},
		},
	}
}

// Classifier assigns an Intent to a message. Order is first-match-wins:
// image, wallet, price, then chat.
type Classifier struct {
	imageTriggers []string
	wallet        *regexp.Regexp
	price         *regexp.Regexp
	crypto        *regexp.Regexp
	assets        map[string]*regexp.Regexp
}

var amountPattern = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]+)?)`)

func NewClassifier(kw Keywords) *Classifier {
	c := &Classifier{
		wallet: wordPattern(kw.WalletTerms),
		price:  wordPattern(kw.PriceTerms),
		crypto: wordPattern(kw.CryptoTerms),
		assets: make(map[string]*regexp.Regexp, len(kw.AssetTerms)),
	}
	for _, t := range kw.ImageTriggers {
		c.imageTriggers = append(c.imageTriggers, strings.ToLower(t))
	}
	for sym, terms := range kw.AssetTerms {
		c.assets[sym] = wordPattern(terms)
	}
	return c
}

// minStemLen is the shortest term that also matches suffixed forms
// ("wallets", "bitcoins"). Shorter terms such as "ca" or "eth" must match
// exactly so they do not fire inside "can" or "method".
const minStemLen = 4

// wordPattern compiles terms into one case-insensitive alternation anchored at
// a word start. An empty set never matches.
func wordPattern(terms []string) *regexp.Regexp {
	var exact, stems []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		q := strings.ReplaceAll(regexp.QuoteMeta(t), " ", `\s+`)
		if utf8.RuneCountInString(t) < minStemLen {
			exact = append(exact, q)
		} else {
			stems = append(stems, q)
		}
	}

	var alts []string
	if len(exact) > 0 {
		alts = append(alts, `(?:`+strings.Join(exact, "|")+`)\b`)
	}
	if len(stems) > 0 {
		alts = append(alts, `(?:`+strings.Join(stems, "|")+`)\w*`)
	}
	if len(alts) == 0 {
		return regexp.MustCompile(`[^\s\S]`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)`)
}

// Classify returns the intent of message
func (c *Classifier) Classify(message string) Intent {
	lower := strings.ToLower(message)
	for _, t := range c.imageTriggers {
		if strings.Contains(lower, t) {
			return IntentImage
		}
	}
	if c.wallet.MatchString(message) {
		return IntentWallet
	}
	if c.price.MatchString(message) && c.crypto.MatchString(message) {
		return IntentPrice
	}
	return IntentChat
}

// MentionedAssets returns the tracked symbols named in message, in the order of symbols
func (c *Classifier) MentionedAssets(message string, symbols []string) []string {
	var out []string
	for _, sym := range symbols {
		if re, ok := c.assets[sym]; ok && re.MatchString(message) {
			out = append(out, sym)
		}
	}
	return out
}

// DollarAmount extracts the first $-prefixed amount in message
func DollarAmount(message string) (decimal.Decimal, bool) {
	m := amountPattern.FindStringSubmatch(message)
	if m == nil {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}
