// Package endpoint defines the supported exchanges and market categories and
// builds their WebSocket URIs.
package endpoint

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	ErrUnknownExchange = errors.New("unknown exchange")
	ErrUnknownCategory = errors.New("unknown category")
)

// Exchange identifies a Bybit environment.
type Exchange string

const (
	Bybit        Exchange = "bybit.com"
	BybitTestnet Exchange = "bybit.com-testnet"
)

// APIVersion is the path segment between the base URI and the category.
const APIVersion = "v5"

var baseURIs = map[Exchange]string{
	Bybit:        "wss://stream.bybit.com",
	BybitTestnet: "wss://stream-testnet.bybit.com",
}

var restURLs = map[Exchange]string{
	Bybit:        "https://api.bybit.com",
	BybitTestnet: "https://api-testnet.bybit.com",
}

// ParseExchange validates an exchange tag.
func ParseExchange(s string) (Exchange, error) {
	e := Exchange(strings.TrimSpace(s))
	if _, ok := baseURIs[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExchange, s)
	}
	return e, nil
}

// BaseURI returns the WebSocket base URI of the exchange.
func (e Exchange) BaseURI() string {
	return baseURIs[e]
}

// RestURL returns the REST base URL of the exchange.
func (e Exchange) RestURL() string {
	return restURLs[e]
}

// IsTestnet reports whether e is a testnet environment.
func (e Exchange) IsTestnet() bool {
	return e == BybitTestnet
}

// Category is a market partition with its own endpoint and subscription cap.
type Category string

const (
	Spot    Category = "spot"
	Linear  Category = "linear"
	Inverse Category = "inverse"
	Option  Category = "option"
	Private Category = "private"
)

// Categories lists every supported category.
var Categories = []Category{Spot, Linear, Inverse, Option, Private}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Spot, Linear, Inverse, Option, Private:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// IsPrivate reports whether the category needs authentication.
func (c Category) IsPrivate() bool {
	return c == Private
}

// Path returns the endpoint path below the API version, e.g. "public/linear".
func (c Category) Path() string {
	if c == Private {
		return "private"
	}
	return "public/" + string(c)
}

// MaxArgsPerRequest returns how many topics one subscribe frame may carry.
// Spot accepts at most 10 args per request.
func (c Category) MaxArgsPerRequest() int {
	if c == Spot {
		return 10
	}
	return 350
}

// Endpoint is the resolved exchange/category pair.
type Endpoint struct {
	Exchange Exchange
	Category Category
	BaseURI  string // overrides Exchange.BaseURI() when set
}

// New validates exchange and category and returns the resolved endpoint.
func New(exchange, category string) (Endpoint, error) {
	e, err := ParseExchange(exchange)
	if err != nil {
		return Endpoint{}, err
	}
	c, err := ParseCategory(category)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Exchange: e, Category: c}, nil
}

// URI returns "{base}/v5/{path}".
func (ep Endpoint) URI() string {
	base := ep.BaseURI
	if base == "" {
		base = ep.Exchange.BaseURI()
	}
	return strings.TrimSuffix(base, "/") + "/" + APIVersion + "/" + ep.Category.Path()
}

func (ep Endpoint) String() string {
	return string(ep.Exchange) + "/" + string(ep.Category)
}
