package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates a V5 client authenticated with the given keys.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	return bybit.NewClient().WithAuth(apiKey, apiSecret)
}
