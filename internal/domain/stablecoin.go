package domain

// DefaultReferenceAsset settlement and reporting asset used when nothing else applies.
const DefaultReferenceAsset = "USDT"

var stablecoins = map[string]struct{}{
	"USDT":  {},
	"USDC":  {},
	"BUSD":  {},
	"FDUSD": {},
	"DAI":   {},
	"TUSD":  {},
}

// IsStablecoin reports whether the asset is valued at par with USD.
func IsStablecoin(asset string) bool {
	_, ok := stablecoins[asset]
	return ok
}
