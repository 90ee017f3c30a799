package riot

import "strings"

// Region is a regional routing value for the Riot API
type Region string

const (
	Americas Region = "AMERICAS"
	Europe   Region = "EUROPE"
	Asia     Region = "ASIA"
	SEA      Region = "SEA"
)

// DefaultRegion is used when the input doesn't name a known region
const DefaultRegion = Americas

var regionAliases = map[string]Region{
	"americas": Americas,
	"na":       Americas,
	"na1":      Americas,
	"br":       Americas,
	"lan":      Americas,
	"las":      Americas,
	"europe":   Europe,
	"euw":      Europe,
	"eun":      Europe,
	"eune":     Europe,
	"tr":       Europe,
	"ru":       Europe,
	"asia":     Asia,
	"kr":       Asia,
	"jp":       Asia,
	"sea":      SEA,
	"oce":      SEA,
	"oc1":      SEA,
	"ph":       SEA,
	"sg":       SEA,
	"th":       SEA,
	"tw":       SEA,
	"vn":       SEA,
}

// ParseRegion maps user input to a region, case-insensitively.
// Unknown input falls back to DefaultRegion.
func ParseRegion(input string) Region {
	if r, ok := regionAliases[strings.ToLower(strings.TrimSpace(input))]; ok {
		return r
	}
	return DefaultRegion
}

// Host returns the regional host prefix used by match-v5
func (r Region) Host() string {
	return strings.ToLower(string(r))
}

// AccountHost returns the host prefix for account-v1, which is not served from SEA
func (r Region) AccountHost() string {
	if r == SEA {
		return Asia.Host()
	}
	return r.Host()
}

// Platform returns a representative platform host for platform-scoped endpoints
func (r Region) Platform() string {
	switch r {
	case Europe:
		return "euw1"
	case Asia:
		return "kr"
	case SEA:
		return "oc1"
	default:
		return "na1"
	}
}

func (r Region) String() string {
	return string(r)
}
