package catalogue

import "strings"

// Canonical mineral type tags assignable to deposits.
var mineralTypes = []string{
	"water-ice",
	"co2-ice",
	"metallic-hydrogen",
	"metallic-helium",
	"methane",
	"ammonia",
	"soil",
	"dust",
	"water-vapour",
}

var mineralsByKey = func() map[string]string {
	index := make(map[string]string, len(mineralTypes))
	for _, mineral := range mineralTypes {
		index[NormalizeMineralKey(mineral)] = mineral
	}
	return index
}()

// MineralTypes returns the canonical mineral catalogue.
func MineralTypes() []string {
	out := make([]string, len(mineralTypes))
	copy(out, mineralTypes)
	return out
}

// MineralCount is the catalogue size, the denominator of the
// resource-extraction milestone.
func MineralCount() int {
	return len(mineralTypes)
}

// NormalizeMineralKey lower-cases the value and strips every
// non-alphanumeric rune. "Iron Ore", "iron-ore" and "IRON_ORE" all share
// one key. The match is lossy on purpose: distinct raw spellings collapse.
func NormalizeMineralKey(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchCanonicalMineral resolves a raw deposit type to its canonical
// catalogue entry via normalized-key equality. Unmatched types return
// ok=false and are dropped by the caller, not treated as errors.
func MatchCanonicalMineral(raw string) (string, bool) {
	canonical, ok := mineralsByKey[NormalizeMineralKey(raw)]
	return canonical, ok
}
