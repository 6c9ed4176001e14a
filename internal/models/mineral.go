package models

import "encoding/json"

// MineralConfiguration is the decoded shape of a deposit's configuration
// blob. Extra keys are carried verbatim so a depletion write preserves them.
type MineralConfiguration struct {
	Type     string
	Amount   float64
	Quantity float64
	Purity   float64

	raw map[string]json.RawMessage
}

// DecodeMineralConfiguration parses a deposit configuration blob. An empty
// blob decodes to a zero configuration rather than an error.
func DecodeMineralConfiguration(blob string) (MineralConfiguration, error) {
	cfg := MineralConfiguration{raw: map[string]json.RawMessage{}}
	if blob == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(blob), &cfg.raw); err != nil {
		return MineralConfiguration{}, err
	}
	if value, ok := cfg.raw["type"]; ok {
		_ = json.Unmarshal(value, &cfg.Type)
	}
	if value, ok := cfg.raw["amount"]; ok {
		_ = json.Unmarshal(value, &cfg.Amount)
	}
	if value, ok := cfg.raw["quantity"]; ok {
		_ = json.Unmarshal(value, &cfg.Quantity)
	}
	if value, ok := cfg.raw["purity"]; ok {
		_ = json.Unmarshal(value, &cfg.Purity)
	}
	return cfg, nil
}

// Depleted reports whether the configuration carries the already-extracted
// marker: both amount and quantity at zero.
func (c MineralConfiguration) Depleted() bool {
	return c.Amount == 0 && c.Quantity == 0
}

// EncodeDepleted re-encodes the configuration with amount and quantity forced
// to zero, preserving every other field of the original blob.
func (c MineralConfiguration) EncodeDepleted() (string, error) {
	merged := make(map[string]json.RawMessage, len(c.raw)+2)
	for key, value := range c.raw {
		merged[key] = value
	}
	zero := json.RawMessage("0")
	merged["amount"] = zero
	merged["quantity"] = zero
	encoded, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
