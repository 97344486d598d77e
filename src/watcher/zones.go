package watcher

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Zone is a price band for one symbol. Below Buy is the entry zone, above
// Sell is the profit taking zone.
type Zone struct {
	Symbol string
	Buy    decimal.Decimal
	Sell   decimal.Decimal
}

type zonesFile struct {
	Zones []struct {
		Symbol string  `yaml:"symbol"`
		Buy    float64 `yaml:"buy"`
		Sell   float64 `yaml:"sell"`
	} `yaml:"zones"`
}

// DefaultZones is used when no alerts file is configured.
func DefaultZones() []Zone {
	return []Zone{{
		Symbol: "ETH",
		Buy:    decimal.NewFromInt(1880),
		Sell:   decimal.NewFromInt(1960),
	}}
}

// LoadZones reads zones from a YAML file of the form
//
//	zones:
//	  - symbol: ETH
//	    buy: 1880
//	    sell: 1960
//
// An empty path returns DefaultZones.
func LoadZones(path string) ([]Zone, error) {
	if path == "" {
		return DefaultZones(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alerts file: %w", err)
	}
	return ParseZones(raw)
}

func ParseZones(raw []byte) ([]Zone, error) {
	var f zonesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse alerts file: %w", err)
	}
	if len(f.Zones) == 0 {
		return nil, errors.New("alerts file has no zones")
	}

	out := make([]Zone, 0, len(f.Zones))
	seen := map[string]bool{}
	for i, z := range f.Zones {
		sym := strings.ToUpper(strings.TrimSpace(z.Symbol))
		if sym == "" {
			return nil, fmt.Errorf("zone %d: missing symbol", i)
		}
		if seen[sym] {
			return nil, fmt.Errorf("zone %d: duplicate symbol %s", i, sym)
		}
		seen[sym] = true
		buy, sell := decimal.NewFromFloat(z.Buy), decimal.NewFromFloat(z.Sell)
		if !buy.IsPositive() || !sell.IsPositive() {
			return nil, fmt.Errorf("zone %s: buy and sell must be positive", sym)
		}
		if !buy.LessThan(sell) {
			return nil, fmt.Errorf("zone %s: buy %s must be below sell %s", sym, buy, sell)
		}
		out = append(out, Zone{Symbol: sym, Buy: buy, Sell: sell})
	}
	return out, nil
}
