package markets

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cot-sentinel/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed markets.yaml
var defaultUniverse []byte

// Definition is one configured market as written in the universe file.
type Definition struct {
	Symbol      string `yaml:"symbol" validate:"required,max=20"`
	Name        string `yaml:"name" validate:"required"`
	Category    string `yaml:"category" validate:"required,oneof=Currency Commodity"`
	CFTCCode    string `yaml:"cftc_code" validate:"omitempty,len=6,numeric"`
	PriceKind   string `yaml:"price_kind" validate:"omitempty,oneof=fx equity"`
	PriceSymbol string `yaml:"price_symbol" validate:"required_if=PriceKind equity"`
	PriceFrom   string `yaml:"price_from" validate:"required_if=PriceKind fx"`
	PriceTo     string `yaml:"price_to" validate:"required_if=PriceKind fx"`
}

type universe struct {
	Markets []Definition `yaml:"markets" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Default returns the embedded market universe.
func Default() ([]Definition, error) {
	return Parse(defaultUniverse)
}

// Load reads a universe file, or the embedded default when path is empty.
func Load(path string) ([]Definition, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markets file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]Definition, error) {
	var u universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse markets: %w", err)
	}
	if err := validate.Struct(u); err != nil {
		return nil, fmt.Errorf("validate markets: %w", err)
	}
	seen := make(map[string]bool, len(u.Markets))
	for _, d := range u.Markets {
		key := strings.ToUpper(d.Symbol)
		if seen[key] {
			return nil, fmt.Errorf("validate markets: duplicate symbol %q", d.Symbol)
		}
		seen[key] = true
	}
	return u.Markets, nil
}

func (d Definition) Market() domain.Market {
	return domain.Market{
		Symbol:      d.Symbol,
		Name:        d.Name,
		Category:    domain.MarketCategory(d.Category),
		CFTCCode:    d.CFTCCode,
		PriceKind:   domain.PriceKind(d.PriceKind),
		PriceSymbol: d.PriceSymbol,
		PriceFrom:   strings.ToUpper(d.PriceFrom),
		PriceTo:     strings.ToUpper(d.PriceTo),
	}
}
