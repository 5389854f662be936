package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig holds the document numbering and tax bootstrap settings.
type BillingConfig struct {
	// DefaultPrefix is used when a sequence key has no configured prefix.
	DefaultPrefix string `mapstructure:"defaultPrefix"`
	// Sequences maps a sequence key (INV_VAT, INV_NONVAT, RECEIPT) to its prefix.
	Sequences map[string]string `mapstructure:"sequences"`
	// DefaultTaxProfile is created by the seed tool when missing.
	DefaultTaxProfile TaxProfileSeed `mapstructure:"defaultTaxProfile"`
}

// TaxProfileSeed describes a tax profile in config. Rates are kept as text
// so they are parsed as exact decimals.
type TaxProfileSeed struct {
	Name          string `mapstructure:"name"`
	EffectiveFrom string `mapstructure:"effectiveFrom"`
	VATRate       string `mapstructure:"vatRate"`
	NHILRate      string `mapstructure:"nhilRate"`
	GETFundRate   string `mapstructure:"getfundRate"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DefaultPrefix: "SAMDA/",
		Sequences: map[string]string{
			"INV_VAT":    "SAMDA/VAT/",
			"INV_NONVAT": "SAMDA/INV/",
			"RECEIPT":    "SAMDA/RCT/",
		},
		DefaultTaxProfile: TaxProfileSeed{
			Name:          "Ghana VAT Standard",
			EffectiveFrom: "2026-01-01",
			VATRate:       "0.1500",
			NHILRate:      "0.0250",
			GETFundRate:   "0.0250",
		},
	}
}

// PrefixFor returns the configured prefix for a sequence key.
func (c BillingConfig) PrefixFor(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	if prefix, ok := c.Sequences[key]; ok && prefix != "" {
		return prefix
	}
	if c.DefaultPrefix != "" {
		return c.DefaultPrefix
	}
	return "SAMDA/"
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(normalizeBillingConfig(cfg))
	return holder
}

func NewBillingConfigHolder(appCfg Config) (*BillingConfigHolder, error) {
	v := viper.New()

	if appCfg.BillingConfigPath != "" {
		v.SetConfigFile(appCfg.BillingConfigPath)
	} else {
		v.SetConfigName("billing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/samda")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SAMDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeBillingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeBillingConfig(v)
			if err != nil {
				zap.L().Warn("billing config reload ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			zap.L().Info("billing config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// decodeBillingConfig layers the billing section of v over the defaults.
// Fields missing from the file keep their default values. A sequences map
// in the file replaces the default map; unlisted keys use DefaultPrefix.
func decodeBillingConfig(v *viper.Viper) (BillingConfig, error) {
	cfg := DefaultBillingConfig()
	if v.IsSet("billing.sequences") {
		cfg.Sequences = nil
	}

	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return BillingConfig{}, err
	}
	cfg = normalizeBillingConfig(cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return BillingConfig{}, err
	}
	return cfg, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// viper lowercases map keys; sequence keys are upper case everywhere else.
func normalizeBillingConfig(cfg BillingConfig) BillingConfig {
	sequences := make(map[string]string, len(cfg.Sequences))
	for key, prefix := range cfg.Sequences {
		sequences[strings.ToUpper(strings.TrimSpace(key))] = prefix
	}
	cfg.Sequences = sequences
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.DefaultPrefix) == "" {
		return errors.New("billing.defaultPrefix cannot be empty")
	}
	if len(cfg.Sequences) == 0 {
		return errors.New("billing.sequences cannot be empty")
	}
	return nil
}
