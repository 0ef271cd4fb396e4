package media

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// NewFromConfig builds a Player from a typed transport entry.
func NewFromConfig(kind string, settings map[string]any) (Player, error) {
	switch kind {
	case "clock", "":
		cfg, err := decodeClockConfig(settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to configure clock transport")
		}
		zlog.Info().Msgf("media: clock transport: tick_ms=%d sources=%d strict=%v",
			cfg.TickMs, len(cfg.Durations), cfg.Strict)
		return NewClockPlayer(*cfg), nil

	default:
		return nil, errors.Newf("unsupported transport type: %s", kind)
	}
}

func decodeClockConfig(settings map[string]any) (*ClockConfig, error) {
	var cfg ClockConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &cfg, nil
}
