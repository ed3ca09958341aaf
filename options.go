package luabridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/luabridge/config"
	"github.com/wippyai/luabridge/naming"
)

type options struct {
	log     *zap.Logger
	policy  naming.Policy
	metakey bool
	cfg     *config.Config
}

// Option configures a Bridge.
type Option func(*options) error

// WithLogger sets the logger. Without it the package logger is used.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) error {
		o.log = log
		return nil
	}
}

// WithNaming sets the casing policy for exposed names.
func WithNaming(p naming.Policy) Option {
	return func(o *options) error {
		o.policy = p
		return nil
	}
}

// WithTypeMetakey controls the __type entry on metatables.
func WithTypeMetakey(on bool) Option {
	return func(o *options) error {
		o.metakey = on
		return nil
	}
}

// WithConfig applies a loaded configuration: naming, metakey, logging and
// bulk rules. Options after it override its settings.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		p, err := cfg.NamingPolicy()
		if err != nil {
			return err
		}
		log, err := cfg.Logger()
		if err != nil {
			return err
		}
		o.policy = p
		o.metakey = cfg.Metakey()
		o.log = log
		o.cfg = cfg
		return nil
	}
}
