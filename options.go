package zone

import (
	"github.com/joeycumines/logiface"
)

// engineOptions holds configuration options for Engine creation.
type engineOptions struct {
	logger *logiface.Logger[logiface.Event]
	global *Global
}

// Option configures an Engine instance.
type Option interface {
	applyEngine(*engineOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyEngineFunc func(*engineOptions) error
}

func (o *optionImpl) applyEngine(opts *engineOptions) error {
	return o.applyEngineFunc(opts)
}

// WithLogger attaches a structured logger to the engine. Engine installation,
// patch loads and skips, microtask scheduling and drains, and unhandled
// microtask errors are logged at trace/debug/error levels; zone entry and task
// state transitions are not logged. A nil logger disables logging (the
// default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithGlobal installs the engine onto an existing host global instead of a
// fresh one. Installation fails fatally if the global already carries an
// engine.
func WithGlobal(global *Global) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.global = global
		return nil
	}}
}

// resolveEngineOptions applies Option instances to engineOptions.
func resolveEngineOptions(opts []Option) (*engineOptions, error) {
	cfg := &engineOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyEngine(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
