package wasm

import "go.uber.org/zap"

// Option configures a Parser. Options are applied in order by FromBytes.
type Option func(*Parser)

// WithLogger installs a zap logger for this Parser's diagnostics: a Debug
// entry when Parse or ParallelParse fails. Defaults to the package-wide
// Logger(), itself a no-op until SetLogger is called.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// WithMaxWorkers bounds the number of goroutines ParallelParse uses for its
// decode pass. A value <= 0 means "use GOMAXPROCS", the default.
func WithMaxWorkers(n int) Option {
	return func(p *Parser) {
		p.maxWorkers = n
	}
}

// WithValidateUTF8 toggles UTF-8 validation of names and custom-section
// identifiers. Enabled by default; disabling it is a performance opt-out
// for callers who already trust their input.
func WithValidateUTF8(v bool) Option {
	return func(p *Parser) {
		p.validateUTF8 = v
	}
}
