package wasm

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/juzi5201314/wasmcat/internal/binary"
)

// Parser decodes a single WebAssembly binary module. A Parser is created
// with FromBytes and configured with Option values. Every Parse or
// ParallelParse call decodes data afresh; the Parser holds no state across
// calls.
type Parser struct {
	data         []byte
	logger       *zap.Logger
	maxWorkers   int
	validateUTF8 bool
}

// FromBytes creates a Parser over data. data is not copied and must not be
// mutated while the Parser is in use. Defaults: the package logger (a
// no-op until SetLogger is called), GOMAXPROCS workers for ParallelParse,
// and UTF-8 validation enabled.
func FromBytes(data []byte, opts ...Option) *Parser {
	p := &Parser{
		data:         data,
		logger:       Logger(),
		maxWorkers:   runtime.GOMAXPROCS(0),
		validateUTF8: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes the module serially: one section after another, in a
// single pass over the input.
func (p *Parser) Parse() (*Module, error) {
	cur := binary.NewCursor(p.data)
	cur.SetValidateUTF8(p.validateUTF8)
	m, err := decodeModule(cur)
	if err != nil {
		p.logger.Debug("parse failed", zap.Error(err))
		return nil, err
	}
	return m, nil
}
