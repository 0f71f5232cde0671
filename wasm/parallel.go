package wasm

import (
	"fmt"
	"runtime"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/juzi5201314/wasmcat/internal/binary"
)

// sectionRecord is one entry from the serial indexing pass: a section id
// and a Cursor bounded to exactly that section's declared byte length.
type sectionRecord struct {
	cur *binary.Cursor
	id  byte
}

// ParallelParse decodes the module in two passes. The first pass walks
// the section headers serially, slicing out a bounded Cursor per section
// without decoding its contents; this is cheap and must stay serial since
// each section's length prefix determines where the next one starts. The
// second pass decodes every section's contents concurrently (bounded by
// maxWorkers), then assembles the Module fields in the original section
// order so results are identical to Parse. The code section gets an
// additional layer of parallelism across its individual function bodies,
// since those are usually the bulk of a module's bytes.
func (p *Parser) ParallelParse() (*Module, error) {
	cur := binary.NewCursor(p.data)
	cur.SetValidateUTF8(p.validateUTF8)

	version, err := readHeader(cur)
	if err != nil {
		return nil, err
	}

	var records []sectionRecord
	for !cur.IsEmpty() {
		id, err := cur.ReadByte()
		if err != nil {
			return nil, newErr(PhaseSection, KindDecode, cur.Position(), "failed to read section id", err)
		}
		size, err := cur.ReadVarU32()
		if err != nil {
			return nil, newErr(PhaseSection, KindDecode, cur.Position(), "failed to read section size", err)
		}
		sec, err := cur.SliceWith(int(size))
		if err != nil {
			return nil, newErr(PhaseSection, KindSectionOutOfBounds, cur.Position(), "section size exceeds remaining input", err)
		}
		records = append(records, sectionRecord{id: id, cur: sec})
	}

	results := make([]interface{}, len(records))
	err, diag := runIndexed(len(records), workerLimit(p.maxWorkers), func(i int) error {
		rec := records[i]
		v, err := decodeSectionContents(rec)
		if err != nil {
			return err
		}
		results[i] = v
		if rec.id != SectionCustom && rec.cur.Remaining() != 0 {
			return newErr(PhaseSection, KindSectionOutOfBounds, rec.cur.Position(),
				fmt.Sprintf("section %d has %d trailing bytes", rec.id, rec.cur.Remaining()), nil)
		}
		return nil
	})
	if err != nil {
		p.logger.Debug("parallel parse failed", zap.Error(diag))
		return nil, err
	}

	m := &Module{Version: version}
	for i, rec := range records {
		switch rec.id {
		case SectionCustom:
			m.CustomSections = append(m.CustomSections, results[i].(CustomSection))
		case SectionType:
			m.Types = results[i].([]FuncType)
		case SectionImport:
			m.Imports = results[i].([]Import)
		case SectionFunction:
			m.Funcs = results[i].([]uint32)
		case SectionTable:
			m.Tables = results[i].([]TableType)
		case SectionMemory:
			m.Memories = results[i].([]MemoryType)
		case SectionGlobal:
			m.Globals = results[i].([]Global)
		case SectionExport:
			m.Exports = results[i].([]Export)
		case SectionStart:
			m.Start = results[i].(*uint32)
		case SectionElement:
			m.Elements = results[i].([]Element)
		case SectionCode:
			m.Code = results[i].([]FuncBody)
		case SectionData:
			m.Data = results[i].([]DataSegment)
		case SectionDataCount:
			m.DataCount = results[i].(*uint32)
		}
	}

	return m, nil
}

// decodeSectionContents decodes one section's body, dispatching the code
// section to its own parallel per-body decoder.
func decodeSectionContents(rec sectionRecord) (interface{}, error) {
	switch rec.id {
	case SectionCustom:
		return parseCustomSection(rec.cur)
	case SectionType:
		return parseTypeSection(rec.cur)
	case SectionImport:
		return parseImportSection(rec.cur)
	case SectionFunction:
		return parseFunctionSection(rec.cur)
	case SectionTable:
		return parseTableSection(rec.cur)
	case SectionMemory:
		return parseMemorySection(rec.cur)
	case SectionGlobal:
		return parseGlobalSection(rec.cur)
	case SectionExport:
		return parseExportSection(rec.cur)
	case SectionStart:
		return parseStartSection(rec.cur)
	case SectionElement:
		return parseElementSection(rec.cur)
	case SectionCode:
		return parseCodeSectionParallel(rec.cur, defaultCodeWorkers)
	case SectionData:
		return parseDataSection(rec.cur)
	case SectionDataCount:
		return parseDataCountSection(rec.cur)
	default:
		return nil, newErr(PhaseSection, KindInvalidSectionID, rec.cur.Position(), fmt.Sprintf("unknown section id %d", rec.id), nil)
	}
}

// defaultCodeWorkers bounds the nested per-function-body parallelism
// inside a concurrently-decoded code section. A small fixed value avoids
// spawning maxWorkers^2 goroutines when many sections decode at once.
const defaultCodeWorkers = 4

func workerLimit(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// runIndexed runs fn(0), fn(1), ..., fn(n-1) concurrently, bounded by
// limit. Every failing index's error is collected (not just the first, the
// way a bare errgroup.Group would stop at) and combined with multierr for
// diagnostics; the lowest-indexed failure is returned as the decode error
// proper, so callers keep the "one *wasm.Error, or nil" contract the rest
// of this package relies on, while diag still sees everything that broke.
func runIndexed(n int, limit int, fn func(i int) error) (firstErr error, diag error) {
	errs := make([]error, n)
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			errs[i] = fn(i)
			return nil
		})
	}
	g.Wait()

	for _, e := range errs {
		if e != nil {
			diag = multierr.Append(diag, e)
			if firstErr == nil {
				firstErr = e
			}
		}
	}
	return firstErr, diag
}

// readHeader validates the magic number and version, advancing cur past
// the 8-byte module header. The version is read and returned as-is; only
// the magic number gates decoding here.
func readHeader(cur *binary.Cursor) (uint32, error) {
	magic, err := cur.ReadU32LE()
	if err != nil {
		return 0, newErr(PhaseHeader, KindInvalidMagic, cur.Position(), "failed to read magic number", err)
	}
	if magic != Magic {
		return 0, newErr(PhaseHeader, KindInvalidMagic, cur.Position(), fmt.Sprintf("got 0x%08x", magic), nil)
	}
	version, err := cur.ReadU32LE()
	if err != nil {
		return 0, newErr(PhaseHeader, KindInvalidMagic, cur.Position(), "failed to read version", err)
	}
	return version, nil
}

// parseCodeSectionParallel indexes every function body's bounded byte
// range serially (required, since each entry's length prefix determines
// where the next begins) and then decodes the bodies concurrently.
func parseCodeSectionParallel(cur *binary.Cursor, maxWorkers int) ([]FuncBody, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseCode, KindDecode, cur.Position(), "failed to read code entry count", err)
	}

	bodyCursors := make([]*binary.Cursor, count)
	for i := uint32(0); i < count; i++ {
		size, err := cur.ReadVarU32()
		if err != nil {
			return nil, newErr(PhaseCode, KindDecode, cur.Position(), "failed to read function body size", err)
		}
		bodyCur, err := cur.SliceWith(int(size))
		if err != nil {
			return nil, newErr(PhaseCode, KindSectionOutOfBounds, cur.Position(), "function body size exceeds remaining input", err)
		}
		bodyCursors[i] = bodyCur
	}

	bodies := make([]FuncBody, count)
	err, _ = runIndexed(int(count), workerLimit(maxWorkers), func(i int) error {
		bc := bodyCursors[i]
		fb, err := readFuncBody(bc)
		if err != nil {
			return err
		}
		if bc.Remaining() != 0 {
			return newErr(PhaseCode, KindSectionOutOfBounds, bc.Position(),
				fmt.Sprintf("function body has %d trailing bytes", bc.Remaining()), nil)
		}
		bodies[i] = fb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bodies, nil
}
