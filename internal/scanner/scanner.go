// Package scanner builds the backlink index. It reads the text files
// attached to documents, picks out identifier-shaped tokens and records an
// edge for every token that names a known document or metadata value.
//
// The index is a cache. Rebuild drops it and rescans everything; edges are
// committed in batches so a long scan never holds the write lock for its
// whole duration.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bibliothecula/internal/sqlite"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// Report summarizes a scan.
type Report struct {
	Scanned int `json:"scanned" yaml:"scanned"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Edges   int `json:"edges" yaml:"edges"`
}

// Scanner rescans blob contents into the backlink index.
type Scanner struct {
	store     *sqlite.Backend
	log       logrus.FieldLogger
	batchSize int
}

// New returns a Scanner over store. A nil logger uses the logrus standard
// logger; a batchSize of zero or less uses the store's configured size.
func New(store *sqlite.Backend, log logrus.FieldLogger, batchSize int) *Scanner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if batchSize <= 0 {
		batchSize = store.Config().ScanBatchSize
	}
	if batchSize <= 0 {
		batchSize = types.DefaultScanBatchSize
	}
	return &Scanner{store: store, log: log, batchSize: batchSize}
}

// Rebuild clears the backlink index and rescans every text file attached to
// a document. Blobs that cannot be decoded, or that are deleted while the
// scan runs, are logged and skipped.
func (s *Scanner) Rebuild(ctx context.Context) (Report, error) {
	var report Report

	ids, err := s.store.BinaryMetadata().TextFileIDs(ctx)
	if err != nil {
		return report, err
	}
	known, err := s.store.Backrefs().KnownIDs(ctx)
	if err != nil {
		return report, err
	}
	if err := s.store.Backrefs().Clear(ctx); err != nil {
		return report, err
	}

	batch := make(map[string][]string, s.batchSize)
	flush := func() error {
		if err := s.store.Backrefs().ReplaceBatch(ctx, batch); err != nil {
			return fmt.Errorf("committing backrefs: %w", err)
		}
		clear(batch)
		return nil
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		targets, err := s.scan(ctx, id, known)
		if errors.Is(err, types.ErrMalformedScan) || errors.Is(err, types.ErrNotFound) {
			s.log.WithField("blob", id).WithError(err).Warn("skipping blob")
			report.Skipped++
			continue
		}
		if err != nil {
			return report, err
		}
		report.Scanned++
		report.Edges += len(targets)
		if len(targets) > 0 {
			batch[id] = targets
		}
		if (i+1)%s.batchSize == 0 {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}
	if err := flush(); err != nil {
		return report, err
	}

	s.log.WithFields(logrus.Fields{
		"scanned": report.Scanned, "skipped": report.Skipped, "edges": report.Edges,
	}).Info("backlink index rebuilt")
	return report, nil
}

// ScanBlob rescans one blob and replaces its outgoing edges. It returns
// ErrMalformedScan if the blob cannot be decoded as UTF-8 text.
func (s *Scanner) ScanBlob(ctx context.Context, id string) (Report, error) {
	var report Report
	id, err := types.ParseID(id)
	if err != nil {
		return report, err
	}
	known, err := s.store.Backrefs().KnownIDs(ctx)
	if err != nil {
		return report, err
	}
	targets, err := s.scan(ctx, id, known)
	if err != nil {
		if errors.Is(err, types.ErrMalformedScan) {
			report.Skipped++
		}
		return report, err
	}
	if err := s.store.Backrefs().ReplaceFor(ctx, id, targets); err != nil {
		return report, err
	}
	report.Scanned = 1
	report.Edges = len(targets)
	return report, nil
}

// scan returns the known identifiers mentioned by a blob, including the
// blob's own.
func (s *Scanner) scan(ctx context.Context, id string, known mapset.Set[string]) ([]string, error) {
	m, err := s.store.BinaryMetadata().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := sqlite.Decode(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrMalformedScan, id, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s: not valid UTF-8", types.ErrMalformedScan, id)
	}
	var targets []string
	for _, tok := range Tokenize(string(data)) {
		if known.Contains(tok) {
			targets = append(targets, tok)
		}
	}
	return targets, nil
}
