// Package indexer fills the full-text index. For each document it extracts
// the text of a stored file and attaches it under the full-text role, which
// the search triggers pick up.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bibliothecula/internal/extract"
	"github.com/mesh-intelligence/bibliothecula/internal/sqlite"
	"github.com/mesh-intelligence/bibliothecula/internal/tasks"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// ErrBusy is returned by IndexAll while a previous run is still going.
var ErrBusy = errors.New("indexing is already running")

// Result is the outcome of indexing one document.
type Result string

const (
	Indexed        Result = "indexed"
	AlreadyIndexed Result = "already-indexed"
	NoSource       Result = "no-source"
)

// maxAttempts bounds how often a document is retried after the store gives
// up on a locked database.
const maxAttempts = 5

// Indexer extracts and attaches full text.
type Indexer struct {
	store *sqlite.Backend
	tasks *tasks.Manager
	log   logrus.FieldLogger

	mu      sync.Mutex
	running []tasks.ID
}

// New returns an Indexer. A nil logger uses the logrus standard logger.
func New(store *sqlite.Backend, manager *tasks.Manager, log logrus.FieldLogger) *Indexer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Indexer{store: store, tasks: manager, log: log}
}

// IndexDocument extracts the text of the first storage attachment that
// yields any and attaches it as the document's full text. Unless force is
// set, a document that already has full text is left alone. With force the
// old full-text attachment is replaced.
func (ix *Indexer) IndexDocument(ctx context.Context, id string, force bool) (Result, error) {
	doc, err := ix.store.Documents().Get(ctx, id)
	if err != nil {
		return "", err
	}
	log := ix.log.WithField("document", doc.ID)

	current, err := ix.store.Associations().BinaryFor(ctx, doc.ID, types.RoleFullText)
	if err != nil {
		return "", err
	}
	if len(current) > 0 && !force {
		return AlreadyIndexed, nil
	}

	text, source, err := ix.extract(ctx, log, doc.ID)
	if err != nil {
		return "", err
	}
	if source == "" {
		log.Debug("no extractable storage attachment")
		return NoSource, nil
	}

	// The file name differs from the source's so a text source never
	// collides with its own extraction.
	info := types.FileInfo{
		ContentType: "text/plain; charset=utf-8",
		Filename:    strings.TrimSuffix(source, path.Ext(source)) + ".full-text.txt",
		Size:        int64(len(text)),
	}
	name := info.String()
	m, _, err := ix.store.BinaryMetadata().GetOrCreate(ctx, &name, []byte(text), false)
	if err != nil {
		return "", fmt.Errorf("storing full text: %w", err)
	}

	if _, _, err := ix.store.Associations().ReplaceFullText(ctx, doc.ID, m.ID); err != nil {
		return "", fmt.Errorf("attaching full text: %w", err)
	}
	log.WithFields(logrus.Fields{"source": source, "bytes": len(text)}).Info("document indexed")
	return Indexed, nil
}

// extract returns the text of the first storage attachment that has any,
// and that attachment's file name.
func (ix *Indexer) extract(ctx context.Context, log logrus.FieldLogger, documentID string) (string, string, error) {
	sources, err := ix.store.Associations().BinaryFor(ctx, documentID, types.RoleStorage)
	if err != nil {
		return "", "", err
	}
	for _, att := range sources {
		fi, ok := att.Metadata.FileInfo()
		if !ok || !extract.Supported(fi.ContentType) {
			continue
		}
		data, err := sqlite.Decode(att.Metadata)
		if err != nil {
			return "", "", err
		}
		text, err := extract.Text(data, fi.ContentType)
		if err != nil {
			log.WithError(err).WithField("file", fi.Filename).Warn("extraction failed")
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, fi.Filename, nil
		}
	}
	return "", "", nil
}

// IndexAll splits every document across up to workers tasks and returns
// their IDs. Each task indexes its share in turn, retrying a document a few
// times when the database stays locked. It returns ErrBusy while the tasks
// of a previous call are still running.
func (ix *Indexer) IndexAll(ctx context.Context, workers int, force bool) ([]tasks.ID, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range ix.running {
		if s, ok := ix.tasks.Status(id); ok && s.State == tasks.Running {
			return nil, ErrBusy
		}
	}

	docs, err := ix.store.Documents().List(ctx, types.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	per := (len(docs) + workers - 1) / workers

	ix.running = ix.running[:0]
	for start := 0; start < len(docs); start += per {
		end := min(start+per, len(docs))
		ids := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			ids = append(ids, d.ID)
		}
		name := fmt.Sprintf("index %d-%d of %d", start+1, end, len(docs))
		ix.running = append(ix.running, ix.tasks.Submit(name, func(ctx context.Context) error {
			return ix.indexBatch(ctx, ids, force)
		}))
	}
	ix.log.WithFields(logrus.Fields{"documents": len(docs), "tasks": len(ix.running)}).Info("indexing scheduled")
	return append([]tasks.ID(nil), ix.running...), nil
}

func (ix *Indexer) indexBatch(ctx context.Context, ids []string, force bool) error {
	var failed int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ix.indexWithRetry(ctx, id, force); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ix.log.WithError(err).WithField("document", id).Error("indexing failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to index", failed, len(ids))
	}
	return nil
}

func (ix *Indexer) indexWithRetry(ctx context.Context, id string, force bool) error {
	backoff := 100 * time.Millisecond
	for attempt := 1; ; attempt++ {
		_, err := ix.IndexDocument(ctx, id, force)
		if err == nil || !errors.Is(err, types.ErrLockContention) || attempt == maxAttempts {
			return err
		}
		ix.log.WithFields(logrus.Fields{"document": id, "attempt": attempt}).Debug("locked, retrying document")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
