package extractor

import (
	"context"
	"errors"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/csvstream"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/objstore"
)

// cancelPollRows is how many rows an extractor parses between looks at the
// run context.
const cancelPollRows = 500

// fileExtractor is the shared file-based extraction flow: resolve the
// selection template, list, size-check, download, stream-parse and
// convert. The object-store and drop-directory extractors differ only in
// the client they construct.
type fileExtractor struct {
	src          *config.Source
	newClient    func(*config.Source) (objstore.Client, error)
	newConverter func(*config.Source, dates.Date) converter

	client  objstore.Client
	tempDir string
}

func (e *fileExtractor) Category() string { return e.src.Category }

func (e *fileExtractor) Validate(task *Task) error {
	if task.Date.IsZero() {
		return etlerr.New(etlerr.KindConfig, "source %s: no business date", e.src.Name)
	}
	if task.TempRoot == "" {
		return etlerr.New(etlerr.KindConfig, "source %s: no temp root", e.src.Name)
	}
	if (e.src.SecretID == "") != (e.src.SecretKey == "") {
		return etlerr.New(etlerr.KindConfig, "source %s: partial credentials", e.src.Name)
	}
	return nil
}

func (e *fileExtractor) Setup(task *Task) error {
	client, err := e.newClient(e.src)
	if err != nil {
		return err
	}
	e.client = client

	dir, err := makeTempDir(task.TempRoot, e.src.Name)
	if err != nil {
		client.Close()
		e.client = nil
		return err
	}
	e.tempDir = dir
	return nil
}

func (e *fileExtractor) Extract(ctx context.Context, task *Task) ([]models.SourceRecord, error) {
	prefix, pattern := resolveTemplate(e.src, task.Date)

	metas, err := e.client.List(ctx, prefix, pattern)
	if err != nil {
		return nil, err
	}

	// Size-check every candidate before the first download.
	for _, meta := range metas {
		if err := objstore.SizeCheck(meta, e.src.MaxFileSize); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"source": e.src.Name,
		"date":   task.Date.Compact(),
		"files":  len(metas),
	}).Info("selected source files")

	var records []models.SourceRecord
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return nil, etlerr.Wrap(etlerr.KindCancel, err, "extraction cancelled")
		}

		local, err := e.client.Download(ctx, meta.Key, e.tempDir)
		if err != nil {
			return nil, err
		}

		recs, err := e.parseFile(ctx, local, meta.Key, task.Date)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			log.WithFields(log.Fields{"source": e.src.Name, "key": rec.PrimaryKey()}).
				Warnf("invalid record: %v", err)
		}
	}
	return records, nil
}

func (e *fileExtractor) parseFile(ctx context.Context, path, key string, date dates.Date) ([]models.SourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindParse, err, "open %s", path)
	}
	defer f.Close()

	r, err := csvstream.Open(f, e.src.Delimiter)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindParse, err, "file %s", key)
	}

	conv := e.newConverter(e.src, date)
	if err := r.Require(conv.requires()...); err != nil {
		return nil, etlerr.Wrap(etlerr.KindParse, err, "file %s", key)
	}

	rows := 0
	for {
		if rows%cancelPollRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, etlerr.Wrap(etlerr.KindCancel, err, "extraction cancelled in %s", key)
			}
		}

		row, err := r.Next()
		if err == io.EOF {
			break
		}
		var rowErr *csvstream.RowError
		if errors.As(err, &rowErr) {
			log.WithFields(log.Fields{"source": e.src.Name, "file": key, "line": rowErr.Line}).
				Warnf("skipping malformed row: %v", rowErr.Err)
			continue
		}
		if err != nil {
			return nil, etlerr.Wrap(etlerr.KindParse, err, "file %s", key)
		}
		rows++

		// Mixed-date files: only rows for the current business date count.
		if cell := row.String(e.src.DateField); !matchesDate(cell, date, e.src.DateFormat) {
			continue
		}

		if err := conv.consume(row); err != nil {
			log.WithFields(log.Fields{"source": e.src.Name, "file": key, "line": row.Line}).
				Warnf("skipping row: %v", err)
		}
	}

	return conv.finish(), nil
}

func (e *fileExtractor) Cleanup() error {
	var errs []error
	if e.tempDir != "" {
		if err := os.RemoveAll(e.tempDir); err != nil {
			errs = append(errs, err)
		}
		e.tempDir = ""
	}
	if e.client != nil {
		if err := e.client.Close(); err != nil {
			errs = append(errs, err)
		}
		e.client = nil
	}
	return errors.Join(errs...)
}
