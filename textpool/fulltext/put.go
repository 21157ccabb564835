package fulltext

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/textpool/textpool/textpool/fulltext/analysis"
)

// IndexEntries upserts records of source keyed by the source's identifier:
// a document with the same identifier value is replaced. Records without a
// numeric identifier are skipped. The batch is committed once and the number
// of written documents returned; on failure nothing is written and 0 is
// returned.
func (ix *Index) IndexEntries(ctx context.Context, source string, records []map[string]string) int {
	if ix.closed.Load() {
		ix.log.Warn("index closed, dropping batch", "source", source)
		return 0
	}
	src, ok := ix.source(source)
	if !ok {
		ix.log.Debug("source has no indexed fields", "source", source)
		return 0
	}
	if len(records) == 0 {
		return 0
	}

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	written, err := ix.put(ctx, src, records)
	if err != nil {
		ix.log.Error("index commit failed", "source", source, "records", len(records), "err", err)
		return 0
	}
	if written > 0 {
		ix.gen.Add(1)
	}
	return written
}

type putStmts struct {
	find, delPostings, delStored, delDoc *sql.Stmt
	insDoc, insStored, insPosting        *sql.Stmt
}

func prepare(ctx context.Context, tx *sql.Tx) (*putStmts, error) {
	var s putStmts
	for _, p := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.find, `SELECT doc_id FROM documents WHERE id_field = ? AND id_value = ?`},
		{&s.delPostings, `DELETE FROM postings WHERE doc_id = ?`},
		{&s.delStored, `DELETE FROM stored WHERE doc_id = ?`},
		{&s.delDoc, `DELETE FROM documents WHERE doc_id = ?`},
		{&s.insDoc, `INSERT INTO documents (source, id_field, id_value) VALUES (?, ?, ?)`},
		{&s.insStored, `INSERT INTO stored (doc_id, field, value) VALUES (?, ?, ?)`},
		{&s.insPosting, `INSERT INTO postings (field, term, doc_id, pos) VALUES (?, ?, ?, ?)`},
	} {
		stmt, err := tx.PrepareContext(ctx, p.query)
		if err != nil {
			return nil, err
		}
		*p.dst = stmt
	}
	return &s, nil
}

func (ix *Index) put(ctx context.Context, src *indexedSource, records []map[string]string) (int, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts, err := prepare(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}

	written := 0
	for _, rec := range records {
		raw := strings.TrimSpace(rec[src.idKey])
		if raw == "" {
			ix.log.Warn("record without identifier skipped", "source", src.norm, "id", src.idKey)
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			ix.log.Warn("non-numeric identifier skipped", "source", src.norm, "id", src.idKey, "value", raw)
			continue
		}
		if err := ix.replace(ctx, stmts, src, id, rec); err != nil {
			return 0, err
		}
		written++
	}

	if written == 0 {
		return 0, nil
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (ix *Index) replace(ctx context.Context, s *putStmts, src *indexedSource, id int64, rec map[string]string) error {
	var old int64
	err := s.find.QueryRowContext(ctx, src.idField, id).Scan(&old)
	switch {
	case err == nil:
		for _, del := range []*sql.Stmt{s.delPostings, s.delStored, s.delDoc} {
			if _, err := del.ExecContext(ctx, old); err != nil {
				return fmt.Errorf("delete document %d: %w", old, err)
			}
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("find document: %w", err)
	}

	res, err := s.insDoc.ExecContext(ctx, src.norm, src.idField, id)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("document id: %w", err)
	}

	for _, f := range src.fields {
		value, ok := rec[f.name]
		if !ok || value == "" {
			continue
		}
		if _, err := s.insStored.ExecContext(ctx, docID, f.qualified, value); err != nil {
			return fmt.Errorf("store %s: %w", f.qualified, err)
		}
		if err := insertPostings(ctx, s.insPosting, f.qualified, docID, f.analyzer.Analyze(value)); err != nil {
			return err
		}
		if err := insertPostings(ctx, s.insPosting, f.qualified+ExactSuffix, docID, analysis.Exact(value)); err != nil {
			return err
		}
	}
	return nil
}

func insertPostings(ctx context.Context, stmt *sql.Stmt, field string, docID int64, toks []analysis.Token) error {
	for _, t := range toks {
		if _, err := stmt.ExecContext(ctx, field, t.Term, docID, t.Pos); err != nil {
			return fmt.Errorf("insert posting %s: %w", field, err)
		}
	}
	return nil
}
