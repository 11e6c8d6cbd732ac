package memory

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/harrison/shellagent/internal/extract"
	"github.com/harrison/shellagent/internal/models"
	"github.com/harrison/shellagent/internal/similarity"
)

type candidate struct {
	entryID int64
	key     int64
	match   models.SimilarityMatch
}

// Query returns up to k command-history records closest to intent, in
// ascending distance order. Entries written by a different embedder are
// skipped; entries with no recorded embedder predate that column and are
// ranked when their dimensions match. An empty store, a non-positive k, or
// an embedder failure yields an empty slice and no error. Database failures
// are returned wrapped in ErrStoreFault.
func (s *Store) Query(ctx context.Context, intent string, k int) ([]models.SimilarityMatch, error) {
	matches := []models.SimilarityMatch{}
	if k <= 0 {
		return matches, nil
	}

	qvec, err := s.embedder.Embed(ctx, intent)
	if err != nil {
		s.warn(fmt.Sprintf("embedding query failed, returning no matches: %v", err))
		return matches, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT e.id, e.record_id, e.type, e.content, e.embedding, e.metadata, e.embedder,
       r.intent, r.command, r.output, r.success, r.created_at
FROM entries e
LEFT JOIN records r ON r.id = e.record_id`)
	if err != nil {
		return matches, fmt.Errorf("%w: query entries: %w", ErrStoreFault, err)
	}

	var (
		candidates []candidate
		skipped    int
		foreign    int
		name       = s.embedder.Name()
	)
	for rows.Next() {
		var (
			entryID   int64
			recordID  sql.NullInt64
			entryType string
			content   string
			embedding string
			metadata  sql.NullString
			producer  sql.NullString
			rIntent   sql.NullString
			rCommand  sql.NullString
			rOutput   sql.NullString
			rSuccess  sql.NullBool
			rCreated  sql.NullTime
		)
		if err := rows.Scan(&entryID, &recordID, &entryType, &content, &embedding, &metadata, &producer,
			&rIntent, &rCommand, &rOutput, &rSuccess, &rCreated); err != nil {
			rows.Close()
			return []models.SimilarityMatch{}, fmt.Errorf("%w: scan entry: %w", ErrStoreFault, err)
		}

		var meta entryMetadata
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &meta); err != nil {
				s.debug(fmt.Sprintf("entry %d has unreadable metadata: %v", entryID, err))
			}
		}
		if meta.Type == "" {
			meta.Type = entryType
		}
		if meta.Type != models.HistoryType {
			continue
		}
		if producer.String != "" && producer.String != name {
			foreign++
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embedding), &vec); err != nil {
			skipped++
			continue
		}
		score, err := similarity.CosineDistance(qvec, vec)
		if err != nil {
			skipped++
			continue
		}

		rec := recordFrom(meta, content, rIntent, rCommand, rOutput, rSuccess, rCreated)
		key := -entryID
		if recordID.Valid {
			rec.ID = recordID.Int64
			key = recordID.Int64
		}
		candidates = append(candidates, candidate{
			entryID: entryID,
			key:     key,
			match:   models.SimilarityMatch{Record: rec, Score: score},
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return []models.SimilarityMatch{}, fmt.Errorf("%w: iterate entries: %w", ErrStoreFault, err)
	}
	rows.Close()

	if skipped > 0 {
		s.debug(fmt.Sprintf("skipped %d entries with incompatible embeddings", skipped))
	}
	if foreign > 0 {
		s.debug(fmt.Sprintf("skipped %d entries embedded by another embedder than %s", foreign, name))
	}

	// Closest first; among equals, the newest entry first.
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.match.Score, b.match.Score); c != 0 {
			return c
		}
		return cmp.Compare(b.entryID, a.entryID)
	})

	// Chunks of one record collapse to the record's best-scoring chunk.
	seen := make(map[int64]bool)
	for _, c := range candidates {
		if seen[c.key] {
			continue
		}
		seen[c.key] = true
		matches = append(matches, c.match)
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

// recordFrom builds the record for an entry. The records row wins, then the
// metadata, then whatever the entry text itself says.
func recordFrom(meta entryMetadata, content string, intent, command, output sql.NullString, success sql.NullBool, created sql.NullTime) models.CommandRecord {
	rec := models.CommandRecord{
		Intent:  meta.Intent,
		Command: meta.Command,
	}
	if meta.Success != nil {
		rec.Success = *meta.Success
	}

	if intent.Valid {
		rec.Intent = intent.String
	}
	if command.Valid {
		rec.Command = command.String
	}
	if output.Valid {
		rec.Output = output.String
	}
	if success.Valid {
		rec.Success = success.Bool
	}
	if created.Valid {
		rec.CreatedAt = created.Time
	}

	if rec.Intent == "" || rec.Command == "" {
		f := extract.ParseText(content)
		if rec.Intent == "" {
			rec.Intent = f.Intent
		}
		if rec.Command == "" {
			rec.Command = f.Command
		}
		if rec.Output == "" {
			rec.Output = f.Output
		}
		if meta.Success == nil && !success.Valid && f.Has(extract.FieldResult) {
			rec.Success = f.Succeeded
		}
	}
	return rec
}

// History returns the most recent records, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]models.CommandRecord, error) {
	return s.listRecords(ctx, "", limit)
}

// Search returns records whose intent or command contains term, newest first.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]models.CommandRecord, error) {
	return s.listRecords(ctx, term, limit)
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) listRecords(ctx context.Context, term string, limit int) ([]models.CommandRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, intent, command, output, success, created_at FROM records`
	args := []any{}
	if term != "" {
		query += ` WHERE intent LIKE ? ESCAPE '\' OR command LIKE ? ESCAPE '\'`
		like := "%" + likeEscaper.Replace(term) + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %w", ErrStoreFault, err)
	}
	defer rows.Close()

	var out []models.CommandRecord
	for rows.Next() {
		var (
			rec     models.CommandRecord
			output  sql.NullString
			created sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Intent, &rec.Command, &output, &rec.Success, &created); err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", ErrStoreFault, err)
		}
		rec.Output = output.String
		if created.Valid {
			rec.CreatedAt = created.Time
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %w", ErrStoreFault, err)
	}
	return out, nil
}

// Stats summarizes the store contents.
type Stats struct {
	Records    int
	Successes  int
	Entries    int
	Documents  int
	LastRecord time.Time
	Embedder   string
}

// Stats returns record and entry counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Embedder: s.embedder.Name()}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) FROM records`).
		Scan(&st.Records, &st.Successes)
	if err != nil {
		return st, fmt.Errorf("%w: count records: %w", ErrStoreFault, err)
	}

	var last sql.NullTime
	err = s.db.QueryRowContext(ctx, `SELECT created_at FROM records ORDER BY id DESC LIMIT 1`).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("%w: last record: %w", ErrStoreFault, err)
	}
	if last.Valid {
		st.LastRecord = last.Time
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN type != ? THEN 1 ELSE 0 END), 0) FROM entries`, models.HistoryType).
		Scan(&st.Entries, &st.Documents)
	if err != nil {
		return st, fmt.Errorf("%w: count entries: %w", ErrStoreFault, err)
	}
	return st, nil
}
