package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tradedocs/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs the
// single-process CLI mode; the serialized writer model means stage
// updates never need row locks.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Migrate applies the ordered migration manifest, recording applied
// steps in schema_migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (id TEXT PRIMARY KEY, applied_at DATETIME NOT NULL)`); err != nil {
		return eris.Wrap(err, "sqlite: create schema_migrations")
	}

	for _, m := range sqliteMigrations {
		var exists bool
		err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE id = ?)`, m.ID).Scan(&exists)
		if err != nil {
			return eris.Wrapf(err, "sqlite: check migration %s", m.ID)
		}
		if exists {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.SQL); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", m.ID)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (id, applied_at) VALUES (?, ?)`, m.ID, time.Now().UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: record migration %s", m.ID)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateIngestion(ctx context.Context, rec *model.IngestionRecord) error {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = model.IngestionStatusPending
	}
	if len(rec.ProcessingSteps) == 0 {
		rec.ProcessingSteps = []model.ProcessingStep{
			{Stage: model.StageUpload, Status: model.StepCompleted, Timestamp: now},
		}
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	steps, err := json.Marshal(rec.ProcessingSteps)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal steps")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingestion (id, set_key, original_filename, file_type, size_bytes, status, processing_steps, created_date, updated_date) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SetKey, rec.OriginalFilename, rec.FileType, rec.SizeBytes,
		string(rec.Status), string(steps), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: create ingestion")
	}
	return nil
}

const sqliteIngestionCols = `id, set_key, original_filename, file_type, size_bytes, status, document_type, extracted_text, confidence, extracted_data, processing_steps, error_message, created_date, updated_date, completion_date`

func (s *SQLiteStore) GetIngestion(ctx context.Context, id string) (*model.IngestionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteIngestionCols+` FROM ingestion WHERE id = ?`, id)
	rec, err := scanSQLiteIngestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: ingestion %s", id)
		}
		return nil, eris.Wrap(err, "sqlite: get ingestion")
	}
	return rec, nil
}

func (s *SQLiteStore) ListIngestions(ctx context.Context, filter IngestionFilter) ([]model.IngestionRecord, error) {
	query := `SELECT ` + sqliteIngestionCols + ` FROM ingestion WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SetKey != "" {
		query += ` AND set_key = ?`
		args = append(args, filter.SetKey)
	}
	query += ` ORDER BY created_date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ` + strconv.Itoa(filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ingestions")
	}
	defer rows.Close()

	return collectSQLiteIngestions(rows)
}

func (s *SQLiteStore) ListStuck(ctx context.Context, cutoff time.Time) ([]model.IngestionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteIngestionCols+` FROM ingestion WHERE status = ? AND updated_date < ? ORDER BY updated_date`,
		string(model.IngestionStatusProcessing), cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stuck")
	}
	defer rows.Close()

	return collectSQLiteIngestions(rows)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status model.IngestionStatus, errorMessage string) error {
	var errMsg any
	if errorMessage != "" {
		errMsg = errorMessage
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingestion SET status = ?, error_message = ?, updated_date = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update status")
	}
	return nil
}

// AppendStep reads, extends, and rewrites the step history inside a
// transaction. SQLite has no jsonb concat operator, so the append is
// done client side.
func (s *SQLiteStore) AppendStep(ctx context.Context, id string, step model.ProcessingStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: append step: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT processing_steps FROM ingestion WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "sqlite: ingestion %s", id)
		}
		return eris.Wrap(err, "sqlite: append step: read")
	}

	var steps []model.ProcessingStep
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &steps); err != nil {
			return eris.Wrap(err, "sqlite: append step: unmarshal")
		}
	}
	steps = append(steps, step)
	data, err := json.Marshal(steps)
	if err != nil {
		return eris.Wrap(err, "sqlite: append step: marshal")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ingestion SET processing_steps = ?, updated_date = ? WHERE id = ?`,
		string(data), time.Now().UTC(), id,
	); err != nil {
		return eris.Wrap(err, "sqlite: append step: write")
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: append step: commit tx")
	}
	return nil
}

func (s *SQLiteStore) SetExtractedText(ctx context.Context, id, text string, confidence float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingestion SET extracted_text = ?, confidence = ?, updated_date = ? WHERE id = ?`,
		text, confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set extracted text")
	}
	return nil
}

func (s *SQLiteStore) SetDocumentType(ctx context.Context, id string, docType model.DocumentType) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingestion SET document_type = ?, updated_date = ? WHERE id = ?`,
		string(docType), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set document type")
	}
	return nil
}

func (s *SQLiteStore) SetExtractedData(ctx context.Context, id string, data map[string]string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extracted data")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE ingestion SET extracted_data = ?, updated_date = ? WHERE id = ?`,
		string(payload), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set extracted data")
	}
	return nil
}

func (s *SQLiteStore) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingestion SET status = ?, completion_date = ?, updated_date = ?, error_message = NULL WHERE id = ?`,
		string(model.IngestionStatusCompleted), at, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: mark completed")
	}
	return nil
}

func (s *SQLiteStore) ResetIngestion(ctx context.Context, id string) error {
	now := time.Now().UTC()
	steps, err := json.Marshal([]model.ProcessingStep{
		{Stage: model.StageUpload, Status: model.StepCompleted, Timestamp: now},
	})
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal steps")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: reset: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"ingestion_fields", "ingestion_txt", "ingestion_pdf"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE ingestion_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: reset: clear %s", table)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ingestion SET status = ?, document_type = NULL, extracted_text = NULL, confidence = 0, extracted_data = NULL, processing_steps = ?, error_message = NULL, completion_date = NULL, updated_date = ? WHERE id = ?`,
		string(model.IngestionStatusPending), string(steps), now, id,
	); err != nil {
		return eris.Wrap(err, "sqlite: reset: update record")
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: reset: commit tx")
	}
	return nil
}

func (s *SQLiteStore) SaveTextArtifact(ctx context.Context, a *model.TextArtifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_txt (ingestion_id, form_id, content, confidence, language, character_count, word_count, created_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (ingestion_id, form_id) DO UPDATE SET content = excluded.content, confidence = excluded.confidence, character_count = excluded.character_count, word_count = excluded.word_count`,
		a.IngestionID, a.FormID, a.Content, a.Confidence, a.Language, a.CharacterCount, a.WordCount, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: save text artifact")
	}
	return nil
}

func (s *SQLiteStore) SaveFormArtifact(ctx context.Context, a *model.FormArtifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_pdf (ingestion_id, form_id, file_path, document_type, page_range, forms_detected, classification, confidence_score, created_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (ingestion_id, form_id) DO UPDATE SET document_type = excluded.document_type, classification = excluded.classification, confidence_score = excluded.confidence_score`,
		a.IngestionID, a.FormID, a.FilePath, string(a.DocumentType), a.PageRange, a.FormsDetected, a.Classification, a.ConfidenceScore, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: save form artifact")
	}
	return nil
}

func (s *SQLiteStore) UpsertFields(ctx context.Context, fields []model.FieldExtraction) error {
	if len(fields) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert fields: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ingestion_fields (ingestion_id, form_id, field_name, field_value, confidence, extraction_method, created_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (ingestion_id, form_id, field_name) DO UPDATE SET field_value = excluded.field_value, confidence = excluded.confidence, extraction_method = excluded.extraction_method`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert fields: prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, f := range fields {
		created := f.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx, f.IngestionID, f.FormID, f.FieldName, f.FieldValue, f.Confidence, f.ExtractionMethod, created); err != nil {
			return eris.Wrapf(err, "sqlite: upsert field %s", f.FieldName)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: upsert fields: commit tx")
	}
	return nil
}

func (s *SQLiteStore) GetFields(ctx context.Context, ingestionID string) ([]model.FieldExtraction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ingestion_id, form_id, field_name, field_value, confidence, extraction_method, created_date FROM ingestion_fields WHERE ingestion_id = ? ORDER BY form_id, field_name`,
		ingestionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get fields")
	}
	defer rows.Close()

	var fields []model.FieldExtraction
	for rows.Next() {
		var f model.FieldExtraction
		if err := rows.Scan(&f.IngestionID, &f.FormID, &f.FieldName, &f.FieldValue, &f.Confidence, &f.ExtractionMethod, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (s *SQLiteStore) GetOrCreateSet(ctx context.Context, setKey string, expected []model.DocumentType) (*model.DocumentSet, error) {
	set, err := s.GetSet(ctx, setKey)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	types, err := json.Marshal(expected)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal expected types")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_sets (id, set_key, expected_types, status, created_date, updated_date) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (set_key) DO NOTHING`,
		uuid.NewString(), setKey, string(types), string(model.DocumentSetPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create document set")
	}
	return s.GetSet(ctx, setKey)
}

func (s *SQLiteStore) AddSetMember(ctx context.Context, setID, ingestionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_set_members (set_id, ingestion_id, position)
		 SELECT ?, ?, COALESCE(MAX(position), -1) + 1 FROM document_set_members WHERE set_id = ?
		 ON CONFLICT (set_id, ingestion_id) DO NOTHING`,
		setID, ingestionID, setID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: add set member")
	}
	return nil
}

func (s *SQLiteStore) GetSet(ctx context.Context, setKey string) (*model.DocumentSet, error) {
	var (
		set    model.DocumentSet
		types  string
		status string
		evalAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, set_key, expected_types, status, evaluated_at, created_date, updated_date FROM document_sets WHERE set_key = ?`,
		setKey,
	).Scan(&set.ID, &set.SetKey, &types, &status, &evalAt, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: document set %s", setKey)
		}
		return nil, eris.Wrap(err, "sqlite: get document set")
	}
	if err := json.Unmarshal([]byte(types), &set.ExpectedDocumentTypes); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal expected types")
	}
	set.Status = model.DocumentSetStatus(status)
	if evalAt.Valid {
		t := evalAt.Time
		set.EvaluatedAt = &t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ingestion_id FROM document_set_members WHERE set_id = ? ORDER BY position`,
		set.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get set members")
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan member")
		}
		set.MemberIngestionIDs = append(set.MemberIngestionIDs, id)
	}
	return &set, rows.Err()
}

func (s *SQLiteStore) GetSetSnapshot(ctx context.Context, setKey string) (*model.SetSnapshot, error) {
	set, err := s.GetSet(ctx, setKey)
	if err != nil {
		return nil, err
	}

	snap := &model.SetSnapshot{Set: *set}
	for _, ingestionID := range set.MemberIngestionIDs {
		rec, err := s.GetIngestion(ctx, ingestionID)
		if err != nil {
			return nil, err
		}
		if rec.Status != model.IngestionStatusCompleted {
			continue
		}
		fields, err := s.GetFields(ctx, ingestionID)
		if err != nil {
			return nil, err
		}
		snap.Members = append(snap.Members, model.SetMember{
			IngestionID:  rec.ID,
			DocumentType: rec.DocumentType,
			CompletedAt:  rec.CompletedAt,
			Fields:       fields,
		})
	}
	return snap, nil
}

func (s *SQLiteStore) MarkSetEvaluated(ctx context.Context, setID string, status model.DocumentSetStatus, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE document_sets SET status = ?, evaluated_at = ?, updated_date = ? WHERE id = ?`,
		string(status), at, time.Now().UTC(), setID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: mark set evaluated")
	}
	return nil
}

func (s *SQLiteStore) ReplaceOpenDiscrepancies(ctx context.Context, setID string, discs []model.Discrepancy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: discrepancies: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM discrepancies WHERE document_set_id = ? AND status = ?`,
		setID, string(model.DiscrepancyOpen),
	); err != nil {
		return eris.Wrap(err, "sqlite: discrepancies: clear open")
	}

	now := time.Now().UTC()
	for _, d := range discs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO discrepancies (id, document_set_id, discrepancy_type, severity, description, field_name, expected_value, actual_value, ucp_rule_reference, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, setID, d.DiscrepancyType, string(d.Severity), d.Description, d.FieldName, d.ExpectedValue, d.ActualValue, d.UCPRuleReference, string(model.DiscrepancyOpen), now,
		); err != nil {
			return eris.Wrap(err, "sqlite: discrepancies: insert")
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: discrepancies: commit tx")
	}
	return nil
}

func (s *SQLiteStore) ListDiscrepancies(ctx context.Context, setID string, status model.DiscrepancyStatus) ([]model.Discrepancy, error) {
	query := `SELECT id, document_set_id, discrepancy_type, severity, description, field_name, expected_value, actual_value, ucp_rule_reference, status, created_at, resolved_at, resolution_notes FROM discrepancies WHERE document_set_id = ?`
	args := []any{setID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, discrepancy_type, field_name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list discrepancies")
	}
	defer rows.Close()

	var discs []model.Discrepancy
	for rows.Next() {
		var (
			d          model.Discrepancy
			sev, stat  string
			resolvedAt sql.NullTime
			notes      sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.DocumentSetID, &d.DiscrepancyType, &sev, &d.Description, &d.FieldName, &d.ExpectedValue, &d.ActualValue, &d.UCPRuleReference, &stat, &d.CreatedAt, &resolvedAt, &notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan discrepancy")
		}
		d.Severity = model.Severity(sev)
		d.Status = model.DiscrepancyStatus(stat)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			d.ResolvedAt = &t
		}
		if notes.Valid {
			d.ResolutionNotes = notes.String
		}
		discs = append(discs, d)
	}
	return discs, rows.Err()
}

func (s *SQLiteStore) ResolveDiscrepancy(ctx context.Context, id, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discrepancies SET status = ?, resolved_at = ?, resolution_notes = ? WHERE id = ? AND status = ?`,
		string(model.DiscrepancyResolved), time.Now().UTC(), notes, id, string(model.DiscrepancyOpen),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: resolve discrepancy")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: resolve discrepancy: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: open discrepancy %s", id)
	}
	return nil
}

func scanSQLiteIngestion(row *sql.Row) (*model.IngestionRecord, error) {
	var (
		rec         model.IngestionRecord
		status      string
		docType     sql.NullString
		text        sql.NullString
		data        sql.NullString
		steps       string
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.SetKey, &rec.OriginalFilename, &rec.FileType, &rec.SizeBytes,
		&status, &docType, &text, &rec.Confidence, &data, &steps, &errMsg,
		&rec.CreatedAt, &rec.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	return hydrateIngestion(&rec, status, docType, text, data, steps, errMsg, completedAt)
}

func collectSQLiteIngestions(rows *sql.Rows) ([]model.IngestionRecord, error) {
	var recs []model.IngestionRecord
	for rows.Next() {
		var (
			rec         model.IngestionRecord
			status      string
			docType     sql.NullString
			text        sql.NullString
			data        sql.NullString
			steps       string
			errMsg      sql.NullString
			completedAt sql.NullTime
		)
		err := rows.Scan(&rec.ID, &rec.SetKey, &rec.OriginalFilename, &rec.FileType, &rec.SizeBytes,
			&status, &docType, &text, &rec.Confidence, &data, &steps, &errMsg,
			&rec.CreatedAt, &rec.UpdatedAt, &completedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ingestion")
		}
		hydrated, err := hydrateIngestion(&rec, status, docType, text, data, steps, errMsg, completedAt)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *hydrated)
	}
	return recs, rows.Err()
}

func hydrateIngestion(rec *model.IngestionRecord, status string, docType, text, data sql.NullString, steps string, errMsg sql.NullString, completedAt sql.NullTime) (*model.IngestionRecord, error) {
	rec.Status = model.IngestionStatus(status)
	if docType.Valid {
		rec.DocumentType = model.DocumentType(docType.String)
	}
	if text.Valid {
		rec.ExtractedText = text.String
	}
	if errMsg.Valid {
		rec.ErrorMessage = errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &rec.ExtractedData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal extracted data")
		}
	}
	if steps != "" {
		if err := json.Unmarshal([]byte(steps), &rec.ProcessingSteps); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal processing steps")
		}
	}
	return rec, nil
}
