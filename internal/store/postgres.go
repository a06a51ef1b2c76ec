package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tradedocs/internal/db"
	"github.com/sells-group/tradedocs/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// SQL for the hot paths, prepared on each new connection.
const (
	sqlInsertIngestion = `INSERT INTO ingestion (id, set_key, original_filename, file_type, size_bytes, status, processing_steps, created_date, updated_date) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	sqlGetIngestion    = `SELECT id, set_key, original_filename, file_type, size_bytes, status, document_type, extracted_text, confidence, extracted_data, processing_steps, error_message, created_date, updated_date, completion_date FROM ingestion WHERE id = $1`
	sqlUpdateStatus    = `UPDATE ingestion SET status = $1, error_message = $2, updated_date = $3 WHERE id = $4`
	sqlAppendStep      = `UPDATE ingestion SET processing_steps = processing_steps || $1::jsonb, updated_date = $2 WHERE id = $3`
)

var postgresPrepared = []string{
	sqlInsertIngestion,
	sqlGetIngestion,
	sqlUpdateStatus,
	sqlAppendStep,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for _, sql := range postgresPrepared {
			if _, err := conn.Prepare(ctx, sql, sql); err != nil {
				return eris.Wrap(err, "postgres: prepare statement")
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Migrate applies the ordered migration manifest, recording applied
// steps in schema_migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (id TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return eris.Wrap(err, "postgres: create schema_migrations")
	}

	for _, m := range postgresMigrations {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE id = $1)`, m.ID).Scan(&exists)
		if err != nil {
			return eris.Wrapf(err, "postgres: check migration %s", m.ID)
		}
		if exists {
			continue
		}
		if _, err := s.pool.Exec(ctx, m.SQL); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", m.ID)
		}
		if _, err := s.pool.Exec(ctx, `INSERT INTO schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", m.ID)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateIngestion(ctx context.Context, rec *model.IngestionRecord) error {
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
		return eris.Wrap(err, "postgres: marshal steps")
	}

	_, err = s.pool.Exec(ctx, sqlInsertIngestion,
		rec.ID, rec.SetKey, rec.OriginalFilename, rec.FileType, rec.SizeBytes,
		string(rec.Status), steps, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: create ingestion")
	}
	return nil
}

func (s *PostgresStore) GetIngestion(ctx context.Context, id string) (*model.IngestionRecord, error) {
	row := s.pool.QueryRow(ctx, sqlGetIngestion, id)
	rec, err := scanIngestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: ingestion %s", id)
		}
		return nil, eris.Wrap(err, "postgres: get ingestion")
	}
	return rec, nil
}

func (s *PostgresStore) ListIngestions(ctx context.Context, filter IngestionFilter) ([]model.IngestionRecord, error) {
	query := `SELECT id, set_key, original_filename, file_type, size_bytes, status, document_type, extracted_text, confidence, extracted_data, processing_steps, error_message, created_date, updated_date, completion_date FROM ingestion WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.SetKey != "" {
		args = append(args, filter.SetKey)
		query += ` AND set_key = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_date DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ingestions")
	}
	defer rows.Close()

	return collectIngestions(rows)
}

func (s *PostgresStore) ListStuck(ctx context.Context, cutoff time.Time) ([]model.IngestionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, set_key, original_filename, file_type, size_bytes, status, document_type, extracted_text, confidence, extracted_data, processing_steps, error_message, created_date, updated_date, completion_date FROM ingestion WHERE status = $1 AND updated_date < $2 ORDER BY updated_date`,
		string(model.IngestionStatusProcessing), cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stuck")
	}
	defer rows.Close()

	return collectIngestions(rows)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status model.IngestionStatus, errorMessage string) error {
	var errMsg *string
	if errorMessage != "" {
		errMsg = &errorMessage
	}
	_, err := s.pool.Exec(ctx, sqlUpdateStatus, string(status), errMsg, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "postgres: update status")
	}
	return nil
}

func (s *PostgresStore) AppendStep(ctx context.Context, id string, step model.ProcessingStep) error {
	data, err := json.Marshal([]model.ProcessingStep{step})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal step")
	}
	_, err = s.pool.Exec(ctx, sqlAppendStep, string(data), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "postgres: append step")
	}
	return nil
}

func (s *PostgresStore) SetExtractedText(ctx context.Context, id, text string, confidence float64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingestion SET extracted_text = $1, confidence = $2, updated_date = $3 WHERE id = $4`,
		text, confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set extracted text")
	}
	return nil
}

func (s *PostgresStore) SetDocumentType(ctx context.Context, id string, docType model.DocumentType) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingestion SET document_type = $1, updated_date = $2 WHERE id = $3`,
		string(docType), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set document type")
	}
	return nil
}

func (s *PostgresStore) SetExtractedData(ctx context.Context, id string, data map[string]string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extracted data")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE ingestion SET extracted_data = $1, updated_date = $2 WHERE id = $3`,
		payload, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set extracted data")
	}
	return nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingestion SET status = $1, completion_date = $2, updated_date = $3, error_message = NULL WHERE id = $4`,
		string(model.IngestionStatusCompleted), at, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: mark completed")
	}
	return nil
}

func (s *PostgresStore) ResetIngestion(ctx context.Context, id string) error {
	now := time.Now().UTC()
	steps, err := json.Marshal([]model.ProcessingStep{
		{Stage: model.StageUpload, Status: model.StepCompleted, Timestamp: now},
	})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal steps")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: reset: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{"ingestion_fields", "ingestion_txt", "ingestion_pdf"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE ingestion_id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: reset: clear %s", table)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE ingestion SET status = $1, document_type = NULL, extracted_text = NULL, confidence = 0, extracted_data = NULL, processing_steps = $2, error_message = NULL, completion_date = NULL, updated_date = $3 WHERE id = $4`,
		string(model.IngestionStatusPending), steps, now, id,
	); err != nil {
		return eris.Wrap(err, "postgres: reset: update record")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: reset: commit tx")
	}
	return nil
}

func (s *PostgresStore) SaveTextArtifact(ctx context.Context, a *model.TextArtifact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingestion_txt (ingestion_id, form_id, content, confidence, language, character_count, word_count, created_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (ingestion_id, form_id) DO UPDATE SET content = EXCLUDED.content, confidence = EXCLUDED.confidence, character_count = EXCLUDED.character_count, word_count = EXCLUDED.word_count`,
		a.IngestionID, a.FormID, a.Content, a.Confidence, a.Language, a.CharacterCount, a.WordCount, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save text artifact")
	}
	return nil
}

func (s *PostgresStore) SaveFormArtifact(ctx context.Context, a *model.FormArtifact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingestion_pdf (ingestion_id, form_id, file_path, document_type, page_range, forms_detected, classification, confidence_score, created_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (ingestion_id, form_id) DO UPDATE SET document_type = EXCLUDED.document_type, classification = EXCLUDED.classification, confidence_score = EXCLUDED.confidence_score`,
		a.IngestionID, a.FormID, a.FilePath, string(a.DocumentType), a.PageRange, a.FormsDetected, a.Classification, a.ConfidenceScore, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save form artifact")
	}
	return nil
}

func (s *PostgresStore) UpsertFields(ctx context.Context, fields []model.FieldExtraction) error {
	if len(fields) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(fields))
	for _, f := range fields {
		created := f.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows = append(rows, []any{f.IngestionID, f.FormID, f.FieldName, f.FieldValue, f.Confidence, f.ExtractionMethod, created})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "ingestion_fields",
		Columns:      []string{"ingestion_id", "form_id", "field_name", "field_value", "confidence", "extraction_method", "created_date"},
		ConflictKeys: []string{"ingestion_id", "form_id", "field_name"},
		UpdateCols:   []string{"field_value", "confidence", "extraction_method"},
	}, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: upsert fields")
	}
	return nil
}

func (s *PostgresStore) GetFields(ctx context.Context, ingestionID string) ([]model.FieldExtraction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ingestion_id, form_id, field_name, field_value, confidence, extraction_method, created_date FROM ingestion_fields WHERE ingestion_id = $1 ORDER BY form_id, field_name`,
		ingestionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get fields")
	}
	defer rows.Close()

	var fields []model.FieldExtraction
	for rows.Next() {
		var f model.FieldExtraction
		if err := rows.Scan(&f.IngestionID, &f.FormID, &f.FieldName, &f.FieldValue, &f.Confidence, &f.ExtractionMethod, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (s *PostgresStore) GetOrCreateSet(ctx context.Context, setKey string, expected []model.DocumentType) (*model.DocumentSet, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal expected types")
	}
	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO document_sets (id, set_key, expected_types, status, created_date, updated_date) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (set_key) DO NOTHING`,
		id, setKey, types, string(model.DocumentSetPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create document set")
	}
	// Re-read to cover the concurrent-create case.
	return s.GetSet(ctx, setKey)
}

func (s *PostgresStore) AddSetMember(ctx context.Context, setID, ingestionID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_set_members (set_id, ingestion_id, position)
		 SELECT $1, $2, COALESCE(MAX(position), -1) + 1 FROM document_set_members WHERE set_id = $1
		 ON CONFLICT (set_id, ingestion_id) DO NOTHING`,
		setID, ingestionID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: add set member")
	}
	return nil
}

func (s *PostgresStore) GetSet(ctx context.Context, setKey string) (*model.DocumentSet, error) {
	var (
		set    model.DocumentSet
		types  []byte
		status string
		evalAt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, set_key, expected_types, status, evaluated_at, created_date, updated_date FROM document_sets WHERE set_key = $1`,
		setKey,
	).Scan(&set.ID, &set.SetKey, &types, &status, &evalAt, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: document set %s", setKey)
		}
		return nil, eris.Wrap(err, "postgres: get document set")
	}
	if err := json.Unmarshal(types, &set.ExpectedDocumentTypes); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal expected types")
	}
	set.Status = model.DocumentSetStatus(status)
	set.EvaluatedAt = evalAt

	memberRows, err := s.pool.Query(ctx,
		`SELECT ingestion_id FROM document_set_members WHERE set_id = $1 ORDER BY position`,
		set.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get set members")
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var id string
		if err := memberRows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan member")
		}
		set.MemberIngestionIDs = append(set.MemberIngestionIDs, id)
	}
	return &set, memberRows.Err()
}

func (s *PostgresStore) GetSetSnapshot(ctx context.Context, setKey string) (*model.SetSnapshot, error) {
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

func (s *PostgresStore) MarkSetEvaluated(ctx context.Context, setID string, status model.DocumentSetStatus, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE document_sets SET status = $1, evaluated_at = $2, updated_date = $3 WHERE id = $4`,
		string(status), at, time.Now().UTC(), setID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: mark set evaluated")
	}
	return nil
}

func (s *PostgresStore) ReplaceOpenDiscrepancies(ctx context.Context, setID string, discs []model.Discrepancy) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: discrepancies: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM discrepancies WHERE document_set_id = $1 AND status = $2`,
		setID, string(model.DiscrepancyOpen),
	); err != nil {
		return eris.Wrap(err, "postgres: discrepancies: clear open")
	}

	now := time.Now().UTC()
	for _, d := range discs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO discrepancies (id, document_set_id, discrepancy_type, severity, description, field_name, expected_value, actual_value, ucp_rule_reference, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			id, setID, d.DiscrepancyType, string(d.Severity), d.Description, d.FieldName, d.ExpectedValue, d.ActualValue, d.UCPRuleReference, string(model.DiscrepancyOpen), now,
		); err != nil {
			return eris.Wrap(err, "postgres: discrepancies: insert")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: discrepancies: commit tx")
	}
	return nil
}

func (s *PostgresStore) ListDiscrepancies(ctx context.Context, setID string, status model.DiscrepancyStatus) ([]model.Discrepancy, error) {
	query := `SELECT id, document_set_id, discrepancy_type, severity, description, field_name, expected_value, actual_value, ucp_rule_reference, status, created_at, resolved_at, resolution_notes FROM discrepancies WHERE document_set_id = $1`
	args := []any{setID}
	if status != "" {
		args = append(args, string(status))
		query += ` AND status = $2`
	}
	query += ` ORDER BY created_at, discrepancy_type, field_name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list discrepancies")
	}
	defer rows.Close()

	var discs []model.Discrepancy
	for rows.Next() {
		var (
			d     model.Discrepancy
			sev   string
			stat  string
			notes *string
		)
		if err := rows.Scan(&d.ID, &d.DocumentSetID, &d.DiscrepancyType, &sev, &d.Description, &d.FieldName, &d.ExpectedValue, &d.ActualValue, &d.UCPRuleReference, &stat, &d.CreatedAt, &d.ResolvedAt, &notes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan discrepancy")
		}
		d.Severity = model.Severity(sev)
		d.Status = model.DiscrepancyStatus(stat)
		if notes != nil {
			d.ResolutionNotes = *notes
		}
		discs = append(discs, d)
	}
	return discs, rows.Err()
}

func (s *PostgresStore) ResolveDiscrepancy(ctx context.Context, id, notes string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discrepancies SET status = $1, resolved_at = $2, resolution_notes = $3 WHERE id = $4 AND status = $5`,
		string(model.DiscrepancyResolved), time.Now().UTC(), notes, id, string(model.DiscrepancyOpen),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: resolve discrepancy")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: open discrepancy %s", id)
	}
	return nil
}

// scanIngestion reads one ingestion row from a pgx.Row or pgx.Rows.
func scanIngestion(row pgx.Row) (*model.IngestionRecord, error) {
	var (
		rec     model.IngestionRecord
		status  string
		docType *string
		text    *string
		data    []byte
		steps   []byte
		errMsg  *string
	)
	err := row.Scan(&rec.ID, &rec.SetKey, &rec.OriginalFilename, &rec.FileType, &rec.SizeBytes,
		&status, &docType, &text, &rec.Confidence, &data, &steps, &errMsg,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = model.IngestionStatus(status)
	if docType != nil {
		rec.DocumentType = model.DocumentType(*docType)
	}
	if text != nil {
		rec.ExtractedText = *text
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.ExtractedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal extracted data")
		}
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &rec.ProcessingSteps); err != nil {
			return nil, eris.Wrap(err, "unmarshal processing steps")
		}
	}
	return &rec, nil
}

func collectIngestions(rows pgx.Rows) ([]model.IngestionRecord, error) {
	var recs []model.IngestionRecord
	for rows.Next() {
		rec, err := scanIngestion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan ingestion")
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}
