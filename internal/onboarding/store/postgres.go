package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	dErrors "onboard/pkg/domain-errors"
	txcontext "onboard/pkg/platform/tx"

	"onboard/internal/onboarding/models"
)

// Postgres implements every entity store on database/sql. Statements join
// the ambient transaction when one is carried by the context.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a store backed by the given database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Stores exposes the postgres store through the per-entity interfaces.
func (p *Postgres) Stores() Stores {
	return Stores{
		Processes:             (*pgProcesses)(p),
		IdentityVerifications: (*pgIdentities)(p),
		Documents:             (*pgDocuments)(p),
		DocumentResults:       (*pgResults)(p),
		Payloads:              (*pgPayloads)(p),
		Otps:                  (*pgOtps)(p),
		ScaResults:            (*pgScaResults)(p),
	}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return p.db
}

func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return fmt.Errorf("query %s: %w", what, err)
}

func queryIDs(ctx context.Context, ex dbExecutor, query string, args ...any) ([]string, error) {
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type pgProcesses Postgres

const processColumns = `id, user_id, activation_id, status, error_score, error_detail, error_origin,
	created_at, updated_at, finished_at, failed_at`

func scanProcess(row interface{ Scan(...any) error }) (*models.Process, error) {
	var p models.Process
	err := row.Scan(&p.ID, &p.UserID, &p.ActivationID, &p.Status, &p.ErrorScore,
		&p.ErrorDetail, &p.ErrorOrigin, &p.CreatedAt, &p.UpdatedAt, &p.FinishedAt, &p.FailedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgProcesses) Create(ctx context.Context, process *models.Process) error {
	_, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		INSERT INTO onboarding_process (`+processColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		process.ID, process.UserID, process.ActivationID, process.Status, process.ErrorScore,
		process.ErrorDetail, process.ErrorOrigin, process.CreatedAt, process.UpdatedAt,
		process.FinishedAt, process.FailedAt)
	if err != nil {
		return fmt.Errorf("insert process: %w", err)
	}
	return nil
}

func (s *pgProcesses) Update(ctx context.Context, process *models.Process) error {
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE onboarding_process
		SET status = $2, error_score = $3, error_detail = $4, error_origin = $5,
		    updated_at = $6, finished_at = $7, failed_at = $8
		WHERE id = $1`,
		process.ID, process.Status, process.ErrorScore, process.ErrorDetail,
		process.ErrorOrigin, process.UpdatedAt, process.FinishedAt, process.FailedAt)
	if err != nil {
		return fmt.Errorf("update process: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "process not found")
	}
	return nil
}

func (s *pgProcesses) FindByID(ctx context.Context, id string) (*models.Process, error) {
	p, err := scanProcess((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+processColumns+` FROM onboarding_process WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("process", err)
	}
	return p, nil
}

func (s *pgProcesses) FindByIDForUpdate(ctx context.Context, id string) (*models.Process, error) {
	p, err := scanProcess((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+processColumns+` FROM onboarding_process WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound("process", err)
	}
	return p, nil
}

func (s *pgProcesses) FindByActivationID(ctx context.Context, activationID string) (*models.Process, error) {
	p, err := scanProcess((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+processColumns+` FROM onboarding_process
		WHERE activation_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, activationID))
	if err != nil {
		return nil, notFound("process", err)
	}
	return p, nil
}

func (s *pgProcesses) FindActiveByUserID(ctx context.Context, userID string) (*models.Process, error) {
	p, err := scanProcess((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+processColumns+` FROM onboarding_process
		WHERE user_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, models.ProcessActivationInProgress, models.ProcessVerificationInProgress))
	if err != nil {
		return nil, notFound("process", err)
	}
	return p, nil
}

func (s *pgProcesses) FindIDsByStatusCreatedBefore(ctx context.Context, status models.ProcessStatus, before time.Time) ([]string, error) {
	return queryIDs(ctx, (*Postgres)(s).execer(ctx), `
		SELECT id FROM onboarding_process
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`, status, before)
}

func (s *pgProcesses) FindIDsCreatedBefore(ctx context.Context, before time.Time) ([]string, error) {
	return queryIDs(ctx, (*Postgres)(s).execer(ctx), `
		SELECT id FROM onboarding_process
		WHERE created_at < $1 AND status NOT IN ($2, $3)
		ORDER BY created_at`,
		before, models.ProcessFinished, models.ProcessFailed)
}

func (s *pgProcesses) Terminate(ctx context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE onboarding_process
		SET status = $2, error_detail = $3, error_origin = $4, updated_at = now(), failed_at = now()
		WHERE id = ANY($1) AND status <> $2`,
		pq.Array(ids), models.ProcessFailed, errorDetail, origin)
	if err != nil {
		return 0, fmt.Errorf("terminate processes: %w", err)
	}
	return res.RowsAffected()
}

type pgIdentities Postgres

const identityColumns = `id, process_id, activation_id, user_id, phase, status,
	error_detail, error_origin, reject_reason, reject_origin, session_info,
	created_at, updated_at, verified_at, failed_at`

func scanIdentity(row interface{ Scan(...any) error }) (*models.IdentityVerification, error) {
	var iv models.IdentityVerification
	err := row.Scan(&iv.ID, &iv.ProcessID, &iv.ActivationID, &iv.UserID, &iv.Phase, &iv.Status,
		&iv.ErrorDetail, &iv.ErrorOrigin, &iv.RejectReason, &iv.RejectOrigin, &iv.SessionInfo,
		&iv.CreatedAt, &iv.UpdatedAt, &iv.VerifiedAt, &iv.FailedAt)
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

func (s *pgIdentities) Create(ctx context.Context, iv *models.IdentityVerification) error {
	_, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		INSERT INTO identity_verification (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		iv.ID, iv.ProcessID, iv.ActivationID, iv.UserID, iv.Phase, iv.Status,
		iv.ErrorDetail, iv.ErrorOrigin, iv.RejectReason, iv.RejectOrigin, iv.SessionInfo,
		iv.CreatedAt, iv.UpdatedAt, iv.VerifiedAt, iv.FailedAt)
	if err != nil {
		return fmt.Errorf("insert identity verification: %w", err)
	}
	return nil
}

func (s *pgIdentities) Update(ctx context.Context, iv *models.IdentityVerification) error {
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE identity_verification
		SET phase = $2, status = $3, error_detail = $4, error_origin = $5,
		    reject_reason = $6, reject_origin = $7, session_info = $8,
		    updated_at = $9, verified_at = $10, failed_at = $11
		WHERE id = $1`,
		iv.ID, iv.Phase, iv.Status, iv.ErrorDetail, iv.ErrorOrigin,
		iv.RejectReason, iv.RejectOrigin, iv.SessionInfo,
		iv.UpdatedAt, iv.VerifiedAt, iv.FailedAt)
	if err != nil {
		return fmt.Errorf("update identity verification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "identity verification not found")
	}
	return nil
}

func (s *pgIdentities) FindByID(ctx context.Context, id string) (*models.IdentityVerification, error) {
	iv, err := scanIdentity((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM identity_verification WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("identity verification", err)
	}
	return iv, nil
}

func (s *pgIdentities) FindLatestByActivationID(ctx context.Context, activationID string) (*models.IdentityVerification, error) {
	iv, err := scanIdentity((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM identity_verification
		WHERE activation_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, activationID))
	if err != nil {
		return nil, notFound("identity verification", err)
	}
	return iv, nil
}

func (s *pgIdentities) ListByPhaseAndStatus(ctx context.Context, phase models.Phase, status models.Status) ([]*models.IdentityVerification, error) {
	rows, err := (*Postgres)(s).execer(ctx).QueryContext(ctx, `
		SELECT `+identityColumns+` FROM identity_verification
		WHERE phase = $1 AND status = $2
		ORDER BY created_at`, phase, status)
	if err != nil {
		return nil, fmt.Errorf("query identity verifications: %w", err)
	}
	defer rows.Close()
	var out []*models.IdentityVerification
	for rows.Next() {
		iv, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity verification: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *pgIdentities) FindNotCompletedIDs(ctx context.Context, before time.Time) ([]string, error) {
	return queryIDs(ctx, (*Postgres)(s).execer(ctx), `
		SELECT id FROM identity_verification
		WHERE phase <> $1 AND created_at < $2
		ORDER BY created_at`, models.PhaseCompleted, before)
}

func (s *pgIdentities) FindNotCompletedIDsByProcessIDs(ctx context.Context, processIDs []string) ([]string, error) {
	if len(processIDs) == 0 {
		return nil, nil
	}
	return queryIDs(ctx, (*Postgres)(s).execer(ctx), `
		SELECT id FROM identity_verification
		WHERE process_id = ANY($1) AND phase <> $2
		ORDER BY created_at`, pq.Array(processIDs), models.PhaseCompleted)
}

func (s *pgIdentities) Terminate(ctx context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE identity_verification
		SET status = $2, error_detail = $3, error_origin = $4, updated_at = now(), failed_at = now()
		WHERE id = ANY($1) AND status <> $2`,
		pq.Array(ids), models.StatusFailed, errorDetail, origin)
	if err != nil {
		return 0, fmt.Errorf("terminate identity verifications: %w", err)
	}
	return res.RowsAffected()
}

type pgDocuments Postgres

const documentColumns = `id, identity_verification_id, activation_id, type, side, status,
	filename, upload_id, verification_id, photo_id, other_side_id, original_document_id,
	used_for_verification, error_detail, error_origin, reject_reason, reject_origin,
	created_at, updated_at, uploaded_at, verified_at, disposed_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.DocumentVerification, error) {
	var d models.DocumentVerification
	err := row.Scan(&d.ID, &d.IdentityVerificationID, &d.ActivationID, &d.Type, &d.Side, &d.Status,
		&d.Filename, &d.UploadID, &d.VerificationID, &d.PhotoID, &d.OtherSideID, &d.OriginalDocumentID,
		&d.UsedForVerification, &d.ErrorDetail, &d.ErrorOrigin, &d.RejectReason, &d.RejectOrigin,
		&d.CreatedAt, &d.UpdatedAt, &d.UploadedAt, &d.VerifiedAt, &d.DisposedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *pgDocuments) Create(ctx context.Context, doc *models.DocumentVerification) error {
	_, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		INSERT INTO document_verification (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		doc.ID, doc.IdentityVerificationID, doc.ActivationID, doc.Type, doc.Side, doc.Status,
		doc.Filename, doc.UploadID, doc.VerificationID, doc.PhotoID, doc.OtherSideID, doc.OriginalDocumentID,
		doc.UsedForVerification, doc.ErrorDetail, doc.ErrorOrigin, doc.RejectReason, doc.RejectOrigin,
		doc.CreatedAt, doc.UpdatedAt, doc.UploadedAt, doc.VerifiedAt, doc.DisposedAt)
	if err != nil {
		return fmt.Errorf("insert document verification: %w", err)
	}
	return nil
}

func (s *pgDocuments) Update(ctx context.Context, doc *models.DocumentVerification) error {
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE document_verification
		SET status = $2, upload_id = $3, verification_id = $4, photo_id = $5,
		    other_side_id = $6, used_for_verification = $7,
		    error_detail = $8, error_origin = $9, reject_reason = $10, reject_origin = $11,
		    updated_at = $12, uploaded_at = $13, verified_at = $14, disposed_at = $15
		WHERE id = $1`,
		doc.ID, doc.Status, doc.UploadID, doc.VerificationID, doc.PhotoID,
		doc.OtherSideID, doc.UsedForVerification,
		doc.ErrorDetail, doc.ErrorOrigin, doc.RejectReason, doc.RejectOrigin,
		doc.UpdatedAt, doc.UploadedAt, doc.VerifiedAt, doc.DisposedAt)
	if err != nil {
		return fmt.Errorf("update document verification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "document verification not found")
	}
	return nil
}

func (s *pgDocuments) FindByID(ctx context.Context, id string) (*models.DocumentVerification, error) {
	d, err := scanDocument((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM document_verification WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("document verification", err)
	}
	return d, nil
}

func (s *pgDocuments) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.DocumentVerification, error) {
	rows, err := (*Postgres)(s).execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query document verifications: %w", err)
	}
	defer rows.Close()
	var out []*models.DocumentVerification
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document verification: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *pgDocuments) ListByIdentityVerification(ctx context.Context, ivID string) ([]*models.DocumentVerification, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM document_verification
		WHERE identity_verification_id = $1
		ORDER BY created_at`, ivID)
}

func (s *pgDocuments) ListUsedForVerification(ctx context.Context, ivID string) ([]*models.DocumentVerification, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM document_verification
		WHERE identity_verification_id = $1 AND used_for_verification AND status <> $2
		ORDER BY created_at`, ivID, models.DocumentDisposed)
}

func (s *pgDocuments) ListWithPhoto(ctx context.Context, ivID string) ([]*models.DocumentVerification, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM document_verification
		WHERE identity_verification_id = $1 AND photo_id <> '' AND status <> $2
		ORDER BY created_at`, ivID, models.DocumentDisposed)
}

func (s *pgDocuments) ListByStatusCreatedBefore(ctx context.Context, status models.DocumentStatus, before time.Time) ([]*models.DocumentVerification, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM document_verification
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`, status, before)
}

func (s *pgDocuments) ListByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.DocumentVerification, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM document_verification
		WHERE status = $1
		ORDER BY created_at`, status)
}

func (s *pgDocuments) FindExpiredIDs(ctx context.Context, statuses []models.DocumentStatus, before time.Time) ([]string, error) {
	marks := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	args = append(args, before)
	for i, st := range statuses {
		marks[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, st)
	}
	query := fmt.Sprintf(`
		SELECT id FROM document_verification
		WHERE created_at < $1 AND status IN (%s)
		ORDER BY created_at`, strings.Join(marks, ", "))
	return queryIDs(ctx, (*Postgres)(s).execer(ctx), query, args...)
}

func (s *pgDocuments) FindIDsByIdentityVerificationIDs(ctx context.Context, ivIDs []string, statuses []models.DocumentStatus) ([]string, error) {
	if len(ivIDs) == 0 {
		return nil, nil
	}
	marks := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	args = append(args, pq.Array(ivIDs))
	for i, st := range statuses {
		marks[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, st)
	}
	query := fmt.Sprintf(`
		SELECT id FROM document_verification
		WHERE identity_verification_id = ANY($1) AND status IN (%s)
		ORDER BY created_at`, strings.Join(marks, ", "))
	return queryIDs(ctx, (*Postgres)(s).execer(ctx), query, args...)
}

func (s *pgDocuments) Terminate(ctx context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE document_verification
		SET status = $2, error_detail = $3, error_origin = $4, updated_at = now()
		WHERE id = ANY($1) AND status <> $2`,
		pq.Array(ids), models.DocumentFailed, errorDetail, origin)
	if err != nil {
		return 0, fmt.Errorf("terminate document verifications: %w", err)
	}
	return res.RowsAffected()
}

type pgResults Postgres

const resultColumns = `id, document_verification_id, phase, extracted_data,
	reject_reason, error_detail, error_origin, created_at`

func scanResult(row interface{ Scan(...any) error }) (*models.DocumentResult, error) {
	var r models.DocumentResult
	err := row.Scan(&r.ID, &r.DocumentVerificationID, &r.Phase, &r.ExtractedData,
		&r.RejectReason, &r.ErrorDetail, &r.ErrorOrigin, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *pgResults) Create(ctx context.Context, result *models.DocumentResult) error {
	_, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		INSERT INTO document_result (`+resultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.ID, result.DocumentVerificationID, result.Phase, result.ExtractedData,
		result.RejectReason, result.ErrorDetail, result.ErrorOrigin, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document result: %w", err)
	}
	return nil
}

func (s *pgResults) FindLatestForDocument(ctx context.Context, documentID string, phase models.ProcessingPhase) (*models.DocumentResult, error) {
	r, err := scanResult((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+resultColumns+` FROM document_result
		WHERE document_verification_id = $1 AND phase = $2
		ORDER BY created_at DESC
		LIMIT 1`, documentID, phase))
	if err != nil {
		return nil, notFound("document result", err)
	}
	return r, nil
}

func (s *pgResults) ListForDocument(ctx context.Context, documentID string) ([]*models.DocumentResult, error) {
	rows, err := (*Postgres)(s).execer(ctx).QueryContext(ctx, `
		SELECT `+resultColumns+` FROM document_result
		WHERE document_verification_id = $1
		ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query document results: %w", err)
	}
	defer rows.Close()
	var out []*models.DocumentResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type pgPayloads Postgres

func (s *pgPayloads) Create(ctx context.Context, payload *models.DocumentPayload) error {
	_, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		INSERT INTO document_payload (id, activation_id, filename, data, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		payload.ID, payload.ActivationID, payload.Filename, payload.Data, payload.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document payload: %w", err)
	}
	return nil
}

func (s *pgPayloads) FindByID(ctx context.Context, id string) (*models.DocumentPayload, error) {
	var p models.DocumentPayload
	err := (*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT id, activation_id, filename, data, created_at
		FROM document_payload WHERE id = $1`, id).
		Scan(&p.ID, &p.ActivationID, &p.Filename, &p.Data, &p.CreatedAt)
	if err != nil {
		return nil, notFound("document payload", err)
	}
	return &p, nil
}

func (s *pgPayloads) Delete(ctx context.Context, id string) error {
	_, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		DELETE FROM document_payload WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document payload: %w", err)
	}
	return nil
}

func (s *pgPayloads) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		DELETE FROM document_payload WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete document payloads: %w", err)
	}
	return res.RowsAffected()
}

type pgOtps Postgres

const otpColumns = `id, process_id, type, code_hash, status, failed_attempts,
	error_detail, error_origin, created_at, updated_at, verified_at, failed_at`

func scanOtp(row interface{ Scan(...any) error }) (*models.Otp, error) {
	var o models.Otp
	err := row.Scan(&o.ID, &o.ProcessID, &o.Type, &o.CodeHash, &o.Status, &o.FailedAttempts,
		&o.ErrorDetail, &o.ErrorOrigin, &o.CreatedAt, &o.UpdatedAt, &o.VerifiedAt, &o.FailedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *pgOtps) Create(ctx context.Context, otp *models.Otp) error {
	_, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		INSERT INTO onboarding_otp (`+otpColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		otp.ID, otp.ProcessID, otp.Type, otp.CodeHash, otp.Status, otp.FailedAttempts,
		otp.ErrorDetail, otp.ErrorOrigin, otp.CreatedAt, otp.UpdatedAt, otp.VerifiedAt, otp.FailedAt)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

func (s *pgOtps) Update(ctx context.Context, otp *models.Otp) error {
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE onboarding_otp
		SET status = $2, failed_attempts = $3, error_detail = $4, error_origin = $5,
		    updated_at = $6, verified_at = $7, failed_at = $8
		WHERE id = $1`,
		otp.ID, otp.Status, otp.FailedAttempts, otp.ErrorDetail, otp.ErrorOrigin,
		otp.UpdatedAt, otp.VerifiedAt, otp.FailedAt)
	if err != nil {
		return fmt.Errorf("update otp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "otp not found")
	}
	return nil
}

func (s *pgOtps) FindNewestByProcessAndType(ctx context.Context, processID string, otpType models.OtpType) (*models.Otp, error) {
	o, err := scanOtp((*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+otpColumns+` FROM onboarding_otp
		WHERE process_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1`, processID, otpType))
	if err != nil {
		return nil, notFound("otp", err)
	}
	return o, nil
}

func (s *pgOtps) FindExpiredIDs(ctx context.Context, before time.Time) ([]string, error) {
	return queryIDs(ctx, (*Postgres)(s).execer(ctx), `
		SELECT id FROM onboarding_otp
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`, models.OtpActive, before)
}

func (s *pgOtps) Terminate(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE onboarding_otp
		SET status = $2, error_detail = $3, error_origin = $4, updated_at = now(), failed_at = now()
		WHERE id = ANY($1) AND status = $5`,
		pq.Array(ids), models.OtpFailed, models.ErrorOtpCanceled, models.OriginOtpVerification, models.OtpActive)
	if err != nil {
		return 0, fmt.Errorf("terminate otps: %w", err)
	}
	return res.RowsAffected()
}

type pgScaResults Postgres

const scaColumns = `id, identity_verification_id, process_id,
	presence_check_result, otp_result, result, created_at, updated_at`

func (s *pgScaResults) Create(ctx context.Context, result *models.ScaResult) error {
	_, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		INSERT INTO sca_result (`+scaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.ID, result.IdentityVerificationID, result.ProcessID,
		result.PresenceCheckResult, result.OtpResult, result.Result,
		result.CreatedAt, result.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert sca result: %w", err)
	}
	return nil
}

func (s *pgScaResults) Update(ctx context.Context, result *models.ScaResult) error {
	res, err := (*Postgres)(s).execer(ctx).ExecContext(ctx, `
		UPDATE sca_result
		SET presence_check_result = $2, otp_result = $3, result = $4, updated_at = $5
		WHERE id = $1`,
		result.ID, result.PresenceCheckResult, result.OtpResult, result.Result, result.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update sca result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "sca result not found")
	}
	return nil
}

func (s *pgScaResults) FindLatestByIdentityVerification(ctx context.Context, ivID string) (*models.ScaResult, error) {
	var r models.ScaResult
	err := (*Postgres)(s).execer(ctx).QueryRowContext(ctx, `
		SELECT `+scaColumns+` FROM sca_result
		WHERE identity_verification_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, ivID).
		Scan(&r.ID, &r.IdentityVerificationID, &r.ProcessID,
			&r.PresenceCheckResult, &r.OtpResult, &r.Result, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound("sca result", err)
	}
	return &r, nil
}
