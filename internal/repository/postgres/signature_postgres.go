package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"signflow/internal/model"
	"signflow/internal/repository"
)

const signatureColumns = `id, envelope_id, title, template_id, document_filename, document_path,
		document_size, document_content_type, status, status_at, created_at`

const signerColumns = `id, signature_id, signing_order, full_name, email, status, status_at, status_details`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// SignaturePostgres is a PostgreSQL implementation of repository.SignatureRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type SignaturePostgres struct {
	db *sql.DB
}

// NewSignaturePostgres creates a new SignaturePostgres repository.
func NewSignaturePostgres(db *sql.DB) *SignaturePostgres {
	return &SignaturePostgres{db: db}
}

var (
	_ repository.SignatureRepository = (*SignaturePostgres)(nil)
	_ repository.SignatureStore      = (*txStore)(nil)
)

// Create inserts the signature row and its signer rows in one transaction.
func (r *SignaturePostgres) Create(ctx context.Context, sig *model.Signature) (*model.Signature, error) {
	const qSignature = `
		INSERT INTO signatures (id, title, template_id, document_filename, document_path,
			document_size, document_content_type, status, status_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	const qSigner = `
		INSERT INTO signers (id, signature_id, signing_order, full_name, email, status, status_at, status_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, qSignature,
			sig.ID,
			sig.Title,
			sig.TemplateID,
			sig.Document.Filename,
			sig.Document.StoragePath,
			sig.Document.Size,
			sig.Document.ContentType,
			sig.Status,
			sig.StatusAt,
			sig.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert signature: %w", err)
		}
		for _, s := range sig.Signers {
			if _, err := tx.ExecContext(ctx, qSigner,
				s.ID,
				sig.ID,
				s.SigningOrder,
				s.FullName,
				s.Email,
				s.Status,
				s.StatusAt,
				s.StatusDetails,
			); err != nil {
				return fmt.Errorf("insert signer %d: %w", s.SigningOrder, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := *sig
	out.Signers = append([]model.Signer(nil), sig.Signers...)
	return &out, nil
}

// FindByID fetches a signature and its signers.
func (r *SignaturePostgres) FindByID(ctx context.Context, id string) (*model.Signature, error) {
	return loadSignature(ctx, r.db, `SELECT `+signatureColumns+` FROM signatures WHERE id = $1`, id, false)
}

// FindByEnvelopeID fetches the signature registered under envelopeID.
func (r *SignaturePostgres) FindByEnvelopeID(ctx context.Context, envelopeID string) (*model.Signature, error) {
	return loadSignature(ctx, r.db, `SELECT `+signatureColumns+` FROM signatures WHERE envelope_id = $1`, envelopeID, false)
}

// FindSignerByID fetches a single signer row.
func (r *SignaturePostgres) FindSignerByID(ctx context.Context, id string) (*model.Signer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+signerColumns+` FROM signers WHERE id = $1`, id)
	s, err := scanSigner(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("signer %s: %w", id, repository.ErrNotFound)
		}
		return nil, err
	}
	return s, nil
}

// List returns signatures using LIMIT/OFFSET pagination and a total count.
func (r *SignaturePostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Signature], error) {
	const qCount = `SELECT COUNT(*) FROM signatures`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + signatureColumns + `
		FROM signatures
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Signature, 0)
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *sig)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Signature]{
		Items: items,
		Total: total,
	}, nil
}

// SetEnvelopeID stores the envelope id only if none was recorded before.
func (r *SignaturePostgres) SetEnvelopeID(ctx context.Context, id, envelopeID string) error {
	const q = `UPDATE signatures SET envelope_id = $2 WHERE id = $1 AND envelope_id IS NULL`
	res, err := r.db.ExecContext(ctx, q, id, envelopeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	const qExists = `SELECT EXISTS (SELECT 1 FROM signatures WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, qExists, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("signature %s: %w", id, repository.ErrNotFound)
	}
	return fmt.Errorf("signature %s: %w", id, repository.ErrEnvelopeAlreadySet)
}

// InTx runs fn in a transaction, committing only when fn succeeds.
func (r *SignaturePostgres) InTx(ctx context.Context, fn func(ctx context.Context, store repository.SignatureStore) error) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

func (r *SignaturePostgres) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

// LoadForUpdate locks the signature row and its signer rows until the transaction ends.
func (s *txStore) LoadForUpdate(ctx context.Context, id string) (*model.Signature, error) {
	return loadSignature(ctx, s.tx, `SELECT `+signatureColumns+` FROM signatures WHERE id = $1 FOR UPDATE`, id, true)
}

func (s *txStore) SaveSignature(ctx context.Context, sig *model.Signature) error {
	const q = `
		UPDATE signatures
		SET status = $2, status_at = $3, document_filename = $4, document_path = $5,
			document_size = $6, document_content_type = $7
		WHERE id = $1
	`
	res, err := s.tx.ExecContext(ctx, q,
		sig.ID,
		sig.Status,
		sig.StatusAt,
		sig.Document.Filename,
		sig.Document.StoragePath,
		sig.Document.Size,
		sig.Document.ContentType,
	)
	if err != nil {
		return fmt.Errorf("update signature: %w", err)
	}
	return expectOne(res, "signature", sig.ID)
}

func (s *txStore) SaveSigner(ctx context.Context, sg *model.Signer) error {
	const q = `UPDATE signers SET status = $2, status_at = $3, status_details = $4 WHERE id = $1`
	res, err := s.tx.ExecContext(ctx, q, sg.ID, sg.Status, sg.StatusAt, sg.StatusDetails)
	if err != nil {
		return fmt.Errorf("update signer: %w", err)
	}
	return expectOne(res, "signer", sg.ID)
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, repository.ErrNotFound)
	}
	return nil
}

func loadSignature(ctx context.Context, q querier, query, arg string, lock bool) (*model.Signature, error) {
	sig, err := scanSignature(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("signature %s: %w", arg, repository.ErrNotFound)
		}
		return nil, err
	}

	qSigners := `SELECT ` + signerColumns + ` FROM signers WHERE signature_id = $1 ORDER BY signing_order`
	if lock {
		qSigners += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, qSigners, sig.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		sig.Signers = append(sig.Signers, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sig, nil
}

func scanSignature(row scanner) (*model.Signature, error) {
	var (
		sig        model.Signature
		envelopeID sql.NullString
	)
	if err := row.Scan(
		&sig.ID,
		&envelopeID,
		&sig.Title,
		&sig.TemplateID,
		&sig.Document.Filename,
		&sig.Document.StoragePath,
		&sig.Document.Size,
		&sig.Document.ContentType,
		&sig.Status,
		&sig.StatusAt,
		&sig.CreatedAt,
	); err != nil {
		return nil, err
	}
	sig.EnvelopeID = envelopeID.String
	return &sig, nil
}

func scanSigner(row scanner) (*model.Signer, error) {
	var s model.Signer
	if err := row.Scan(
		&s.ID,
		&s.SignatureID,
		&s.SigningOrder,
		&s.FullName,
		&s.Email,
		&s.Status,
		&s.StatusAt,
		&s.StatusDetails,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
