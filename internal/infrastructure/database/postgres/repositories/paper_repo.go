// Package repositories holds the PostgreSQL implementations of the domain
// repository interfaces.
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/CureAnalytics/internal/domain/paper"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

const paperColumns = `id, title, authors, abstract, full_text, journal, published_date,
	doi, pmid, url, citations_count, keywords, analysis, status, failure_reason,
	created_at, updated_at, version`

// PaperRepository stores papers in the papers table.  Analyses live in a
// JSONB column, which also backs the compound search.
type PaperRepository struct {
	db     DBTX
	logger logging.Logger
}

func NewPaperRepository(db DBTX, log logging.Logger) *PaperRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &PaperRepository{db: db, logger: log.Named("paper_repo")}
}

// Save upserts p by ID.  A DOI already owned by another paper yields
// ErrCodePaperAlreadyExists.
func (r *PaperRepository) Save(ctx context.Context, p *paper.Paper) error {
	analysis, err := encodeAnalysis(p.Analysis)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO papers (`+paperColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			authors = EXCLUDED.authors,
			abstract = EXCLUDED.abstract,
			full_text = EXCLUDED.full_text,
			journal = EXCLUDED.journal,
			published_date = EXCLUDED.published_date,
			doi = EXCLUDED.doi,
			pmid = EXCLUDED.pmid,
			url = EXCLUDED.url,
			citations_count = EXCLUDED.citations_count,
			keywords = EXCLUDED.keywords,
			analysis = EXCLUDED.analysis,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version`,
		string(p.ID), p.Title, nonNil(p.Authors), p.Abstract, p.FullText, p.Journal, p.PublishedDate,
		p.DOI, p.PMID, p.URL, p.CitationsCount, nonNil(p.Keywords), analysis, string(p.Status), p.FailureReason,
		p.CreatedAt, p.UpdatedAt, p.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.Wrapf(err, errors.ErrCodePaperAlreadyExists, "paper with DOI %q already exists", p.DOI)
		}
		r.logger.Error("save paper failed", logging.String("paper_id", string(p.ID)), logging.Err(err))
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to save paper")
	}
	return nil
}

func (r *PaperRepository) FindByID(ctx context.Context, id common.ID) (*paper.Paper, error) {
	p, err := scanPaper(r.db.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = $1`, string(id)))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Newf(errors.CodePaperNotFound, "paper %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load paper")
	}
	return p, nil
}

// FindByDOI matches case-insensitively.
func (r *PaperRepository) FindByDOI(ctx context.Context, doi string) (*paper.Paper, error) {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return nil, errors.InvalidParam("doi is required")
	}
	p, err := scanPaper(r.db.QueryRow(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE doi <> '' AND LOWER(doi) = LOWER($1)`, doi))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Newf(errors.CodePaperNotFound, "no paper with DOI %q", doi)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load paper by DOI")
	}
	return p, nil
}

func (r *PaperRepository) ListByStatus(ctx context.Context, status pharma.ProcessingStatus, limit int) ([]*paper.Paper, error) {
	if limit <= 0 {
		limit = common.DefaultPageSize
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE status = $1 ORDER BY updated_at ASC, id ASC LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list papers")
	}
	return collectPapers(rows)
}

func (r *PaperRepository) UpdateAnalysis(ctx context.Context, id common.ID, a *pharma.PharmaceuticalAnalysis, status pharma.ProcessingStatus) error {
	analysis, err := encodeAnalysis(a)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE papers
		SET analysis = $2, status = $3, failure_reason = '', updated_at = NOW(), version = version + 1
		WHERE id = $1`,
		string(id), analysis, string(status))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update analysis")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.CodePaperNotFound, "paper %s not found", id)
	}
	return nil
}

func (r *PaperRepository) Claim(ctx context.Context, id common.ID, staleAfter time.Duration) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE papers
		SET status = 'processing', failure_reason = '', updated_at = NOW()
		WHERE id = $1
		  AND (status <> 'processing' OR updated_at < NOW() - make_interval(secs => $2))`,
		string(id), staleAfter.Seconds())
	if err != nil {
		return false, errors.Wrap(err, errors.CodeDatabaseError, "failed to claim paper")
	}
	return tag.RowsAffected() == 1, nil
}

// Index is a no-op: analyzed papers are searchable as soon as they are saved.
func (r *PaperRepository) Index(context.Context, pharma.PaperDTO) error { return nil }

// SearchByCompound pages through completed papers whose analysis names
// compound, ordered by pharmaceutical score.
func (r *PaperRepository) SearchByCompound(ctx context.Context, compound string, offset, limit int) ([]pharma.PaperDTO, int, error) {
	const match = `
		status = 'completed' AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(analysis->'drug_compounds') c
			WHERE LOWER(c->>'name') = LOWER($1))`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM papers WHERE `+match, compound).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeSearchFailed, "count compound matches")
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+paperColumns+` FROM papers WHERE `+match+`
		ORDER BY (analysis->>'pharmaceutical_score')::float DESC, id
		OFFSET $2 LIMIT $3`, compound, offset, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeSearchFailed, "search by compound")
	}
	papers, err := collectPapers(rows)
	if err != nil {
		return nil, 0, err
	}
	out := make([]pharma.PaperDTO, len(papers))
	for i, p := range papers {
		out[i] = p.ToDTO()
	}
	return out, total, nil
}

func collectPapers(rows pgx.Rows) ([]*paper.Paper, error) {
	defer rows.Close()
	out := make([]*paper.Paper, 0)
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan paper")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate papers")
	}
	return out, nil
}

func scanPaper(row pgx.Row) (*paper.Paper, error) {
	var (
		p        paper.Paper
		id       string
		status   string
		analysis []byte
	)
	err := row.Scan(
		&id, &p.Title, &p.Authors, &p.Abstract, &p.FullText, &p.Journal, &p.PublishedDate,
		&p.DOI, &p.PMID, &p.URL, &p.CitationsCount, &p.Keywords, &analysis, &status, &p.FailureReason,
		&p.CreatedAt, &p.UpdatedAt, &p.Version,
	)
	if err != nil {
		return nil, err
	}
	p.ID = common.ID(id)
	p.Status = pharma.ProcessingStatus(status)
	if len(analysis) > 0 {
		var a pharma.PharmaceuticalAnalysis
		if err := json.Unmarshal(analysis, &a); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode stored analysis")
		}
		p.Analysis = &a
	}
	return &p, nil
}

func encodeAnalysis(a *pharma.PharmaceuticalAnalysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode analysis")
	}
	return b, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ paper.Repository = (*PaperRepository)(nil)
