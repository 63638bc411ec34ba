package postgres

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuki5321/AIsindan/internal/apperrors"
	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/symptomindex"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Store implements symptomindex.Store and the symptom listing on Postgres.
type Store struct {
	db      Querier
	dialect goqu.DialectWrapper
	close   func()
}

// New wraps an open pool. Close closes the pool.
func New(pool *pgxpool.Pool) *Store {
	s := NewWithQuerier(pool)
	s.close = pool.Close
	return s
}

// NewWithQuerier builds a store over any Querier.
func NewWithQuerier(db Querier) *Store {
	return &Store{db: db, dialect: goqu.Dialect("postgres")}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool when the store owns one.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

func text(col string) exp.SQLFunctionExpression {
	return goqu.COALESCE(goqu.Cast(goqu.I(col), "TEXT"), "")
}

func (s *Store) conditionsQuery() (string, []any, error) {
	return s.dialect.From("diseases").Prepared(true).
		Select(
			goqu.Cast(goqu.I("id"), "TEXT").As("id"),
			text("name").As("name"),
			text("name_en").As("name_en"),
			text("overview").As("overview"),
		).
		Order(goqu.I("name_en").Asc()).
		ToSQL()
}

func (s *Store) associationsQuery() (string, []any, error) {
	return s.dialect.From(goqu.T("disease_symptoms").As("ds")).Prepared(true).
		Select(
			goqu.Cast(goqu.I("ds.disease_id"), "TEXT").As("disease_id"),
			goqu.COALESCE(goqu.Func("NULLIF", goqu.I("s.name_en"), ""), goqu.I("s.name")).As("symptom"),
			goqu.Cast(goqu.COALESCE(goqu.I("ds.relevance_score"), 1), "DOUBLE PRECISION").As("relevance"),
		).
		Join(
			goqu.T("symptoms").As("s"),
			goqu.On(goqu.I("s.id").Eq(goqu.I("ds.symptom_id"))),
		).
		Order(goqu.I("ds.disease_id").Asc(), goqu.I("s.name").Asc()).
		ToSQL()
}

func (s *Store) symptomsQuery() (string, []any, error) {
	return s.dialect.From("symptoms").Prepared(true).
		Select(
			goqu.Cast(goqu.I("id"), "TEXT").As("id"),
			text("name").As("name"),
			text("name_en").As("name_en"),
			text("category_id").As("category_id"),
		).
		Order(goqu.I("name").Asc()).
		ToSQL()
}

// ListConditions returns every disease row.
func (s *Store) ListConditions(ctx context.Context) ([]domain.Condition, error) {
	query, args, err := s.conditionsQuery()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build conditions query", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list conditions", err)
	}
	defer rows.Close()

	var conditions []domain.Condition
	for rows.Next() {
		var c domain.Condition
		if err := rows.Scan(&c.ID, &c.Name, &c.NameEN, &c.Overview); err != nil {
			return nil, apperrors.NewInternalError("failed to scan condition", err)
		}
		conditions = append(conditions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list conditions", err)
	}
	return conditions, nil
}

// ListAssociations returns every disease/symptom link with its relevance.
func (s *Store) ListAssociations(ctx context.Context) ([]symptomindex.Association, error) {
	query, args, err := s.associationsQuery()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build associations query", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list disease symptoms", err)
	}
	defer rows.Close()

	var out []symptomindex.Association
	for rows.Next() {
		var a symptomindex.Association
		if err := rows.Scan(&a.ConditionID, &a.Symptom, &a.Relevance); err != nil {
			return nil, apperrors.NewInternalError("failed to scan disease symptom", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list disease symptoms", err)
	}
	return out, nil
}

// ListSymptoms returns the symptom catalogue ordered by name.
func (s *Store) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	query, args, err := s.symptomsQuery()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build symptoms query", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list symptoms", err)
	}
	defer rows.Close()

	var out []domain.Symptom
	for rows.Next() {
		var sym domain.Symptom
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.NameEN, &sym.CategoryID); err != nil {
			return nil, apperrors.NewInternalError("failed to scan symptom", err)
		}
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list symptoms", err)
	}
	return out, nil
}
