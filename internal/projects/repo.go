package projects

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const projectColumns = `
id, user_id, name, description, storage_path, entry_file, size, visit_count,
status, created_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.StoragePath,
		&p.EntryFile, &p.Size, &p.VisitCount, &p.Status, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the project record. The per-owner unique constraint on
// (user_id, name) decides the winner between concurrent uploads of the same
// name; the loser gets ErrNameTaken.
func (r *Repo) Create(ctx context.Context, userID, name, description, storagePath, entryFile string, size int64) (*Project, error) {
	const q = `
insert into projects (user_id, name, description, storage_path, entry_file, size)
values ($1, $2, $3, $4, $5, $6)
returning ` + projectColumns + `;`

	p, err := scanProject(r.db.QueryRow(ctx, q, userID, name, description, storagePath, entryFile, size))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	return p, nil
}

// ListByOwner returns the owner's projects, newest first, optionally filtered
// by a substring match on name or description.
func (r *Repo) ListByOwner(ctx context.Context, userID, search string) ([]Project, error) {
	const q = `
select ` + projectColumns + `
from projects
where user_id = $1
  and ($2 = '' or name ilike '%' || $2 || '%' or description ilike '%' || $2 || '%')
order by created_at desc;`

	rows, err := r.db.Query(ctx, q, userID, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Project, 0, 16)
	for rows.Next() {
		var p Project
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Name, &p.Description, &p.StoragePath,
			&p.EntryFile, &p.Size, &p.VisitCount, &p.Status, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ByIDForOwner fetches a project only when it belongs to userID.
func (r *Repo) ByIDForOwner(ctx context.Context, id, userID string) (*Project, error) {
	const q = `select ` + projectColumns + ` from projects where id = $1 and user_id = $2;`
	return scanProject(r.db.QueryRow(ctx, q, id, userID))
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `delete from projects where id = $1;`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SiteLookup resolves (owner username, project name) for the serving path.
// Both misses map to ErrNotFound; the caller cannot tell a missing user from
// a missing project, which is fine for a 404.
func (r *Repo) SiteLookup(ctx context.Context, username, projectName string) (*SiteRecord, error) {
	const q = `
select p.id, p.user_id, p.storage_path, p.entry_file, p.status
from projects p
join users u on u.id = p.user_id
where u.username = $1 and p.name = $2;`

	var rec SiteRecord
	err := r.db.QueryRow(ctx, q, username, projectName).Scan(
		&rec.ProjectID, &rec.OwnerID, &rec.StoragePath, &rec.EntryFile, &rec.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AddVisit bumps the visit counter with a single atomic update; no
// read-modify-write from the application side.
func (r *Repo) AddVisit(ctx context.Context, projectID string) error {
	_, err := r.db.Exec(ctx, `update projects set visit_count = visit_count + 1 where id = $1;`, projectID)
	return err
}

func (r *Repo) SetStatus(ctx context.Context, id, status string) (*Project, error) {
	const q = `
update projects set status = $2 where id = $1
returning ` + projectColumns + `;`
	return scanProject(r.db.QueryRow(ctx, q, id, status))
}

// OwnerUsername resolves a project's owner name, used for cache invalidation
// after administrative changes.
func (r *Repo) OwnerUsername(ctx context.Context, projectID string) (string, error) {
	const q = `
select u.username
from projects p join users u on u.id = p.user_id
where p.id = $1;`
	var username string
	err := r.db.QueryRow(ctx, q, projectID).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return username, err
}

// ByOwner lists projects for cascade deletion of a user.
func (r *Repo) ByOwner(ctx context.Context, userID string) ([]Project, error) {
	return r.ListByOwner(ctx, userID, "")
}
