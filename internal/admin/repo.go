package admin

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitehive/sitehive-backend/internal/projects"
	"github.com/sitehive/sitehive-backend/internal/users"
)

type Repo struct {
	db       *pgxpool.Pool
	projects *projects.Repo
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db, projects: projects.NewRepo(db)}
}

func (r *Repo) Stats(ctx context.Context) (*Stats, error) {
	const q = `
select
  (select count(*) from users),
  (select count(*) from projects),
  coalesce((select sum(visit_count) from projects), 0),
  coalesce((select sum(size) from projects), 0),
  (select count(*) from users where last_active_at >= date_trunc('day', now())),
  (select count(*) from users where last_active_at >= now() - interval '5 minutes');`

	var s Stats
	err := r.db.QueryRow(ctx, q).Scan(
		&s.TotalUsers, &s.TotalProjects, &s.TotalVisits,
		&s.TotalStorageBytes, &s.ActiveToday, &s.ActiveNow,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Sort columns are whitelisted; anything else falls back to creation time.
// User input never reaches the SQL text directly.
var userSortColumns = map[string]string{
	"username":     "u.username",
	"createdAt":    "u.created_at",
	"lastLoginAt":  "u.last_login_at",
	"projectCount": "count(p.id)",
	"totalSize":    "coalesce(sum(p.size), 0)",
}

var projectSortColumns = map[string]string{
	"name":       "p.name",
	"createdAt":  "p.created_at",
	"size":       "p.size",
	"visitCount": "p.visit_count",
	"owner":      "u.username",
}

func orderClause(columns map[string]string, sortBy, order, fallback string) string {
	col, ok := columns[sortBy]
	if !ok {
		col = fallback
	}
	dir := "desc"
	if order == "asc" {
		dir = "asc"
	}
	return col + " " + dir
}

func (r *Repo) ListUsers(ctx context.Context, search, sortBy, order string) ([]UserRow, error) {
	q := `
select u.id, u.username, u.role, u.status,
       count(p.id), coalesce(sum(p.size), 0),
       u.last_login_at, u.last_active_at, u.created_at
from users u
left join projects p on p.user_id = u.id
where ($1 = '' or u.username ilike '%' || $1 || '%')
group by u.id
order by ` + orderClause(userSortColumns, sortBy, order, "u.created_at") + `;`

	rows, err := r.db.Query(ctx, q, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]UserRow, 0, 16)
	for rows.Next() {
		var u UserRow
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Role, &u.Status,
			&u.ProjectCount, &u.TotalSize,
			&u.LastLoginAt, &u.LastActiveAt, &u.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) UserByID(ctx context.Context, id string) (*users.User, error) {
	const q = `
select id, username, role, status, created_at
from users where id = $1;`

	var u users.User
	err := r.db.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.Role, &u.Status, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) SetUserStatus(ctx context.Context, id, status string) error {
	ct, err := r.db.Exec(ctx, `update users set status = $2 where id = $1;`, id, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *Repo) ResetPassword(ctx context.Context, id, passwordHash string) error {
	const q = `
update users
set password_hash = $2, failed_login_attempts = 0, locked_until = null
where id = $1;`
	ct, err := r.db.Exec(ctx, q, id, passwordHash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *Repo) ProjectsByOwner(ctx context.Context, userID string) ([]projects.Project, error) {
	return r.projects.ByOwner(ctx, userID)
}

// DeleteUserCascade removes the account and everything hanging off it in a
// single transaction. Callers are expected to have removed on-disk storage
// already.
func (r *Repo) DeleteUserCascade(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `delete from login_logs where user_id = $1;`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from projects where user_id = $1;`, id); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `delete from users where id = $1;`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *Repo) ListProjects(ctx context.Context, search, sortBy, order string) ([]ProjectRow, error) {
	q := `
select p.id, p.user_id, u.username, p.name, p.description, p.entry_file,
       p.size, p.visit_count, p.status, p.created_at
from projects p
join users u on u.id = p.user_id
where ($1 = ''
   or p.name ilike '%' || $1 || '%'
   or p.description ilike '%' || $1 || '%'
   or u.username ilike '%' || $1 || '%')
order by ` + orderClause(projectSortColumns, sortBy, order, "p.created_at") + `;`

	rows, err := r.db.Query(ctx, q, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ProjectRow, 0, 16)
	for rows.Next() {
		var p ProjectRow
		if err := rows.Scan(
			&p.ID, &p.OwnerID, &p.OwnerUsername, &p.Name, &p.Description,
			&p.EntryFile, &p.Size, &p.VisitCount, &p.Status, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) SetProjectStatus(ctx context.Context, id, status string) (*projects.Project, error) {
	return r.projects.SetStatus(ctx, id, status)
}

func (r *Repo) ProjectOwnerUsername(ctx context.Context, projectID string) (string, error) {
	return r.projects.OwnerUsername(ctx, projectID)
}
