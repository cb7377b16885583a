package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/user"
)

const userColumns = `id, nim, full_name, email, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func normalizeUser(usr user.User) user.User {
	usr.CreatedAt = usr.CreatedAt.UTC()
	usr.UpdatedAt = usr.UpdatedAt.UTC()
	if usr.LastLogin.Valid {
		usr.LastLogin.Time = usr.LastLogin.Time.UTC()
	}
	return usr
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, nim, email string, excludedUsers ...user.User) error {
	q := `SELECT nim, email FROM users WHERE (nim = ? OR LOWER(email) = LOWER(?))`
	args := []interface{}{nim, email}
	for _, usr := range excludedUsers {
		q += ` AND id <> ?`
		args = append(args, usr.ID)
	}
	q += ` LIMIT 1`

	var found struct {
		NIM   string `db:"nim"`
		Email string `db:"email"`
	}
	if err := repo.db.GetContext(ctx, &found, repo.db.Rebind(q), args...); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking uniqueness")
	}
	if found.NIM == nim {
		return user.ErrNIMExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := repo.db.Rebind(`
		INSERT INTO users (nim, full_name, email, password_hash, created_at, updated_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := repo.db.QueryRowxContext(ctx, q,
		usr.NIM, usr.FullName, usr.Email, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, usr.LastLogin,
	).Scan(&usr.ID); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE `
	var args []interface{}
	switch {
	case filter.ID != 0:
		q += `id = ?`
		args = append(args, filter.ID)
	case filter.NIM != "":
		q += `nim = ?`
		args = append(args, filter.NIM)
	case filter.NIMOrEmail != "":
		q += `(nim = ? OR LOWER(email) = LOWER(?))`
		args = append(args, filter.NIMOrEmail, filter.NIMOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := repo.db.GetContext(ctx, &usr, repo.db.Rebind(q+` LIMIT 1`), args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return normalizeUser(usr), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := repo.db.Rebind(`
		UPDATE users
		SET nim = ?, full_name = ?, email = ?, password_hash = ?, updated_at = ?, last_login = ?
		WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q,
		usr.NIM, usr.FullName, usr.Email, usr.PasswordHash, usr.UpdatedAt, usr.LastLogin, usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return normalizeUser(usr), nil
}

func (repo *userRepository) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	q := repo.db.Rebind(`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`)
	if _, err := repo.db.ExecContext(ctx, q, jti, expiresAt); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return nil
}

func (repo *userRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`), jti); err != nil {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return count > 0, nil
}

func (repo *userRepository) PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM revoked_tokens WHERE expires_at < ?`), before)
	if err != nil {
		return 0, errors.Wrap(err, "purging revoked tokens")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "counting purged tokens")
}
