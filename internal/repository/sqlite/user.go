package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/codelove/codelove/internal/apperror"
	"github.com/codelove/codelove/internal/model"
	"github.com/codelove/codelove/internal/repository"
)

// UserDB implements repository.UserRepository.
type UserDB struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, external_id, email, handle, display_name, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.Handle,
		&u.DisplayName,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user record, generating ID and timestamps.
//
// A UNIQUE violation on email or handle comes back as apperror.Conflict with
// the field set. This is the system's single authoritative serialization
// point for uniqueness: two registrations can both pass the advisory
// availability check, but only one insert wins.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, external_id, email, handle, display_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Handle,
		user.DisplayName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// FindByID retrieves a user by internal ID.
func (u *UserDB) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// FindByEmail retrieves a user by email, the cross-system join key.
func (u *UserDB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return user, nil
}

// FindByHandle retrieves a user by handle.
func (u *UserDB) FindByHandle(ctx context.Context, handle string) (*model.User, error) {
	user, err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE handle = ?`, handle,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", handle)
		}
		return nil, fmt.Errorf("sqlite: getting user by handle %s: %w", handle, err)
	}
	return user, nil
}

// FindByEmailOrHandle returns the first record matching either key.
// Registration uses this to detect both conflict kinds in one query; the
// caller inspects the returned record to decide which field collided.
func (u *UserDB) FindByEmailOrHandle(ctx context.Context, email, handle string) (*model.User, error) {
	user, err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? OR handle = ? LIMIT 1`,
		email, handle,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email/handle: %w", err)
	}
	return user, nil
}

// SetExternalID links a record to an external identity (the one-time
// migration/backfill case). The link is write-once:
//   - already linked to the same identity → no-op, success
//   - already linked to a different identity → conflict, never overwritten
func (u *UserDB) SetExternalID(ctx context.Context, id, externalID string) error {
	if externalID == "" {
		return apperror.ValidationFailed("externalId", "external id must not be empty")
	}

	current, err := u.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current.ExternalID == externalID {
		return nil
	}
	if current.ExternalID != "" {
		return apperror.Conflict("externalId", "user already linked to a different external identity")
	}

	// Guard against a concurrent link by updating only the unlinked row.
	res, err := u.conn.ExecContext(ctx,
		`UPDATE users SET external_id = ?, updated_at = ? WHERE id = ? AND external_id = ''`,
		externalID, time.Now(), id,
	)
	if err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: linking user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: linking user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.Conflict("externalId", "user already linked to a different external identity")
	}

	return nil
}
