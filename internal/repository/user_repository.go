package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/bookmyseat/internal/model"
	"github.com/iliyamo/bookmyseat/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,roll_number,password_hash,role,is_active,created_at,updated_at"

// Create hashes password and inserts the user, returning its ID.  Email is
// lower-cased and the roll number normalised before insert.
func (r *UserRepo) Create(ctx context.Context, name, email, roll, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	roll = model.NormalizeRoll(roll)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, roll_number, password_hash, role) VALUES (?,?,?,?,?)",
		strings.TrimSpace(name), email, roll, hash, role)
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(err.Error(), "roll_number") {
				return 0, ErrRollExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.RollNumber, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, model.ErrUserNotFound
	}
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, "email=?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "id=?", id)
}

// GetByRoll fetches a user by roll number.
func (r *UserRepo) GetByRoll(ctx context.Context, roll string) (model.User, error) {
	return r.getOne(ctx, "roll_number=?", model.NormalizeRoll(roll))
}
