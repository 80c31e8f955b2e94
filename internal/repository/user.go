package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/roastery/cafemart/internal/models"
	"github.com/roastery/cafemart/internal/repository/postgres"
)

const (
	selectUserByIDQuery = `
						SELECT id, login, role FROM users
						WHERE id = $1
`
	selectAdminIDsQuery = `
						SELECT id FROM users
						WHERE role = 'admin'
`
)

// UserRepository implements UserRepository interface
type UserRepository struct {
	db *postgres.DB
}

// NewUserRepository creates new UserRepository instance
func NewUserRepository(db *postgres.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUserByID returns user by id
func (ur *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user := models.User{}
	err := ur.db.QueryRow(ctx, selectUserByIDQuery, id).Scan(&user.ID, &user.Login, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

// GetAdminIDs returns ids of all administrators
func (ur *UserRepository) GetAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := ur.db.Query(ctx, selectAdminIDsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
