package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"hotel-ops-backend/internal/domain"
	repoInterface "hotel-ops-backend/internal/repository/interface"
)

// UserRepository - PostgreSQL реализация
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создает новый репозиторий операторов
func NewUserRepository(db *sqlx.DB) repoInterface.UserRepository {
	return &UserRepository{db: db}
}

// CreateUser создает пользователя
func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
        INSERT INTO users (id, hotel_id, email, password_hash, role, created_at, updated_at)
        VALUES (gen_random_uuid(), $1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `

	return r.db.QueryRowContext(ctx, query,
		user.HotelID,
		user.Email,
		user.PasswordHash,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

// FindUserByEmail находит пользователя по email
func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User

	query := `
        SELECT id, hotel_id, email, password_hash, role, created_at, updated_at
        FROM users
        WHERE email = $1
    `

	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, notFound(err, "user", email)
	}

	return &user, nil
}

// FindUserByID находит пользователя по ID
func (r *UserRepository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := checkID("user", id); err != nil {
		return nil, err
	}
	var user domain.User

	query := `
        SELECT id, hotel_id, email, password_hash, role, created_at, updated_at
        FROM users
        WHERE id = $1
    `

	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, notFound(err, "user", id)
	}

	return &user, nil
}
