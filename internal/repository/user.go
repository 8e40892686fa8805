package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

var ErrNotFound = errors.New("not found")

// userCols — список колонок для SELECT (порядок соответствует scanUser).
const userCols = `id, display_name, avatar_url, phone, role, room_id, room_number, building, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(s interface{ Scan(dest ...any) error }, u *model.User) error {
	var (
		roomID           *int64
		roomNo, building *string
	)
	if err := s.Scan(&u.ID, &u.DisplayName, &u.AvatarURL, &u.Phone, &u.Role, &roomID, &roomNo, &building, &u.CreatedAt); err != nil {
		return err
	}
	u.Room = nil
	if roomNo != nil && *roomNo != "" {
		u.Room = &model.Room{Number: *roomNo}
		if roomID != nil {
			u.Room.ID = *roomID
		}
		if building != nil {
			u.Room.Building = *building
		}
	}
	return nil
}

// Create вставляет пользователя; id и created_at заполняются из БД.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	var (
		roomID           *int64
		roomNo, building *string
	)
	if u.Room != nil {
		roomNo, building = &u.Room.Number, &u.Room.Building
		if u.Room.ID != 0 {
			roomID = &u.Room.ID
		}
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (display_name, avatar_url, phone, role, room_id, room_number, building)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		u.DisplayName, u.AvatarURL, u.Phone, u.Role, roomID, roomNo, building,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}

// ListByRole — все пользователи роли, по имени.
func (r *UserRepository) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	defer logger.DeferLogDuration("user.ListByRole", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY display_name, id`, role)
	if err != nil {
		return nil, fmt.Errorf("userRepo.ListByRole query: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("userRepo.ListByRole scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.ListByRole rows: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("userRepo.Count: %w", err)
	}
	return n, nil
}
