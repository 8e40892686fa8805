package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"

	"github.com/tenantdesk/internal/config"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
	"github.com/tenantdesk/internal/storage"
)

// devSessionTTL — в -dev сессии живут, пока жив процесс.
const devSessionTTL = 365 * 24 * time.Hour

type userSeeder interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u *model.User) error
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

func devUsers() []model.User {
	return []model.User{
		{DisplayName: "Building Manager", Phone: "+7 900 000-00-01", Role: model.RoleAdmin},
		{DisplayName: "Anna Petrova", Phone: "+7 900 000-01-04", Role: model.RoleTenant, Room: &model.Room{ID: 104, Number: "104", Building: "A"}},
		{DisplayName: "Ivan Sidorov", Phone: "+7 900 000-02-12", Role: model.RoleTenant, Room: &model.Room{ID: 212, Number: "212", Building: "B"}},
	}
}

// devSessionID — фиксированный id сессии для пользователя в -dev.
func devSessionID(userID int64) string {
	return "dev-" + strconv.FormatInt(userID, 10)
}

// seedDev заводит демо-пользователей в пустой базе и сессии dev-<id> для всех пользователей.
func seedDev(ctx context.Context, users userSeeder, sessions storage.SessionStore) error {
	n, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		for _, u := range devUsers() {
			u := u
			if err := users.Create(ctx, &u); err != nil {
				return err
			}
		}
	}
	for _, role := range []model.Role{model.RoleAdmin, model.RoleTenant} {
		list, err := users.ListByRole(ctx, role)
		if err != nil {
			return err
		}
		for _, u := range list {
			s := &model.Session{ID: devSessionID(u.ID), UserID: u.ID, Role: u.Role}
			if err := sessions.PutSession(ctx, s, devSessionTTL); err != nil {
				return err
			}
			logger.Infof("dev session %s -> user=%d %s (%s)", s.ID, u.ID, u.DisplayName, u.Role)
		}
	}
	return nil
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5433
		user     = "tenantdesk"
		password = "tenantdesk_dev"
		database = "tenantdesk"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "tenantdesk-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable", user, password, port, database)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
