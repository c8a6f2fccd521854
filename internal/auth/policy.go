package auth

import (
	"context"
	"log/slog"

	"github.com/taskloop/authd/internal/model"
)

// Policy decides which identities may use the administrative surface and
// which accounts are protected from deletion.
type Policy interface {
	IsAdmin(u *model.User) bool
}

// RolePolicy grants administrative access based on the role attribute stored
// on the account. The configured allow-list of addresses is consumed only by
// SeedAdmins at bootstrap; no call site compares email literals.
type RolePolicy struct{}

func (RolePolicy) IsAdmin(u *model.User) bool {
	return u != nil && u.Role == model.RoleAdmin
}

// AdminSeeder is the store capability SeedAdmins needs.
type AdminSeeder interface {
	PromoteByEmail(ctx context.Context, email string) (bool, error)
}

// SeedAdmins promotes every account whose email appears on the configured
// allow-list to the administrator role. Addresses with no matching account
// are logged and skipped; they gain the role when created later via
// `authd admin create`.
func SeedAdmins(ctx context.Context, s AdminSeeder, emails []string, logger *slog.Logger) error {
	for _, email := range emails {
		promoted, err := s.PromoteByEmail(ctx, email)
		if err != nil {
			return err
		}
		if promoted {
			logger.Info("seeded admin role", "email", email)
		} else {
			logger.Warn("admin allow-list address has no account yet", "email", email)
		}
	}
	return nil
}
