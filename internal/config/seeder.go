package config

import (
	"context"

	"go.uber.org/zap"
)

// SuperAdminEnsurer creates the first superadmin account when none exists
type SuperAdminEnsurer interface {
	EnsureSuperAdmin(ctx context.Context, email, password string) (bool, error)
}

// Seeder handles database seeding
type Seeder struct {
	cfg     SeedConfig
	ensurer SuperAdminEnsurer
	log     *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(cfg SeedConfig, ensurer SuperAdminEnsurer, log *zap.Logger) *Seeder {
	return &Seeder{cfg: cfg, ensurer: ensurer, log: log.Named("seeder")}
}

// Run executes all seeders. A missing seed account is skipped, not fatal.
func (s *Seeder) Run(ctx context.Context) error {
	if s.cfg.SuperAdminEmail == "" || s.cfg.SuperAdminPassword == "" {
		s.log.Info("superadmin seed skipped, SUPERADMIN_EMAIL or SUPERADMIN_PASSWORD not set")
		return nil
	}

	created, err := s.ensurer.EnsureSuperAdmin(ctx, s.cfg.SuperAdminEmail, s.cfg.SuperAdminPassword)
	if err != nil {
		return err
	}
	if created {
		s.log.Info("superadmin seeded", zap.String("email", s.cfg.SuperAdminEmail))
	}
	return nil
}
