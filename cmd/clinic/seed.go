package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/medicalcenter/clinic-system/internal/infrastructure/db/mongo"
	"github.com/medicalcenter/clinic-system/internal/pkg/config"
	"github.com/medicalcenter/clinic-system/pkg/logger"
)

func seedCmd() *cobra.Command {
	var (
		adminUsername string
		adminName     string
		adminPassword string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load roles, specialties and the bootstrap admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(adminPassword) < 8 {
				return fmt.Errorf("--admin-password must be at least 8 characters")
			}

			cfg := config.Load()
			log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Service: "clinic"})

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect(context.Background()) }()

			if err := mongo.EnsureIndexes(ctx, db); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}

			res, err := mongo.NewAuthRepository(db).Seed(ctx, mongo.DefaultSpecialties, mongo.SeedAdmin{
				Username:     adminUsername,
				Name:         adminName,
				PasswordHash: string(hash),
			})
			if err != nil {
				return err
			}

			log.Info().
				Int64("roles_inserted", res.RolesInserted).
				Int64("specialties_inserted", res.SpecialtiesInserted).
				Bool("admin_created", res.AdminCreated).
				Str("admin", adminUsername).
				Msg("seed complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&adminUsername, "admin-username", "admin", "bootstrap admin username")
	cmd.Flags().StringVar(&adminName, "admin-name", "Administrador", "bootstrap admin display name")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "password123", "bootstrap admin password")
	return cmd
}
