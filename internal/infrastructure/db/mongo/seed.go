package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

// DefaultSpecialties is the specialty catalog loaded by Seed.
var DefaultSpecialties = []string{
	"Medicina General",
	"Cardiología",
	"Pediatría",
	"Dermatología",
	"Radiología",
}

// SeedAdmin describes the bootstrap administrator account.
type SeedAdmin struct {
	Username     string
	Name         string
	PasswordHash string
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	RolesInserted       int64
	SpecialtiesInserted int64
	AdminCreated        bool
}

// Seed upserts every registry role, the given specialties and the admin
// account. Existing documents are left untouched, so it is safe to re-run.
func (r *AuthRepository) Seed(ctx context.Context, specialties []string, admin SeedAdmin) (SeedResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var res SeedResult
	upsert := options.Update().SetUpsert(true)

	for _, name := range domain.AllRoles() {
		n, err := upsertByName(ctx, r.roles, string(name), upsert)
		if err != nil {
			return res, fmt.Errorf("seed role %s: %w", name, err)
		}
		res.RolesInserted += n
	}
	for _, name := range specialties {
		n, err := upsertByName(ctx, r.specialties, name, upsert)
		if err != nil {
			return res, fmt.Errorf("seed specialty %s: %w", name, err)
		}
		res.SpecialtiesInserted += n
	}

	var adminRole namedDoc
	if err := r.roles.FindOne(ctx, bson.M{"name": string(domain.RoleAdmin)}).Decode(&adminRole); err != nil {
		return res, fmt.Errorf("seed: load admin role: %w", err)
	}

	now := time.Now().UTC()
	out, err := r.users.UpdateOne(ctx,
		bson.M{"username": admin.Username},
		bson.M{"$setOnInsert": bson.M{
			"username":        admin.Username,
			"name":            admin.Name,
			"password_hash":   admin.PasswordHash,
			"role_id":         adminRole.ID,
			"session_version": int64(0),
			"created_at":      now,
			"updated_at":      now,
		}},
		upsert,
	)
	if err != nil {
		return res, fmt.Errorf("seed admin: %w", err)
	}
	res.AdminCreated = out.UpsertedCount > 0
	return res, nil
}

func upsertByName(ctx context.Context, col *mongo.Collection, name string, opts *options.UpdateOptions) (int64, error) {
	out, err := col.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": bson.M{"name": name}},
		opts,
	)
	if err != nil {
		return 0, err
	}
	return out.UpsertedCount, nil
}
