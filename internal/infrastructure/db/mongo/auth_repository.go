package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

const (
	collectionUsers       = "users"
	collectionRoles       = "roles"
	collectionSpecialties = "specialties"
)

// AuthRepository is the MongoDB credential store. Users reference their role
// and specialty by id; reads join them back with $lookup.
type AuthRepository struct {
	users       *mongo.Collection
	roles       *mongo.Collection
	specialties *mongo.Collection
}

func NewAuthRepository(db *mongo.Database) *AuthRepository {
	return &AuthRepository{
		users:       db.Collection(collectionUsers),
		roles:       db.Collection(collectionRoles),
		specialties: db.Collection(collectionSpecialties),
	}
}

type namedDoc struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
}

type userDoc struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	Username       string              `bson:"username"`
	Name           string              `bson:"name"`
	PasswordHash   string              `bson:"password_hash"`
	RoleID         primitive.ObjectID  `bson:"role_id"`
	SpecialtyID    *primitive.ObjectID `bson:"specialty_id,omitempty"`
	SessionVersion int64               `bson:"session_version"`
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`

	// Populated by the $lookup stages only.
	Role      *namedDoc `bson:"role,omitempty"`
	Specialty *namedDoc `bson:"specialty,omitempty"`
}

func (d *userDoc) toDomain() (*domain.User, error) {
	if d.Role == nil {
		return nil, fmt.Errorf("user %s references missing role", d.Username)
	}
	roleName, ok := domain.ParseRoleName(d.Role.Name)
	if !ok {
		return nil, fmt.Errorf("user %s has unknown role %q", d.Username, d.Role.Name)
	}

	u := &domain.User{
		ID:             d.ID.Hex(),
		Username:       d.Username,
		Name:           d.Name,
		PasswordHash:   d.PasswordHash,
		Role:           domain.Role{ID: d.Role.ID.Hex(), Name: roleName},
		SessionVersion: d.SessionVersion,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.Specialty != nil {
		u.Specialty = &domain.Specialty{ID: d.Specialty.ID.Hex(), Name: d.Specialty.Name}
	}
	return u, nil
}

// joinPipeline matches users and resolves role_id and specialty_id. A user
// whose role is gone drops out of the result instead of decoding half-built.
func joinPipeline(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collectionRoles,
			"localField":   "role_id",
			"foreignField": "_id",
			"as":           "role",
		}}},
		{{Key: "$unwind", Value: "$role"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collectionSpecialties,
			"localField":   "specialty_id",
			"foreignField": "_id",
			"as":           "specialty",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$specialty", "preserveNullAndEmptyArrays": true}}},
	}
}

func (r *AuthRepository) findOne(ctx context.Context, op string, match bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.users.Aggregate(ctx, joinPipeline(match))
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, storeErr(op, err)
		}
		return nil, domain.ErrUserNotFound
	}

	var doc userDoc
	if err := cur.Decode(&doc); err != nil {
		return nil, storeErr(op, err)
	}
	return doc.toDomain()
}

func (r *AuthRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "find user by username", bson.M{"username": username})
}

func (r *AuthRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, "find user by id", bson.M{"_id": oid})
}

// List returns every user ordered by username.
func (r *AuthRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := append(joinPipeline(bson.M{}), bson.D{{Key: "$sort", Value: bson.D{{Key: "username", Value: 1}}}})
	cur, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer cur.Close(ctx)

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("list users", err)
	}

	out := make([]*domain.User, 0, len(docs))
	for i := range docs {
		u, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Create inserts user. The role and optional specialty must already have
// been resolved to existing ids.
func (r *AuthRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	roleID, err := primitive.ObjectIDFromHex(user.Role.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrRoleNotFound, user.Role.Name)
	}

	doc := userDoc{
		Username:       user.Username,
		Name:           user.Name,
		PasswordHash:   user.PasswordHash,
		RoleID:         roleID,
		SessionVersion: user.SessionVersion,
		CreatedAt:      user.CreatedAt.UTC(),
		UpdatedAt:      user.UpdatedAt.UTC(),
	}
	if user.Specialty != nil {
		sid, err := primitive.ObjectIDFromHex(user.Specialty.ID)
		if err != nil {
			return nil, domain.ErrSpecialtyNotFound
		}
		doc.SpecialtyID = &sid
	}

	insertCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	res, err := r.users.InsertOne(insertCtx, doc)
	cancel()
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, storeErr("insert user", err)
	}

	// fetch back to get the joined role and specialty
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return r.FindByID(ctx, oid.Hex())
}

// UpdateRole reassigns the role and bumps the session version.
func (r *AuthRepository) UpdateRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	roleID, err := primitive.ObjectIDFromHex(role.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrRoleNotFound, role.Name)
	}
	return r.bump(ctx, "update role", userID, bson.M{"role_id": roleID})
}

// UpdatePassword stores a new hash and bumps the session version.
func (r *AuthRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) (*domain.User, error) {
	return r.bump(ctx, "update password", userID, bson.M{"password_hash": passwordHash})
}

func (r *AuthRepository) bump(ctx context.Context, op, userID string, set bson.M) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	set["updated_at"] = time.Now().UTC()

	updateCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	res, err := r.users.UpdateOne(updateCtx,
		bson.M{"_id": oid},
		bson.M{"$set": set, "$inc": bson.M{"session_version": 1}},
	)
	cancel()
	if err != nil {
		return nil, storeErr(op, err)
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrUserNotFound
	}
	return r.FindByID(ctx, userID)
}

func (r *AuthRepository) FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc namedDoc
	if err := r.roles.FindOne(ctx, bson.M{"name": string(name)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %q", domain.ErrRoleNotFound, name)
		}
		return nil, storeErr("find role", err)
	}
	return &domain.Role{ID: doc.ID.Hex(), Name: name}, nil
}

func (r *AuthRepository) FindSpecialty(ctx context.Context, id string) (*domain.Specialty, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrSpecialtyNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc namedDoc
	if err := r.specialties.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSpecialtyNotFound
		}
		return nil, storeErr("find specialty", err)
	}
	return &domain.Specialty{ID: doc.ID.Hex(), Name: doc.Name}, nil
}

func (r *AuthRepository) ListSpecialties(ctx context.Context) ([]domain.Specialty, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.specialties.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, storeErr("list specialties", err)
	}
	var docs []namedDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("list specialties", err)
	}

	out := make([]domain.Specialty, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Specialty{ID: d.ID.Hex(), Name: d.Name})
	}
	return out, nil
}

// EnsureIndexes creates the unique indexes the credential store relies on.
func (r *AuthRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := options.Index().SetUnique(true)
	if _, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "role_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	if _, err := r.roles.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique}); err != nil {
		return fmt.Errorf("roles indexes: %w", err)
	}
	if _, err := r.specialties.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique}); err != nil {
		return fmt.Errorf("specialties indexes: %w", err)
	}
	return nil
}

// storeErr marks a driver failure as a store outage for the layers above.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
