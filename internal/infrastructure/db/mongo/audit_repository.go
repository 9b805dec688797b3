package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

const collectionAuthEvents = "auth_events"

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	col *mongo.Collection
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAuthEvents)}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

type auditDoc struct {
	ID       string    `bson:"_id"`
	Type     string    `bson:"type"`
	Username string    `bson:"username,omitempty"`
	UserID   string    `bson:"user_id,omitempty"`
	Role     string    `bson:"role,omitempty"`
	Detail   string    `bson:"detail,omitempty"`
	At       time.Time `bson:"at"`
}

// Insert persists an audit event. Event ids are assigned upstream so a
// retried insert cannot create a duplicate.
func (r *AuditRepository) Insert(ctx context.Context, ev *domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, auditDoc{
		ID:       ev.ID,
		Type:     string(ev.Type),
		Username: ev.Username,
		UserID:   ev.UserID,
		Role:     string(ev.Role),
		Detail:   ev.Detail,
		At:       ev.At.UTC(),
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return storeErr("insert auth event", err)
	}
	return nil
}

// Latest returns up to limit events, newest first.
func (r *AuditRepository) Latest(ctx context.Context, limit int) ([]*domain.AuditEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeErr("list auth events", err)
	}
	var docs []auditDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("list auth events", err)
	}

	out := make([]*domain.AuditEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.AuditEvent{
			ID:       d.ID,
			Type:     domain.AuditEventType(d.Type),
			Username: d.Username,
			UserID:   d.UserID,
			Role:     domain.RoleName(d.Role),
			Detail:   d.Detail,
			At:       d.At.UTC(),
		})
	}
	return out, nil
}

// EnsureIndexes creates the indexes used by the audit queries.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "username", Value: 1}, {Key: "at", Value: -1}}},
	})
	return err
}
