package mongo

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditCollectionName = "audit_notes"

// mongoAuditRepository implements repository.AuditRepository. Insert-only.
type mongoAuditRepository struct {
	collection *mongo.Collection
}

// NewMongoAuditRepository creates a new audit note repository backed by MongoDB.
func NewMongoAuditRepository(db *mongo.Database) repository.AuditRepository {
	return &mongoAuditRepository{
		collection: db.Collection(auditCollectionName),
	}
}

// Append inserts a new audit note.
func (r *mongoAuditRepository) Append(ctx context.Context, note *domain.AuditNote) error {
	if note.ID == "" || note.EquipmentID == primitive.NilObjectID {
		return errors.New("audit note requires id and equipmentId")
	}
	_, err := r.collection.InsertOne(ctx, note)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// ListByEquipment returns an item's audit trail, newest first.
func (r *mongoAuditRepository) ListByEquipment(ctx context.Context, equipmentID primitive.ObjectID) ([]domain.AuditNote, error) {
	filter := bson.M{"equipmentId": equipmentID}
	findOptions := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notes []domain.AuditNote
	if err = cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

// EnsureAuditIndexes creates necessary indexes for the audit_notes collection.
func EnsureAuditIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "equipmentId", Value: 1}, {Key: "recordedAt", Value: -1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
