package mongo

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/repository"
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const equipmentCollectionName = "equipment"

// mongoEquipmentRepository implements repository.EquipmentRepository
type mongoEquipmentRepository struct {
	collection *mongo.Collection
}

// NewMongoEquipmentRepository creates a new Equipment repository backed by MongoDB.
func NewMongoEquipmentRepository(db *mongo.Database) repository.EquipmentRepository {
	return &mongoEquipmentRepository{
		collection: db.Collection(equipmentCollectionName),
	}
}

// Create inserts a new equipment item. New items start Available unless a state is given.
func (r *mongoEquipmentRepository) Create(ctx context.Context, equipment *domain.Equipment) (primitive.ObjectID, error) {
	equipment.Name = strings.TrimSpace(equipment.Name)
	if equipment.Name == "" {
		return primitive.NilObjectID, errors.New("equipment name is required")
	}

	if equipment.ID.IsZero() {
		equipment.ID = primitive.NewObjectID()
	}
	if equipment.State == nil {
		equipment.State = domain.Available{}
	}
	now := time.Now().UTC()
	equipment.CreatedAt = now
	equipment.UpdatedAt = now
	equipment.Version = 1

	result, err := r.collection.InsertOne(ctx, equipment)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted equipment ID")
	}
	return insertedID, nil
}

// GetByID retrieves an equipment item by its ID.
func (r *mongoEquipmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Equipment, error) {
	var equipment domain.Equipment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&equipment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &equipment, nil
}

// List returns every equipment item sorted by name.
func (r *mongoEquipmentRepository) List(ctx context.Context) ([]domain.Equipment, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []domain.Equipment
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update replaces the whole document, lock/loan records included, guarded by version.
// Writing state and records in one document keeps a transition all-or-nothing.
func (r *mongoEquipmentRepository) Update(ctx context.Context, equipment *domain.Equipment) error {
	if equipment.ID == primitive.NilObjectID {
		return errors.New("equipment ID is required for update")
	}

	next := equipment.Clone()
	next.Version = equipment.Version + 1
	next.UpdatedAt = time.Now().UTC()

	filter := versionFilter(equipment.ID, equipment.Version)
	result, err := r.collection.ReplaceOne(ctx, filter, next)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return missingOrStale(ctx, r.collection, equipment.ID)
	}

	equipment.Version = next.Version
	equipment.UpdatedAt = next.UpdatedAt
	return nil
}

// EnsureEquipmentIndexes creates necessary indexes for the equipment collection.
func EnsureEquipmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Dashboards filter by state
			Keys:    bson.D{{Key: "state.kind", Value: 1}},
			Options: options.Index(),
		},
		{
			// Find equipment gated by a lesson
			Keys:    bson.D{{Key: "linkedLessonId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
