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

const lessonCollectionName = "lessons"

// mongoLessonRepository implements repository.LessonRepository
type mongoLessonRepository struct {
	collection *mongo.Collection
}

// NewMongoLessonRepository creates a new Lesson repository backed by MongoDB.
func NewMongoLessonRepository(db *mongo.Database) repository.LessonRepository {
	return &mongoLessonRepository{
		collection: db.Collection(lessonCollectionName),
	}
}

// Create inserts a new lesson into the catalog.
func (r *mongoLessonRepository) Create(ctx context.Context, lesson *domain.Lesson) (primitive.ObjectID, error) {
	lesson.Name = strings.TrimSpace(lesson.Name)
	if lesson.Name == "" {
		return primitive.NilObjectID, errors.New("lesson name is required")
	}

	if lesson.ID.IsZero() {
		lesson.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, lesson)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted lesson ID")
	}
	return insertedID, nil
}

// GetByID retrieves a lesson by its ID.
func (r *mongoLessonRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Lesson, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByName retrieves a lesson by its exact name.
func (r *mongoLessonRepository) GetByName(ctx context.Context, name string) (*domain.Lesson, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *mongoLessonRepository) findOne(ctx context.Context, filter bson.M) (*domain.Lesson, error) {
	var lesson domain.Lesson
	err := r.collection.FindOne(ctx, filter).Decode(&lesson)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// EnsureLessonIndexes creates necessary indexes for the lessons collection.
func EnsureLessonIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Lesson names key the progress maps, so they must be unique
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "level", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
