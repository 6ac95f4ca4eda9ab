package mongo

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/repository" // Import the repository interfaces package
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const personCollectionName = "people"

// caseInsensitive matches names regardless of case (strength 2 ignores case, not accents).
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// mongoPersonRepository implements the repository.PersonRepository interface using MongoDB.
type mongoPersonRepository struct {
	collection *mongo.Collection
}

// NewMongoPersonRepository creates a new instance of mongoPersonRepository.
// It expects a connected *mongo.Database instance.
func NewMongoPersonRepository(db *mongo.Database) repository.PersonRepository {
	return &mongoPersonRepository{
		collection: db.Collection(personCollectionName),
	}
}

// Create inserts a new person into the directory.
func (r *mongoPersonRepository) Create(ctx context.Context, person *domain.Person) (primitive.ObjectID, error) {
	person.Name = strings.TrimSpace(person.Name)
	if person.Name == "" || person.Role == "" {
		return primitive.NilObjectID, errors.New("person name and role are required")
	}

	if person.ID.IsZero() {
		person.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	person.CreatedAt = now
	person.UpdatedAt = now
	person.Version = 1

	result, err := r.collection.InsertOne(ctx, person)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a person by their MongoDB ObjectID.
func (r *mongoPersonRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Person, error) {
	var person domain.Person
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&person)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &person, nil
}

// FindStaffByName looks staff up by exact name using a case-insensitive collation.
func (r *mongoPersonRepository) FindStaffByName(ctx context.Context, name string) ([]domain.Person, error) {
	filter := bson.M{"name": strings.TrimSpace(name), "role": domain.RoleStaff}
	findOptions := options.Find().SetCollation(caseInsensitive).SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var people []domain.Person
	if err = cursor.All(ctx, &people); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return people, nil
}

// Update replaces the person document if nobody else has written it since it was read.
func (r *mongoPersonRepository) Update(ctx context.Context, person *domain.Person) error {
	if person.ID == primitive.NilObjectID {
		return errors.New("person ID is required for update")
	}

	next := person.Clone()
	next.Version = person.Version + 1
	next.UpdatedAt = time.Now().UTC()

	filter := versionFilter(person.ID, person.Version)
	result, err := r.collection.ReplaceOne(ctx, filter, next)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return missingOrStale(ctx, r.collection, person.ID)
	}

	person.Version = next.Version
	person.UpdatedAt = next.UpdatedAt
	return nil
}

// versionFilter matches id at the expected version. Documents written before
// versioning have no version field and decode as version 0.
func versionFilter(id primitive.ObjectID, version int64) bson.M {
	if version == 0 {
		return bson.M{"_id": id, "version": bson.M{"$in": bson.A{0, nil}}}
	}
	return bson.M{"_id": id, "version": version}
}

// missingOrStale explains a version-guarded write that matched nothing.
func missingOrStale(ctx context.Context, collection *mongo.Collection, id primitive.ObjectID) error {
	count, err := collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

// EnsurePersonIndexes creates necessary indexes for the people collection.
// Call this once during application startup.
func EnsurePersonIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Serves FindStaffByName; the collation must match the query's.
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetCollation(caseInsensitive),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
