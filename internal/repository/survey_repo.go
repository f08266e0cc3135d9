package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatsurvey/internal/model"
)

// SurveyRepo stores survey definitions
type SurveyRepo interface {
	Create(ctx context.Context, survey *model.StoredSurvey) (string, error)
	GetByID(ctx context.Context, id string) (*model.StoredSurvey, error)
	List(ctx context.Context) ([]*model.StoredSurvey, error)
	Update(ctx context.Context, survey *model.StoredSurvey) error
	Delete(ctx context.Context, id string) error
}

// surveyDoc keeps the definition as JSON text, BSON documents do not
// preserve the block order the runtime depends on
type surveyDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	Definition string             `bson:"definition"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

type surveyRepo struct {
	collection *mongo.Collection
}

// NewSurveyRepo creates a new survey repository
func NewSurveyRepo(db *mongo.Database) SurveyRepo {
	return &surveyRepo{
		collection: db.Collection("surveys"),
	}
}

func (r *surveyRepo) Create(ctx context.Context, survey *model.StoredSurvey) (string, error) {
	survey.CreatedAt = time.Now()
	survey.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, surveyDoc{
		Name:       survey.Name,
		Definition: string(survey.Definition),
		CreatedAt:  survey.CreatedAt,
		UpdatedAt:  survey.UpdatedAt,
	})
	if err != nil {
		return "", err
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id %v", result.InsertedID)
	}
	survey.ID = oid.Hex()
	return survey.ID, nil
}

func (r *surveyRepo) GetByID(ctx context.Context, id string) (*model.StoredSurvey, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc surveyDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *surveyRepo) List(ctx context.Context) ([]*model.StoredSurvey, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []surveyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	surveys := make([]*model.StoredSurvey, len(docs))
	for i := range docs {
		surveys[i] = docs[i].toModel()
	}
	return surveys, nil
}

func (r *surveyRepo) Update(ctx context.Context, survey *model.StoredSurvey) error {
	oid, err := primitive.ObjectIDFromHex(survey.ID)
	if err != nil {
		return fmt.Errorf("survey %s: %w", survey.ID, ErrNotFound)
	}

	survey.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":       survey.Name,
		"definition": string(survey.Definition),
		"updatedAt":  survey.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("survey %s: %w", survey.ID, ErrNotFound)
	}
	return nil
}

func (r *surveyRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

func (d surveyDoc) toModel() *model.StoredSurvey {
	return &model.StoredSurvey{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		Definition: []byte(d.Definition),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
