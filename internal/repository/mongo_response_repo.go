package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatsurvey/internal/model"
)

type responseDoc struct {
	ID             string     `bson:"_id"`
	SessionID      string     `bson:"sessionId"`
	DeploymentID   string     `bson:"deploymentId,omitempty"`
	DraftID        string     `bson:"draftId,omitempty"`
	RespondentName string     `bson:"respondentName,omitempty"`
	Metadata       bson.M     `bson:"metadata,omitempty"`
	AnswerCount    int        `bson:"answerCount"`
	LastBlockID    string     `bson:"lastBlockId,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt"`
	CompletedAt    *time.Time `bson:"completedAt"`
}

type answerDoc struct {
	ID         string    `bson:"_id"`
	ResponseID string    `bson:"responseId"`
	BlockID    string    `bson:"blockId"`
	Answer     any       `bson:"answer"`
	Seq        int       `bson:"seq"`
	CreatedAt  time.Time `bson:"createdAt"`
}

type mongoResponseRepo struct {
	client    *mongo.Client
	responses *mongo.Collection
	answers   *mongo.Collection
}

// NewMongoResponseRepo creates a response repository on MongoDB. Answer writes
// use multi-document transactions, so the server must run as a replica set.
func NewMongoResponseRepo(db *mongo.Database) ResponseRepo {
	return &mongoResponseRepo{
		client:    db.Client(),
		responses: db.Collection("responses"),
		answers:   db.Collection("answers"),
	}
}

// EnsureResponseIndexes creates the lookup indexes the repository relies on
func EnsureResponseIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("responses").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("responses index: %w", err)
	}
	_, err = db.Collection("answers").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "responseId", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("answers index: %w", err)
	}
	return nil
}

func (r *mongoResponseRepo) CreateResponse(ctx context.Context, p model.CreateResponseParams) (*model.Response, error) {
	ts := now()
	doc := responseDoc{
		ID:             uuid.NewString(),
		SessionID:      p.SessionID,
		DeploymentID:   p.DeploymentID,
		DraftID:        p.DraftID,
		RespondentName: p.RespondentName,
		Metadata:       bson.M(p.Metadata),
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if _, err := r.responses.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *mongoResponseRepo) SaveAnswer(ctx context.Context, p model.SaveAnswerParams) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		ts := now()
		var updated responseDoc
		err := r.responses.FindOneAndUpdate(sc,
			bson.M{"_id": p.ResponseID},
			bson.M{
				"$inc": bson.M{"answerCount": 1},
				"$set": bson.M{"lastBlockId": p.QuestionID, "updatedAt": ts},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("response %s: %w", p.ResponseID, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}

		_, err = r.answers.InsertOne(sc, answerDoc{
			ID:         uuid.NewString(),
			ResponseID: p.ResponseID,
			BlockID:    p.QuestionID,
			Answer:     p.Answer.Value(),
			Seq:        updated.AnswerCount,
			CreatedAt:  ts,
		})
		return nil, err
	})
	return err
}

func (r *mongoResponseRepo) CompleteResponse(ctx context.Context, responseID string) error {
	ts := now()
	res, err := r.responses.UpdateOne(ctx,
		bson.M{"_id": responseID, "completedAt": nil},
		bson.M{"$set": bson.M{"completedAt": ts, "updatedAt": ts}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.responses.CountDocuments(ctx, bson.M{"_id": responseID})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("response %s: %w", responseID, ErrNotFound)
		}
	}
	return nil
}

func (r *mongoResponseRepo) GetResponseBySessionID(ctx context.Context, sessionID string) (*model.Response, error) {
	var doc responseDoc
	err := r.responses.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp := doc.toModel()
	if resp.Answers, err = r.answersFor(ctx, resp.ID); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *mongoResponseRepo) answersFor(ctx context.Context, responseID string) ([]model.PersistedAnswer, error) {
	cursor, err := r.answers.Find(ctx,
		bson.M{"responseId": responseID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []answerDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	answers := make([]model.PersistedAnswer, len(docs))
	for i, d := range docs {
		answers[i] = model.PersistedAnswer{
			ID:        d.ID,
			BlockID:   d.BlockID,
			Answer:    model.AnswerFromValue(normalizeBSON(d.Answer)),
			CreatedAt: d.CreatedAt,
		}
	}
	return answers, nil
}

func (r *mongoResponseRepo) ListResponses(ctx context.Context, opts ListOptions) ([]*model.Response, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	cursor, err := r.responses.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []responseDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*model.Response, 0, len(docs))
	for _, d := range docs {
		resp := d.toModel()
		if opts.WithAnswers {
			if resp.Answers, err = r.answersFor(ctx, resp.ID); err != nil {
				return nil, err
			}
		}
		out = append(out, resp)
	}
	return out, nil
}

func (r *mongoResponseRepo) CountResponses(ctx context.Context) (ResponseCounts, error) {
	total, err := r.responses.CountDocuments(ctx, bson.M{})
	if err != nil {
		return ResponseCounts{}, err
	}
	completed, err := r.responses.CountDocuments(ctx, bson.M{"completedAt": bson.M{"$ne": nil}})
	if err != nil {
		return ResponseCounts{}, err
	}
	return ResponseCounts{Total: int(total), Completed: int(completed)}, nil
}

func (r *mongoResponseRepo) DeleteAllResponses(ctx context.Context) (int64, error) {
	if _, err := r.answers.DeleteMany(ctx, bson.M{}); err != nil {
		return 0, err
	}
	res, err := r.responses.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (d responseDoc) toModel() *model.Response {
	return &model.Response{
		ID:             d.ID,
		SessionID:      d.SessionID,
		DeploymentID:   d.DeploymentID,
		DraftID:        d.DraftID,
		RespondentName: d.RespondentName,
		Metadata:       normalizeMetadata(d.Metadata),
		AnswerCount:    d.AnswerCount,
		LastBlockID:    d.LastBlockID,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		CompletedAt:    d.CompletedAt,
	}
}
