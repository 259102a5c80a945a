package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type surveyDoc struct {
	ID              bson.ObjectID     `bson:"_id,omitempty"`
	UserID          int64             `bson:"userId"`
	FullName        map[string]string `bson:"fullName"`
	SuperPowers     []string          `bson:"superPowers"`
	BirthDate       string            `bson:"birthDate"`
	TraitsToImprove []string          `bson:"traitsToImprove"`
	ToBuy           []string          `bson:"toBuy"`
	ToSell          []string          `bson:"toSell"`
	Service         string            `bson:"service"`
	MaterialGoal    string            `bson:"materialGoal"`
	SocialGoal      string            `bson:"socialGoal"`
	SpiritualGoal   string            `bson:"spiritualGoal"`
	CreatedAt       time.Time         `bson:"createdAt"`
	UpdatedAt       time.Time         `bson:"updatedAt"`
}

func (d surveyDoc) toModel() model.Survey {
	return model.Survey{
		ID:              d.ID.Hex(),
		UserID:          d.UserID,
		FullName:        d.FullName,
		SuperPowers:     d.SuperPowers,
		BirthDate:       d.BirthDate,
		TraitsToImprove: d.TraitsToImprove,
		ToBuy:           d.ToBuy,
		ToSell:          d.ToSell,
		Service:         d.Service,
		MaterialGoal:    d.MaterialGoal,
		SocialGoal:      d.SocialGoal,
		SpiritualGoal:   d.SpiritualGoal,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type SurveyStore struct {
	collection *mongo.Collection
}

func NewSurveyStore(client *mongo.Client, database string) *SurveyStore {
	return &SurveyStore{
		collection: client.Database(database).Collection("surveys"),
	}
}

func (s *SurveyStore) Setup(ctx context.Context) error {
	userIndexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	createdIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	}

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{userIndexModel, createdIndexModel})

	return err
}

func (s *SurveyStore) Create(ctx context.Context, survey model.Survey) (model.Survey, error) {
	now := time.Now().UTC()
	survey.CreatedAt = now
	survey.UpdatedAt = now

	doc := surveyDoc{
		UserID:          survey.UserID,
		FullName:        survey.FullName,
		SuperPowers:     survey.SuperPowers,
		BirthDate:       survey.BirthDate,
		TraitsToImprove: survey.TraitsToImprove,
		ToBuy:           survey.ToBuy,
		ToSell:          survey.ToSell,
		Service:         survey.Service,
		MaterialGoal:    survey.MaterialGoal,
		SocialGoal:      survey.SocialGoal,
		SpiritualGoal:   survey.SpiritualGoal,
		CreatedAt:       survey.CreatedAt,
		UpdatedAt:       survey.UpdatedAt,
	}

	result, err := s.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return model.Survey{}, ierr.New(ierr.ErrorCodeAlreadyExists, errors.New("survey already exists for this user"))
	}
	if err != nil {
		return model.Survey{}, err
	}

	survey.ID = result.InsertedID.(bson.ObjectID).Hex()

	return survey, nil
}

func (s *SurveyStore) Get(ctx context.Context, id string) (model.Survey, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
	}

	return s.findOne(ctx, bson.M{"_id": objectID})
}

func (s *SurveyStore) GetByUserID(ctx context.Context, userID int64) (model.Survey, error) {
	return s.findOne(ctx, bson.M{"userId": userID})
}

func (s *SurveyStore) findOne(ctx context.Context, query bson.M) (model.Survey, error) {
	var doc surveyDoc
	err := s.collection.FindOne(ctx, query).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
	}
	if err != nil {
		return model.Survey{}, err
	}

	return doc.toModel(), nil
}

var surveySortFields = map[string]string{
	"user_id":    "userId",
	"created_at": "createdAt",
	"birth_date": "birthDate",
}

func (s *SurveyStore) List(ctx context.Context, filter persistence.SurveyFilter) ([]model.Survey, error) {
	query := bson.M{}

	if filter.UserID != nil {
		query["userId"] = *filter.UserID
	}

	opts := options.Find().
		SetSkip(filter.Skip).
		SetLimit(listLimit(filter.Limit))

	if field, ok := surveySortFields[filter.SortBy]; ok {
		opts = opts.SetSort(bson.D{{Key: field, Value: sortDirection(filter.SortOrder)}})
	}

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var docs []surveyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	surveys := make([]model.Survey, len(docs))
	for i, doc := range docs {
		surveys[i] = doc.toModel()
	}

	return surveys, nil
}

func (s *SurveyStore) Update(ctx context.Context, id string, update persistence.SurveyUpdate) (model.Survey, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.FullName != nil {
		set["fullName"] = update.FullName
	}
	if update.SuperPowers != nil {
		set["superPowers"] = update.SuperPowers
	}
	if update.BirthDate != nil {
		set["birthDate"] = *update.BirthDate
	}
	if update.TraitsToImprove != nil {
		set["traitsToImprove"] = update.TraitsToImprove
	}
	if update.ToBuy != nil {
		set["toBuy"] = update.ToBuy
	}
	if update.ToSell != nil {
		set["toSell"] = update.ToSell
	}
	if update.Service != nil {
		set["service"] = *update.Service
	}
	if update.MaterialGoal != nil {
		set["materialGoal"] = *update.MaterialGoal
	}
	if update.SocialGoal != nil {
		set["socialGoal"] = *update.SocialGoal
	}
	if update.SpiritualGoal != nil {
		set["spiritualGoal"] = *update.SpiritualGoal
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc surveyDoc
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
	}
	if err != nil {
		return model.Survey{}, err
	}

	return doc.toModel(), nil
}

func (s *SurveyStore) Delete(ctx context.Context, id string) (model.Survey, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
	}

	var doc surveyDoc
	err = s.collection.FindOneAndDelete(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
	}
	if err != nil {
		return model.Survey{}, err
	}

	return doc.toModel(), nil
}
