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

type telegramUserDoc struct {
	ID                bson.ObjectID `bson:"_id,omitempty"`
	TelegramID        int64         `bson:"telegramId"`
	Username          string        `bson:"username"`
	FirstName         string        `bson:"firstName"`
	LastName          string        `bson:"lastName"`
	LanguageCode      string        `bson:"languageCode"`
	IsActive          bool          `bson:"isActive"`
	IsBot             bool          `bson:"isBot"`
	CreatedAt         time.Time     `bson:"createdAt"`
	UpdatedAt         time.Time     `bson:"updatedAt"`
	LastInteractionAt *time.Time    `bson:"lastInteractionAt,omitempty"`
}

func (d telegramUserDoc) toModel() model.TelegramUser {
	return model.TelegramUser{
		ID:                d.ID.Hex(),
		TelegramID:        d.TelegramID,
		Username:          d.Username,
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		LanguageCode:      d.LanguageCode,
		IsActive:          d.IsActive,
		IsBot:             d.IsBot,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		LastInteractionAt: d.LastInteractionAt,
	}
}

type TelegramUserStore struct {
	collection *mongo.Collection
}

func NewTelegramUserStore(client *mongo.Client, database string) *TelegramUserStore {
	return &TelegramUserStore{
		collection: client.Database(database).Collection("telegram_users"),
	}
}

func (s *TelegramUserStore) Setup(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "telegramId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "username", Value: 1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}

	_, err := s.collection.Indexes().CreateMany(ctx, indexModels)

	return err
}

func (s *TelegramUserStore) Create(ctx context.Context, user model.TelegramUser) (model.TelegramUser, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true

	doc := telegramUserDoc{
		TelegramID:        user.TelegramID,
		Username:          user.Username,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		LanguageCode:      user.LanguageCode,
		IsActive:          user.IsActive,
		IsBot:             user.IsBot,
		CreatedAt:         user.CreatedAt,
		UpdatedAt:         user.UpdatedAt,
		LastInteractionAt: user.LastInteractionAt,
	}

	result, err := s.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return model.TelegramUser{}, ierr.New(ierr.ErrorCodeAlreadyExists, errors.New("telegram user already exists"))
	}
	if err != nil {
		return model.TelegramUser{}, err
	}

	user.ID = result.InsertedID.(bson.ObjectID).Hex()

	return user, nil
}

func (s *TelegramUserStore) GetByTelegramID(ctx context.Context, telegramID int64) (model.TelegramUser, error) {
	var doc telegramUserDoc
	err := s.collection.FindOne(ctx, bson.M{"telegramId": telegramID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.TelegramUser{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("telegram user not found"))
	}
	if err != nil {
		return model.TelegramUser{}, err
	}

	return doc.toModel(), nil
}

var telegramUserSortFields = map[string]string{
	"telegram_id":         "telegramId",
	"username":            "username",
	"created_at":          "createdAt",
	"updated_at":          "updatedAt",
	"last_interaction_at": "lastInteractionAt",
}

func (s *TelegramUserStore) List(ctx context.Context, filter persistence.TelegramUserFilter) ([]model.TelegramUser, error) {
	query := bson.M{}

	if filter.TelegramID != nil {
		query["telegramId"] = *filter.TelegramID
	}
	if filter.Username != nil {
		query["username"] = bson.M{"$regex": *filter.Username, "$options": "i"}
	}
	if filter.IsActive != nil {
		query["isActive"] = *filter.IsActive
	}
	if filter.IsBot != nil {
		query["isBot"] = *filter.IsBot
	}

	createdRange := bson.M{}
	if filter.CreatedFrom != nil {
		createdRange["$gte"] = *filter.CreatedFrom
	}
	if filter.CreatedTo != nil {
		createdRange["$lte"] = *filter.CreatedTo
	}
	if len(createdRange) > 0 {
		query["createdAt"] = createdRange
	}

	updatedRange := bson.M{}
	if filter.UpdatedFrom != nil {
		updatedRange["$gte"] = *filter.UpdatedFrom
	}
	if filter.UpdatedTo != nil {
		updatedRange["$lte"] = *filter.UpdatedTo
	}
	if len(updatedRange) > 0 {
		query["updatedAt"] = updatedRange
	}

	sortField, ok := telegramUserSortFields[filter.SortBy]
	if !ok {
		sortField = "createdAt"
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: sortDirection(filter.SortOrder)}}).
		SetSkip(filter.Skip).
		SetLimit(listLimit(filter.Limit))

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var docs []telegramUserDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]model.TelegramUser, len(docs))
	for i, doc := range docs {
		users[i] = doc.toModel()
	}

	return users, nil
}

func (s *TelegramUserStore) Update(ctx context.Context, telegramID int64, update persistence.TelegramUserUpdate) (model.TelegramUser, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.FirstName != nil {
		set["firstName"] = *update.FirstName
	}
	if update.LastName != nil {
		set["lastName"] = *update.LastName
	}
	if update.LanguageCode != nil {
		set["languageCode"] = *update.LanguageCode
	}
	if update.IsActive != nil {
		set["isActive"] = *update.IsActive
	}

	return s.findOneAndSet(ctx, telegramID, set)
}

func (s *TelegramUserStore) SoftDelete(ctx context.Context, telegramID int64) (model.TelegramUser, error) {
	return s.findOneAndSet(ctx, telegramID, bson.M{
		"isActive":  false,
		"updatedAt": time.Now().UTC(),
	})
}

func (s *TelegramUserStore) TouchInteraction(ctx context.Context, telegramID int64) (model.TelegramUser, error) {
	now := time.Now().UTC()

	return s.findOneAndSet(ctx, telegramID, bson.M{
		"lastInteractionAt": &now,
		"updatedAt":         now,
	})
}

func (s *TelegramUserStore) findOneAndSet(ctx context.Context, telegramID int64, set bson.M) (model.TelegramUser, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc telegramUserDoc
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"telegramId": telegramID}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.TelegramUser{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("telegram user not found"))
	}
	if err != nil {
		return model.TelegramUser{}, err
	}

	return doc.toModel(), nil
}
