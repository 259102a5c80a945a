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

type paymentDoc struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	CustomerID int64         `bson:"customerId"`
	Amount     float64       `bson:"amount"`
	Date       time.Time     `bson:"date"`
}

func (d paymentDoc) toModel() model.Payment {
	return model.Payment{
		ID:         d.ID.Hex(),
		CustomerID: d.CustomerID,
		Amount:     d.Amount,
		Date:       d.Date,
	}
}

type PaymentStore struct {
	collection *mongo.Collection
}

func NewPaymentStore(client *mongo.Client, database string) *PaymentStore {
	return &PaymentStore{
		collection: client.Database(database).Collection("payments"),
	}
}

func (s *PaymentStore) Setup(ctx context.Context) error {
	customerIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "customerId", Value: 1}},
	}

	dateIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}},
	}

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{customerIndexModel, dateIndexModel})

	return err
}

func (s *PaymentStore) Create(ctx context.Context, payment model.Payment) (model.Payment, error) {
	if payment.Date.IsZero() {
		payment.Date = time.Now().UTC()
	}

	doc := paymentDoc{
		CustomerID: payment.CustomerID,
		Amount:     payment.Amount,
		Date:       payment.Date,
	}

	result, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return model.Payment{}, err
	}

	payment.ID = result.InsertedID.(bson.ObjectID).Hex()

	return payment, nil
}

func (s *PaymentStore) Get(ctx context.Context, id string) (model.Payment, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.Payment{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("payment not found"))
	}

	var doc paymentDoc
	err = s.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Payment{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("payment not found"))
	}
	if err != nil {
		return model.Payment{}, err
	}

	return doc.toModel(), nil
}

var paymentSortFields = map[string]string{
	"customer_id": "customerId",
	"amount":      "amount",
	"date":        "date",
}

func (s *PaymentStore) List(ctx context.Context, filter persistence.PaymentFilter) ([]model.Payment, error) {
	query := bson.M{}

	if filter.CustomerID != nil {
		query["customerId"] = *filter.CustomerID
	}

	dateRange := bson.M{}
	if filter.DateFrom != nil {
		dateRange["$gte"] = *filter.DateFrom
	}
	if filter.DateTo != nil {
		dateRange["$lte"] = *filter.DateTo
	}
	if len(dateRange) > 0 {
		query["date"] = dateRange
	}

	opts := options.Find().
		SetSkip(filter.Skip).
		SetLimit(listLimit(filter.Limit))

	if field, ok := paymentSortFields[filter.SortBy]; ok {
		opts = opts.SetSort(bson.D{{Key: field, Value: sortDirection(filter.SortOrder)}})
	}

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var docs []paymentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	payments := make([]model.Payment, len(docs))
	for i, doc := range docs {
		payments[i] = doc.toModel()
	}

	return payments, nil
}

func (s *PaymentStore) Update(ctx context.Context, id string, update persistence.PaymentUpdate) (model.Payment, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.Payment{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("payment not found"))
	}

	set := bson.M{}
	if update.CustomerID != nil {
		set["customerId"] = *update.CustomerID
	}
	if update.Amount != nil {
		set["amount"] = *update.Amount
	}
	if update.Date != nil {
		set["date"] = *update.Date
	}

	if len(set) == 0 {
		return s.Get(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc paymentDoc
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Payment{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("payment not found"))
	}
	if err != nil {
		return model.Payment{}, err
	}

	return doc.toModel(), nil
}

func (s *PaymentStore) Delete(ctx context.Context, id string) (model.Payment, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.Payment{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("payment not found"))
	}

	var doc paymentDoc
	err = s.collection.FindOneAndDelete(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Payment{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("payment not found"))
	}
	if err != nil {
		return model.Payment{}, err
	}

	return doc.toModel(), nil
}
