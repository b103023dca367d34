package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quadsync/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAdapter replicates into the document store. Insert and Update both
// collapse to a whole-document replace keyed by _id, which makes the write
// naturally idempotent; Delete removes the document by _id.
type MongoAdapter struct {
	uri      string
	database string
}

func NewMongoAdapter(uri, database string) *MongoAdapter {
	return &MongoAdapter{uri: uri, database: database}
}

func (a *MongoAdapter) Name() models.StoreID {
	return models.StoreMongo
}

func (a *MongoAdapter) Write(ctx context.Context, rec models.ChangeRecord) error {
	id, doc, err := mongoDocument(rec)
	if err != nil {
		return err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.uri))
	if err != nil {
		return fmt.Errorf("mongo connect failed: %w", err)
	}
	defer client.Disconnect(ctx)

	collection := client.Database(a.database).Collection(models.EntityRegistry[rec.EntityKind])

	switch rec.Operation {
	case models.OpInsert, models.OpUpdate:
		opts := options.Replace().SetUpsert(true)
		if _, err := collection.ReplaceOne(ctx, bson.M{"_id": id}, doc, opts); err != nil {
			return fmt.Errorf("mongo upsert failed: %w", err)
		}
	case models.OpDelete:
		if _, err := collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			return fmt.Errorf("mongo delete failed: %w", err)
		}
	default:
		return unsupported(models.StoreMongo, rec.Operation, rec.EntityKind)
	}
	return nil
}

func (a *MongoAdapter) FetchIncident(ctx context.Context, id string) (*models.IncidentSnapshot, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	defer client.Disconnect(ctx)

	collection := client.Database(a.database).Collection(models.EntityRegistry[models.KindIncidents])

	var doc struct {
		ID          string `bson:"_id"`
		Title       string `bson:"title"`
		Description string `bson:"description"`
		Status      string `bson:"status"`
	}
	err = collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo fetch failed: %w", err)
	}

	return &models.IncidentSnapshot{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		Status:      models.Status(doc.Status),
	}, nil
}

func (a *MongoAdapter) Ping(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.uri))
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)
	return client.Ping(ctx, nil)
}

// mongoDocument builds the replacement document for one change. The _id is
// the canonical entity id, never a store-generated ObjectID.
func mongoDocument(rec models.ChangeRecord) (string, bson.M, error) {
	switch rec.EntityKind {
	case models.KindIncidents:
		var inc models.Incident
		if err := json.Unmarshal(rec.Payload, &inc); err != nil {
			return "", nil, Fatal("incident payload unmarshal: %v", err)
		}
		return inc.ID, bson.M{
			"_id":                 inc.ID,
			"title":               inc.Title,
			"reportedBy":          inc.ReportedBy,
			"description":         inc.Description,
			"status":              string(inc.Status),
			"descriptiveLocation": inc.DescriptiveLocation,
			"latitude":            inc.Latitude,
			"longitude":           inc.Longitude,
			"updatedAt":           inc.UpdatedAt,
		}, nil

	case models.KindUsers:
		var u models.User
		if err := json.Unmarshal(rec.Payload, &u); err != nil {
			return "", nil, Fatal("user payload unmarshal: %v", err)
		}
		return u.ID, bson.M{
			"_id":       u.ID,
			"fullName":  u.FullName,
			"email":     u.Email,
			"password":  u.Password,
			"createdAt": u.CreatedAt,
		}, nil

	case models.KindResources:
		var res models.Resource
		if err := json.Unmarshal(rec.Payload, &res); err != nil {
			return "", nil, Fatal("resource payload unmarshal: %v", err)
		}
		return res.ID, bson.M{
			"_id":       res.ID,
			"name":      res.Name,
			"type":      res.Type,
			"status":    res.Status,
			"createdAt": res.CreatedAt,
		}, nil
	}

	return "", nil, unsupported(models.StoreMongo, rec.Operation, rec.EntityKind)
}
