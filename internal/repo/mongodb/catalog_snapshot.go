package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// latestSnapshotID is the id of the single document holding the current catalog.
const latestSnapshotID = "latest"

type CatalogSnapshotRepository interface {
	Publish(ctx context.Context, products []models.Product) error
	GetLatest(ctx context.Context) (*models.CatalogSnapshot, error)
}

type catalogSnapshotRepo struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewCatalogSnapshotRepository(db *DB, collection string) CatalogSnapshotRepository {
	return &catalogSnapshotRepo{
		collection: db.Database.Collection(collection),
		now:        time.Now,
	}
}

func (r *catalogSnapshotRepo) Publish(ctx context.Context, products []models.Product) error {
	snapshot := models.NewCatalogSnapshot(products, r.now())
	filter := bson.M{"_id": latestSnapshotID}
	update := bson.M{"$set": snapshot}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to publish catalog snapshot: %w", err)
	}
	return nil
}

func (r *catalogSnapshotRepo) GetLatest(ctx context.Context) (*models.CatalogSnapshot, error) {
	var snapshot models.CatalogSnapshot
	err := r.collection.FindOne(ctx, bson.M{"_id": latestSnapshotID}).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get catalog snapshot: %w", err)
	}
	return &snapshot, nil
}
