package identity

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/utils/log"
)

type (
	metaRecord struct {
		ID     string           `bson:"_id"`
		Type   model.EntityType `bson:"type"`
		Number string           `bson:"number"`
		Digits string           `bson:"digits"`
		Meta   model.Meta       `bson:"meta"`
	}

	profileRecord struct {
		ID      string        `bson:"_id"`
		Profile model.Profile `bson:"profile"`
	}

	MongoRepo struct {
		metas    *mongo.Collection
		profiles *mongo.Collection
	}
)

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		metas:    db.Collection("metas"),
		profiles: db.Collection("profiles"),
	}
}

// SaveMeta stores meta for id. A meta that does not generate id is
// rejected; an existing meta is never replaced.
func (r *MongoRepo) SaveMeta(ctx context.Context, id model.ID, meta *model.Meta) (bool, error) {
	if !meta.Match(id) {
		return false, nil
	}

	n := meta.Number()
	record := metaRecord{
		ID:     string(id),
		Type:   meta.Type,
		Number: model.FormatNumber(n),
		Digits: digits(n),
		Meta:   *meta,
	}
	_, err := r.metas.UpdateOne(ctx,
		bson.M{"_id": record.ID},
		bson.M{"$setOnInsert": record},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MongoRepo) Meta(ctx context.Context, id model.ID) (*model.Meta, error) {
	var record metaRecord
	err := r.metas.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &record.Meta, nil
}

func (r *MongoRepo) SaveProfile(ctx context.Context, profile *model.Profile) (bool, error) {
	meta, err := r.Meta(ctx, profile.ID)
	if err != nil {
		return false, err
	}
	if !verifyProfile(meta, profile) {
		return false, nil
	}

	_, err = r.profiles.ReplaceOne(ctx,
		bson.M{"_id": string(profile.ID)},
		profileRecord{ID: string(profile.ID), Profile: *profile},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MongoRepo) Profile(ctx context.Context, id model.ID) (*model.Profile, error) {
	var record profileRecord
	err := r.profiles.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &record.Profile, nil
}

// Search returns the union of users and groups matching any keyword.
func (r *MongoRepo) Search(ctx context.Context, keywords []string, limit int) (map[model.ID]*model.Meta, error) {
	results := make(map[model.ID]*model.Meta)
	for _, kw := range keywords {
		if limit > 0 && len(results) >= limit {
			break
		}

		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(kw)}
		filter := bson.M{
			"type": bson.M{"$in": bson.A{model.EntityPerson, model.EntityGroup}},
			"$or": bson.A{
				bson.M{"_id": pattern},
				bson.M{"number": pattern},
				bson.M{"digits": pattern},
			},
		}
		opts := options.Find()
		if limit > 0 {
			opts.SetLimit(int64(limit - len(results)))
		}

		cursor, err := r.metas.Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}

		var records []metaRecord
		if err := cursor.All(ctx, &records); err != nil {
			return nil, err
		}
		for i := range records {
			results[model.ID(records[i].ID)] = &records[i].Meta
		}
	}
	return results, nil
}

func (r *MongoRepo) Name(ctx context.Context, id model.ID) string {
	profile, err := r.Profile(ctx, id)
	if err != nil {
		log.Warn("load profile failed", zap.String("identifier", id.String()), zap.Error(err))
	}
	return displayName(profile, id)
}

var _ Directory = (*MongoRepo)(nil)
