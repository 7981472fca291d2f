//go:build mongo

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"anagenesis/internal/model"
)

const (
	mongoRunsCollection      = "runs"
	mongoHistoryCollection   = "fitness_history"
	mongoIterationsColl      = "iterations"
	mongoSpeciesCollection   = "species_history"
	mongoChampionsCollection = "champions"
)

// MongoStore keeps run history in MongoDB, one document per run per
// collection. Payloads are stored as the same JSON blobs the other backends
// use, so codec versioning applies uniformly.
type MongoStore struct {
	uri      string
	database string

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
}

func newMongoStore(uri, database string) (Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		database = "anagenesis"
	}
	return &MongoStore{uri: uri, database: database}, nil
}

func (s *MongoStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("ping mongo: %w", err)
	}
	s.client = client
	s.db = client.Database(s.database)
	return nil
}

func (s *MongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(context.Background())
	s.client = nil
	s.db = nil
	return err
}

func (s *MongoStore) collection(name string) (*mongo.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("mongo store is not initialized")
	}
	return s.db.Collection(name), nil
}

func (s *MongoStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return s.upsertPayload(ctx, mongoRunsCollection, run.ID, payload)
}

func (s *MongoStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	payload, ok, err := s.findPayload(ctx, mongoRunsCollection, id)
	if err != nil || !ok {
		return model.RunRecord{}, ok, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *MongoStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	coll, err := s.collection(mongoRunsCollection)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var runs []model.RunRecord
	for cur.Next(ctx) {
		var doc struct {
			Payload []byte `bson:"payload"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		run, err := DecodeRun(doc.Payload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, cur.Err()
}

func (s *MongoStore) DeleteRun(ctx context.Context, id string) error {
	for _, name := range []string{
		mongoRunsCollection, mongoHistoryCollection,
		mongoIterationsColl, mongoSpeciesCollection, mongoChampionsCollection,
	} {
		coll, err := s.collection(name)
		if err != nil {
			return err
		}
		if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoStore) SaveFitnessHistory(ctx context.Context, runID string, history []float64) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.upsertPayload(ctx, mongoHistoryCollection, runID, payload)
}

func (s *MongoStore) GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	payload, ok, err := s.findPayload(ctx, mongoHistoryCollection, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, err
	}
	return history, true, nil
}

func (s *MongoStore) SaveIterations(ctx context.Context, runID string, iterations []model.IterationRecord) error {
	payload, err := EncodeIterations(iterations)
	if err != nil {
		return err
	}
	return s.upsertPayload(ctx, mongoIterationsColl, runID, payload)
}

func (s *MongoStore) GetIterations(ctx context.Context, runID string) ([]model.IterationRecord, bool, error) {
	payload, ok, err := s.findPayload(ctx, mongoIterationsColl, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	iterations, err := DecodeIterations(payload)
	if err != nil {
		return nil, false, err
	}
	return iterations, true, nil
}

func (s *MongoStore) SaveSpeciesHistory(ctx context.Context, runID string, history []model.SpeciesIteration) error {
	payload, err := EncodeSpeciesHistory(history)
	if err != nil {
		return err
	}
	return s.upsertPayload(ctx, mongoSpeciesCollection, runID, payload)
}

func (s *MongoStore) GetSpeciesHistory(ctx context.Context, runID string) ([]model.SpeciesIteration, bool, error) {
	payload, ok, err := s.findPayload(ctx, mongoSpeciesCollection, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	history, err := DecodeSpeciesHistory(payload)
	if err != nil {
		return nil, false, err
	}
	return history, true, nil
}

func (s *MongoStore) SaveChampion(ctx context.Context, runID string, champion model.ChampionRecord) error {
	payload, err := EncodeChampion(champion)
	if err != nil {
		return err
	}
	return s.upsertPayload(ctx, mongoChampionsCollection, runID, payload)
}

func (s *MongoStore) GetChampion(ctx context.Context, runID string) (model.ChampionRecord, bool, error) {
	payload, ok, err := s.findPayload(ctx, mongoChampionsCollection, runID)
	if err != nil || !ok {
		return model.ChampionRecord{}, ok, err
	}
	champion, err := DecodeChampion(payload)
	if err != nil {
		return model.ChampionRecord{}, false, fmt.Errorf("decode champion for run %s: %w", runID, err)
	}
	return champion, true, nil
}

func (s *MongoStore) upsertPayload(ctx context.Context, collection, id string, payload []byte) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	_, err = coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"payload": payload}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) findPayload(ctx context.Context, collection, id string) ([]byte, bool, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, false, err
	}
	var doc struct {
		Payload []byte `bson:"payload"`
	}
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return doc.Payload, true, nil
}
