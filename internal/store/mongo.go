package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"jobsync/internal/model"
)

// Mongo stores postings in a "jobs" collection with a unique index on
// fingerprint; a duplicate-key error on insert means "already present".
type Mongo struct {
	client *mongo.Client
	jobs   *mongo.Collection
	logs   *mongo.Collection
	state  *mongo.Collection
}

// NewMongo connects, verifies the primary and ensures indexes.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, unavailable("mongo connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("mongo ping", err)
	}

	m := newMongo(client.Database(database))
	_, err = m.jobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "fingerprint", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "is_new", Value: -1}, {Key: "fetched_at", Value: -1}, {Key: "id", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("mongo indexes", err)
	}
	return m, nil
}

func newMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		client: db.Client(),
		jobs:   db.Collection("jobs"),
		logs:   db.Collection("scrape_logs"),
		state:  db.Collection("app_state"),
	}
}

func (m *Mongo) InsertIfAbsent(ctx context.Context, p *model.Posting) (bool, error) {
	doc := *p
	doc.IsNew = true
	doc.AppliedAt = nil
	_, err := m.jobs.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("insert posting", err)
	}
	return true, nil
}

func (m *Mongo) ResetFreshness(ctx context.Context) (int64, error) {
	res, err := m.jobs.UpdateMany(ctx,
		bson.M{"is_new": true},
		bson.M{"$set": bson.M{"is_new": false}},
	)
	if err != nil {
		return 0, unavailable("reset freshness", err)
	}
	return res.ModifiedCount, nil
}

func mongoFilter(f Filter) bson.M {
	q := bson.M{}
	if f.Source != "" {
		q["source"] = string(f.Source)
	}
	if f.IsRemote != nil {
		q["is_remote"] = *f.IsRemote
	}
	if f.NewOnly {
		q["is_new"] = true
	}
	if f.AppliedOnly {
		q["applied_at"] = bson.M{"$ne": nil}
	}
	if f.Search != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		q["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"company": rx},
			bson.M{"location": rx},
			bson.M{"skills": rx},
		}
	}
	return q
}

func (m *Mongo) Query(ctx context.Context, f Filter, page, pageSize int) ([]model.Posting, int, error) {
	q := mongoFilter(f)
	total, err := m.jobs.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, unavailable("count postings", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "is_new", Value: -1}, {Key: "fetched_at", Value: -1}, {Key: "id", Value: 1}}).
		SetSkip(int64(Offset(page, pageSize))).
		SetLimit(int64(pageSize))
	cur, err := m.jobs.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, unavailable("query postings", err)
	}
	items := make([]model.Posting, 0, pageSize)
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, unavailable("decode postings", err)
	}
	return items, int(total), nil
}

func (m *Mongo) Stats(ctx context.Context) (model.Stats, error) {
	st := model.Stats{BySource: make(map[model.Source]int)}
	counts := []struct {
		dst    *int
		filter bson.M
	}{
		{&st.Total, bson.M{}},
		{&st.NewCount, bson.M{"is_new": true}},
		{&st.AppliedCount, bson.M{"applied_at": bson.M{"$ne": nil}}},
		{&st.RemoteCount, bson.M{"is_remote": true}},
	}
	for _, c := range counts {
		n, err := m.jobs.CountDocuments(ctx, c.filter)
		if err != nil {
			return st, unavailable("stats", err)
		}
		*c.dst = int(n)
	}

	cur, err := m.jobs.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$source"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return st, unavailable("stats by source", err)
	}
	var groups []struct {
		Source string `bson:"_id"`
		N      int    `bson:"n"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return st, unavailable("stats by source", err)
	}
	for _, g := range groups {
		st.BySource[model.Source(g.Source)] = g.N
	}
	return st, nil
}

func (m *Mongo) GetByID(ctx context.Context, id string) (*model.Posting, error) {
	var p model.Posting
	err := m.jobs.FindOne(ctx, bson.M{"id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get posting", err)
	}
	return &p, nil
}

func (m *Mongo) SetApplied(ctx context.Context, id string, at *time.Time) error {
	res, err := m.jobs.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"applied_at": at}})
	if err != nil {
		return unavailable("set applied", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) GetState(ctx context.Context, key string) (string, bool, error) {
	var doc struct {
		Value string `bson:"value"`
	}
	err := m.state.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get state", err)
	}
	return doc.Value, true, nil
}

func (m *Mongo) SetState(ctx context.Context, key, value string) error {
	return m.SetStates(ctx, map[string]string{key: value})
}

// SetStates issues one unordered bulk upsert. Each key is atomic on its own.
func (m *Mongo) SetStates(ctx context.Context, kv map[string]string) error {
	writes := make([]mongo.WriteModel, 0, len(kv))
	for k, v := range kv {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": k}).
			SetUpdate(bson.M{"$set": bson.M{"value": v}}).
			SetUpsert(true))
	}
	if len(writes) == 0 {
		return nil
	}
	if _, err := m.state.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return unavailable("set state", err)
	}
	return nil
}

func (m *Mongo) AppendLog(ctx context.Context, e model.ScrapeLogEntry) error {
	if _, err := m.logs.InsertOne(ctx, e); err != nil {
		return unavailable("append log", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
