// Copyright (C) 2025-2026 Jose R F Junior <web2ajax@gmail.com>
// SPDX-License-Identifier: AGPL-3.0-or-later

package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DB wraps the document-store client used for the four collections this
// system owns: scout_state, worker_cases, special_charging_sessions,
// schedule_fingerprints. The method shapes
// (Insert/Merge/QueryAll/QueryFirst/UpdateFields/DeleteOne) mirror
// the teacher's generic document-store abstraction; only the backend
// changed.
type DB struct {
	Client *mongo.Client
	Name   string
	Log    *zap.Logger
}

// NewConnection connects to MongoDB and returns a DB wrapper.
func NewConnection(ctx context.Context, uri, dbName string, log *zap.Logger) (*DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect %s: %w", uri, err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Info("MongoDB connected", zap.String("uri", uri), zap.String("database", dbName))
	return &DB{Client: client, Name: dbName, Log: log}, nil
}

// Close disconnects the client.
func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

func (db *DB) collection(name string) *mongo.Collection {
	return db.Client.Database(db.Name).Collection(name)
}

// ── Query helpers ────────────────────────────────────────────────────────

// QueryAll returns content maps for all documents matching filter in
// collection.
func (db *DB) QueryAll(ctx context.Context, collection string, filter bson.M) ([]map[string]interface{}, error) {
	cur, err := db.collection(collection).Find(ctx, filter)
	if err != nil {
		db.Log.Error("find failed", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	defer cur.Close(ctx)

	rows := make([]map[string]interface{}, 0)
	for cur.Next(ctx) {
		var doc map[string]interface{}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rows = append(rows, doc)
	}
	return rows, cur.Err()
}

// QueryFirst returns the first document matching filter, or nil.
func (db *DB) QueryFirst(ctx context.Context, collection string, filter bson.M) (map[string]interface{}, error) {
	var doc map[string]interface{}
	err := db.collection(collection).FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Insert creates a new document with the given content.
func (db *DB) Insert(ctx context.Context, collection string, content map[string]interface{}) error {
	if _, ok := content["created_at"]; !ok {
		content["created_at"] = time.Now().Format(time.RFC3339)
	}
	if _, ok := content["updated_at"]; !ok {
		content["updated_at"] = time.Now().Format(time.RFC3339)
	}
	_, err := db.collection(collection).InsertOne(ctx, content)
	if err != nil {
		db.Log.Error("insert failed", zap.String("collection", collection), zap.Error(err))
	}
	return err
}

// Merge upserts a document matched by matchKeys: onCreate fields apply only
// when a new document is created, onMatch fields apply on every upsert.
func (db *DB) Merge(ctx context.Context, collection string, matchKeys, onCreate, onMatch map[string]interface{}) (created bool, err error) {
	if onCreate == nil {
		onCreate = map[string]interface{}{}
	}
	if _, ok := onCreate["created_at"]; !ok {
		onCreate["created_at"] = time.Now().Format(time.RFC3339)
	}
	if onMatch == nil {
		onMatch = map[string]interface{}{}
	}
	onMatch["updated_at"] = time.Now().Format(time.RFC3339)

	update := bson.M{
		"$setOnInsert": onCreate,
		"$set":         onMatch,
	}
	result, err := db.collection(collection).UpdateOne(ctx, bson.M(matchKeys), update, options.Update().SetUpsert(true))
	if err != nil {
		db.Log.Error("merge failed", zap.String("collection", collection), zap.Error(err))
		return false, err
	}
	return result.UpsertedCount > 0, nil
}

// UpdateFields updates fields on the document matched by filter.
func (db *DB) UpdateFields(ctx context.Context, collection string, filter bson.M, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().Format(time.RFC3339)
	_, err := db.collection(collection).UpdateOne(ctx, filter, bson.M{"$set": fields})
	return err
}

// DeleteOne removes the document matched by filter.
func (db *DB) DeleteOne(ctx context.Context, collection string, filter bson.M) error {
	_, err := db.collection(collection).DeleteOne(ctx, filter)
	return err
}

// ── Serialization helpers ────────────────────────────────────────────────

// ToMap converts a struct to a map via JSON roundtrip.
func ToMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMap converts a content map to a struct via JSON roundtrip.
func FromMap(m map[string]interface{}, dst interface{}) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// GetString extracts a string field from a content map.
func GetString(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// GetFloat64 extracts a float64 field from a content map.
func GetFloat64(m map[string]interface{}, key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

// GetInt extracts an int field from a content map.
func GetInt(m map[string]interface{}, key string) int {
	return int(GetFloat64(m, key))
}

// GetBool extracts a bool field from a content map.
func GetBool(m map[string]interface{}, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// GetTime parses a time string from a content map.
func GetTime(m map[string]interface{}, key string) time.Time {
	s := GetString(m, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// GetTimePtr parses a time string, returning nil if empty.
func GetTimePtr(m map[string]interface{}, key string) *time.Time {
	t := GetTime(m, key)
	if t.IsZero() {
		return nil
	}
	return &t
}
