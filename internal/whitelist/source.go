package whitelist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Source yields the raw allow-listed domains.
type Source interface {
	Domains(ctx context.Context) ([]string, error)
}

// StaticSource is a fixed allow-list, usually read from WHITELIST_DOMAINS.
type StaticSource []string

// ParseStatic splits a comma-separated domain list.
func ParseStatic(csv string) StaticSource {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		out = append(out, NormalizeHost(part))
	}
	return StaticSource(dedupe(out))
}

func (s StaticSource) Domains(context.Context) ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

// MongoSource reads allow-listed sites from a collection whose documents
// carry a "url" field. The client is dialed on the first Domains call, so an
// unreachable server only fails enforced turns.
type MongoSource struct {
	opts       *options.ClientOptions
	database   string
	collection string

	mu     sync.Mutex
	client *mongo.Client
}

// NewMongoSource validates uri without connecting.
func NewMongoSource(uri, database, collection string) (*MongoSource, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)
	if err := clientOpts.Validate(); err != nil {
		return nil, fmt.Errorf("mongodb uri: %w", err)
	}
	return &MongoSource{opts: clientOpts, database: database, collection: collection}, nil
}

// connect returns the shared client, dialing and pinging it on first use.
// A failed dial is not cached.
func (s *MongoSource) connect(ctx context.Context) (*mongo.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	client, err := mongo.Connect(ctx, s.opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	s.client = client
	return client, nil
}

func (s *MongoSource) Domains(ctx context.Context) ([]string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Database(s.database).Collection(s.collection)
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"url": 1}))
	if err != nil {
		return nil, fmt.Errorf("find whitelisted sites: %w", err)
	}
	defer cursor.Close(ctx)

	var hosts []string
	for cursor.Next(ctx) {
		var doc struct {
			URL any `bson:"url"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		if s, ok := doc.URL.(string); ok {
			hosts = append(hosts, HostFromURL(s))
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate whitelisted sites: %w", err)
	}
	return dedupe(hosts), nil
}

// Close disconnects the client if it was ever dialed.
func (s *MongoSource) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	return err
}
