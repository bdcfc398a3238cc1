package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 5 * time.Second

// Mongo maps names using an organisation-maintained collection of
// documents shaped like [Mapping]:
//
//	{"pypi_name": "internal-sdk", "conda_name": "acme-internal-sdk"}
//
// pypi_name must hold the normalized PyPI name.
type Mongo struct {
	client *mongo.Client // nil when the collection is borrowed
	coll   finder
}

// finder is the part of *mongo.Collection that Lookup needs.
type finder interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// NewMongo connects to uri and uses database.collection.
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Mongo{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// NewMongoFromCollection wraps an existing collection. Close does not
// disconnect its client.
func NewMongoFromCollection(coll *mongo.Collection) *Mongo {
	return &Mongo{coll: coll}
}

// Name implements Source.
func (m *Mongo) Name() string { return "mongo" }

// Lookup implements Source.
func (m *Mongo) Lookup(ctx context.Context, name string) (Mapping, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc Mapping
	err := m.coll.FindOne(ctx, bson.M{"pypi_name": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Mapping{}, false, nil
	}
	if err != nil {
		return Mapping{}, false, fmt.Errorf("mongo: find %s: %w", name, err)
	}
	doc.Source = "mongo"
	return doc, doc.CondaName != "", nil
}

// Close disconnects the client if NewMongo created it.
func (m *Mongo) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(context.Background())
}

// unavailable stands in for a configured source that could not be set up.
// Every lookup reports the setup error, which resolvers count as a miss.
type unavailable struct {
	name string
	err  error
}

// Unavailable returns a Source named name whose lookups fail with err.
// Registering it keeps priority lists that name the source valid while
// the backend is down.
func Unavailable(name string, err error) Source {
	return unavailable{name: name, err: err}
}

func (u unavailable) Name() string { return u.name }

func (u unavailable) Lookup(context.Context, string) (Mapping, bool, error) {
	return Mapping{}, false, u.err
}
