package catalog

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

// Defaults for MongoOptions.
const (
	DefaultDatabase   = "mockupkit"
	DefaultCollection = "products"
)

// MongoOptions configures a MongoStore.
type MongoOptions struct {
	URI        string
	Database   string // default DefaultDatabase
	Collection string // default DefaultCollection
}

// MongoStore keeps products in a collection and template bytes in a
// GridFS bucket, keyed by Template.Path.
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	bucket   *gridfs.Bucket
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.URI == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "mongo uri is required")
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(opts.Database)
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &MongoStore{
		client:   client,
		products: db.Collection(opts.Collection),
		bucket:   bucket,
	}, nil
}

// List returns every product ordered by ID.
func (s *MongoStore) List(ctx context.Context) ([]Product, error) {
	cur, err := s.products.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	var out []Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

// Get returns one product.
func (s *MongoStore) Get(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find product %q: %w", id, err)
	}
	return &p, nil
}

// Template downloads the newest GridFS revision named t.Path.
func (s *MongoStore) Template(ctx context.Context, t Template) ([]byte, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(t.Path)
	if stderrors.Is(err, gridfs.ErrFileNotFound) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "template %s", t.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", t.Path, err)
	}
	defer stream.Close()
	return io.ReadAll(stream)
}

// Put upserts a product and uploads the given template files
// (keyed by Template.Path) to GridFS.
func (s *MongoStore) Put(ctx context.Context, p Product, files map[string][]byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for _, t := range p.Templates {
		data, ok := files[t.Path]
		if !ok {
			continue
		}
		if _, err := s.bucket.UploadFromStream(t.Path, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("upload template %s: %w", t.Path, err)
		}
	}
	_, err := s.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert product %q: %w", p.ID, err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)

// Sync copies every product of src, with its template bytes, into dst.
// It returns the number of products written.
func Sync(ctx context.Context, dst *MongoStore, src Store) (int, error) {
	products, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, p := range products {
		files := make(map[string][]byte, len(p.Templates))
		for _, t := range p.Templates {
			data, err := src.Template(ctx, t)
			if err != nil {
				return i, fmt.Errorf("product %q: %w", p.ID, err)
			}
			files[t.Path] = data
		}
		if err := dst.Put(ctx, p, files); err != nil {
			return i, err
		}
	}
	return len(products), nil
}
