// Package mongostore implements the store client interfaces over the MongoDB
// Go driver.
package mongostore

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// DefaultDatabase is used when the uri names no database.
const DefaultDatabase = "test"

// ClientConfig holds the driver options accepted by [Connector.Connect].
type ClientConfig struct {
	AppName                string        `bson:"appName"`
	MaxPoolSize            uint64        `bson:"maxPoolSize"`
	MinPoolSize            uint64        `bson:"minPoolSize"`
	ConnectTimeout         time.Duration `bson:"connectTimeout"`
	ServerSelectionTimeout time.Duration `bson:"serverSelectionTimeout"`
	RetryWrites            *bool         `bson:"retryWrites"`
	DirectConnection       *bool         `bson:"directConnection"`
	Ping                   bool          `bson:"ping"`
}

// Connector implements [domain.Connector].
type Connector struct {
	decoder domain.Decoder
}

// NewConnector returns a new implementation of [domain.Connector].
func NewConnector(opts ...Option) domain.Connector {
	c := &Connector{
		decoder: decoder.NewDecoder(decoder.WithWeakTypes(true)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) clientOptions(uri string, raw map[string]any) (*options.ClientOptions, bool, error) {
	var cfg ClientConfig
	if raw != nil {
		if err := c.decoder.Decode(raw, &cfg); err != nil {
			return nil, false, domain.Invalid("invalid store options: %v", err)
		}
	}
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}
	if cfg.RetryWrites != nil {
		opts.SetRetryWrites(*cfg.RetryWrites)
	}
	if cfg.DirectConnection != nil {
		opts.SetDirect(*cfg.DirectConnection)
	}
	return opts, cfg.Ping, nil
}

// Connect implements [domain.Connector]. The database is the one named in
// uri.
func (c *Connector) Connect(ctx context.Context, uri string, raw map[string]any) (domain.StoreClient, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, domain.Invalid("invalid store uri: %v", err)
	}
	opts, ping, err := c.clientOptions(uri, raw)
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, classify(err)
	}
	if ping {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, classify(err)
		}
	}
	name := cs.Database
	if name == "" {
		name = DefaultDatabase
	}
	return &Client{client: client, db: client.Database(name)}, nil
}

// Client implements [domain.StoreClient].
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Collection implements [domain.StoreClient].
func (c *Client) Collection(name string) domain.StoreCollection {
	return &Collection{db: c.db, name: name}
}

// ListCollectionNames implements [domain.StoreClient].
func (c *Client) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := c.db.ListCollectionNames(ctx, bson.D{})
	return names, classify(err)
}

// StartSession implements [domain.StoreClient].
func (c *Client) StartSession(context.Context) (domain.Session, error) {
	s, err := c.client.StartSession()
	if err != nil {
		return nil, classify(err)
	}
	return &Session{session: s}, nil
}

// Close implements [domain.StoreClient].
func (c *Client) Close(ctx context.Context) error {
	return classify(c.client.Disconnect(ctx))
}

// Session implements [domain.Session].
type Session struct {
	session mongo.Session
}

// ID implements [domain.Session]. It is the hex form of the server session
// uuid.
func (s *Session) ID() string {
	id := s.session.ID()
	if v, err := id.LookupErr("id"); err == nil {
		if _, data, ok := v.BinaryOK(); ok {
			return hex.EncodeToString(data)
		}
	}
	return id.String()
}

// Bind implements [domain.Session].
func (s *Session) Bind(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, s.session)
}

// StartTransaction implements [domain.Session].
func (s *Session) StartTransaction(context.Context) error {
	return classify(s.session.StartTransaction())
}

// CommitTransaction implements [domain.Session].
func (s *Session) CommitTransaction(ctx context.Context) error {
	return classify(s.session.CommitTransaction(ctx))
}

// AbortTransaction implements [domain.Session].
func (s *Session) AbortTransaction(ctx context.Context) error {
	return classify(s.session.AbortTransaction(ctx))
}

// EndSession implements [domain.Session].
func (s *Session) EndSession(ctx context.Context) {
	s.session.EndSession(ctx)
}
