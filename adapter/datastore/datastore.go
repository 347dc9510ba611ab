// Package datastore contains the default [domain.StorageAdapter]
// implementation. It compiles application requests, runs them through a
// store client and rebuilds the results.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/document"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/memstore"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/mongostore"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/query"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/schema"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/update"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/singleflight"
)

// DefaultURI is used when no uri is configured.
const DefaultURI = "mongodb://localhost:27017/parse"

// State is the state of the store connection.
type State uint8

// Connection states.
const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

var (
	dupKeyField = regexp.MustCompile(`dup key: \{\s*"?([^:"\s]+)"?\s*:`)
	indexField  = regexp.MustCompile(`index: (\S+?)_(?:-?1|text|2dsphere)\b`)
)

// storeConfig holds the store options read by the adapter itself. Any other
// key is forwarded to the connector.
type storeConfig struct {
	MaxTimeMS                   int64          `bson:"maxTimeMS"`
	DisableIndexFieldValidation bool           `bson:"disableIndexFieldValidation"`
	Rest                        map[string]any `bson:",remain"`
}

// Datastore implements [domain.StorageAdapter].
type Datastore struct {
	uri                 string
	collectionPrefix    string
	storeOptions        map[string]any
	maxTime             time.Duration
	validateIndexFields bool
	connector           domain.Connector
	decoder             domain.Decoder
	timeGetter          domain.TimeGetter
	logger              *slog.Logger
	queryCompiler       domain.QueryCompiler
	updateCompiler      domain.UpdateCompiler
	documentBuilder     domain.DocumentBuilder

	mu     sync.Mutex
	state  State
	client domain.StoreClient
	group  singleflight.Group
}

// NewDatastore returns a new implementation of [domain.StorageAdapter]. No
// connection is opened until the first operation or [Datastore.Connect].
func NewDatastore(opts ...Option) (domain.StorageAdapter, error) {
	d := &Datastore{
		uri:                 DefaultURI,
		validateIndexFields: true,
		decoder:             decoder.NewDecoder(decoder.WithWeakTypes(true)),
		timeGetter:          timegetter.NewTimeGetter(),
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	var cfg storeConfig
	if err := d.decoder.Decode(d.storeOptions, &cfg); err != nil {
		return nil, domain.Invalid("invalid store options: %v", err)
	}
	if cfg.MaxTimeMS > 0 {
		d.maxTime = time.Duration(cfg.MaxTimeMS) * time.Millisecond
	}
	if cfg.DisableIndexFieldValidation {
		d.validateIndexFields = false
	}
	d.storeOptions = cfg.Rest

	if d.queryCompiler == nil {
		d.queryCompiler = query.NewCompiler(query.WithTimeGetter(d.timeGetter), query.WithLogger(d.logger))
	}
	if d.updateCompiler == nil {
		d.updateCompiler = update.NewCompiler()
	}
	if d.documentBuilder == nil {
		d.documentBuilder = document.NewBuilder(document.WithLogger(d.logger))
	}
	if d.connector == nil {
		c, err := d.defaultConnector()
		if err != nil {
			return nil, err
		}
		d.connector = c
	}
	return d, nil
}

func (d *Datastore) defaultConnector() (domain.Connector, error) {
	u, err := url.Parse(d.uri)
	if err != nil {
		return nil, domain.Invalid("invalid store uri: %v", err)
	}
	switch u.Scheme {
	case memstore.Scheme:
		return memstore.NewConnector(memstore.WithTimeGetter(d.timeGetter)), nil
	case "mongodb", "mongodb+srv":
		return mongostore.NewConnector(mongostore.WithDecoder(d.decoder)), nil
	}
	return nil, domain.Invalid("unsupported store uri scheme %q", u.Scheme)
}

// State returns the current connection state.
func (d *Datastore) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Connect implements [domain.StorageAdapter]. Concurrent calls share one
// connection attempt. Canceling ctx stops waiting but does not abort the
// attempt other callers may be waiting for.
func (d *Datastore) Connect(ctx context.Context) error {
	_, err := d.connect(ctx)
	return err
}

func (d *Datastore) connect(ctx context.Context) (domain.StoreClient, error) {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()
	if client != nil {
		return client, nil
	}

	ch := d.group.DoChan("connect", func() (any, error) {
		d.mu.Lock()
		if d.client != nil {
			defer d.mu.Unlock()
			return d.client, nil
		}
		d.state = Connecting
		d.mu.Unlock()

		client, err := d.connector.Connect(context.WithoutCancel(ctx), d.uri, maps.Clone(d.storeOptions))

		d.mu.Lock()
		defer d.mu.Unlock()
		if err != nil {
			d.state = Disconnected
			return nil, err
		}
		d.client = client
		d.state = Connected
		d.logger.Debug("connected to store", "uri", redact(d.uri))
		return client, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.StoreClient), nil
	}
}

// Shutdown implements [domain.StorageAdapter].
func (d *Datastore) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.state = Disconnected
	d.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close(ctx)
}

// reset drops the current client so the next operation reconnects.
func (d *Datastore) reset(ctx context.Context, cause error) {
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.state = Disconnected
	d.mu.Unlock()
	if client == nil {
		return
	}
	d.logger.Warn("store connection reset", "error", cause)
	if err := client.Close(context.WithoutCancel(ctx)); err != nil {
		d.logger.Debug("closing store client", "error", err)
	}
}

// handleError normalizes store errors. Duplicate keys become
// [domain.ErrDuplicateValue]. Authorization and transport errors reset the
// connection and are returned unchanged.
func (d *Datastore) handleError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var dk domain.ErrDuplicateKey
	if errors.As(err, &dk) {
		return domain.ErrDuplicateValue{Field: duplicatedField(dk.Message), Err: err}
	}
	if errors.As(err, new(domain.ErrAuthorization)) || errors.As(err, new(domain.ErrTransport)) {
		d.reset(ctx, err)
	}
	return err
}

// duplicatedField extracts the field name from a duplicate key message. It
// returns "" when the message has no recognizable field.
func duplicatedField(msg string) string {
	var name string
	if m := dupKeyField.FindStringSubmatch(msg); m != nil {
		name = m[1]
	} else if m := indexField.FindStringSubmatch(msg); m != nil {
		name = m[1]
	}
	if stripped, ok := fieldname.StripPointer(name); ok {
		return stripped
	}
	return name
}

func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Redacted()
}

func (d *Datastore) collection(ctx context.Context, className string) (domain.StoreCollection, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(d.collectionPrefix + className), nil
}

func (d *Datastore) schemaCollection(ctx context.Context) (domain.StoreCollection, error) {
	return d.collection(ctx, schema.CollectionName)
}

// writeContext binds ctx to the session of the write, if any.
func writeContext(ctx context.Context, opts []domain.WriteOption) context.Context {
	var wo domain.WriteOptions
	for _, opt := range opts {
		opt(&wo)
	}
	if wo.Session == nil {
		return ctx
	}
	return wo.Session.Bind(ctx)
}

// storeSchema returns the schema used to compile requests. Permission fields
// and the password hash are stored as they are, so they are not declared.
func storeSchema(className string, s domain.Schema) *domain.Schema {
	res := s
	res.Fields = maps.Clone(s.Fields)
	delete(res.Fields, fieldname.ReadPerm)
	delete(res.Fields, fieldname.WritePerm)
	if className == fieldname.UserClass {
		delete(res.Fields, fieldname.HashedPassword)
	}
	return &res
}

var readPreferences = []domain.ReadPreference{
	domain.ReadPrimary,
	domain.ReadPrimaryPreferred,
	domain.ReadSecondary,
	domain.ReadSecondaryPreferred,
	domain.ReadNearest,
}

func checkReadPreference(rp domain.ReadPreference) error {
	if rp == "" || slices.Contains(readPreferences, rp) {
		return nil
	}
	return domain.Invalid("Not supported read preference.")
}

var explainModes = []string{"queryPlanner", "queryPlannerExtended", "executionStats", "allPlansExecution"}

// explainMode returns the verbosity of an explain request, or "" to run the
// query.
func explainMode(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case bool:
		if t {
			return "allPlansExecution", nil
		}
		return "", nil
	case string:
		switch {
		case t == "true":
			return "allPlansExecution", nil
		case t == "false":
			return "", nil
		case slices.Contains(explainModes, t):
			return t, nil
		}
	}
	return "", domain.Invalid("Invalid value for explain")
}

func caseInsensitiveCollation() bson.M {
	return bson.M{"locale": "en_US", "strength": 2}
}

// groupID normalizes the group key of an aggregation result.
func groupID(id any, pointerGroup bool) any {
	if s, ok := id.(string); ok {
		if pointerGroup {
			if _, after, found := strings.Cut(s, "$"); found {
				s = after
			}
		}
		if s == "" {
			return nil
		}
		return s
	}
	if m, ok := structure.ToMap(id); ok && len(m) == 0 {
		return nil
	}
	return id
}

func classNotFound(className string) error {
	return fmt.Errorf("%w: %s", domain.ErrClassNotFound, className)
}
