// Package memstore is an in-process store client. It keeps documents in
// memory and evaluates the native filter, update and aggregation dialect
// itself, including unique indexes and snapshot transactions.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/ctxsync"
	"go.mongodb.org/mongo-driver/bson"
)

// Scheme is the URI scheme served by this package.
const Scheme = "memory"

var (
	// ErrClientClosed is returned when a closed client is used.
	ErrClientClosed = errors.New("client is disconnected")
	// ErrWriteConflict is returned when committing a transaction whose
	// snapshot was changed by another write.
	ErrWriteConflict = errors.New("WriteConflict: transaction conflicts with a concurrent write")
	// ErrNoTransaction is returned when committing or aborting a session
	// without an active transaction.
	ErrNoTransaction = errors.New("no transaction started")
	// ErrTransactionInProgress is returned when starting a transaction
	// twice.
	ErrTransactionInProgress = errors.New("transaction already in progress")
)

// ErrIndexNotFound is returned when dropping an index that does not exist.
type ErrIndexNotFound struct {
	Name string
}

// Error implements [error].
func (e ErrIndexNotFound) Error() string {
	return fmt.Sprintf("index not found with name [%s]", e.Name)
}

// ErrIndexConflict is returned when creating an index whose name is taken by
// an index on other keys.
type ErrIndexConflict struct {
	Name string
}

// Error implements [error].
func (e ErrIndexConflict) Error() string {
	return fmt.Sprintf("Index with name: %s already exists with different options", e.Name)
}

// Connector implements [domain.Connector]. Clients opened for the same
// database name share their data.
type Connector struct {
	mu          *ctxsync.Mutex
	dbs         map[string]*database
	idGenerator domain.IDGenerator
	timeGetter  domain.TimeGetter
}

// NewConnector returns a new implementation of [domain.Connector].
func NewConnector(opts ...Option) *Connector {
	c := &Connector{
		mu:          ctxsync.NewMutex(),
		dbs:         map[string]*database{},
		idGenerator: idgenerator.NewIDGenerator(),
		timeGetter:  timegetter.NewTimeGetter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect implements [domain.Connector]. The database is named by the path of
// a memory:// uri.
func (c *Connector) Connect(ctx context.Context, uri string, _ map[string]any) (domain.StoreClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if u.Scheme != Scheme {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		name = u.Host
	}
	if name == "" {
		name = "test"
	}
	return &Client{connector: c, name: name}, nil
}

// Client implements [domain.StoreClient].
type Client struct {
	connector *Connector
	name      string
	closed    atomic.Bool
}

type sessionKey struct{}

// db returns the database an operation runs on. The caller holds the
// connector lock.
func (c *Client) db(ctx context.Context) *database {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s.client == c && s.tx != nil {
		return s.tx
	}
	db, ok := c.connector.dbs[c.name]
	if !ok {
		db = newDatabase()
		c.connector.dbs[c.name] = db
	}
	return db
}

func (c *Client) lock(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.connector.mu.Lock(ctx)
}

func (c *Client) unlock() {
	c.connector.mu.Unlock()
}

// Collection implements [domain.StoreClient].
func (c *Client) Collection(name string) domain.StoreCollection {
	return &Collection{client: c, name: name}
}

// ListCollectionNames implements [domain.StoreClient].
func (c *Client) ListCollectionNames(ctx context.Context) ([]string, error) {
	if err := c.lock(ctx); err != nil {
		return nil, err
	}
	defer c.unlock()
	return slices.Sorted(maps.Keys(c.db(ctx).colls)), nil
}

// StartSession implements [domain.StoreClient].
func (c *Client) StartSession(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return &Session{id: uuid.NewString(), client: c}, nil
}

// Close implements [domain.StoreClient]. Data is kept for later clients.
func (c *Client) Close(context.Context) error {
	c.closed.Store(true)
	return nil
}

// Session implements [domain.Session]. A transaction works on a private copy
// of the database that replaces the shared one on commit.
type Session struct {
	id     string
	client *Client
	tx     *database
	base   uint64
	ended  bool
}

// ID implements [domain.Session].
func (s *Session) ID() string { return s.id }

// Bind implements [domain.Session].
func (s *Session) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// StartTransaction implements [domain.Session].
func (s *Session) StartTransaction(ctx context.Context) error {
	if err := s.client.lock(ctx); err != nil {
		return err
	}
	defer s.client.unlock()
	switch {
	case s.ended:
		return domain.ErrSessionEnded
	case s.tx != nil:
		return ErrTransactionInProgress
	}
	db := s.client.db(context.Background())
	s.tx = db.clone()
	s.base = db.version
	return nil
}

// CommitTransaction implements [domain.Session].
func (s *Session) CommitTransaction(ctx context.Context) error {
	if err := s.client.lock(ctx); err != nil {
		return err
	}
	defer s.client.unlock()
	if s.ended {
		return domain.ErrSessionEnded
	}
	if s.tx == nil {
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	db := s.client.db(context.Background())
	if db.version != s.base {
		return ErrWriteConflict
	}
	tx.version = db.version + 1
	s.client.connector.dbs[s.client.name] = tx
	return nil
}

// AbortTransaction implements [domain.Session].
func (s *Session) AbortTransaction(ctx context.Context) error {
	if err := s.client.lock(ctx); err != nil {
		return err
	}
	defer s.client.unlock()
	if s.ended {
		return domain.ErrSessionEnded
	}
	if s.tx == nil {
		return ErrNoTransaction
	}
	s.tx = nil
	return nil
}

// EndSession implements [domain.Session]. An active transaction is aborted.
func (s *Session) EndSession(ctx context.Context) {
	if err := s.client.lock(context.WithoutCancel(ctx)); err != nil {
		s.ended, s.tx = true, nil
		return
	}
	defer s.client.unlock()
	s.ended, s.tx = true, nil
}

type database struct {
	colls   map[string]*collectionData
	version uint64
}

func newDatabase() *database {
	return &database{colls: map[string]*collectionData{}}
}

func (db *database) clone() *database {
	res := &database{colls: make(map[string]*collectionData, len(db.colls)), version: db.version}
	for name, data := range db.colls {
		res.colls[name] = data.clone()
	}
	return res
}

type collectionData struct {
	docs       map[string]bson.M
	order      []string
	indexes    map[string]*index
	indexOrder []string
}

func newCollectionData() *collectionData {
	data := &collectionData{docs: map[string]bson.M{}, indexes: map[string]*index{}}
	data.addIndex(newIndex(domain.IndexModel{Name: "_id_", Keys: bson.D{{Key: "_id", Value: 1}}, Unique: true}))
	return data
}

func (d *collectionData) clone() *collectionData {
	res := &collectionData{
		docs:       make(map[string]bson.M, len(d.docs)),
		order:      slices.Clone(d.order),
		indexes:    make(map[string]*index, len(d.indexes)),
		indexOrder: slices.Clone(d.indexOrder),
	}
	for k, doc := range d.docs {
		res.docs[k] = normalizeDoc(doc)
	}
	for name, i := range d.indexes {
		c := newIndex(i.model)
		for _, doc := range res.docs {
			_ = c.insert("", doc)
		}
		res.indexes[name] = c
	}
	return res
}

func (d *collectionData) addIndex(i *index) {
	d.indexes[i.model.Name] = i
	d.indexOrder = append(d.indexOrder, i.model.Name)
}

func (d *collectionData) textFields() []string {
	for _, name := range d.indexOrder {
		if i := d.indexes[name]; i.text {
			return i.textFields()
		}
	}
	return nil
}

// all returns the documents in insertion order.
func (d *collectionData) all() []bson.M {
	res := make([]bson.M, 0, len(d.order))
	for _, k := range d.order {
		res = append(res, d.docs[k])
	}
	return res
}

func idKey(id any) string {
	return fmt.Sprintf("%T:%v", id, id)
}

func (d *collectionData) insert(ns string, doc bson.M) error {
	k := idKey(doc["_id"])
	var added []*index
	for _, name := range d.indexOrder {
		i := d.indexes[name]
		if err := i.insert(ns, doc); err != nil {
			for _, a := range added {
				a.remove(doc)
			}
			return err
		}
		added = append(added, i)
	}
	d.docs[k] = doc
	d.order = append(d.order, k)
	return nil
}

func (d *collectionData) remove(doc bson.M) {
	k := idKey(doc["_id"])
	for _, i := range d.indexes {
		i.remove(doc)
	}
	delete(d.docs, k)
	d.order = slices.DeleteFunc(d.order, func(o string) bool { return o == k })
}

// replace swaps old for doc, restoring old when doc violates an index.
func (d *collectionData) replace(ns string, old, doc bson.M) error {
	for _, i := range d.indexes {
		i.remove(old)
	}
	var added []*index
	for _, name := range d.indexOrder {
		i := d.indexes[name]
		if err := i.insert(ns, doc); err != nil {
			for _, a := range added {
				a.remove(doc)
			}
			for _, i := range d.indexes {
				_ = i.insert(ns, old)
			}
			return err
		}
		added = append(added, i)
	}
	d.docs[idKey(doc["_id"])] = doc
	return nil
}
