package mongo

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs"
)

const Name = "mongo"

const defaultDatabase = "happykv"

func init() {
	wcs.Register(wcs.Registration{
		Registration: base.Registration{
			Name: Name, Title: "MongoDB",
			Local: false, Volatile: false,
		},
		Open: func(addr string, opt wcs.Options) (wcs.Client, error) {
			return New(addr, opt), nil
		},
	})
}

var (
	_ wcs.Client  = (*Client)(nil)
	_ wcs.Cluster = (*cluster)(nil)
	_ wcs.Table   = (*table)(nil)
)

// New creates a client for the MongoDB backend. The address is either a
// full mongodb:// URI, or a "host:port/database" pair; the database part
// defaults to "happykv". The connection is established on Start.
func New(addr string, opt wcs.Options) *Client {
	db := defaultDatabase
	if !strings.HasPrefix(addr, "mongodb://") {
		if i := strings.LastIndex(addr, "/"); i >= 0 {
			if name := addr[i+1:]; name != "" {
				db = name
			}
			addr = addr[:i]
		}
		addr = "mongodb://" + addr
	}
	return &Client{addr: addr, db: db, opt: opt}
}

type Client struct {
	addr string
	db   string
	opt  wcs.Options

	mu      sync.Mutex
	sess    *mongo.Client
	started bool
}

func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	mopt := options.Client().ApplyURI(c.addr)
	if c.opt.TimeoutSeconds != nil {
		d := time.Duration(*c.opt.TimeoutSeconds * float64(time.Second))
		mopt = mopt.SetConnectTimeout(d)
	}
	sess, err := mongo.NewClient(mopt)
	if err != nil {
		return err
	}
	if err = sess.Connect(context.TODO()); err != nil {
		return err
	}
	c.sess = sess
	c.started = true
	return nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	err := c.sess.Disconnect(context.TODO())
	c.sess = nil
	return err
}

func (c *Client) Admin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opt.Admin
}

func (c *Client) MarkAdmin() {
	c.mu.Lock()
	c.opt.Admin = true
	c.mu.Unlock()
}

func (c *Client) ready(admin bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return wcs.ErrNotStarted
	}
	if admin && !c.opt.Admin {
		return wcs.ErrNotAdmin
	}
	return nil
}

func (c *Client) ListClusters(ctx context.Context) ([]wcs.Cluster, []string, error) {
	if err := c.ready(true); err != nil {
		return nil, nil, err
	}
	return []wcs.Cluster{&cluster{c: c}}, nil, nil
}

const metaCollection = "tables"

func (c *Client) database() *mongo.Database {
	return c.sess.Database(c.db)
}

func (c *Client) meta() *mongo.Collection {
	return c.database().Collection(metaCollection)
}

// dataCollection returns the collection holding rows of a table. The name
// is hex-encoded to stay clear of MongoDB naming restrictions.
func (c *Client) dataCollection(table string) *mongo.Collection {
	return c.database().Collection("t_" + hex.EncodeToString([]byte(table)))
}

type metaDoc struct {
	ID       string   `bson:"_id"`
	Families []string `bson:"families"`
}

// rowDoc is a single row: the id is the hex-encoded row key, cells map
// hex-encoded column names to values. Hex keeps the natural sort order of
// row keys under MongoDB's string comparison.
type rowDoc struct {
	ID    string            `bson:"_id"`
	Cells map[string][]byte `bson:"cells"`
}

func (d *rowDoc) row() (wcs.Row, error) {
	row := make(wcs.Row, len(d.Cells))
	for col, val := range d.Cells {
		name, err := hex.DecodeString(col)
		if err != nil {
			return nil, err
		}
		row[string(name)] = val
	}
	return row, nil
}

type cluster struct {
	c *Client
}

func (cl *cluster) Name() string       { return cl.c.db }
func (cl *cluster) Client() wcs.Client { return cl.c }
func (cl *cluster) Copy() wcs.Cluster  { return &cluster{c: cl.c} }

func (cl *cluster) ListTables(ctx context.Context) ([]string, error) {
	if err := cl.c.ready(true); err != nil {
		return nil, err
	}
	cur, err := cl.c.meta().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []string
	for cur.Next(ctx) {
		var d metaDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.ID)
	}
	return out, cur.Err()
}

func (cl *cluster) CreateTable(ctx context.Context, name string, families []string) error {
	if err := cl.c.ready(true); err != nil {
		return err
	}
	err := cl.c.meta().FindOne(ctx, bson.M{"_id": name}).Err()
	if err == nil {
		return wcs.ErrTableExists
	} else if err != mongo.ErrNoDocuments {
		return err
	}
	_, err = cl.c.meta().InsertOne(ctx, metaDoc{ID: name, Families: families})
	return err
}

func (cl *cluster) DeleteTable(ctx context.Context, name string) error {
	if err := cl.c.ready(true); err != nil {
		return err
	}
	err := cl.c.meta().FindOneAndDelete(ctx, bson.M{"_id": name}).Err()
	if err == mongo.ErrNoDocuments {
		return wcs.ErrTableNotFound
	} else if err != nil {
		return err
	}
	return cl.c.dataCollection(name).Drop(ctx)
}

func (cl *cluster) Table(name string) wcs.Table {
	return &table{c: cl.c, name: name}
}

type table struct {
	c    *Client
	name string
}

func (t *table) Name() string { return t.name }

func (t *table) Families(ctx context.Context) ([]string, error) {
	if err := t.c.ready(false); err != nil {
		return nil, err
	}
	return t.families(ctx)
}

func (t *table) families(ctx context.Context) ([]string, error) {
	var d metaDoc
	err := t.c.meta().FindOne(ctx, bson.M{"_id": t.name}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, wcs.ErrTableNotFound
	} else if err != nil {
		return nil, err
	}
	return d.Families, nil
}

func (t *table) Row(ctx context.Context, key []byte, columns ...string) (wcs.Row, error) {
	if err := t.c.ready(false); err != nil {
		return nil, err
	}
	if _, err := t.families(ctx); err != nil {
		return nil, err
	}
	var d rowDoc
	err := t.c.dataCollection(t.name).
		FindOne(ctx, bson.M{"_id": hex.EncodeToString(key)}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, wcs.ErrRowNotFound
	} else if err != nil {
		return nil, err
	}
	row, err := d.row()
	if err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, wcs.ErrRowNotFound
	}
	return wcs.FilterColumns(row, columns), nil
}

func (t *table) Put(ctx context.Context, key []byte, data wcs.Row) error {
	if err := t.c.ready(false); err != nil {
		return err
	}
	fams, err := t.families(ctx)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(fams))
	for _, f := range fams {
		set[f] = struct{}{}
	}
	upd := bson.M{}
	for col, val := range data {
		fam, _ := wcs.SplitColumn(col)
		if _, ok := set[fam]; !ok {
			return wcs.ErrFamilyNotFound
		}
		upd["cells."+hex.EncodeToString([]byte(col))] = val
	}
	if len(upd) == 0 {
		return nil
	}
	_, err = t.c.dataCollection(t.name).UpdateOne(ctx,
		bson.M{"_id": hex.EncodeToString(key)},
		bson.M{"$set": upd},
		options.Update().SetUpsert(true))
	return err
}

func (t *table) Delete(ctx context.Context, key []byte, columns ...string) error {
	if err := t.c.ready(false); err != nil {
		return err
	}
	if _, err := t.families(ctx); err != nil {
		return err
	}
	coll := t.c.dataCollection(t.name)
	id := hex.EncodeToString(key)
	if len(columns) == 0 {
		_, err := coll.DeleteOne(ctx, bson.M{"_id": id})
		return err
	}
	var d rowDoc
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil
	} else if err != nil {
		return err
	}
	row, err := d.row()
	if err != nil {
		return err
	}
	nd := buildRowDoc(id, row, columns)
	if len(nd.Cells) == 0 {
		_, err = coll.DeleteOne(ctx, bson.M{"_id": id})
		return err
	}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": id}, nd)
	return err
}

// buildRowDoc rebuilds a row document without the selected columns.
func buildRowDoc(id string, row wcs.Row, drop []string) rowDoc {
	d := rowDoc{ID: id, Cells: make(map[string][]byte)}
	for col, val := range row {
		if !colSelected(col, drop) {
			d.Cells[hex.EncodeToString([]byte(col))] = val
		}
	}
	return d
}

func colSelected(col string, sel []string) bool {
	fam, _ := wcs.SplitColumn(col)
	for _, s := range sel {
		if s == col {
			return true
		}
		if f, q := wcs.SplitColumn(s); q == "" && f == fam {
			return true
		}
	}
	return false
}

func (t *table) Scan(ctx context.Context, opt wcs.ScanOptions) (wcs.Iterator, error) {
	if err := t.c.ready(false); err != nil {
		return nil, err
	}
	if _, err := t.families(ctx); err != nil {
		return nil, err
	}
	filter := bson.M{}
	start, stop := opt.KeyRange()
	id := bson.M{}
	if len(start) != 0 {
		id["$gte"] = hex.EncodeToString(start)
	}
	if len(stop) != 0 {
		id["$lt"] = hex.EncodeToString(stop)
	}
	if len(id) != 0 {
		filter["_id"] = id
	}
	cur, err := t.c.dataCollection(t.name).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return &iterator{cur: cur, opt: opt}, nil
}

type iterator struct {
	cur *mongo.Cursor
	opt wcs.ScanOptions

	n   int
	key []byte
	row wcs.Row
	err error
}

func (it *iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for {
		if it.opt.Limit > 0 && it.n >= it.opt.Limit {
			return false
		}
		if !it.cur.Next(ctx) {
			return false
		}
		var d rowDoc
		if err := it.cur.Decode(&d); err != nil {
			it.err = err
			return false
		}
		row, err := d.row()
		if err != nil {
			it.err = err
			return false
		}
		if len(it.opt.Columns) != 0 {
			row = wcs.FilterColumns(row, it.opt.Columns)
			if len(row) == 0 {
				continue
			}
		}
		key, err := hex.DecodeString(d.ID)
		if err != nil {
			it.err = err
			return false
		}
		it.key, it.row = key, row
		it.n++
		return true
	}
}

func (it *iterator) Key() []byte  { return it.key }
func (it *iterator) Row() wcs.Row { return it.row }

func (it *iterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.cur.Err()
}

func (it *iterator) Close() error {
	return it.cur.Close(context.TODO())
}
