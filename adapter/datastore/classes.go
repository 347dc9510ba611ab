package datastore

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/schema"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

// ClassExists implements [domain.StorageAdapter].
func (d *Datastore) ClassExists(ctx context.Context, className string) (bool, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return false, err
	}
	names, err := client.ListCollectionNames(ctx)
	if err != nil {
		return false, d.handleError(ctx, err)
	}
	return slices.Contains(names, d.collectionPrefix+className), nil
}

// SetClassLevelPermissions implements [domain.StorageAdapter].
func (d *Datastore) SetClassLevelPermissions(ctx context.Context, className string, clp domain.CLP) error {
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return err
	}
	_, err = sc.UpdateOne(ctx, schema.Query(className), schema.CLPUpdate(clp), false)
	return d.handleError(ctx, err)
}

// SetIndexesWithSchemaFormat implements [domain.StorageAdapter]. Nothing
// reaches the store unless every submitted change is valid. Drops run before
// creations and the schema record is written last.
func (d *Datastore) SetIndexesWithSchemaFormat(ctx context.Context, className string, submitted map[string]domain.IndexSpec, existing map[string]bson.D, fields map[string]domain.Field) error {
	if len(submitted) == 0 {
		return nil
	}
	plan, err := schema.PlanIndexes(submitted, existing, fields, d.validateIndexFields)
	if err != nil {
		return err
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	for _, name := range plan.Drops {
		if err := coll.DropIndex(ctx, name); err != nil {
			return d.handleError(ctx, err)
		}
	}
	if len(plan.Creates) > 0 {
		models := make([]domain.IndexModel, len(plan.Creates))
		for n, c := range plan.Creates {
			models[n] = domain.IndexModel{Name: c.Name, Keys: c.Keys}
		}
		if err := coll.CreateIndexes(ctx, models); err != nil {
			return d.handleError(ctx, err)
		}
	}
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return err
	}
	_, err = sc.UpdateOne(ctx, schema.Query(className), schema.IndexesUpdate(plan.Indexes), false)
	return d.handleError(ctx, err)
}

// SetIndexesFromStore implements [domain.StorageAdapter]. A class without a
// collection is left as it is.
func (d *Datastore) SetIndexesFromStore(ctx context.Context, className string) error {
	specs, err := d.GetIndexes(ctx, className)
	if errors.As(err, new(domain.ErrNamespaceNotFound)) {
		return nil
	}
	if err != nil {
		return err
	}
	indexes, err := schema.IndexesFromStore(specs)
	if err != nil {
		return err
	}
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return err
	}
	_, err = sc.UpdateOne(ctx, schema.Query(className), schema.IndexesUpdate(indexes), false)
	return d.handleError(ctx, err)
}

// UpdateSchemaWithIndexes implements [domain.StorageAdapter].
func (d *Datastore) UpdateSchemaWithIndexes(ctx context.Context) error {
	classes, err := d.GetAllClasses(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range classes {
		g.Go(func() error {
			return d.SetIndexesFromStore(gctx, c.ClassName)
		})
	}
	return g.Wait()
}

// CreateClass implements [domain.StorageAdapter]. The declared indexes are
// built before the schema record is inserted.
func (d *Datastore) CreateClass(ctx context.Context, className string, s domain.Schema) (domain.Schema, error) {
	doc, err := schema.Document(className, s.Fields, s.CLP, s.Indexes)
	if err != nil {
		return domain.Schema{}, err
	}
	submitted := make(map[string]domain.IndexSpec, len(s.Indexes))
	for name, keys := range s.Indexes {
		submitted[name] = domain.IndexSpec{Keys: keys}
	}
	if err := d.SetIndexesWithSchemaFormat(ctx, className, submitted, nil, s.Fields); err != nil {
		return domain.Schema{}, err
	}
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return domain.Schema{}, err
	}
	if err := sc.InsertOne(ctx, doc); err != nil {
		return domain.Schema{}, d.handleError(ctx, err)
	}
	return schema.Parse(doc)
}

// UpdateFieldOptions implements [domain.StorageAdapter].
func (d *Datastore) UpdateFieldOptions(ctx context.Context, className, fieldName string, field domain.Field) error {
	filter, upd, err := schema.FieldOptionsUpdate(fieldName, field)
	if err != nil {
		return err
	}
	filter[fieldname.ID] = className
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return err
	}
	_, err = sc.UpdateOne(ctx, filter, upd, false)
	return d.handleError(ctx, err)
}

// AddFieldIfNotExists implements [domain.StorageAdapter]. A class holds at
// most one GeoPoint field, and Polygon fields are indexed for spherical
// queries.
func (d *Datastore) AddFieldIfNotExists(ctx context.Context, className, fieldName string, field domain.Field) error {
	if field.Type == domain.FieldGeoPoint {
		current, err := d.GetClass(ctx, className)
		switch {
		case errors.Is(err, domain.ErrClassNotFound):
		case err != nil:
			return err
		default:
			for name, f := range current.Fields {
				if f.Type == domain.FieldGeoPoint && name != fieldName {
					return domain.Invalid("MongoDB only supports one GeoPoint field in a class.")
				}
			}
		}
	}

	filter, upd, err := schema.AddFieldUpdate(fieldName, field)
	if err != nil {
		return err
	}
	filter[fieldname.ID] = className
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return err
	}
	// An existing field makes the upsert collide with the schema record.
	if _, err := sc.UpdateOne(ctx, filter, upd, true); err != nil && !errors.As(err, new(domain.ErrDuplicateKey)) {
		return d.handleError(ctx, err)
	}

	if field.Type == domain.FieldPolygon {
		return d.CreateIndex(ctx, className, bson.D{{Key: fieldName, Value: "2dsphere"}})
	}
	return nil
}

// DeleteClass implements [domain.StorageAdapter]. A class whose collection
// was never created is still removed from the schema.
func (d *Datastore) DeleteClass(ctx context.Context, className string) error {
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	if err := coll.Drop(ctx); err != nil && !errors.As(err, new(domain.ErrNamespaceNotFound)) {
		return d.handleError(ctx, err)
	}
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return err
	}
	_, err = sc.FindOneAndDelete(ctx, schema.Query(className))
	return d.handleError(ctx, err)
}

// DeleteAllClasses implements [domain.StorageAdapter]. When fast is set the
// collections are emptied instead of dropped, keeping their indexes.
func (d *Datastore) DeleteAllClasses(ctx context.Context, fast bool) error {
	client, err := d.connect(ctx)
	if err != nil {
		return err
	}
	names, err := client.ListCollectionNames(ctx)
	if err != nil {
		return d.handleError(ctx, err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		if !strings.HasPrefix(name, d.collectionPrefix) || strings.HasPrefix(name, "system.") {
			continue
		}
		coll := client.Collection(name)
		g.Go(func() error {
			if fast {
				_, err := coll.DeleteMany(gctx, bson.M{})
				return err
			}
			if err := coll.Drop(gctx); err != nil && !errors.As(err, new(domain.ErrNamespaceNotFound)) {
				return err
			}
			return nil
		})
	}
	return d.handleError(ctx, g.Wait())
}

// DeleteFields implements [domain.StorageAdapter]. The values are removed
// from every object before the fields leave the schema record.
func (d *Datastore) DeleteFields(ctx context.Context, className string, s domain.Schema, fieldNames []string) error {
	if len(fieldNames) == 0 {
		return nil
	}
	filter, upd, schemaUpd := schema.DeleteFieldsUpdate(storeSchema(className, s), fieldNames)
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	if _, err := coll.UpdateMany(ctx, filter, upd); err != nil {
		return d.handleError(ctx, err)
	}
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return err
	}
	_, err = sc.UpdateOne(ctx, schema.Query(className), schemaUpd, false)
	return d.handleError(ctx, err)
}

// GetAllClasses implements [domain.StorageAdapter].
func (d *Datastore) GetAllClasses(ctx context.Context) ([]domain.Schema, error) {
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := sc.Find(ctx, bson.M{}, domain.StoreFindOptions{})
	if err != nil {
		return nil, d.handleError(ctx, err)
	}
	res := make([]domain.Schema, len(docs))
	for n, doc := range docs {
		if res[n], err = schema.Parse(doc); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// GetClass implements [domain.StorageAdapter]. It returns
// [domain.ErrClassNotFound] when the class has no schema record.
func (d *Datastore) GetClass(ctx context.Context, className string) (domain.Schema, error) {
	sc, err := d.schemaCollection(ctx)
	if err != nil {
		return domain.Schema{}, err
	}
	docs, err := sc.Find(ctx, schema.Query(className), domain.StoreFindOptions{Limit: 1})
	if err != nil {
		return domain.Schema{}, d.handleError(ctx, err)
	}
	if len(docs) == 0 {
		return domain.Schema{}, classNotFound(className)
	}
	return schema.Parse(docs[0])
}
