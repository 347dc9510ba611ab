package domain

// Tagged is an application value that has a special store encoding. The set
// of implementations is closed; codecs switch over it exhaustively.
type Tagged interface {
	tagged()
}

// Pointer references an object of another class.
type Pointer struct {
	ClassName string
	ObjectID  string
}

// Date is a timestamp in ISO 8601 form.
type Date struct {
	ISO string
}

// Bytes is a binary blob in standard base64 form.
type Bytes struct {
	Base64 string
}

// GeoPoint is a geographic coordinate.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Polygon is a ring of [latitude, longitude] pairs. The ring may be open or
// closed; it is closed when stored.
type Polygon struct {
	Coordinates [][2]float64
}

// File references a stored file by name.
type File struct {
	Name string
	URL  string
}

// Relation is the placeholder for a many-to-many relation field. Relation
// content never lives in the object document.
type Relation struct {
	ClassName string
}

// RelativeTime is a natural language offset from now, such as "in 2 days" or
// "3 hours ago". It is only accepted inside comparison constraints.
type RelativeTime struct {
	Text string
}

// Regex is a raw pattern with optional flags.
type Regex struct {
	Pattern string
	Options string
}

func (Pointer) tagged()      {}
func (Date) tagged()         {}
func (Bytes) tagged()        {}
func (GeoPoint) tagged()     {}
func (Polygon) tagged()      {}
func (File) tagged()         {}
func (Relation) tagged()     {}
func (RelativeTime) tagged() {}
func (Regex) tagged()        {}
