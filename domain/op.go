package domain

// Op is an update operator applied to a single field. The set of
// implementations is closed.
type Op interface {
	op()
}

// Delete removes the field.
type Delete struct{}

// Increment adds Amount to a numeric field. Amount must be a number.
type Increment struct {
	Amount any
}

// SetOnInsert sets Value only when the update inserts a new document.
type SetOnInsert struct {
	Value any
}

// Add appends Objects to an array field.
type Add struct {
	Objects []any
}

// AddUnique appends the Objects not yet present in an array field.
type AddUnique struct {
	Objects []any
}

// Remove removes every occurrence of Objects from an array field.
type Remove struct {
	Objects []any
}

func (Delete) op()      {}
func (Increment) op()   {}
func (SetOnInsert) op() {}
func (Add) op()         {}
func (AddUnique) op()   {}
func (Remove) op()      {}
