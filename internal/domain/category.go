package domain

// Category is immutable reference data tickets are filed under.
type Category struct {
	ID   int64
	Name string
}
