package repository

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}
