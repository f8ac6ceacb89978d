package domain

// Make is a car manufacturer.
type Make struct {
	ID   int64
	Name string
}

// CarModel belongs to exactly one make.
type CarModel struct {
	ID     int64
	MakeID int64
	Name   string
}

// Location is where a listed car can be inspected.
type Location struct {
	ID     int64
	Name   string
	Region string
}
