package domain

import "time"

// Transmission enumerates gearbox types.
type Transmission string

const (
	TransmissionManual Transmission = "MANUAL"
	TransmissionAuto   Transmission = "AUTO"
	TransmissionCVT    Transmission = "CVT"
	TransmissionRobot  Transmission = "ROBOT"
)

func (t Transmission) Valid() bool {
	switch t {
	case TransmissionManual, TransmissionAuto, TransmissionCVT, TransmissionRobot:
		return true
	}
	return false
}

// Fuel enumerates fuel types.
type Fuel string

const (
	FuelGasoline Fuel = "GASOLINE"
	FuelDiesel   Fuel = "DIESEL"
	FuelHybrid   Fuel = "HYBRID"
	FuelElectric Fuel = "ELECTRIC"
)

func (f Fuel) Valid() bool {
	switch f {
	case FuelGasoline, FuelDiesel, FuelHybrid, FuelElectric:
		return true
	}
	return false
}

// BodyType enumerates body styles.
type BodyType string

const (
	BodySedan     BodyType = "SEDAN"
	BodyHatchback BodyType = "HATCHBACK"
	BodySUV       BodyType = "SUV"
	BodyCoupe     BodyType = "COUPE"
	BodyWagon     BodyType = "WAGON"
	BodyPickup    BodyType = "PICKUP"
	BodyVan       BodyType = "VAN"
)

func (b BodyType) Valid() bool {
	switch b {
	case BodySedan, BodyHatchback, BodySUV, BodyCoupe, BodyWagon, BodyPickup, BodyVan:
		return true
	}
	return false
}

// Drive enumerates drivetrains.
type Drive string

const (
	DriveFWD Drive = "FWD"
	DriveRWD Drive = "RWD"
	DriveAWD Drive = "AWD"
)

func (d Drive) Valid() bool {
	return d == DriveFWD || d == DriveRWD || d == DriveAWD
}

// Condition is new or used.
type Condition string

const (
	ConditionNew  Condition = "NEW"
	ConditionUsed Condition = "USED"
)

func (c Condition) Valid() bool {
	return c == ConditionNew || c == ConditionUsed
}

// ModerationStatus enumerates listing review states.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "PENDING"
	ModerationApproved ModerationStatus = "APPROVED"
	ModerationRejected ModerationStatus = "REJECTED"
)

// MinListingYear is the oldest accepted model year.
const MinListingYear = 1900

// Listing is a car offered for sale.
type Listing struct {
	ID              int64
	SellerID        int64
	MakeID          int64
	CarModelID      int64
	Year            int
	Price           float64
	Mileage         int
	Transmission    Transmission
	Fuel            Fuel
	Body            BodyType
	Drive           Drive
	Condition       Condition
	Color           string
	LocationID      int64
	OwnersCount     int
	VIN             *string
	Title           string
	Description     string
	Status          ModerationStatus
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Populated by read queries.
	Seller    UserRef
	Make      Make
	CarModel  CarModel
	Location  Location
	MainImage *string
	Images    []ListingImage
}

// VisibleTo reports whether the listing may be shown to the given caller.
// A nil viewer is anonymous.
func (l *Listing) VisibleTo(viewer *User) bool {
	if l.Status == ModerationApproved {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.IsStaff || viewer.ID == l.SellerID
}

// ListingImage is an uploaded photo attached to a listing.
type ListingImage struct {
	ID         int64
	ListingID  int64
	StorageKey string
	FileName   string
	Order      int
	CreatedAt  time.Time
}
