package parking

// SpotStatus is the administrative status assigned to a spot by the
// reference service.
type SpotStatus string

const (
	SpotFree        SpotStatus = "FREE"
	SpotReserved    SpotStatus = "RESERVED"
	SpotMaintenance SpotStatus = "MAINTENANCE"
)

// PresenceStatus is the physical occupancy reported by the sensing device.
type PresenceStatus string

const (
	PresenceFree     PresenceStatus = "FREE"
	PresenceOccupied PresenceStatus = "OCCUPIED"
	PresenceUnknown  PresenceStatus = "UNKNOWN"
)

type Spot struct {
	ID            int            `json:"id"`
	Number        string         `json:"number"`
	Sector        string         `json:"sector"`
	Status        SpotStatus     `json:"status"`
	CurrentStatus PresenceStatus `json:"current_status"`
}

type Client struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Plate string `json:"plate"`
	Phone string `json:"phone"`
}

type Reservation struct {
	ID       int    `json:"id"`
	ClientID int    `json:"client_id"`
	SpotID   int    `json:"spot_id"`
	Day      string `json:"day"`
}

// TelemetryEvent is one recognition report for one spot. Each event is a
// complete snapshot for its spot; a newer event replaces the previous one
// wholesale.
type TelemetryEvent struct {
	SpotID     int            `json:"id"`
	Status     PresenceStatus `json:"status,omitempty"`
	IsAlert    bool           `json:"is_alert"`
	PlateOCR   string         `json:"plate_ocr,omitempty"`
	PlateDB    string         `json:"plate_db,omitempty"`
	Similarity *float64       `json:"similarity,omitempty"`
	LastTime   string         `json:"last_time,omitempty"`
	ImageURL   string         `json:"image_url,omitempty"`
}

// Snapshot bundles the three reference collections fetched together.
type Snapshot struct {
	Spots        []Spot
	Clients      []Client
	Reservations []Reservation
}

// VisitorName labels an occupant seen by telemetry with no matching
// reservation.
const VisitorName = "Visitor"

// MergedSpotView is the reconciled, display-ready state for one spot,
// derived from the reference snapshot and the latest telemetry event.
type MergedSpotView struct {
	SpotID        int            `json:"spot_id"`
	Number        string         `json:"number"`
	Sector        string         `json:"sector"`
	Status        SpotStatus     `json:"status"`
	CurrentStatus PresenceStatus `json:"current_status"`
	ClientName    *string        `json:"client_name,omitempty"`
	ClientPhone   *string        `json:"client_phone,omitempty"`
	ReservedDay   *string        `json:"reserved_day,omitempty"`
	Plate         *string        `json:"plate,omitempty"`
	PlateOCR      *string        `json:"plate_ocr,omitempty"`
	Similarity    *float64       `json:"similarity,omitempty"`
	IsAlert       bool           `json:"is_alert"`
	LastTime      string         `json:"last_time,omitempty"`
}
