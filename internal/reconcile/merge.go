package reconcile

import (
	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
)

// Merge joins the reference snapshot with the latest telemetry into one view
// per spot. Pure function of its inputs: same (snapshot, telemetry) pair,
// same result. Telemetry for spots absent from the snapshot is ignored until
// the snapshot catches up.
func Merge(
	spots []parking.Spot,
	clients []parking.Client,
	reservations []parking.Reservation,
	telemetry map[int]parking.TelemetryEvent,
) []parking.MergedSpotView {
	clientsByID := make(map[int]parking.Client, len(clients))
	for _, c := range clients {
		clientsByID[c.ID] = c
	}

	views := make([]parking.MergedSpotView, 0, len(spots))
	for _, spot := range spots {
		view := parking.MergedSpotView{
			SpotID:        spot.ID,
			Number:        spot.Number,
			Sector:        spot.Sector,
			Status:        spot.Status,
			CurrentStatus: spot.CurrentStatus,
		}

		event, hasEvent := telemetry[spot.ID]
		if hasEvent {
			if event.Status != "" {
				view.CurrentStatus = event.Status
			}
			view.IsAlert = event.IsAlert
			view.LastTime = event.LastTime
			if event.PlateDB != "" {
				plate := event.PlateDB
				view.Plate = &plate
			}
			if event.PlateOCR != "" {
				ocr := event.PlateOCR
				view.PlateOCR = &ocr
			}
			if event.Similarity != nil {
				score := *event.Similarity
				view.Similarity = &score
			}
		}

		reservation, hasReservation := firstReservation(reservations, spot.ID)
		client, hasClient := parking.Client{}, false
		if hasReservation {
			client, hasClient = clientsByID[reservation.ClientID]
		}

		switch {
		case hasReservation && hasClient:
			name := client.Name
			view.ClientName = &name
			if client.Phone != "" {
				phone := client.Phone
				view.ClientPhone = &phone
			}
			if reservation.Day != "" {
				day := reservation.Day
				view.ReservedDay = &day
			}
		case hasEvent:
			name := parking.VisitorName
			view.ClientName = &name
		}

		views = append(views, view)
	}

	return views
}

// firstReservation returns the first reservation for the spot in slice
// order. If the reference data ever holds several active reservations for
// one spot there is no tie-break beyond that order.
func firstReservation(reservations []parking.Reservation, spotID int) (parking.Reservation, bool) {
	for _, r := range reservations {
		if r.SpotID == spotID {
			return r, true
		}
	}
	return parking.Reservation{}, false
}
