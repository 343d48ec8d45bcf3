// Package optimize suggests a visiting order for selected venues.
package optimize

import "github.com/okian/crawlplan/internal/domain/venue"

// NearestNeighbour keeps the first venue as the start and repeatedly visits
// the closest unvisited venue. Ties go to the earlier venue in vs. It returns
// the ids in the suggested order; lists of two or fewer are returned as is.
func NearestNeighbour(vs []venue.Venue) []string {
	if len(vs) <= 2 {
		return venue.IDs(vs)
	}

	unvisited := append([]venue.Venue(nil), vs[1:]...)
	order := []string{vs[0].ID}
	current := vs[0]

	for len(unvisited) > 0 {
		best := 0
		bestKm := venue.DistanceKm(current.Location, unvisited[0].Location)
		for i := 1; i < len(unvisited); i++ {
			if d := venue.DistanceKm(current.Location, unvisited[i].Location); d < bestKm {
				best, bestKm = i, d
			}
		}
		current = unvisited[best]
		order = append(order, current.ID)
		unvisited = append(unvisited[:best], unvisited[best+1:]...)
	}
	return order
}

// TotalKm is the haversine length of visiting vs in order.
func TotalKm(vs []venue.Venue) float64 {
	total := 0.0
	for i := 1; i < len(vs); i++ {
		total += venue.DistanceKm(vs[i-1].Location, vs[i].Location)
	}
	return total
}
