package domain

// User is the authenticated buyer as described by the bearer token claims.
// Credentials live with the external auth service.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// BookingHandoff is the state passed to the booking flow.
type BookingHandoff struct {
	SpaceID SpaceID `json:"space_id"`
	UserID  string  `json:"user_id"`
}

// DetailHandoff is the state passed to the listing detail screen.
type DetailHandoff struct {
	Space ParkingSpace `json:"space"`
	User  User         `json:"user"`
}
