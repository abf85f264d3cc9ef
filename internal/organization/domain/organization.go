package domain

// Org is the organization directory entry the portal core reads.
// The core writes only CurrentToken; everything else is owned by the admin CRUD surface.
type Org struct {
	ID           int64
	Name         string
	ContactEmail string
	// CurrentToken is the active request-page URL token; empty until first generation.
	CurrentToken string
}
