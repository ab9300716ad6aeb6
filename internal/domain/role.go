package domain

// Role values carried into issued tokens for coarse authorization.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
