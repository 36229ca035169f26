package accounts

// User represents a system user account as read from the identity store.
type User struct {
	Username     string   `json:"username"`
	UID          int      `json:"uid"`
	GID          int      `json:"gid"`
	Gecos        string   `json:"gecos"`
	HomeDir      string   `json:"homeDir"`
	Shell        string   `json:"shell"`
	PrimaryGroup string   `json:"primaryGroup"`
	Groups       []string `json:"groups"`
	IsSystem     bool     `json:"isSystem"`
	IsLocked     bool     `json:"isLocked"`
}

// Group represents a system group.
type Group struct {
	Name     string   `json:"name"`
	GID      int      `json:"gid"`
	Members  []string `json:"members"`
	IsSystem bool     `json:"isSystem"`
}

// CreateAccountRequest carries the resolved values handed to account
// creation. Policy resolution has already happened by the time one of
// these is built; every field is literal.
type CreateAccountRequest struct {
	Username        string
	Comment         string
	Shell           string
	PrimaryGroup    string   // empty means let the OS pick
	SecondaryGroups []string // ordered
	ExpiryDate      string   // YYYY-MM-DD, empty means no expiry
}
