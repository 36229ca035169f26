package lifecycle

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/host"
)

// ActiveSessions returns the terminals of the account's live login
// sessions. Errors reading the session table are treated as "none";
// the caller only uses this for an advisory warning.
func ActiveSessions(username string) []string {
	users, err := host.Users()
	if err != nil {
		return nil
	}

	var terminals []string
	for _, u := range users {
		if u.User != username {
			continue
		}
		if u.Terminal != "" {
			terminals = append(terminals, u.Terminal)
		} else {
			terminals = append(terminals, fmt.Sprintf("session since %d", u.Started))
		}
	}
	return terminals
}
