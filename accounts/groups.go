package accounts

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	groupFile  = "/etc/group"
	regularGID = 1000
)

// ListGroups returns all system groups.
func ListGroups() ([]Group, error) {
	groups := []Group{}

	file, err := os.Open(groupFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open group file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 4 {
			continue
		}

		gid, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}

		members := []string{}
		if parts[3] != "" {
			for member := range strings.SplitSeq(parts[3], ",") {
				member = strings.TrimSpace(member)
				if member != "" {
					members = append(members, member)
				}
			}
		}

		group := Group{
			Name:     parts[0],
			GID:      gid,
			Members:  members,
			IsSystem: gid < regularGID,
		}

		groups = append(groups, group)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading group file: %w", err)
	}

	return groups, nil
}

// LookupGroup returns a single group by name.
func LookupGroup(name string) (*Group, error) {
	groups, err := ListGroups()
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		if group.Name == name {
			return &group, nil
		}
	}

	return nil, fmt.Errorf("group not found: %s", name)
}

// GroupHasMember reports whether username is listed as a member of the
// named group in /etc/group.
func GroupHasMember(name, username string) bool {
	group, err := LookupGroup(name)
	if err != nil {
		return false
	}
	for _, m := range group.Members {
		if m == username {
			return true
		}
	}
	return false
}
