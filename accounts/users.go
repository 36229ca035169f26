package accounts

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

const (
	passwdFile = "/etc/passwd"
	shadowFile = "/etc/shadow"
	shellsFile = "/etc/shells"
	regularUID = 1000
)

// ListUsers returns login users (root + users with UID >= 1000 and a
// valid login shell). Service accounts are filtered out.
func ListUsers() ([]User, error) {
	users := []User{}

	lockedUsers := getLockedUsers()
	userGroups := getUserGroups()
	gidToGroup := getGIDToGroupName()

	err := scanPasswd(func(u User) bool {
		// Filter: only show root OR regular users with a login shell
		if u.UID != 0 && u.UID < regularUID {
			return true
		}
		if u.UID != 0 && NonLoginShell(u.Shell) {
			return true
		}

		u.PrimaryGroup = gidToGroup[u.GID]
		if u.PrimaryGroup == "" {
			u.PrimaryGroup = strconv.Itoa(u.GID)
		}
		u.IsLocked = lockedUsers[u.Username]
		u.Groups = userGroups[u.Username]

		users = append(users, u)
		return true
	})
	if err != nil {
		return nil, err
	}

	return users, nil
}

// LookupUser returns a single account by username, including service
// accounts that ListUsers filters out.
func LookupUser(username string) (*User, error) {
	var found *User

	gidToGroup := getGIDToGroupName()
	err := scanPasswd(func(u User) bool {
		if u.Username != username {
			return true
		}
		u.PrimaryGroup = gidToGroup[u.GID]
		if u.PrimaryGroup == "" {
			u.PrimaryGroup = strconv.Itoa(u.GID)
		}
		u.Groups = getUserGroups()[u.Username]
		u.IsLocked = getLockedUsers()[u.Username]
		found = &u
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("user not found: %s", username)
	}

	return found, nil
}

// UserExists reports whether the account is present in the identity
// store, regardless of UID range or shell.
func UserExists(username string) bool {
	exists := false
	_ = scanPasswd(func(u User) bool {
		if u.Username == username {
			exists = true
			return false
		}
		return true
	})
	return exists
}

// NonLoginShell checks if a shell prevents interactive login.
func NonLoginShell(shell string) bool {
	nonLoginShells := []string{
		"/usr/sbin/nologin",
		"/sbin/nologin",
		"/bin/false",
		"/usr/bin/false",
	}
	return slices.Contains(nonLoginShells, shell)
}

// NologinShellPath returns the first nologin-class shell installed on
// this host, falling back to /usr/sbin/nologin.
func NologinShellPath() string {
	for _, shell := range []string{"/usr/sbin/nologin", "/sbin/nologin", "/bin/false"} {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/usr/sbin/nologin"
}

// ListShells returns available login shells from /etc/shells.
func ListShells() ([]string, error) {
	shells := []string{}

	file, err := os.Open(shellsFile)
	if err != nil {
		// Return common defaults if file doesn't exist
		return []string{"/bin/bash", "/bin/sh", "/usr/bin/zsh", "/sbin/nologin"}, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		shells = append(shells, line)
	}

	return shells, scanner.Err()
}

// scanPasswd walks /etc/passwd, calling fn once per entry. fn returns
// false to stop early.
func scanPasswd(fn func(User) bool) error {
	file, err := os.Open(passwdFile)
	if err != nil {
		return fmt.Errorf("failed to open passwd file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 7 {
			continue
		}

		uid, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		gid, err := strconv.Atoi(parts[3])
		if err != nil {
			continue
		}

		u := User{
			Username: parts[0],
			UID:      uid,
			GID:      gid,
			Gecos:    parts[4],
			HomeDir:  parts[5],
			Shell:    parts[6],
			IsSystem: uid < regularUID,
		}
		if !fn(u) {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading passwd file: %w", err)
	}
	return nil
}

// getLockedUsers returns a map of usernames to their locked status.
func getLockedUsers() map[string]bool {
	locked := make(map[string]bool)

	file, err := os.Open(shadowFile)
	if err != nil {
		return locked
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			continue
		}

		username := parts[0]
		passwordHash := parts[1]

		// Account is locked if password starts with ! or *
		locked[username] = strings.HasPrefix(passwordHash, "!") || strings.HasPrefix(passwordHash, "*")
	}

	return locked
}

// getUserGroups returns a map of usernames to their secondary groups.
func getUserGroups() map[string][]string {
	userGroups := make(map[string][]string)

	file, err := os.Open(groupFile)
	if err != nil {
		return userGroups
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.Split(line, ":")
		if len(parts) < 4 {
			continue
		}

		groupName := parts[0]
		members := parts[3]

		if members == "" {
			continue
		}

		for member := range strings.SplitSeq(members, ",") {
			member = strings.TrimSpace(member)
			if member != "" {
				userGroups[member] = append(userGroups[member], groupName)
			}
		}
	}

	return userGroups
}

// getGIDToGroupName returns a map of GID to group name.
func getGIDToGroupName() map[int]string {
	gidToGroup := make(map[int]string)

	file, err := os.Open(groupFile)
	if err != nil {
		return gidToGroup
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}

		gid, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}

		gidToGroup[gid] = parts[0]
	}

	return gidToGroup
}
