package provision

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/mordilloSan/go-logger/logger"
)

// Format is the declared syntax of a batch file.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const fieldSeparator = ":"

// DetectFormat infers the batch format from the file extension; files
// that are not .json/.yaml/.yml are treated as delimited text.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// RejectedRecord is a record that failed ingestion-time validation. It
// classifies failed without any system call being attempted.
type RejectedRecord struct {
	Record AccountRecord
	Reason string
}

// ParseAccountsFile reads one batch file into an ordered list of
// validated account records plus the records rejected by validation.
// Record order is preserved; duplicates are kept and handled
// downstream.
func ParseAccountsFile(path string, format Format) ([]AccountRecord, []RejectedRecord, error) {
	if format == FormatAuto || format == "" {
		format = DetectFormat(path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer file.Close()
	return ParseAccounts(file, format)
}

// ParseGroupsFile reads one group batch file.
func ParseGroupsFile(path string, format Format) ([]GroupRecord, error) {
	if format == FormatAuto || format == "" {
		format = DetectFormat(path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer file.Close()
	return ParseGroups(file, format)
}

// ParseAccounts parses account records from r in the given format.
// Every returned record passed full validation; records violating the
// name, comment or enumeration grammars come back rejected so the
// trusted provisioning path never re-validates.
func ParseAccounts(r io.Reader, format Format) ([]AccountRecord, []RejectedRecord, error) {
	switch format {
	case FormatText:
		return parseAccountsText(r)
	case FormatJSON, FormatYAML:
		return parseAccountsStructured(r, format)
	default:
		return nil, nil, fmt.Errorf("unknown batch format: %s", format)
	}
}

// ParseGroups parses group records from r in the given format.
func ParseGroups(r io.Reader, format Format) ([]GroupRecord, error) {
	switch format {
	case FormatText:
		return parseGroupsText(r)
	case FormatJSON, FormatYAML:
		return parseGroupsStructured(r, format)
	default:
		return nil, fmt.Errorf("unknown batch format: %s", format)
	}
}

// Text account lines use a fixed column order:
//
//	username:full name:department:password_expiry_days:sudo:random:shell:primary_group:groups:warn_days:min_days:expiry
//
// A line with no separator is a simple record: a bare username with
// every other field left for defaulting. Missing trailing columns are
// valid and default to empty. groups is comma-separated.
func parseAccountsText(r io.Reader) ([]AccountRecord, []RejectedRecord, error) {
	records := []AccountRecord{}
	rejected := []RejectedRecord{}
	accept := func(rec AccountRecord) {
		if err := ValidateAccountRecord(rec); err != nil {
			rejected = append(rejected, RejectedRecord{Record: rec, Reason: err.Error()})
			return
		}
		records = append(records, rec)
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !strings.Contains(line, fieldSeparator) {
			// Simple record: bare username only.
			accept(AccountRecord{Username: line})
			continue
		}

		fields := strings.Split(line, fieldSeparator)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		rec := AccountRecord{Username: fields[0]}
		if rec.Username == "" {
			logger.Warnf("line %d: record has no username, dropping", lineNo)
			continue
		}

		name := textField(fields, 1)
		dept := textField(fields, 2)
		if name != "" || dept != "" {
			rec.Comment = name + ":" + dept
		}
		rec.PasswordExpiryDays = textIntField(fields, 3, lineNo, "password_expiry_days")
		rec.Sudo = normalizeSudo(textField(fields, 4))
		rec.RandomPassword = parseBoolField(textField(fields, 5))
		rec.Shell = textField(fields, 6)
		rec.PrimaryGroup = textField(fields, 7)
		if groups := textField(fields, 8); groups != "" {
			for g := range strings.SplitSeq(groups, ",") {
				g = strings.TrimSpace(g)
				if g != "" {
					rec.Groups = append(rec.Groups, g)
				}
			}
		}
		rec.PasswordWarnDays = textIntField(fields, 9, lineNo, "warn_days")
		rec.PasswordMinDays = textIntField(fields, 10, lineNo, "min_days")
		rec.Expiry = textField(fields, 11)

		accept(rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading batch file: %w", err)
	}

	if len(records) == 0 && len(rejected) == 0 {
		return nil, nil, fmt.Errorf("no usable records in batch file")
	}
	return records, rejected, nil
}

// Text group lines: groupname:members:action. A line with no separator
// is a bare group name with action create.
func parseGroupsText(r io.Reader) ([]GroupRecord, error) {
	records := []GroupRecord{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !strings.Contains(line, fieldSeparator) {
			records = append(records, GroupRecord{Name: line, Action: GroupCreate})
			continue
		}

		fields := strings.Split(line, fieldSeparator)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		rec := GroupRecord{Name: fields[0], Action: GroupCreate}
		if rec.Name == "" {
			logger.Warnf("line %d: group record has no name, dropping", lineNo)
			continue
		}
		if members := textField(fields, 1); members != "" {
			for m := range strings.SplitSeq(members, ",") {
				m = strings.TrimSpace(m)
				if m != "" {
					rec.Members = append(rec.Members, m)
				}
			}
		}
		if action := textField(fields, 2); action != "" {
			rec.Action = GroupAction(strings.ToLower(action))
		}

		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading batch file: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no usable records in batch file")
	}
	return records, nil
}

// accountsDocument is the JSON/YAML batch shape: records live under a
// top-level "users" array.
type accountsDocument struct {
	Users []AccountRecord `json:"users" yaml:"users"`
}

type groupsDocument struct {
	Groups []GroupRecord `json:"groups" yaml:"groups"`
}

func parseAccountsStructured(r io.Reader, format Format) ([]AccountRecord, []RejectedRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var doc accountsDocument
	if err := unmarshalDocument(data, format, &doc); err != nil {
		return nil, nil, err
	}

	records := make([]AccountRecord, 0, len(doc.Users))
	rejected := []RejectedRecord{}
	for i, rec := range doc.Users {
		if rec.Username == "" {
			logger.Warnf("users[%d]: record has no username, dropping", i)
			continue
		}
		rec.Sudo = normalizeSudo(rec.Sudo)
		if err := ValidateAccountRecord(rec); err != nil {
			rejected = append(rejected, RejectedRecord{Record: rec, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 && len(rejected) == 0 {
		return nil, nil, fmt.Errorf("no usable records in batch file")
	}
	return records, rejected, nil
}

func parseGroupsStructured(r io.Reader, format Format) ([]GroupRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var doc groupsDocument
	if err := unmarshalDocument(data, format, &doc); err != nil {
		return nil, err
	}

	records := make([]GroupRecord, 0, len(doc.Groups))
	for i, rec := range doc.Groups {
		if rec.Name == "" {
			logger.Warnf("groups[%d]: record has no name, dropping", i)
			continue
		}
		if rec.Action == "" {
			rec.Action = GroupCreate
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no usable records in batch file")
	}
	return records, nil
}

func unmarshalDocument(data []byte, format Format, v any) error {
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("malformed JSON batch file: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("malformed YAML batch file: %w", err)
		}
	}
	return nil
}

func textField(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}

func textIntField(fields []string, i, lineNo int, what string) int {
	raw := textField(fields, i)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warnf("line %d: invalid %s %q, using default", lineNo, what, raw)
		return 0
	}
	return n
}

func normalizeSudo(raw string) string {
	switch strings.ToLower(raw) {
	case "a", "allow", "yes", "y":
		return "allow"
	case "d", "deny", "no", "n":
		return "deny"
	case "":
		return ""
	default:
		// Left as-is so validation can reject it with the original text.
		return strings.ToLower(raw)
	}
}

func parseBoolField(raw string) bool {
	switch strings.ToLower(raw) {
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}
