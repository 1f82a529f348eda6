package workitem

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const itemColumns = "id, type, subject, status, metadata, error_message, retriable, lease_owner, attempts, superseded_by, last_heartbeat, not_before, created_at, updated_at, processed_at, completed_at"

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item         Item
		typeStr      string
		statusStr    string
		subject      sql.NullString
		metadata     string
		errorMessage sql.NullString
		retriable    int
		leaseOwner   sql.NullString
		superseded   sql.NullString
		heartbeatRaw sql.NullString
		notBeforeRaw sql.NullString
		createdRaw   string
		updatedRaw   string
		processedRaw sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&typeStr,
		&subject,
		&statusStr,
		&metadata,
		&errorMessage,
		&retriable,
		&leaseOwner,
		&item.Attempts,
		&superseded,
		&heartbeatRaw,
		&notBeforeRaw,
		&createdRaw,
		&updatedRaw,
		&processedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	item.Type = Type(typeStr)
	item.Status = Status(statusStr)
	item.Subject = subject.String
	item.MetadataJSON = []byte(metadata)
	item.ErrorMessage = errorMessage.String
	item.Retriable = retriable != 0
	item.LeaseOwner = leaseOwner.String
	item.SupersededBy = superseded.String
	item.LastHeartbeat = parseNullableTime(heartbeatRaw)
	item.NotBefore = parseNullableTime(notBeforeRaw)
	item.ProcessedAt = parseNullableTime(processedRaw)
	item.CompletedAt = parseNullableTime(completedRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
