package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hrygo/eventbot/store"
)

// orderByChronological sorts by the decoded date-time; the raw
// "DDMMYY HHMM" column does not sort chronologically (day precedes year).
const orderByChronological = "ORDER BY substr(event.datetime, 5, 2) || substr(event.datetime, 3, 2) || substr(event.datetime, 1, 2) || substr(event.datetime, 8, 4) ASC"

func (d *DB) CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error) {
	fields := []string{"uid", "creator_id", "datetime", "description"}
	placeholderValues := []any{create.UID, create.CreatorID, create.DateTime, create.Description}

	if attachment := create.Attachment; attachment != nil {
		fields = append(fields, "file_id", "file_type", "file_name")
		placeholderValues = append(placeholderValues,
			attachment.Handle, string(attachment.Kind), nullableString(attachment.Name))
	}

	stmt := `INSERT INTO event (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return create, nil
}

func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "event.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "event.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DatePrefix; v != nil {
		where, args = append(where, "event.datetime LIKE "+placeholder(len(args)+1)), append(args, *v+"%")
	}

	query := `
		SELECT
			id, uid, creator_id, created_ts, updated_ts,
			datetime, description,
			file_id, file_type, file_name
		FROM event
		WHERE ` + strings.Join(where, " AND ") + ` ` + orderByChronological

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Event, 0)
	for rows.Next() {
		var event store.Event
		var fileID, fileType, fileName sql.NullString

		if err := rows.Scan(
			&event.ID,
			&event.UID,
			&event.CreatorID,
			&event.CreatedTs,
			&event.UpdatedTs,
			&event.DateTime,
			&event.Description,
			&fileID,
			&fileType,
			&fileName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if fileID.Valid {
			event.Attachment = &store.Attachment{
				Handle: fileID.String,
				Kind:   store.AttachmentKind(fileType.String),
				Name:   fileName.String,
			}
		}

		list = append(list, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateEvent(ctx context.Context, update *store.UpdateEvent) error {
	set, args := []string{}, []any{}

	if v := update.DateTime; v != nil {
		set, args = append(set, "datetime = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	// The attachment triple is always written as a unit.
	if v := update.Attachment; v != nil {
		set = append(set,
			"file_id = "+placeholder(len(args)+1),
			"file_type = "+placeholder(len(args)+2),
			"file_name = "+placeholder(len(args)+3))
		args = append(args, v.Handle, string(v.Kind), nullableString(v.Name))
	} else if update.RemoveAttachment {
		set = append(set, "file_id = NULL", "file_type = NULL", "file_name = NULL")
	}

	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_ts = EXTRACT(EPOCH FROM NOW())")

	args = append(args, update.ID)

	stmt := `UPDATE event SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrEventNotFound
	}

	return nil
}

func (d *DB) DeleteEvent(ctx context.Context, delete *store.DeleteEvent) error {
	stmt := `DELETE FROM event WHERE id = ` + placeholder(1)
	result, err := d.db.ExecContext(ctx, stmt, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrEventNotFound
	}

	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
