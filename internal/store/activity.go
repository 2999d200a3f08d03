// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pdiddy/mycolist/pkg/types"
)

// AppendLog records one activity line for target.
func (q *Queries) AppendLog(ctx context.Context, target types.Target, tag string, args map[string]string) error {
	var encoded string
	if len(args) > 0 {
		data, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encoding log args: %w", err)
		}
		encoded = string(data)
	}
	if _, err := q.exec(ctx,
		`INSERT INTO activity_logs (target_type, target_id, tag, args, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(target.Type), target.ID, tag, encoded, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("logging %s for %s %d: %w", tag, target.Type, target.ID, err)
	}
	return nil
}

// Log returns the activity lines of target, oldest first.
func (q *Queries) Log(ctx context.Context, target types.Target) ([]types.LogEntry, error) {
	rows, err := q.query(ctx,
		`SELECT id, target_type, target_id, tag, args, created_at FROM activity_logs
		WHERE target_type = ? AND target_id = ? ORDER BY id`,
		string(target.Type), target.ID)
	if err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	defer rows.Close()

	var entries []types.LogEntry
	for rows.Next() {
		var (
			e                      types.LogEntry
			targetType, args, when string
		)
		if err := rows.Scan(&e.ID, &targetType, &e.Target.ID, &e.Tag, &args, &when); err != nil {
			return nil, fmt.Errorf("scanning activity log: %w", err)
		}
		e.Target.Type = types.TargetType(targetType)
		e.At = parseTime(when)
		if args != "" {
			if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
				return nil, fmt.Errorf("decoding log args of entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
