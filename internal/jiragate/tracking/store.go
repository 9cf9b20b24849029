// Package tracking keeps a durable local record of issues this system has
// created or observed, their status transitions, and comments. It is an
// audit trail, not a cache of live issue state.
package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Import SQLite driver
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const dbFileName = "jira_history.db"

const schema = `
CREATE TABLE IF NOT EXISTS issues (
    key TEXT PRIMARY KEY,
    type TEXT,
    title TEXT,
    parent_key TEXT,
    status TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    issue_key TEXT,
    author TEXT,
    content TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (issue_key) REFERENCES issues(key)
);

CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    issue_key TEXT,
    from_status TEXT,
    to_status TEXT,
    transitioned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (issue_key) REFERENCES issues(key)
);
`

// Store persists the issue history in a SQLite file
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if necessary) the history database in dir. An empty
// dir means the current directory.
func Open(ctx context.Context, dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFileName)
	connStr := "file:" + dbPath + "?_pragma=foreign_keys(ON)&_pragma=busy_timeout(10000)&_time_format=sqlite"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

// StoreIssue upserts an issue by key. On conflict only title, status and
// last_updated change; type, parent_key and created_at keep their values
// from the first insert. Empty parentKey and status are stored as NULL.
func (s *Store) StoreIssue(ctx context.Context, key, issueType, title, parentKey, status string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (key, type, title, parent_key, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			last_updated = CURRENT_TIMESTAMP
	`, key, issueType, title, nullable(parentKey), nullable(status))
	if err != nil {
		return fmt.Errorf("failed to store issue %s: %w", key, err)
	}
	return nil
}

// UpdateIssueStatus updates the tracked issue's status and appends one
// transition record. The two writes are separate statements, not one
// transaction; a crash in between leaves the status updated without the
// matching history entry.
func (s *Store) UpdateIssueStatus(ctx context.Context, key, newStatus, oldStatus string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE issues
		SET status = ?, last_updated = CURRENT_TIMESTAMP
		WHERE key = ?
	`, newStatus, key); err != nil {
		return fmt.Errorf("failed to update status of issue %s: %w", key, err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (issue_key, from_status, to_status)
		VALUES (?, ?, ?)
	`, key, nullable(oldStatus), newStatus); err != nil {
		return fmt.Errorf("failed to record transition of issue %s: %w", key, err)
	}

	return nil
}

// mutableColumns lists the issue columns UpdateIssue may patch
var mutableColumns = map[string]bool{
	"type":       true,
	"title":      true,
	"parent_key": true,
	"status":     true,
}

// UpdateIssue applies a column patch to a tracked issue and refreshes
// last_updated. An empty patch is a no-op. Unknown columns are rejected.
func (s *Store) UpdateIssue(ctx context.Context, key string, patch map[string]string) error {
	if len(patch) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(patch)+1)
	values := make([]interface{}, 0, len(patch)+1)
	for _, column := range []string{"type", "title", "parent_key", "status"} {
		value, ok := patch[column]
		if !ok {
			continue
		}
		assignments = append(assignments, column+" = ?")
		values = append(values, value)
	}
	if len(assignments) != len(patch) {
		for column := range patch {
			if !mutableColumns[column] {
				return fmt.Errorf("cannot update column %q of issue %s", column, key)
			}
		}
	}

	assignments = append(assignments, "last_updated = CURRENT_TIMESTAMP")
	values = append(values, key)

	query := fmt.Sprintf("UPDATE issues SET %s WHERE key = ?", strings.Join(assignments, ", "))
	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to update issue %s: %w", key, err)
	}
	return nil
}

// StoreComment records a comment. Reusing a comment id propagates the
// uniqueness violation to the caller.
func (s *Store) StoreComment(ctx context.Context, id, issueKey, author, content string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, issue_key, author, content)
		VALUES (?, ?, ?, ?)
	`, id, issueKey, author, content); err != nil {
		return fmt.Errorf("failed to store comment %s on issue %s: %w", id, issueKey, err)
	}
	return nil
}

// HistoryEntry is one tracked issue joined with its parent's title (when
// the parent is itself tracked) and its comment count
type HistoryEntry struct {
	Key           string    `json:"key"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	ParentKey     string    `json:"parent_key,omitempty"`
	Status        string    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdated   time.Time `json:"last_updated"`
	ParentTitle   string    `json:"parent_title,omitempty"`
	CommentsCount int       `json:"comments_count"`
}

// IssueHistory returns all tracked issues, newest-created first. A positive
// days value keeps only issues created within the trailing window, boundary
// inclusive; zero or negative means no filter.
func (s *Store) IssueHistory(ctx context.Context, days int) ([]HistoryEntry, error) {
	query := `
		SELECT
			i.key,
			COALESCE(i.type, ''),
			COALESCE(i.title, ''),
			COALESCE(i.parent_key, ''),
			COALESCE(i.status, ''),
			i.created_at,
			i.last_updated,
			COALESCE(p.title, ''),
			COUNT(c.id)
		FROM issues i
		LEFT JOIN issues p ON i.parent_key = p.key
		LEFT JOIN comments c ON i.key = c.issue_key
	`
	var args []interface{}
	if days > 0 {
		query += " WHERE i.created_at >= datetime('now', ?)"
		args = append(args, fmt.Sprintf("-%d days", days))
	}
	query += `
		GROUP BY i.key, i.type, i.title, i.parent_key, i.status, i.created_at, i.last_updated, p.title
		ORDER BY i.created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(
			&entry.Key, &entry.Type, &entry.Title, &entry.ParentKey, &entry.Status,
			&entry.CreatedAt, &entry.LastUpdated, &entry.ParentTitle, &entry.CommentsCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read issue history: %w", err)
	}

	return entries, nil
}

// CommentStatistics aggregates the comments table
type CommentStatistics struct {
	Total              int `json:"total"`
	IssuesWithComments int `json:"issues_with_comments"`
	UniqueCommenters   int `json:"unique_commenters"`
}

// Statistics summarizes the tracked issues
type Statistics struct {
	IssuesByType   map[string]int    `json:"issues_by_type"`
	IssuesByStatus map[string]int    `json:"issues_by_status"`
	Comments       CommentStatistics `json:"comments"`
}

// IssueStatistics returns counts of tracked issues grouped by type and by
// non-null status, plus aggregate comment statistics
func (s *Store) IssueStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		IssuesByType:   map[string]int{},
		IssuesByStatus: map[string]int{},
	}

	if err := s.countsInto(ctx, stats.IssuesByType, `
		SELECT COALESCE(type, ''), COUNT(*) FROM issues GROUP BY type
	`); err != nil {
		return nil, err
	}

	if err := s.countsInto(ctx, stats.IssuesByStatus, `
		SELECT status, COUNT(*) FROM issues WHERE status IS NOT NULL GROUP BY status
	`); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT issue_key),
			COUNT(DISTINCT author)
		FROM comments
	`).Scan(&stats.Comments.Total, &stats.Comments.IssuesWithComments, &stats.Comments.UniqueCommenters); err != nil {
		return nil, fmt.Errorf("failed to query comment statistics: %w", err)
	}

	return stats, nil
}

func (s *Store) countsInto(ctx context.Context, counts map[string]int, query string) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var group string
		var count int
		if err := rows.Scan(&group, &count); err != nil {
			return fmt.Errorf("failed to scan statistics row: %w", err)
		}
		counts[group] = count
	}
	return rows.Err()
}

// nullable maps an empty string to SQL NULL
func nullable(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
