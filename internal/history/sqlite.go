// Package history is the durable append-only message log, keyed by room.
// Durability is best-effort: the broadcast path never waits on a write.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed    = errors.New("history store closed")
	ErrQueueFull = errors.New("history write queue full")
)

// Message is the persisted form of a chat message.
type Message struct {
	ID   string
	Room string
	Name string
	Text string
	Time string
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	id   TEXT NOT NULL,
	room TEXT NOT NULL,
	name TEXT NOT NULL,
	text TEXT NOT NULL,
	time TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room_seq ON messages(room, seq);
`

// Store writes through a single goroutine, which is how SQLite wants to be
// written to anyway, and keeps Append non-blocking for callers.
type Store struct {
	db     *sql.DB
	writes chan writeOp
	done   chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOp struct {
	msg    *Message
	result chan<- error // barrier op when msg is nil
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	s := &Store{
		db:     db,
		writes: make(chan writeOp, 256),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writes:
			s.apply(op)
		case <-s.done:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case op := <-s.writes:
					s.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) apply(op writeOp) {
	if op.msg != nil {
		_, err := s.db.Exec(
			`INSERT INTO messages (id, room, name, text, time) VALUES (?, ?, ?, ?, ?)`,
			op.msg.ID, op.msg.Room, op.msg.Name, op.msg.Text, op.msg.Time,
		)
		if err != nil {
			log.Error().Err(err).Str("module", "history").
				Str("room", op.msg.Room).Msg("append failed")
		}
	}
	if op.result != nil {
		op.result <- nil
	}
}

// Append queues a message for persistence and returns immediately.
// A full queue is reported to the caller, who logs and moves on.
func (s *Store) Append(msg Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.writes <- writeOp{msg: &msg}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Flush blocks until every previously queued append has been applied.
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	result := make(chan error, 1)
	s.writes <- writeOp{result: result}
	return <-result
}

// LastN returns up to n most recent messages for a room, oldest first.
func (s *Store) LastN(ctx context.Context, room string, n int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room, name, text, time FROM messages
		 WHERE room = ? ORDER BY seq DESC LIMIT ?`, room, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Room, &m.Name, &m.Text, &m.Time); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	// Newest-first from the query, oldest-first on the wire.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close stops accepting writes, drains the queue and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}
