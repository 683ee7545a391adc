// Package postgres backs the remote store contract with PostgreSQL: one
// jsonb document table keyed by (collection, id), and LISTEN/NOTIFY as the
// push channel. Membership mutations run as single-statement jsonb updates,
// so set and counter can never be observed out of step.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

const notifyChannel = "condosync_documents"

// Adapter implements remote.Adapter and remote.AtomicAdder over *sql.DB.
// The DSN is kept for pq.Listener, which needs its own connection.
type Adapter struct {
	db  *sql.DB
	dsn string
}

var _ remote.Adapter = (*Adapter)(nil)
var _ remote.AtomicAdder = (*Adapter)(nil)

func New(db *sql.DB, dsn string) *Adapter {
	return &Adapter{db: db, dsn: dsn}
}

// EnsureSchema creates the document table. Safe to call on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection text NOT NULL,
			id         text NOT NULL,
			body       jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (a *Adapter) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	var raw []byte
	err := a.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, syncerrors.NotFound("%s/%s", collection, id)
	}
	if err != nil {
		return nil, syncerrors.Transport(err, "get %s/%s", collection, id)
	}
	return decodeBody(raw)
}

func (a *Adapter) List(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return nil, syncerrors.Transport(err, "list %s", collection)
	}
	defer rows.Close()

	var docs []remote.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, syncerrors.Transport(err, "scan %s", collection)
		}
		doc, err := decodeBody(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, syncerrors.Transport(err, "list %s", collection)
	}
	return q.Apply(docs), nil
}

func (a *Adapter) Create(ctx context.Context, collection string, doc remote.Document) (remote.Created, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC()

	body := doc.Clone()
	body[remote.FieldID] = id
	body[remote.FieldCreatedAt] = createdAt.Format(time.RFC3339Nano)
	raw, err := json.Marshal(body)
	if err != nil {
		return remote.Created{}, syncerrors.Transport(err, "encode %s", collection)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, created_at) VALUES ($1, $2, $3, $4)`,
		collection, id, raw, createdAt,
	)
	if err != nil {
		return remote.Created{}, syncerrors.Transport(err, "create %s", collection)
	}
	a.notify(ctx, collection)
	return remote.Created{ID: id, CreatedAt: createdAt}, nil
}

func (a *Adapter) Update(ctx context.Context, collection, id string, patch remote.Document) error {
	scrubbed := patch.Clone()
	delete(scrubbed, remote.FieldID)
	delete(scrubbed, remote.FieldCreatedAt)
	scrubbed[remote.FieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)
	raw, err := json.Marshal(scrubbed)
	if err != nil {
		return syncerrors.Transport(err, "encode patch %s/%s", collection, id)
	}

	res, err := a.db.ExecContext(ctx,
		`UPDATE documents
		    SET body = jsonb_strip_nulls(body || $3::jsonb), updated_at = now()
		  WHERE collection = $1 AND id = $2`,
		collection, id, raw,
	)
	if err != nil {
		return syncerrors.Transport(err, "update %s/%s", collection, id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return syncerrors.Transport(err, "update %s/%s", collection, id)
	}
	if affected == 0 {
		return syncerrors.NotFound("%s/%s", collection, id)
	}
	a.notify(ctx, collection)
	return nil
}

// Delete is idempotent; deleting an absent id succeeds.
func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return syncerrors.Transport(err, "delete %s/%s", collection, id)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		a.notify(ctx, collection)
	}
	return nil
}

// AddToSetAndCount appends member to the set field and rewrites the counter
// to the set's new length in one UPDATE. The WHERE clause makes the append
// conditional on absence, so concurrent duplicates cannot double-count.
func (a *Adapter) AddToSetAndCount(ctx context.Context, collection, id, setField, counterField, member string) (bool, error) {
	res, err := a.db.ExecContext(ctx, `
		UPDATE documents
		   SET body = jsonb_set(
		                jsonb_set(body, $3::text[], coalesce(body #> $3::text[], '[]'::jsonb) || to_jsonb($5::text)),
		                $4::text[],
		                to_jsonb(jsonb_array_length(coalesce(body #> $3::text[], '[]'::jsonb)) + 1)
		              ),
		       updated_at = now()
		 WHERE collection = $1 AND id = $2
		   AND NOT coalesce(body #> $3::text[], '[]'::jsonb) @> to_jsonb($5::text)`,
		collection, id, pq.Array([]string{setField}), pq.Array([]string{counterField}), member,
	)
	return a.setResult(ctx, res, err, collection, id)
}

// RemoveFromSetAndCount is the inverse, conditional on presence.
func (a *Adapter) RemoveFromSetAndCount(ctx context.Context, collection, id, setField, counterField, member string) (bool, error) {
	res, err := a.db.ExecContext(ctx, `
		UPDATE documents
		   SET body = jsonb_set(
		                jsonb_set(body, $3::text[], (body #> $3::text[]) - $5::text),
		                $4::text[],
		                to_jsonb(jsonb_array_length(body #> $3::text[]) - 1)
		              ),
		       updated_at = now()
		 WHERE collection = $1 AND id = $2
		   AND coalesce(body #> $3::text[], '[]'::jsonb) @> to_jsonb($5::text)`,
		collection, id, pq.Array([]string{setField}), pq.Array([]string{counterField}), member,
	)
	return a.setResult(ctx, res, err, collection, id)
}

// setResult distinguishes "no change needed" from "document absent" after a
// conditional membership update.
func (a *Adapter) setResult(ctx context.Context, res sql.Result, err error, collection, id string) (bool, error) {
	if err != nil {
		return false, syncerrors.Transport(err, "membership %s/%s", collection, id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, syncerrors.Transport(err, "membership %s/%s", collection, id)
	}
	if affected > 0 {
		a.notify(ctx, collection)
		return true, nil
	}
	var exists bool
	err = a.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id,
	).Scan(&exists)
	if err != nil {
		return false, syncerrors.Transport(err, "membership %s/%s", collection, id)
	}
	if !exists {
		return false, syncerrors.NotFound("%s/%s", collection, id)
	}
	return false, nil
}

// Subscribe listens on the shared NOTIFY channel and re-lists the collection
// on every wake. pq.Listener reconnects internally with capped backoff; a
// nil notification marks a reconnect, which triggers a full resync snapshot.
func (a *Adapter) Subscribe(ctx context.Context, collection string, q remote.Query, fn remote.SnapshotFunc) (remote.CancelFunc, error) {
	listener := pq.NewListener(a.dsn, time.Second, 30*time.Second, nil)
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, syncerrors.Transport(err, "listen %s", collection)
	}

	done := make(chan struct{})
	deliver := func() {
		docs, err := a.List(ctx, collection, q)
		if err != nil {
			return
		}
		fn(docs)
	}
	deliver()

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil || n.Extra == collection {
					deliver()
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = listener.Close()
		})
	}, nil
}

func (a *Adapter) notify(ctx context.Context, collection string) {
	_, _ = a.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection)
}

func decodeBody(raw []byte) (remote.Document, error) {
	var doc remote.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, syncerrors.Transport(err, "decode document")
	}
	return doc, nil
}
