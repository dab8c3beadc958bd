package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresOptions tune the Postgres-backed store.
type PostgresOptions struct {
	// ListenDSN is the connection string handed to pq.Listener for
	// change notifications. Leave empty to disable LISTEN/NOTIFY and
	// rely on polling alone.
	ListenDSN string
	// Channel is the NOTIFY channel carrying "tenant/collection" payloads.
	Channel string
	// PollInterval re-queries subscriptions even without notifications,
	// covering writes from clients that bypass this process.
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Postgres stores documents as JSONB rows in a single documents table
// and drives subscriptions off LISTEN/NOTIFY with a polling fallback.
type Postgres struct {
	db           *sqlx.DB
	channel      string
	pollInterval time.Duration
	logger       *zap.Logger

	subMu    sync.Mutex
	subs     map[int]*pgSub
	nextID   int
	listener *pq.Listener
	loopDone chan struct{}
}

type pgSub struct {
	tenantID string
	query    Query
	fn       SnapshotFunc
}

// NewPostgres builds a Postgres store over an existing sqlx connection.
func NewPostgres(db *sqlx.DB, opts PostgresOptions) *Postgres {
	if opts.Channel == "" {
		opts.Channel = "document_changes"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	p := &Postgres{
		db:           db,
		channel:      opts.Channel,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
		subs:         make(map[int]*pgSub),
		loopDone:     make(chan struct{}),
	}

	if opts.ListenDSN != "" {
		p.listener = pq.NewListener(opts.ListenDSN, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
			if err != nil {
				opts.Logger.Warn("docstore listener event", zap.Int("event", int(ev)), zap.Error(err))
			}
		})
		if err := p.listener.Listen(p.channel); err != nil {
			opts.Logger.Warn("docstore listen failed, falling back to polling", zap.Error(err))
			_ = p.listener.Close()
			p.listener = nil
		}
	}
	go p.notifyLoop()

	return p
}

// Close stops the notification loop.
func (p *Postgres) Close() error {
	close(p.loopDone)
	if p.listener != nil {
		return p.listener.Close()
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, tenantID, collection, id string) (*Document, error) {
	var row struct {
		ID        string          `db:"id"`
		Data      json.RawMessage `db:"data"`
		UpdatedAt time.Time       `db:"updated_at"`
	}
	err := p.db.GetContext(ctx, &row,
		`SELECT id, data, updated_at FROM documents WHERE tenant_id = $1 AND collection = $2 AND id = $3`,
		tenantID, collection, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore get: %w", err)
	}
	return &Document{ID: row.ID, Data: row.Data, UpdatedAt: row.UpdatedAt}, nil
}

func (p *Postgres) Query(ctx context.Context, tenantID string, q Query) ([]Document, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT id, data, updated_at FROM documents WHERE tenant_id = $1 AND collection = $2`)
	args := []interface{}{tenantID, q.Collection}

	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual:
			sb.WriteString(fmt.Sprintf(` AND data->>$%d = $%d`, len(args)+1, len(args)+2))
			args = append(args, f.Field, f.Value)
		case OpArrayContains:
			needle, err := json.Marshal([]string{f.Value})
			if err != nil {
				return nil, fmt.Errorf("docstore query: %w", err)
			}
			sb.WriteString(fmt.Sprintf(` AND data->$%d @> $%d::jsonb`, len(args)+1, len(args)+2))
			args = append(args, f.Field, string(needle))
		default:
			return nil, fmt.Errorf("docstore query: unsupported operator %q", f.Op)
		}
	}
	sb.WriteString(` ORDER BY id`)

	rows, err := p.db.QueryxContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("docstore query: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var row struct {
			ID        string          `db:"id"`
			Data      json.RawMessage `db:"data"`
			UpdatedAt time.Time       `db:"updated_at"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("docstore query scan: %w", err)
		}
		docs = append(docs, Document{ID: row.ID, Data: row.Data, UpdatedAt: row.UpdatedAt})
	}
	return docs, rows.Err()
}

func (p *Postgres) Put(ctx context.Context, tenantID, collection, id string, data json.RawMessage) error {
	return p.Apply(ctx, tenantID, []WriteOp{{Kind: WritePut, Collection: collection, ID: id, Data: data}})
}

func (p *Postgres) Delete(ctx context.Context, tenantID, collection, id string) error {
	return p.Apply(ctx, tenantID, []WriteOp{{Kind: WriteDelete, Collection: collection, ID: id}})
}

// Apply runs every op inside a single transaction.
func (p *Postgres) Apply(ctx context.Context, tenantID string, ops []WriteOp) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore batch begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	touched := make(map[string]struct{})
	for _, op := range ops {
		switch op.Kind {
		case WriteDelete:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE tenant_id = $1 AND collection = $2 AND id = $3`,
				tenantID, op.Collection, op.ID); err != nil {
				return fmt.Errorf("docstore batch delete: %w", err)
			}
		default:
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO documents (tenant_id, collection, id, data, updated_at)
				 VALUES ($1, $2, $3, $4, NOW())
				 ON CONFLICT (tenant_id, collection, id)
				 DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
				tenantID, op.Collection, op.ID, []byte(op.Data)); err != nil {
				return fmt.Errorf("docstore batch put: %w", err)
			}
		}
		touched[op.Collection] = struct{}{}
	}

	for collection := range touched {
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`,
			p.channel, tenantID+"/"+collection); err != nil {
			return fmt.Errorf("docstore batch notify: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("docstore batch commit: %w", err)
	}

	// Local subscribers get their snapshot without waiting for the
	// notification round trip.
	for collection := range touched {
		p.deliver(tenantID, collection)
	}
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, tenantID string, q Query, fn SnapshotFunc) (Unsubscribe, error) {
	docs, err := p.Query(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}

	p.subMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = &pgSub{tenantID: tenantID, query: q, fn: fn}
	p.subMu.Unlock()

	fn(docs)

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}, nil
}

func (p *Postgres) notifyLoop() {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var notifications <-chan *pq.Notification
	if p.listener != nil {
		notifications = p.listener.Notify
	}

	for {
		select {
		case <-p.loopDone:
			return
		case n, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			if n == nil {
				// Reconnect; re-deliver everything since events may be lost.
				p.deliverAll()
				continue
			}
			parts := strings.SplitN(n.Extra, "/", 2)
			if len(parts) == 2 {
				p.deliver(parts[0], parts[1])
			}
		case <-ticker.C:
			p.deliverAll()
		}
	}
}

func (p *Postgres) deliver(tenantID, collection string) {
	p.subMu.Lock()
	var matched []*pgSub
	for _, sub := range p.subs {
		if sub.tenantID == tenantID && sub.query.Collection == collection {
			matched = append(matched, sub)
		}
	}
	p.subMu.Unlock()

	for _, sub := range matched {
		p.run(sub)
	}
}

func (p *Postgres) deliverAll() {
	p.subMu.Lock()
	subs := make([]*pgSub, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.subMu.Unlock()

	for _, sub := range subs {
		p.run(sub)
	}
}

func (p *Postgres) run(sub *pgSub) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs, err := p.Query(ctx, sub.tenantID, sub.query)
	if err != nil {
		p.logger.Warn("docstore subscription requery failed",
			zap.String("tenant", sub.tenantID),
			zap.String("collection", sub.query.Collection),
			zap.Error(err))
		return
	}
	sub.fn(docs)
}
