package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/molajo"
	"github.com/syssam/molajo/dialect"
	"github.com/syssam/molajo/dialect/sql"
)

// Request selects a document and overrides the parts of it a caller
// decides per request.
type Request struct {
	Registry        string
	QueryObject     string // Overrides query_object when set.
	PrimaryKeyValue any    // Overrides primary_key_value when set.
	NameKeyValue    any    // Overrides name_key_value when set.
	// Offset and Count enable pagination when either is positive.
	Offset int
	Count  int
}

// Statement is a rendered registry query.
type Statement struct {
	Registry    string `msgpack:"registry"`
	QueryObject string `msgpack:"query_object"`
	Dialect     string `msgpack:"dialect"`
	SQL         string `msgpack:"sql"`
}

// Service renders registry documents into statements, caching the result.
// It is safe for concurrent use; concurrent renders of the same statement
// run once.
type Service struct {
	store    *Store
	resolver *Resolver
	opts     []sql.BuilderOption
	dialect  string
	cache    molajo.Cache
	ttl      time.Duration
	group    singleflight.Group
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache caches rendered statements in c for ttl. A zero ttl never expires.
func WithCache(c molajo.Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithBuilderOptions sets the options of every Builder the service creates.
func WithBuilderOptions(opts ...sql.BuilderOption) ServiceOption {
	return func(s *Service) {
		s.opts = append(s.opts, opts...)
	}
}

// WithServiceLogger sets the logger. The default is slog.Default().
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService returns a Service over the documents of store. Cached
// statements of a document are dropped when the store reports a change.
func NewService(store *Store, resolver *Resolver, opts ...ServiceOption) *Service {
	s := &Service{store: store, resolver: resolver, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.dialect = s.Builder().Dialect()
	store.OnChange(func(name string) {
		if err := s.Invalidate(context.Background(), name); err != nil {
			s.logger.Warn("registry: invalidate cache", "registry", name, "error", err)
		}
	})
	return s
}

// Builder returns an empty Builder configured with the service options.
func (s *Service) Builder() *sql.Builder {
	return sql.NewBuilder(s.opts...)
}

// Document returns the document of req with its overrides applied.
func (s *Service) Document(req Request) (*Document, error) {
	doc, _, err := s.document(req)
	return doc, err
}

func (s *Service) document(req Request) (*Document, uint64, error) {
	doc, rev, ok := s.store.lookup(req.Registry)
	if !ok {
		return nil, 0, &NotFoundError{Name: req.Registry}
	}
	if req.QueryObject != "" {
		doc.QueryObject = req.QueryObject
	}
	if req.PrimaryKeyValue != nil {
		doc.PrimaryKeyValue = req.PrimaryKeyValue
	}
	if req.NameKeyValue != nil {
		doc.NameKeyValue = req.NameKeyValue
	}
	if req.Offset > 0 || req.Count > 0 {
		doc.UsePagination = true
		doc.ModelOffset = req.Offset
		doc.ModelCount = req.Count
	}
	ApplyDefaults(doc)
	return doc, rev, nil
}

// Statement renders the statement of req. A statement rendered from a
// document that changed during the render is returned but not cached.
func (s *Service) Statement(ctx context.Context, req Request) (*Statement, error) {
	doc, rev, err := s.document(req)
	if err != nil {
		return nil, err
	}
	key := s.key(doc, rev).String()
	if st, ok := s.cached(ctx, key); ok {
		return st, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		b := s.Builder()
		s.resolver.Resolve(doc, b)
		query, err := b.GetSQL("")
		if err != nil {
			return nil, fmt.Errorf("registry: render %s: %w", doc.Name, err)
		}
		st := &Statement{Registry: doc.Name, QueryObject: doc.QueryObject, Dialect: s.dialect, SQL: query}
		if s.store.Revision(req.Registry) != rev {
			s.logger.Debug("registry: document changed during render", "registry", req.Registry)
			return st, nil
		}
		s.save(ctx, key, st)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	st := *v.(*Statement)
	return &st, nil
}

// Query renders the statement of req and runs it on ex.
func (s *Service) Query(ctx context.Context, ex dialect.ExecQuerier, req Request, rows *sql.Rows) error {
	st, err := s.Statement(ctx, req)
	if err != nil {
		return err
	}
	return ex.Query(ctx, st.SQL, []any{}, rows)
}

// Invalidate drops every cached statement of the named document.
func (s *Service) Invalidate(ctx context.Context, name string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeletePrefix(ctx, molajo.CacheKey{Registry: name}.Prefix())
}

func (s *Service) key(doc *Document, rev uint64) molajo.CacheKey {
	ctx := s.resolver.Context()
	k := molajo.CacheKey{
		Registry:      doc.Name,
		QueryObject:   doc.QueryObject,
		Dialect:       s.dialect,
		ApplicationID: ctx.ApplicationID,
		SiteID:        ctx.SiteID,
		Keys:          strings.Join([]string{cast.ToString(doc.PrimaryKeyValue), cast.ToString(doc.NameKeyValue)}, "|"),
		Revision:      rev,
	}
	if doc.UsesPagination() {
		k.Offset, k.Limit = doc.Offset(), doc.Count()
	}
	return k
}

func (s *Service) cached(ctx context.Context, key string) (*Statement, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("registry: cache get", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		s.logger.Debug("registry: cache miss", "key", key)
		return nil, false
	}
	var st Statement
	if err := msgpack.Unmarshal(data, &st); err != nil {
		s.logger.Warn("registry: cache decode", "key", key, "error", err)
		return nil, false
	}
	return &st, true
}

func (s *Service) save(ctx context.Context, key string, st *Statement) {
	if s.cache == nil {
		return
	}
	data, err := msgpack.Marshal(st)
	if err != nil {
		s.logger.Warn("registry: cache encode", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("registry: cache set", "key", key, "error", err)
	}
}
