package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server answers the kvdb REST API from a Store.
type Server struct {
	store      Store
	grants     *Grants
	log        logrus.FieldLogger
	middleware []fiber.Handler
	app        *fiber.App
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used for store failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithGrants shares a grant table with the server.
func WithGrants(g *Grants) Option {
	return func(s *Server) {
		s.grants = g
	}
}

// WithMiddleware installs extra handlers ahead of the routes.
func WithMiddleware(handlers ...fiber.Handler) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, handlers...)
	}
}

// NewServer builds the fiber app and its routes. Request logging and tracing
// come in through WithMiddleware.
func NewServer(cfg *Config, store Store, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		store:  store,
		grants: NewGrants(),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Immutable: params and bodies outlive the request inside the Store
	s.app = fiber.New(fiber.Config{
		AppName:               "kvdb emulator",
		ErrorHandler:          fiber.DefaultErrorHandler,
		Immutable:             true,
		ReadTimeout:           cfg.RequestTimeout,
		WriteTimeout:          cfg.RequestTimeout,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(MetricsMiddleware())
	for _, h := range s.middleware {
		s.app.Use(h)
	}

	s.routes(cfg.MetricsPath)
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Grants returns the server's token table.
func (s *Server) Grants() *Grants {
	return s.grants
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes(metricsPath string) {
	// fixed paths first; "/:bucket" would swallow them otherwise
	s.app.Get("/health", s.health)
	if metricsPath != "" {
		s.app.Get(metricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	s.app.Get("/:bucket", s.listKeys)
	s.app.Post("/:bucket/tokens", s.issueToken)

	s.app.Get("/:bucket/+", s.getValue)
	s.app.Put("/:bucket/+", s.setValue)
	s.app.Post("/:bucket/+", s.setValue)
	s.app.Patch("/:bucket/+", s.incrValue)
	s.app.Delete("/:bucket/+", s.deleteValue)

	s.app.Use(func(c *fiber.Ctx) error {
		return httpError(fiber.StatusNotFound, "")
	})
}

func (s *Server) health(c *fiber.Ctx) error {
	if err := s.store.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}

// getValue handles GET /:bucket/:key
func (s *Server) getValue(c *fiber.Ctx) error {
	bucket, key, err := s.target(c, PermRead)
	if err != nil {
		return err
	}

	value, err := s.store.Get(c.UserContext(), bucket, key)
	RecordStoreOperation("get", err)
	if err != nil {
		return s.storeError(c, "get", err)
	}
	return c.SendString(value)
}

// setValue handles PUT /:bucket/:key
func (s *Server) setValue(c *fiber.Ctx) error {
	bucket, key, err := s.target(c, PermWrite)
	if err != nil {
		return err
	}

	err = s.store.Set(c.UserContext(), bucket, key, string(c.Body()))
	RecordStoreOperation("set", err)
	if err != nil {
		return s.storeError(c, "set", err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// incrValue handles PATCH /:bucket/:key. "+n"/"-n" increments; an unsigned
// number overwrites.
func (s *Server) incrValue(c *fiber.Ctx) error {
	bucket, key, err := s.target(c, PermWrite)
	if err != nil {
		return err
	}

	delta, increment, err := ParseDelta(string(c.Body()))
	if err != nil {
		return httpError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	var value string
	if increment {
		value, err = s.store.Incr(ctx, bucket, key, delta)
	} else {
		value = strconv.FormatInt(delta, 10)
		err = s.store.Set(ctx, bucket, key, value)
	}
	RecordStoreOperation("incr", err)
	if err != nil {
		return s.storeError(c, "incr", err)
	}
	return c.SendString(value)
}

// deleteValue handles DELETE /:bucket/:key
func (s *Server) deleteValue(c *fiber.Ctx) error {
	bucket, key, err := s.target(c, PermDelete)
	if err != nil {
		return err
	}

	err = s.store.Delete(c.UserContext(), bucket, key)
	RecordStoreOperation("delete", err)
	if err != nil {
		return s.storeError(c, "delete", err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// listKeys handles GET /:bucket/?prefix=&skip=&limit=&reverse=&values=&format=
func (s *Server) listKeys(c *fiber.Ctx) error {
	bucket, err := url.PathUnescape(c.Params("bucket"))
	if err != nil {
		return httpError(fiber.StatusBadRequest, "invalid bucket")
	}

	q := ListQuery{
		Prefix:  c.Query("prefix"),
		Skip:    c.QueryInt("skip", 0),
		Limit:   c.QueryInt("limit", 0),
		Reverse: c.QueryBool("reverse", false),
	}
	if err := s.authorize(c, bucket, PermList, q.Prefix); err != nil {
		return err
	}

	entries, err := s.store.List(c.UserContext(), bucket, q)
	RecordStoreOperation("list", err)
	if err != nil {
		return s.storeError(c, "list", err)
	}

	values := c.QueryBool("values", false)
	if c.Query("format") != "json" {
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(e.Key)
			if values {
				b.WriteString("=")
				b.WriteString(e.Value)
			}
			b.WriteString("\n")
		}
		return c.SendString(b.String())
	}

	var body []byte
	if values {
		pairs := make([][2]string, len(entries))
		for i, e := range entries {
			pairs[i] = [2]string{e.Key, e.Value}
		}
		body, err = json.Marshal(pairs)
	} else {
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		body, err = json.Marshal(keys)
	}
	if err != nil {
		return httpError(fiber.StatusInternalServerError, "")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// issueToken handles POST /:bucket/tokens with a form body
func (s *Server) issueToken(c *fiber.Ctx) error {
	bucket, err := url.PathUnescape(c.Params("bucket"))
	if err != nil {
		return httpError(fiber.StatusBadRequest, "invalid bucket")
	}

	// a scoped token may not mint tokens
	if tok := bearer(c); tok != "" {
		if s.grants.Scoped(tok) {
			return httpError(fiber.StatusForbidden, ErrForbidden.Error())
		}
	}

	var perms []string
	if p := c.FormValue("permissions"); p != "" {
		perms = strings.Split(p, ",")
	}

	var ttl time.Duration
	if raw := c.FormValue("ttl"); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || secs < 0 {
			return httpError(fiber.StatusBadRequest, "invalid ttl")
		}
		ttl = time.Duration(secs) * time.Second
	}

	grant, err := s.grants.Issue(bucket, c.FormValue("prefix"), perms, ttl)
	if err != nil {
		return httpError(fiber.StatusBadRequest, err.Error())
	}
	RecordTokenIssued()

	resp := fiber.Map{
		"access_token": grant.Token,
		"prefix":       grant.Prefix,
		"permissions":  strings.Join(grant.Permissions, ","),
	}
	if !grant.ExpiresAt.IsZero() {
		resp["expires_at"] = grant.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(resp)
}

// target resolves bucket and key from the path and authorizes perm on them.
func (s *Server) target(c *fiber.Ctx, perm string) (string, string, error) {
	bucket, err := url.PathUnescape(c.Params("bucket"))
	if err != nil {
		return "", "", httpError(fiber.StatusBadRequest, "invalid bucket")
	}
	key, err := url.PathUnescape(c.Params("+"))
	if err != nil {
		return "", "", httpError(fiber.StatusBadRequest, "invalid key")
	}
	if err := s.authorize(c, bucket, perm, key); err != nil {
		return "", "", err
	}
	return bucket, key, nil
}

func (s *Server) authorize(c *fiber.Ctx, bucket, perm, key string) error {
	switch err := s.grants.Authorize(bearer(c), bucket, perm, key); {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenExpired):
		return httpError(fiber.StatusUnauthorized, err.Error())
	default:
		return httpError(fiber.StatusForbidden, err.Error())
	}
}

func (s *Server) storeError(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return httpError(fiber.StatusNotFound, "")
	case errors.Is(err, ErrNotNumeric):
		return httpError(fiber.StatusBadRequest, err.Error())
	}

	s.log.WithFields(logrus.Fields{
		"operation":  op,
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
		"error":      err,
	}).Error("store operation failed")
	return httpError(fiber.StatusInternalServerError, "")
}

// httpError aborts the handler chain with status. fiber's default error
// handler writes msg, or the standard status text when msg is empty, as a
// plain-text body.
func httpError(status int, msg string) error {
	if msg == "" {
		return fiber.NewError(status)
	}
	return fiber.NewError(status, msg)
}

func bearer(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:]
	}
	return ""
}
