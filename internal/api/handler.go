package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/riyad899/Jtech-sub000/internal/auth"
	"github.com/riyad899/Jtech-sub000/internal/events"
	"github.com/riyad899/Jtech-sub000/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Repository interface {
	List(ctx context.Context, collection string, filter map[string]any) ([]repository.Document, error)
	Get(ctx context.Context, collection, id string) (repository.Document, error)
	Insert(ctx context.Context, collection string, doc map[string]any) (repository.InsertResult, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (repository.UpdateResult, error)
	Delete(ctx context.Context, collection, id string) (repository.DeleteResult, error)
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, ev events.OrderCreated) error
}

type Handler struct {
	repo    Repository
	events  EventPublisher
	timeout time.Duration
	log     *slog.Logger
}

// NewHandler builds the document handlers. pub may be nil, in which case no
// events are emitted.
func NewHandler(repo Repository, pub EventPublisher, timeout time.Duration, log *slog.Logger) *Handler {
	return &Handler{repo: repo, events: pub, timeout: timeout, log: log}
}

type collCtxKey struct{}

// resolveCollection rejects collections outside the whitelist.
func resolveCollection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "collection")
		c, ok := collections[name]
		if !ok {
			respondError(w, http.StatusNotFound, "unknown_collection", fmt.Sprintf("unknown collection %q", name))
			return
		}
		ctx := context.WithValue(r.Context(), collCtxKey{}, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func collectionFrom(r *http.Request) (string, collection) {
	c, _ := r.Context().Value(collCtxKey{}).(collection)
	return chi.URLParam(r, "collection"), c
}

// authorize checks the caller against the collection's access level and
// reports the identity for owner scoping.
func authorize(w http.ResponseWriter, r *http.Request, a access) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	switch a {
	case accessPublic:
		return id, true
	case accessOwner:
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return id, false
		}
	case accessAdmin:
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return id, false
		}
		if !id.IsAdmin() {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return id, false
		}
	}
	return id, true
}

// ownerScoped is true when results must be limited to the caller's own documents.
func ownerScoped(a access, id auth.Identity) bool {
	return a == accessOwner && !id.IsAdmin()
}

func ownerFilter(id auth.Identity) map[string]any {
	if id.Email != "" {
		return map[string]any{"email": id.Email}
	}
	return map[string]any{"userId": id.UserID}
}

func owns(doc repository.Document, id auth.Identity) bool {
	for k, v := range ownerFilter(id) {
		if doc[k] != v {
			return false
		}
	}
	return true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	name, c := collectionFrom(r)
	id, ok := authorize(w, r, c.read)
	if !ok {
		return
	}

	filter, err := c.listFilter(r.URL.Query())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if ownerScoped(c.read, id) {
		for k, v := range ownerFilter(id) {
			filter[k] = v
		}
	}

	docs, err := h.repo.List(ctx, name, filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	name, c := collectionFrom(r)
	id, ok := authorize(w, r, c.read)
	if !ok {
		return
	}

	doc, err := h.repo.Get(ctx, name, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if ownerScoped(c.read, id) && !owns(doc, id) {
		// someone else's order looks the same as a missing one
		respondError(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	name, c := collectionFrom(r)
	id, ok := authorize(w, r, c.create)
	if !ok {
		return
	}

	doc, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if err := c.validate(doc); err != nil {
		h.handleError(w, r, err)
		return
	}
	if ownerScoped(c.create, id) {
		doc["userId"] = id.UserID
		if id.Email != "" {
			doc["email"] = id.Email
		}
	}

	res, err := h.repo.Insert(ctx, name, doc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if name == "orders" {
		h.publishOrderCreated(r.Context(), res.InsertedID, doc)
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	name, _ := collectionFrom(r)
	if _, ok := authorize(w, r, accessAdmin); !ok {
		return
	}

	fields, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if len(fields) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "no fields to update")
		return
	}

	res, err := h.repo.Update(ctx, name, chi.URLParam(r, "id"), fields)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	name, _ := collectionFrom(r)
	if _, ok := authorize(w, r, accessAdmin); !ok {
		return
	}

	res, err := h.repo.Delete(ctx, name, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// publishOrderCreated emits the event in the background; a broker outage never
// fails the order.
func (h *Handler) publishOrderCreated(ctx context.Context, insertedID any, doc map[string]any) {
	if h.events == nil {
		return
	}
	orderID := fmt.Sprint(insertedID)
	if oid, ok := insertedID.(primitive.ObjectID); ok {
		orderID = oid.Hex()
	}
	ev := events.NewOrderCreated(orderID, doc)

	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := h.events.PublishOrderCreated(ctx, ev); err != nil {
			h.log.WarnContext(ctx, "order event not published", "order_id", orderID, "error", err)
		}
	}()
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON object")
		return nil, false
	}
	return doc, true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_document", err.Error())
	case errors.Is(err, repository.ErrInvalidFilter):
		respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "document not found")
	case mongo.IsDuplicateKeyError(err):
		respondError(w, http.StatusConflict, "duplicate", "document already exists")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "database timeout")
	default:
		h.log.ErrorContext(r.Context(), "document operation failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
