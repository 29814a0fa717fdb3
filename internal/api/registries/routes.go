// Package registries serves the registry manager endpoints under /-/registry.
package registries

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolhive-registry-mirror/internal/api/common"
	"github.com/stacklok/toolhive-registry-mirror/internal/registries"
)

// Service is the part of the registry manager the routes use
type Service interface {
	CreateRegistry(ctx context.Context, params registries.CreateParams) (*registries.Registry, error)
	FindRegistry(ctx context.Context, registryID string) (*registries.Registry, error)
	ListRegistries(ctx context.Context, opts registries.ListOptions) (*registries.Page, error)
	UpdateRegistry(ctx context.Context, params registries.UpdateParams) (*registries.Registry, error)
	RemoveRegistry(ctx context.Context, registryID string) error
}

// Routes holds the registry handlers
type Routes struct {
	svc Service
}

// Router mounts the registry CRUD endpoints
func Router(svc Service) http.Handler {
	routes := &Routes{svc: svc}
	r := chi.NewRouter()
	r.Get("/", routes.list)
	r.Post("/", routes.create)
	r.Get("/{registryId}", routes.show)
	r.Patch("/{registryId}", routes.update)
	r.Delete("/{registryId}", routes.remove)
	return r
}

func (rt *Routes) list(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, err := rt.svc.ListRegistries(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	common.WriteJSONResponse(w, page, http.StatusOK)
}

func (rt *Routes) create(w http.ResponseWriter, r *http.Request) {
	var params registries.CreateParams
	if err := common.DecodeJSONBody(r, &params); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := rt.svc.CreateRegistry(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	common.WriteJSONResponse(w, created, http.StatusCreated)
}

func (rt *Routes) show(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetAndValidateURLParam(r, "registryId")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	found, err := rt.svc.FindRegistry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.WriteJSONResponse(w, found, http.StatusOK)
}

func (rt *Routes) update(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetAndValidateURLParam(r, "registryId")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var params registries.CreateParams
	if err := common.DecodeJSONBody(r, &params); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	updated, err := rt.svc.UpdateRegistry(r.Context(), registries.UpdateParams{RegistryID: id, CreateParams: params})
	if err != nil {
		writeError(w, err)
		return
	}
	common.WriteJSONResponse(w, updated, http.StatusOK)
}

func (rt *Routes) remove(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetAndValidateURLParam(r, "registryId")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rt.svc.RemoveRegistry(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	common.WriteJSONResponse(w, map[string]bool{"ok": true}, http.StatusOK)
}

func listOptions(r *http.Request) (registries.ListOptions, error) {
	var opts registries.ListOptions
	q := r.URL.Query()
	for key, dst := range map[string]*int{"pageIndex": &opts.PageIndex, "pageSize": &opts.PageSize} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return opts, errors.New(key + " must be a non-negative integer")
		}
		*dst = v
	}
	return opts, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registries.ErrRegistryNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, registries.ErrRegistryExists):
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, registries.ErrInvalidRegistry):
		common.WriteErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.Error("Registry request failed", "error", err)
		common.WriteErrorResponse(w, "internal error", http.StatusInternalServerError)
	}
}
