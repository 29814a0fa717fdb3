// Package syncs serves the package sync task endpoints under /-/package.
package syncs

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolhive-registry-mirror/internal/api/common"
	pkgsync "github.com/stacklok/toolhive-registry-mirror/internal/sync"
	"github.com/stacklok/toolhive-registry-mirror/internal/task"
)

// CreateTaskRequest is the optional body of a sync request
type CreateTaskRequest struct {
	Tips             string `json:"tips,omitempty"`
	SkipDependencies bool   `json:"skipDependencies,omitempty"`
	SyncDownloadData bool   `json:"syncDownloadData,omitempty"`
}

// TaskResponse describes a sync task
type TaskResponse struct {
	OK     bool   `json:"ok"`
	ID     string `json:"id"`
	Type   string `json:"type"`
	State  string `json:"state"`
	LogURL string `json:"logUrl,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Routes holds the sync task handlers
type Routes struct {
	manager pkgsync.Manager
}

// Router mounts the sync endpoints. Scoped names are accepted encoded in one
// segment or as two path segments.
func Router(manager pkgsync.Manager) http.Handler {
	routes := &Routes{manager: manager}
	r := chi.NewRouter()
	for _, prefix := range []string{"/{fullname}", "/{scope}/{name}"} {
		r.Put(prefix+"/syncs", routes.createTask)
		r.Get(prefix+"/syncs/{taskId}", routes.showTask)
		r.Get(prefix+"/syncs/{taskId}/log", routes.showLog)
	}
	return r
}

func (rt *Routes) createTask(w http.ResponseWriter, r *http.Request) {
	fullname, err := common.GetPackageName(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req CreateTaskRequest
	if err := common.DecodeJSONBody(r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := rt.manager.CreateTask(r.Context(), fullname, task.SyncPackageOptions{
		Tips:             req.Tips,
		SkipDependencies: req.SkipDependencies,
		SyncDownloadData: req.SyncDownloadData,
		AuthorIP:         clientIP(r),
	})
	if err != nil {
		slog.Error("Failed to create sync task", "package", fullname, "error", err)
		common.WriteErrorResponse(w, "failed to create sync task", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, TaskResponse{
		OK:    true,
		ID:    t.TaskID,
		Type:  string(t.Type),
		State: string(t.State),
	}, http.StatusCreated)
}

func (rt *Routes) showTask(w http.ResponseWriter, r *http.Request) {
	fullname, t, ok := rt.findTask(w, r)
	if !ok {
		return
	}
	resp := TaskResponse{
		OK:    true,
		ID:    t.TaskID,
		Type:  string(t.Type),
		State: string(t.State),
		Error: t.Error,
	}
	if t.State != task.StateWaiting {
		resp.LogURL = rt.manager.LogURL(t)
	}
	slog.Debug("Sync task shown", "package", fullname, "task_id", t.TaskID, "state", t.State)
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

func (rt *Routes) showLog(w http.ResponseWriter, r *http.Request) {
	var offset int64
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			common.WriteErrorResponse(w, fmt.Sprintf("invalid offset %q", raw), http.StatusBadRequest)
			return
		}
		offset = parsed
	}

	fullname, t, ok := rt.findTask(w, r)
	if !ok {
		return
	}
	log, err := rt.manager.FindTaskLog(r.Context(), t.TaskID, offset)
	if err != nil {
		if errors.Is(err, task.ErrLogNotFound) {
			notFound(w, fullname, t.TaskID)
			return
		}
		slog.Error("Failed to read sync task log", "task_id", t.TaskID, "error", err)
		common.WriteErrorResponse(w, "failed to read sync task log", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(log))
}

// findTask resolves the task of the request and writes the error response when it cannot
func (rt *Routes) findTask(w http.ResponseWriter, r *http.Request) (string, *task.Task, bool) {
	fullname, err := common.GetPackageName(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	taskID, err := common.GetAndValidateURLParam(r, "taskId")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", nil, false
	}

	t, err := rt.manager.FindTask(r.Context(), taskID)
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		notFound(w, fullname, taskID)
		return "", nil, false
	case err != nil:
		slog.Error("Failed to find sync task", "task_id", taskID, "error", err)
		common.WriteErrorResponse(w, "failed to find sync task", http.StatusInternalServerError)
		return "", nil, false
	case t.TargetName != fullname:
		notFound(w, fullname, taskID)
		return "", nil, false
	}
	return fullname, t, true
}

func notFound(w http.ResponseWriter, fullname, taskID string) {
	common.WriteErrorResponse(w, fmt.Sprintf("Package %q sync task %q not found", fullname, taskID), http.StatusNotFound)
}

// clientIP is the remote address without its port. middleware.RealIP has already
// replaced it with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
