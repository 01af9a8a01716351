// Copyright (c) 2025, Logilab.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/logilab/onyxia-composer/pkg/defaults"
	"github.com/logilab/onyxia-composer/pkg/errors"
	"github.com/logilab/onyxia-composer/pkg/serializer"
	"github.com/logilab/onyxia-composer/pkg/server"
	"github.com/logilab/onyxia-composer/pkg/service"
)

const (
	// Prefix is the path prefix of every application route.
	Prefix = "/jupyterlab-onyxia-composer/"

	// ErrorCodeHeader carries the error code of a failed lifecycle call.
	ErrorCodeHeader = "X-Composer-Error-Code"

	createBanner = "This is " + Prefix + "create endpoint!"
)

// Lifecycle is the service manager as seen by the handlers.
type Lifecycle interface {
	Create(ctx context.Context, req service.Request) (string, error)
	CheckName(ctx context.Context, raw string) (service.NameInfo, error)
	CheckVersion(ctx context.Context, raw, ver string) (string, error)
	List(ctx context.Context) (map[string]service.Summary, error)
	Delete(ctx context.Context, raw string, update bool) (string, error)
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithTimeouts overrides the lifecycle and query handler timeouts.
func WithTimeouts(lifecycle, query time.Duration) HandlerOption {
	return func(h *Handler) {
		if lifecycle > 0 {
			h.lifecycleTimeout = lifecycle
		}
		if query > 0 {
			h.queryTimeout = query
		}
	}
}

// Handler serves the composer routes.
type Handler struct {
	svc              Lifecycle
	maxBodyBytes     int64
	lifecycleTimeout time.Duration
	queryTimeout     time.Duration
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc Lifecycle, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:              svc,
		maxBodyBytes:     defaults.MaxRequestBodyBytes,
		lifecycleTimeout: defaults.ServiceHandlerTimeout,
		queryTimeout:     defaults.QueryHandlerTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the handlers keyed by path, ready for server.WithHandler.
func (h *Handler) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		Prefix + "create":          h.HandleCreate,
		Prefix + "checkSrvName":    h.HandleCheckName,
		Prefix + "checkSrvVersion": h.HandleCheckVersion,
		Prefix + "services":        h.HandleServices,
		Prefix + "delete":          h.HandleDelete,
	}
}

// BodyLimits returns the request body cap of each route, ready for
// server.WithBodyLimits.
func (h *Handler) BodyLimits() map[string]int64 {
	return map[string]int64{
		Prefix + "create":          h.maxBodyBytes,
		Prefix + "checkSrvName":    defaults.MaxQueryBodyBytes,
		Prefix + "checkSrvVersion": defaults.MaxQueryBodyBytes,
		Prefix + "services":        defaults.MaxQueryBodyBytes,
		Prefix + "delete":          defaults.MaxQueryBodyBytes,
	}
}

// MessageResponse is the reply of the lifecycle and version check routes.
type MessageResponse struct {
	Message string `json:"message"`
}

// ServicesResponse is the reply of the services route.
type ServicesResponse struct {
	Services map[string]service.Summary `json:"services"`
}

type versionRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type deleteRequest struct {
	Service string `json:"service"`
}

// HandleCreate answers GET with a banner and POST by creating the service.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		serializer.RespondJSON(w, http.StatusOK, map[string]string{"data": createBanner})
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}

	var req service.Request
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.lifecycleTimeout)
	defer cancel()

	msg, err := h.svc.Create(ctx, req)
	h.respondMessage(w, r, "create", req.Name, msg, err)
}

// HandleCheckName reports whether a service exists and its next version.
func (h *Handler) HandleCheckName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var raw string
	if !h.decode(w, r, &raw) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	info, err := h.svc.CheckName(ctx, raw)
	if err != nil {
		server.WriteErrorFromErr(w, r, err, "Failed to check service name", map[string]any{"name": raw})
		return
	}
	serializer.RespondJSON(w, http.StatusOK, info)
}

// HandleCheckVersion replies with an empty message when the version can
// be used.
func (h *Handler) HandleCheckVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req versionRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	msg, err := h.svc.CheckVersion(ctx, req.Name, req.Version)
	if err != nil {
		server.WriteErrorFromErr(w, r, err, "Failed to check service version",
			map[string]any{"name": req.Name, "version": req.Version})
		return
	}
	serializer.RespondJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandleServices lists the services of the chart repository.
func (h *Handler) HandleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	services, err := h.svc.List(ctx)
	if err != nil {
		server.WriteErrorFromErr(w, r, err, "Failed to list services", nil)
		return
	}
	serializer.RespondJSON(w, http.StatusOK, ServicesResponse{Services: services})
}

// HandleDelete removes a service and its index entry.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req deleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.lifecycleTimeout)
	defer cancel()

	msg, err := h.svc.Delete(ctx, req.Service, false)
	h.respondMessage(w, r, "delete", req.Service, msg, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := serializer.DecodeJSON(r, v, h.maxBodyBytes); err != nil {
		server.WriteError(w, r, http.StatusBadRequest, errors.ErrCodeInvalidRequest,
			"Invalid request body", false, map[string]any{"error": err.Error()})
		return false
	}
	return true
}

// respondMessage always answers 200: the widget shows the message as is.
func (h *Handler) respondMessage(w http.ResponseWriter, r *http.Request, op, name, msg string, err error) {
	if err != nil {
		code := errors.CodeOf(err)
		slog.Error("service operation failed",
			"operation", op,
			"service", name,
			"code", code,
			"requestID", server.RequestID(r.Context()),
			"error", err,
		)
		w.Header().Set(ErrorCodeHeader, string(code))
		msg = service.ErrorMessage(err)
	}
	serializer.RespondJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	server.WriteError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
		"Method not allowed", false, map[string]any{"method": r.Method})
}
