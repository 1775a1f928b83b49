package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/engine"
)

// ObjectSummary is one entry of the object list.
type ObjectSummary struct {
	ID        device.ObjectID     `json:"id"`
	Name      string              `json:"name"`
	Instances []device.InstanceID `json:"instances"`
}

// ResourceDescriptor describes one resource of an object.
type ResourceDescriptor struct {
	ID       device.ResourceID `json:"id"`
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Type     string            `json:"type,omitempty"`
	Multiple bool              `json:"multiple,omitempty"`
}

// ResourceResponse is the body of a single resource read.
type ResourceResponse struct {
	Path  string       `json:"path"`
	Value device.Value `json:"value"`
}

// InstanceResponse is the body of an instance read.
type InstanceResponse struct {
	Path      string                 `json:"path"`
	Resources []engine.ResourceValue `json:"resources"`
}

// WriteResourceRequest is the body of a single resource write.
type WriteResourceRequest struct {
	Value *device.Value `json:"value"`
}

// WriteInstanceRequest is the body of a batch write. Keys are resource ids.
type WriteInstanceRequest struct {
	Values map[string]device.Value `json:"values"`
}

// ExecuteRequest is the optional body of an execute.
type ExecuteRequest struct {
	Args string `json:"args"`
}

// submit runs req on the event loop with the configured server SSID.
// A request still queued when the client goes away or submitTimeout passes
// is dropped by the engine. One already being served completes, so a write
// that returned 503 may still have been applied.
func (s *Server) submit(r *http.Request, req engine.Request) (engine.Response, error) {
	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	req.SSID = s.cfg.ServerSSID
	return s.engine.Submit(ctx, req)
}

// handleListObjects lists every object with its instance ids.
func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	objs := s.engine.Objects()
	out := make([]ObjectSummary, 0, len(objs))

	for _, obj := range objs {
		resp, err := s.submit(r, engine.Request{Op: engine.OpList, Path: device.ObjectPath(obj.OID())})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		instances := resp.Instances
		if instances == nil {
			instances = []device.InstanceID{}
		}
		out = append(out, ObjectSummary{ID: obj.OID(), Name: obj.Name(), Instances: instances})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"objects": out,
		"count":   len(out),
	})
}

// handleDiscover returns the resource descriptors of one object.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	path, ok := parsePath(w, r, 1)
	if !ok {
		return
	}

	resp, err := s.submit(r, engine.Request{Op: engine.OpDiscover, Path: path})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	out := make([]ResourceDescriptor, 0, len(resp.Resources))
	for _, def := range resp.Resources {
		d := ResourceDescriptor{ID: def.ID, Name: def.Name, Kind: def.Kind.String(), Multiple: def.Multiple}
		if def.Type != device.TypeNone {
			d.Type = def.Type.String()
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":      path.String(),
		"resources": out,
	})
}

// handleReadInstance reads every readable resource of an instance.
func (s *Server) handleReadInstance(w http.ResponseWriter, r *http.Request) {
	path, ok := parsePath(w, r, 2)
	if !ok {
		return
	}

	resp, err := s.submit(r, engine.Request{Op: engine.OpRead, Path: path})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	values := resp.Values
	if values == nil {
		values = []engine.ResourceValue{}
	}
	writeJSON(w, http.StatusOK, InstanceResponse{Path: path.String(), Resources: values})
}

// handleWriteInstance writes several resources of an instance in one
// transaction.
func (s *Server) handleWriteInstance(w http.ResponseWriter, r *http.Request) {
	path, ok := parsePath(w, r, 2)
	if !ok {
		return
	}

	var body WriteInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(body.Values) == 0 {
		writeBadRequest(w, "values field is required")
		return
	}

	values := make(map[device.ResourceID]device.Value, len(body.Values))
	for key, v := range body.Values {
		rid, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid resource id %q", key))
			return
		}
		values[device.ResourceID(rid)] = v
	}

	if _, err := s.submit(r, engine.Request{Op: engine.OpWrite, Path: path, Values: values}); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReadResource reads one resource.
func (s *Server) handleReadResource(w http.ResponseWriter, r *http.Request) {
	path, ok := parsePath(w, r, 3)
	if !ok {
		return
	}

	resp, err := s.submit(r, engine.Request{Op: engine.OpRead, Path: path})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResourceResponse{Path: path.String(), Value: resp.Value})
}

// handleWriteResource writes one resource.
func (s *Server) handleWriteResource(w http.ResponseWriter, r *http.Request) {
	path, ok := parsePath(w, r, 3)
	if !ok {
		return
	}

	var body WriteResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Value == nil || body.Value.IsZero() {
		writeBadRequest(w, "value field is required")
		return
	}

	if _, err := s.submit(r, engine.Request{Op: engine.OpWrite, Path: path, Value: *body.Value}); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetResource resets one resource to its default.
func (s *Server) handleResetResource(w http.ResponseWriter, r *http.Request) {
	path, ok := parsePath(w, r, 3)
	if !ok {
		return
	}

	if _, err := s.submit(r, engine.Request{Op: engine.OpReset, Path: path}); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecute runs an executable resource. The body is optional.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	path, ok := parsePath(w, r, 3)
	if !ok {
		return
	}

	var body ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if _, err := s.submit(r, engine.Request{Op: engine.OpExecute, Path: path, Args: body.Args}); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parsePath builds a path of the given depth from the route parameters and
// writes a 400 response when it is malformed.
func parsePath(w http.ResponseWriter, r *http.Request, depth int) (device.Path, bool) {
	raw := "/" + chi.URLParam(r, "oid")
	if depth > 1 {
		raw += "/" + chi.URLParam(r, "iid")
	}
	if depth > 2 {
		raw += "/" + chi.URLParam(r, "rid")
	}

	path, err := device.ParsePath(raw)
	if err != nil {
		writeBadRequest(w, err.Error())
		return device.Path{}, false
	}
	return path, true
}
