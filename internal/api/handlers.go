package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth-core/internal/hub"
	"github.com/hearth-home/hearth-core/internal/plugin"
	"github.com/hearth-home/hearth-core/internal/value"
	"github.com/hearth-home/hearth-core/internal/wire"
)

// pluginResponse is the JSON shape of a plugin.
type pluginResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Location       string    `json:"location,omitempty"`
	RoutingAddress string    `json:"routing_address,omitempty"`
	Capabilities   []string  `json:"capabilities,omitempty"`
	Online         bool      `json:"online"`
	LastBeat       time.Time `json:"last_beat,omitzero"`
	Ephemeral      bool      `json:"ephemeral,omitempty"`
}

func toPluginResponse(p *plugin.Plugin) pluginResponse {
	return pluginResponse{
		ID:             p.ID,
		Name:           p.Name,
		Location:       p.Location,
		RoutingAddress: p.RoutingAddress,
		Capabilities:   p.Capabilities,
		Online:         p.Online,
		LastBeat:       p.LastBeat,
		Ephemeral:      p.Ephemeral,
	}
}

// handleHealth reports process health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          s.version,
		"pending_requests": s.coord.PendingRequests(),
	})
}

// handleListPlugins returns all tracked plugins.
func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.registry.List()
	out := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, toPluginResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": out})
}

// handleGetPlugin returns one plugin by id.
func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "plugin not found")
		return
	}
	writeJSON(w, http.StatusOK, toPluginResponse(p))
}

// handleRegisterPlugin provisions a new plugin.
func (s *Server) handleRegisterPlugin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p, err := s.registry.Register(r.Context(), req.Name, req.Location)
	switch {
	case errors.Is(err, plugin.ErrInvalidName):
		writeBadRequest(w, "name is required")
		return
	case errors.Is(err, plugin.ErrDuplicateName):
		writeError(w, http.StatusConflict, ErrCodeConflict, "plugin name already exists")
		return
	case err != nil:
		s.logger.Error("registering plugin", "error", err)
		writeInternalError(w, "failed to register plugin")
		return
	}

	writeJSON(w, http.StatusCreated, toPluginResponse(p))
}

// handleDeletePlugin removes a plugin and tells crud subscribers.
func (s *Server) handleDeletePlugin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Remove(r.Context(), id); err != nil {
		if errors.Is(err, plugin.ErrNotFound) {
			writeNotFound(w, "plugin not found")
			return
		}
		s.logger.Error("removing plugin", "plugin_id", id, "error", err)
		writeInternalError(w, "failed to remove plugin")
		return
	}

	if err := s.coord.BroadcastCrud(r.Context(), wire.CrudNotice{
		Entity: "plugin", Action: "deleted",
	}); err != nil {
		s.logger.Warn("crud broadcast after delete", "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleReloadPlugins refreshes the registry from storage.
func (s *Server) handleReloadPlugins(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Load(r.Context()); err != nil {
		s.logger.Error("reloading plugins", "error", err)
		writeInternalError(w, "failed to reload plugins")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true, "count": len(s.registry.List())})
}

// deviceResponse is the JSON shape of a device.
type deviceResponse struct {
	ID       int64  `json:"id"`
	PluginID string `json:"plugin_id"`
	Address  string `json:"address"`
	Name     string `json:"name"`
}

// handleListDevices returns all devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.values.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceResponse{
			ID: d.ID, PluginID: d.PluginID, Address: d.Address, Name: d.Name,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out})
}

// handleCreateDevice provisions a device for a plugin.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PluginID      string `json:"plugin_id"`
		Address       string `json:"address"`
		Name          string `json:"name"`
		ControlTypeID int64  `json:"control_type_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PluginID == "" || req.Address == "" || req.Name == "" {
		writeBadRequest(w, "plugin_id, address and name are required")
		return
	}
	if _, err := s.registry.Get(req.PluginID); err != nil {
		writeNotFound(w, "plugin not found")
		return
	}

	d := &value.Device{
		PluginID:      req.PluginID,
		Address:       req.Address,
		Name:          req.Name,
		ControlTypeID: req.ControlTypeID,
	}
	if err := s.values.CreateDevice(r.Context(), d); err != nil {
		s.logger.Error("creating device", "error", err)
		writeInternalError(w, "failed to create device")
		return
	}

	if err := s.coord.BroadcastCrud(r.Context(), wire.CrudNotice{
		Entity: "device", Action: "created", ID: d.ID,
	}); err != nil {
		s.logger.Warn("crud broadcast after create", "error", err)
	}

	writeJSON(w, http.StatusCreated, deviceResponse{
		ID: d.ID, PluginID: d.PluginID, Address: d.Address, Name: d.Name,
	})
}

// handleDeviceValues returns the current values of a device.
func (s *Server) handleDeviceValues(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid device id")
		return
	}

	values, err := s.values.ValuesByDevice(r.Context(), id)
	if err != nil {
		s.logger.Error("listing device values", "device_id", id, "error", err)
		writeInternalError(w, "failed to list values")
		return
	}

	type valueResponse struct {
		ID         int64     `json:"id"`
		Name       string    `json:"name"`
		Value      string    `json:"value"`
		LastUpdate time.Time `json:"last_update"`
	}
	out := make([]valueResponse, 0, len(values))
	for _, v := range values {
		out = append(out, valueResponse{ID: v.ID, Name: v.Name, Value: v.Value, LastUpdate: v.LastUpdate})
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": out})
}

// handleRulesSummary reports the active ruleset's shape.
func (s *Server) handleRulesSummary(w http.ResponseWriter, _ *http.Request) {
	rs := s.rules.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"events":   len(rs.Events),
		"triggers": rs.TriggerCount(),
		"actions":  len(rs.Actions),
	})
}

// handleReloadRules swaps in a fresh ruleset from storage.
func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	if err := s.rules.Reload(r.Context()); err != nil {
		s.logger.Error("reloading rules", "error", err)
		writeInternalError(w, "failed to reload rules")
		return
	}

	if err := s.coord.BroadcastCrud(r.Context(), wire.CrudNotice{
		Entity: "event", Action: "reloaded",
	}); err != nil {
		s.logger.Warn("crud broadcast after reload", "error", err)
	}

	rs := s.rules.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": true,
		"events":   len(rs.Events),
		"triggers": rs.TriggerCount(),
	})
}

// handleSendCommand dispatches a command to a plugin and waits for its
// reply within the request context.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PluginID string            `json:"plugin_id"`
		Type     string            `json:"type"`
		Address  string            `json:"address"`
		Value    string            `json:"value"`
		Extra    map[string]string `json:"extra"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmdType := wire.CommandType(req.Type)
	if !cmdType.Valid() {
		writeBadRequest(w, "unknown command type")
		return
	}
	if req.PluginID == "" || req.Address == "" {
		writeBadRequest(w, "plugin_id and address are required")
		return
	}

	future, err := s.coord.SendCommand(r.Context(), req.PluginID, wire.Command{
		Type:    cmdType,
		Address: req.Address,
		Value:   req.Value,
		Extra:   req.Extra,
	})
	switch {
	case errors.Is(err, hub.ErrUnknownPlugin):
		writeNotFound(w, "plugin not found")
		return
	case errors.Is(err, hub.ErrPluginOffline):
		writeError(w, http.StatusBadGateway, ErrCodeGateway, "plugin is offline")
		return
	case err != nil:
		s.logger.Error("sending command", "plugin_id", req.PluginID, "error", err)
		writeInternalError(w, "failed to send command")
		return
	}

	result, err := future.Wait(r.Context())
	if err != nil {
		if errors.Is(err, hub.ErrRPCTimeout) {
			writeError(w, http.StatusGatewayTimeout, ErrCodeGateway, "plugin did not reply in time")
			return
		}
		s.logger.Warn("waiting for command reply", "plugin_id", req.PluginID, "error", err)
		writeError(w, http.StatusGatewayTimeout, ErrCodeGateway, "gave up waiting for reply")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     result.OK,
		"error":  result.Error,
		"data":   result.Data,
		"plugin": req.PluginID,
	})
}

// handleBroadcastCrud pushes a configuration change notice to plugins.
func (s *Server) handleBroadcastCrud(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entity string `json:"entity"`
		Action string `json:"action"`
		ID     int64  `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Entity == "" || req.Action == "" {
		writeBadRequest(w, "entity and action are required")
		return
	}

	if err := s.coord.BroadcastCrud(r.Context(), wire.CrudNotice{
		Entity: req.Entity, Action: req.Action, ID: req.ID,
	}); err != nil {
		s.logger.Error("crud broadcast", "error", err)
		writeInternalError(w, "failed to broadcast")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}
