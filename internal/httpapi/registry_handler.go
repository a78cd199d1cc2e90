// Package httpapi is the daemon's own HTTP surface: a gorilla/mux
// router exposing read snapshots of the registry plus the write
// operations the core itself owns (VLAN creation, ignore-list
// extension, and configuration reset). It stands in for the
// management-object surface
// spec.md §1 places out of scope behind the ipcbus.Sink contract —
// operators and tooling that would otherwise walk the object bus query
// this instead.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/paradise2017/phosphor-networkd/internal/config"
	"github.com/paradise2017/phosphor-networkd/internal/ethif"
	"github.com/paradise2017/phosphor-networkd/internal/registry"
)

// RegistryHandler exposes the registry core over HTTP.
type RegistryHandler struct {
	mgr         *registry.Manager
	scheduler   registry.Scheduler
	ignoreStore *config.IgnoreListStore
}

func NewRegistryHandler(mgr *registry.Manager, scheduler registry.Scheduler, ignoreStore *config.IgnoreListStore) *RegistryHandler {
	return &RegistryHandler{mgr: mgr, scheduler: scheduler, ignoreStore: ignoreStore}
}

type interfaceView struct {
	Path       string   `json:"path"`
	Idx        uint32   `json:"idx"`
	Name       string   `json:"name"`
	Managed    bool     `json:"managed"`
	MAC        string   `json:"mac"`
	Kind       string   `json:"kind"`
	VLANID     *uint16  `json:"vlan_id,omitempty"`
	DefGw4     string   `json:"default_gateway4,omitempty"`
	DefGw6     string   `json:"default_gateway6,omitempty"`
	Addresses  []string `json:"addresses"`
	DNSServers []string `json:"dns_servers,omitempty"`
}

// ListInterfaces returns every managed interface.
// GET /api/interfaces
func (h *RegistryHandler) ListInterfaces(w http.ResponseWriter, r *http.Request) {
	views := make([]interfaceView, 0, len(h.mgr.Interfaces()))
	for _, obj := range h.mgr.Interfaces() {
		views = append(views, toInterfaceView(obj))
	}
	respondOK(w, map[string]interface{}{
		"success":    true,
		"interfaces": views,
	})
}

// GetInterface returns a single managed interface by name.
// GET /api/interfaces/{name}
func (h *RegistryHandler) GetInterface(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	obj, ok := h.mgr.Interface(name)
	if !ok {
		respondError(w, http.StatusNotFound, "interface not found", nil)
		return
	}
	respondOK(w, map[string]interface{}{
		"success":   true,
		"interface": toInterfaceView(obj),
	})
}

func toInterfaceView(obj *ethif.EthernetInterface) interfaceView {
	v := interfaceView{
		Path:       obj.Path(),
		Idx:        obj.Idx,
		Name:       obj.Name,
		Managed:    obj.Managed,
		Kind:       obj.Kind,
		VLANID:     obj.VLANID,
		DNSServers: obj.DNSServers,
		Addresses:  make([]string, 0, len(obj.Addrs)),
	}
	if obj.MAC != nil {
		v.MAC = obj.MAC.String()
	}
	if obj.DefGw4 != nil {
		v.DefGw4 = obj.DefGw4.String()
	}
	if obj.DefGw6 != nil {
		v.DefGw6 = obj.DefGw6.String()
	}
	for _, a := range obj.Addrs {
		if a.IPNet != nil {
			v.Addresses = append(v.Addresses, a.IPNet.String())
		}
	}
	return v
}

// CreateVLAN creates a VLAN sub-interface on an existing parent.
// POST /api/vlans
// Body: { "parent": "eth0", "id": 100 }
func (h *RegistryHandler) CreateVLAN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent string `json:"parent"`
		ID     uint16 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Parent == "" {
		respondError(w, http.StatusBadRequest, "parent is required", nil)
		return
	}
	path, err := h.mgr.VLAN(req.Parent, req.ID, h.scheduler)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, registry.ErrInvalidArgument):
			status = http.StatusBadRequest
		case errors.Is(err, registry.ErrNotFound):
			status = http.StatusNotFound
		}
		respondError(w, status, "failed to create VLAN", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"path":    path,
	})
}

// AddIgnorePattern extends the ignore list at runtime (SPEC_FULL.md §4):
// the pattern takes effect immediately and is persisted so it survives
// a restart.
// POST /api/ignore-list
// Body: { "pattern": "docker" }
func (h *RegistryHandler) AddIgnorePattern(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Pattern == "" {
		respondError(w, http.StatusBadRequest, "pattern is required", nil)
		return
	}

	h.mgr.AddIgnorePattern(req.Pattern)
	if h.ignoreStore != nil {
		if err := h.ignoreStore.Add(req.Pattern); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to persist ignore pattern", err)
			return
		}
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"pattern": req.Pattern,
	})
}

// Reset deletes every managed configuration file and leaves the kernel
// state untouched, matching spec.md §4.3 reset().
// POST /api/reset
func (h *RegistryHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.mgr.Reset()
	respondOK(w, map[string]interface{}{
		"success": true,
		"message": "configuration files reset",
	})
}

// Health reports basic liveness plus the count of managed interfaces.
// GET /health
func (h *RegistryHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]interface{}{
		"status":     "ok",
		"interfaces": len(h.mgr.Interfaces()),
	})
}
