// Package controllers implements the HTTP handlers for the registrar's
// external interface (spec.md §6): the five user-facing issuer operations
// (Register is only called by the pipeline worker), SetWallet, and the
// queue State endpoint, each a thin decode/call/encode wrapper around the
// engine, in the same shape as walletserver/controllers's handlers.
package controllers

import (
	"encoding/json"
	"net/http"

	"synnergy-registrar/internal/engine"
	"synnergy-registrar/internal/keys"
)

// RegistrarController exposes the engine's operations over HTTP.
type RegistrarController struct{}

// NewRegistrarController returns a handler set bound to the process-wide
// engine singleton (engine.Current()).
func NewRegistrarController() *RegistrarController { return &RegistrarController{} }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// State returns the per-category queue row counts.
func (rc *RegistrarController) State(w http.ResponseWriter, r *http.Request) {
	e, err := engine.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	state, err := e.State()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SetWallet unlocks the engine's wallet cache with the given key material.
func (rc *RegistrarController) SetWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentAddress string        `json:"payment_address"`
		PaymentKey     keys.KeyInfo  `json:"payment_key"`
		OwnerAddress   string        `json:"owner_address"`
		OwnerKey       keys.KeyInfo  `json:"owner_key"`
		DataAddress    string        `json:"data_address"`
		DataKey        keys.KeyInfo  `json:"data_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := engine.SetWallet(req.PaymentAddress, req.PaymentKey, req.OwnerAddress, req.OwnerKey, req.DataAddress, req.DataKey); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

// Preorder issues a name preorder.
func (rc *RegistrarController) Preorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FQU              string `json:"fqu"`
		CostSats         int64  `json:"cost_sats"`
		Zonefile         []byte `json:"zonefile"`
		TokenFile        []byte `json:"token_file"`
		TransferAddress  string `json:"transfer_address"`
		MinConfirmations int    `json:"min_confirmations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := engine.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	tx, err := e.Issuer.Preorder(r.Context(), req.FQU, req.CostSats, req.Zonefile, req.TokenFile, req.TransferAddress, req.MinConfirmations)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"tx_hash": tx})
}

// Update issues a zone file update.
func (rc *RegistrarController) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FQU             string `json:"fqu"`
		Zonefile        []byte `json:"zonefile"`
		TokenFile       []byte `json:"token_file"`
		ZonefileHash    string `json:"zonefile_hash"`
		TransferAddress string `json:"transfer_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := engine.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	tx, warning, err := e.Issuer.Update(r.Context(), req.FQU, req.Zonefile, req.TokenFile, req.ZonefileHash, req.TransferAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := map[string]string{"tx_hash": tx}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// Transfer issues an ownership transfer.
func (rc *RegistrarController) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FQU             string `json:"fqu"`
		NewOwnerAddress string `json:"new_owner_address"`
		KeepZonefile    bool   `json:"keep_zonefile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := engine.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	tx, err := e.Issuer.Transfer(r.Context(), req.FQU, req.NewOwnerAddress, req.KeepZonefile)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"tx_hash": tx})
}

// Renew issues a renewal.
func (rc *RegistrarController) Renew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FQU     string `json:"fqu"`
		FeeSats int64  `json:"fee_sats"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := engine.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	tx, err := e.Issuer.Renew(r.Context(), req.FQU, req.FeeSats)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"tx_hash": tx})
}

// Revoke issues a revocation.
func (rc *RegistrarController) Revoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FQU string `json:"fqu"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := engine.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	tx, err := e.Issuer.Revoke(r.Context(), req.FQU)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"tx_hash": tx})
}
