package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/signalix/vault/internal/envelope"
	"github.com/signalix/vault/internal/model"
	"github.com/signalix/vault/internal/repo"
	"github.com/signalix/vault/internal/validate"
)

// DataHandler serves CRUD on opaque data records (session mode)
type DataHandler struct {
	data       repo.DataRepo
	dispatcher *envelope.Dispatcher
}

// NewDataHandler creates a data handler
func NewDataHandler(data repo.DataRepo, dispatcher *envelope.Dispatcher) *DataHandler {
	return &DataHandler{data: data, dispatcher: dispatcher}
}

type addDataRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type updateDataRequest struct {
	Name    *string `json:"name"`
	Message *string `json:"message"`
}

type dataResponse struct {
	Message string       `json:"message"`
	Data    model.Record `json:"data"`
}

// HandleGetData handles GET /getData/{id}
func (h *DataHandler) HandleGetData(w http.ResponseWriter, r *http.Request) {
	rec, err := h.data.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	h.dispatcher.Respond(w, r, http.StatusOK, rec)
}

// HandleAddData handles POST /addData. A missing id is generated.
func (h *DataHandler) HandleAddData(w http.ResponseWriter, r *http.Request) {
	var req addDataRequest
	if err := validate.AddData.Decode(r.Body, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}

	rec, err := h.data.Create(r.Context(), model.Record{ID: id, Name: req.Name, Message: req.Message})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	h.dispatcher.Respond(w, r, http.StatusCreated, dataResponse{Message: "data added", Data: rec})
}

// HandleUpdateData handles PUT /updateData/{id}
func (h *DataHandler) HandleUpdateData(w http.ResponseWriter, r *http.Request) {
	var req updateDataRequest
	if err := validate.UpdateData.Decode(r.Body, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")

	matched, err := h.data.Update(r.Context(), id, model.RecordPatch{Name: req.Name, Message: req.Message})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if matched == 0 {
		envelope.RespondError(w, http.StatusNotFound, "data not found")
		return
	}

	rec, err := h.data.GetByID(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	h.dispatcher.Respond(w, r, http.StatusOK, dataResponse{Message: "data updated", Data: rec})
}
