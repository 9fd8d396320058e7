package http

import (
	"cmp"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi"

	"resit/internal/core"
	"resit/internal/log"
	"resit/internal/services"
)

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req ReceiptRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w, r)
		return
	}
	rec, err := req.toReceipt()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	created, err := s.receipts.Create(r.Context(), rec)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/receipts/"+created.ID).
		Data(toReceiptResponse(created)).
		Write(w, r)
}

// handleCreateBatch validates items one by one; invalid items are reported
// next to the store failures under their request index.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w, r)
		return
	}

	var (
		valid   []core.Receipt
		indexOf []int
		resp    = BatchResponse{Errors: []services.BatchError{}}
	)
	for i, item := range req.Receipts {
		if err := validate.Struct(item); err != nil {
			resp.Errors = append(resp.Errors, batchError(i, validationMessage(err)))
			continue
		}
		rec, err := item.toReceipt()
		if err != nil {
			resp.Errors = append(resp.Errors, batchError(i, err.Error()))
			continue
		}
		valid = append(valid, rec)
		indexOf = append(indexOf, i)
	}

	result, err := s.receipts.CreateBatch(r.Context(), valid)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	resp.Created = toReceiptResponses(result.Created)
	for _, be := range result.Errors {
		resp.Errors = append(resp.Errors, batchError(indexOf[be.Index], be.Error))
	}
	sortBatchErrors(resp.Errors)

	status := http.StatusCreated
	if len(resp.Created) == 0 {
		status = http.StatusUnprocessableEntity
	} else if len(resp.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	NewResponse().Status(status).Data(resp).Write(w, r)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseListFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	page, err := s.receipts.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().Data(toListResponse(page)).Write(w, r)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := receiptID(w, r)
	if !ok {
		return
	}
	rec, err := s.receipts.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().Data(toReceiptResponse(rec)).Write(w, r)
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := receiptID(w, r)
	if !ok {
		return
	}
	var req ReceiptPatchRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w, r)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	updated, err := s.receipts.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().Data(toReceiptResponse(updated)).Write(w, r)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := receiptID(w, r)
	if !ok {
		return
	}
	deleted, err := s.receipts.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Data(toReceiptResponse(deleted)).Write(w, r)
}

func receiptID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		BadRequestError("missing receipt id").Write(w, r)
		return "", false
	}
	return id, true
}

func batchError(index int, msg string) services.BatchError {
	return services.BatchError{Index: index, Error: msg}
}

func sortBatchErrors(errs []services.BatchError) {
	slices.SortFunc(errs, func(a, b services.BatchError) int { return cmp.Compare(a.Index, b.Index) })
}
