package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/handler/http/response"
	"github.com/shiftsync/attendance-engine/internal/service/ingest"
)

type ReconcileHandler interface {
	TriggerRun(w http.ResponseWriter, r *http.Request)
	Preview(w http.ResponseWriter, r *http.Request)
	IngestExport(w http.ResponseWriter, r *http.Request)
}

type reconcileHandlerImpl struct {
	reconciler attendance.ReconciliationService
	ingestSvc  *ingest.Service
	loc        *time.Location
}

func NewReconcileHandler(reconciler attendance.ReconciliationService, ingestSvc *ingest.Service, loc *time.Location) ReconcileHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &reconcileHandlerImpl{
		reconciler: reconciler,
		ingestSvc:  ingestSvc,
		loc:        loc,
	}
}

type triggerRunRequest struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	EmployeeIDs []string `json:"employee_ids,omitempty"`
	DryRun      bool     `json:"dry_run"`
	Force       bool     `json:"force"`
}

func (req triggerRunRequest) toDomain(loc *time.Location) (attendance.ReprocessRequest, map[string]string) {
	details := make(map[string]string)
	from, err := time.ParseInLocation("2006-01-02", req.From, loc)
	if err != nil {
		details["from"] = "must be a YYYY-MM-DD date"
	}
	to, err := time.ParseInLocation("2006-01-02", req.To, loc)
	if err != nil {
		details["to"] = "must be a YYYY-MM-DD date"
	}
	if len(details) > 0 {
		return attendance.ReprocessRequest{}, details
	}
	return attendance.ReprocessRequest{
		EmployeeIDs: req.EmployeeIDs,
		From:        from,
		To:          to,
		DryRun:      req.DryRun,
		Force:       req.Force,
	}, nil
}

// TriggerRun implements ReconcileHandler. It runs the reconciliation
// synchronously: runs are bounded by the requested range and callers
// are automation that wants the summary in the response.
func (h *reconcileHandlerImpl) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	domainReq, details := req.toDomain(h.loc)
	if details != nil {
		response.BadRequest(w, "Invalid reprocess request", details)
		return
	}

	result, err := h.reconciler.Reprocess(r.Context(), domainReq)
	if err != nil {
		slog.Error("Reconciliation run failed", "error", err)
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Reconciliation run completed", result)
}

// Preview implements ReconcileHandler: a dry run over query parameters,
// for operators checking what a correction pass would change.
func (h *reconcileHandlerImpl) Preview(w http.ResponseWriter, r *http.Request) {
	req := triggerRunRequest{
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
		DryRun: true,
	}

	domainReq, details := req.toDomain(h.loc)
	if details != nil {
		response.BadRequest(w, "Invalid preview request", details)
		return
	}
	domainReq.DryRun = true

	result, err := h.reconciler.Reprocess(r.Context(), domainReq)
	if err != nil {
		slog.Error("Reconciliation preview failed", "error", err)
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

type ingestResponse struct {
	Ingest ingest.Result               `json:"ingest"`
	Run    *attendance.ReprocessResult `json:"run,omitempty"`
}

// IngestExport implements ReconcileHandler. The body is the raw device
// CSV export; ingestion chains straight into the post-upload reprocess.
func (h *reconcileHandlerImpl) IngestExport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	ingestResult, runResult, err := h.ingestSvc.IngestAndReprocess(r.Context(), r.Body)
	if err != nil {
		slog.Error("Device export ingestion failed", "error", err)
		response.HandleError(w, err)
		return
	}

	resp := ingestResponse{Ingest: ingestResult}
	if runResult.RunID != "" {
		resp.Run = &runResult
	}
	response.Accepted(w, "Device export processed", resp)
}
