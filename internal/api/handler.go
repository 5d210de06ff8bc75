package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creditx-oss/creditx/internal/batch"
	"github.com/creditx-oss/creditx/internal/domain"
	"github.com/creditx-oss/creditx/internal/ingest"
	"github.com/creditx-oss/creditx/internal/weights"
)

// maxUploadBytes bounds CSV uploads held in memory during parsing.
const maxUploadBytes = 32 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	store      *weights.Store
	aggregator *batch.Aggregator
	source     weights.Source
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, store *weights.Store, aggregator *batch.Aggregator, source weights.Source, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		store:      store,
		aggregator: aggregator,
		source:     source,
		version:    version,
	}
}

// BatchSubmissionsRequest is the request body for submission batches.
type BatchSubmissionsRequest struct {
	Submissions []domain.SubmissionRecord `json:"submissions"`
}

// BatchPoliciesRequest is the request body for policy batches.
type BatchPoliciesRequest struct {
	Policies []domain.PolicyRecord `json:"policies"`
}

// TriageUnderwriting handles POST /triage/underwriting.
func (h *Handler) TriageUnderwriting(w http.ResponseWriter, r *http.Request) {
	var req BatchSubmissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	h.runSubmissionBatch(w, r, domain.OpTriage, req.Submissions)
}

// TriageUnderwritingCSV handles POST /triage/underwriting/csv.
func (h *Handler) TriageUnderwritingCSV(w http.ResponseWriter, r *http.Request) {
	records, ok := h.submissionsFromUpload(w, r)
	if !ok {
		return
	}
	h.runSubmissionBatch(w, r, domain.OpTriage, records)
}

// RenewalsPriority handles POST /renewals/priority.
func (h *Handler) RenewalsPriority(w http.ResponseWriter, r *http.Request) {
	var req BatchPoliciesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	h.runPolicyBatch(w, r, req.Policies)
}

// RenewalsPriorityCSV handles POST /renewals/priority/csv.
func (h *Handler) RenewalsPriorityCSV(w http.ResponseWriter, r *http.Request) {
	file, header, err := h.uploadFile(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	records, err := ingest.ParsePoliciesCSV(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Debug("parsed policies upload",
		"filename", header.Filename,
		"records", len(records),
	)

	h.runPolicyBatch(w, r, records)
}

// PricingSuggest handles POST /pricing/suggest.
func (h *Handler) PricingSuggest(w http.ResponseWriter, r *http.Request) {
	var req BatchSubmissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	h.runSubmissionBatch(w, r, domain.OpPricing, req.Submissions)
}

// runSubmissionBatch validates, snapshots the active weights, and runs
// a triage or pricing batch.
func (h *Handler) runSubmissionBatch(w http.ResponseWriter, r *http.Request, op domain.Operation, records []domain.SubmissionRecord) {
	start := time.Now()
	ctx := r.Context()

	if err := ingest.ValidateSubmissions(records); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	snap, err := h.activeSnapshot(w)
	if err != nil {
		return
	}

	result, err := h.aggregator.Run(ctx, snap, op, records, nil)
	if err != nil {
		slog.Error("batch run failed", "operation", op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "batch evaluation failed",
		})
		return
	}

	h.publishBatchCompleted(ctx, op, result, len(records), time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

// runPolicyBatch validates, snapshots the active weights, and runs a
// renewal priority batch.
func (h *Handler) runPolicyBatch(w http.ResponseWriter, r *http.Request, records []domain.PolicyRecord) {
	start := time.Now()
	ctx := r.Context()

	if err := ingest.ValidatePolicies(records); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	snap, err := h.activeSnapshot(w)
	if err != nil {
		return
	}

	result, err := h.aggregator.Run(ctx, snap, domain.OpRenewal, nil, records)
	if err != nil {
		slog.Error("batch run failed", "operation", domain.OpRenewal, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "batch evaluation failed",
		})
		return
	}

	h.publishBatchCompleted(ctx, domain.OpRenewal, result, len(records), time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

// PolicyCheckRequest is the request body for POST /policy/check.
type PolicyCheckRequest struct {
	Sector          domain.Sector `json:"sector"`
	RequestedCovPct float64       `json:"requested_cov_pct"`
}

// PolicyCheckResponse is the response for POST /policy/check.
type PolicyCheckResponse struct {
	Allowed          bool          `json:"allowed"`
	Sector           domain.Sector `json:"sector"`
	RequestedCovPct  float64       `json:"requested_cov_pct"`
	MaxAllowedCovPct float64       `json:"max_allowed_cov_pct"`
}

// PolicyCheck validates requested coverage against sector limits.
func (h *Handler) PolicyCheck(w http.ResponseWriter, r *http.Request) {
	var req PolicyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if !domain.ValidSector(req.Sector) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unknown sector %q", req.Sector),
		})
		return
	}
	if req.RequestedCovPct < 0 || req.RequestedCovPct > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "requested_cov_pct must be in [0, 1]",
		})
		return
	}

	snap, err := h.activeSnapshot(w)
	if err != nil {
		return
	}

	limit := snap.Config.CoverageLimit(req.Sector)
	if req.RequestedCovPct > limit {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("Requested coverage %.2f exceeds limit %.2f for sector %s.",
				req.RequestedCovPct, limit, req.Sector),
		})
		return
	}

	writeJSON(w, http.StatusOK, PolicyCheckResponse{
		Allowed:          true,
		Sector:           req.Sector,
		RequestedCovPct:  req.RequestedCovPct,
		MaxAllowedCovPct: limit,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server can score traffic. Serving starts
// before the first weights load only in error recovery paths, so this
// gate matters.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Active(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
			"error": "no active weights configuration",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Version returns build and weights version information.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"version":  h.version,
		"api_name": "CreditX API",
	}
	if desc, err := h.store.Descriptor(); err == nil {
		resp["weights_version"] = desc.Version
	}
	writeJSON(w, http.StatusOK, resp)
}

// ConfigCurrent returns the active weights configuration.
func (h *Handler) ConfigCurrent(w http.ResponseWriter, r *http.Request) {
	snap, err := h.activeSnapshot(w)
	if err != nil {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":                snap.Config.Version,
		"loaded_at":              snap.LoadedAt,
		"source":                 snap.Source,
		"sector_base_rates":      snap.Config.SectorBaseRates,
		"pricing_adjustments":    snap.Config.PricingAdjustments,
		"pricing_bounds":         snap.Config.PricingBounds,
		"bands":                  snap.Config.Bands,
		"thresholds":             snap.Config.Thresholds,
		"broker_score_curve":     snap.Config.BrokerScoreCurve,
		"sector_coverage_limits": snap.Config.SectorCoverageLimits,
	})
}

// ReloadWeights handles POST /admin/reload-weights. The reload is
// all-or-nothing: a failed parse or validation leaves the previous
// snapshot active.
func (h *Handler) ReloadWeights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.store.Reload(ctx, h.source)
	if err != nil {
		slog.Error("weights reload failed", "error", err)

		status := http.StatusInternalServerError
		if domain.IsConfigError(err) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{
			"error": "weights reload failed: " + err.Error(),
		})
		return
	}

	// Persist the document so repository-backed deployments can serve
	// it after restart. Best effort; the reload itself already took.
	if h.repo != nil {
		doc := &domain.WeightsDocument{
			Version:    snap.Version(),
			Document:   snap.Raw,
			LoadedFrom: snap.Source,
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.repo.SaveWeightsDocument(ctx, doc); err != nil {
			slog.Error("failed to persist weights document",
				"version", snap.Version(),
				"error", err,
			)
		}
	}

	if h.bus != nil {
		event := domain.WeightsReloadedEvent{
			Version:  snap.Version(),
			Source:   snap.Source,
			LoadedAt: snap.LoadedAt.Unix(),
		}
		payload, _ := json.Marshal(event)
		if err := h.bus.Publish(ctx, domain.TopicWeightsReloaded, payload); err != nil {
			slog.Error("failed to publish weights reloaded event", "error", err)
		}
	}

	slog.Info("weights reloaded",
		"version", snap.Version(),
		"source", snap.Source,
	)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "reloaded",
		"weights_version": snap.Version(),
	})
}

// ListWeightsVersions returns persisted weights document versions.
func (h *Handler) ListWeightsVersions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	versions, err := h.repo.ListWeightsVersions(r.Context())
	if err != nil {
		slog.Error("failed to list weights versions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list weights versions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	})
}

// ListBatchAudits returns recent batch audit rows.
func (h *Handler) ListBatchAudits(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = v
	}

	audits, err := h.repo.ListBatchAudits(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list batch audits", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list batch audits",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"audits": audits,
		"count":  len(audits),
	})
}

// activeSnapshot fetches the active weights snapshot, writing a 503
// when none has been loaded yet.
func (h *Handler) activeSnapshot(w http.ResponseWriter) (*weights.Snapshot, error) {
	snap, err := h.store.Active()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no active weights configuration",
		})
		return nil, err
	}
	return snap, nil
}

// uploadFile extracts the CSV file from a multipart upload.
func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid multipart form",
		})
		return nil, nil, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "file field is required",
		})
		return nil, nil, err
	}

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		file.Close()
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "file must be a CSV file",
		})
		return nil, nil, errors.New("not a csv upload")
	}

	return file, header, nil
}

func (h *Handler) submissionsFromUpload(w http.ResponseWriter, r *http.Request) ([]domain.SubmissionRecord, bool) {
	file, header, err := h.uploadFile(w, r)
	if err != nil {
		return nil, false
	}
	defer file.Close()

	records, err := ingest.ParseSubmissionsCSV(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return nil, false
	}

	slog.Debug("parsed submissions upload",
		"filename", header.Filename,
		"records", len(records),
	)

	return records, true
}

// publishBatchCompleted emits the audit event for a finished batch.
func (h *Handler) publishBatchCompleted(ctx context.Context, op domain.Operation, result *domain.BatchResult, recordCount int, duration time.Duration) {
	if h.bus == nil {
		return
	}

	event := domain.BatchCompletedEvent{
		BatchID:        uuid.New().String(),
		Operation:      op,
		RecordCount:    recordCount,
		FailureCount:   len(result.Failures),
		WeightsVersion: result.WeightsVersion,
		DurationMs:     duration.Milliseconds(),
	}

	payload, _ := json.Marshal(event)
	if err := h.bus.Publish(ctx, domain.TopicBatchCompleted, payload); err != nil {
		slog.Error("failed to publish batch completed event",
			"batch_id", event.BatchID,
			"error", err,
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
