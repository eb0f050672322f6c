package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/anonymize"
	"github.com/lgpdkit/pii-sentinel/internal/audit"
	"github.com/lgpdkit/pii-sentinel/internal/cache"
	"github.com/lgpdkit/pii-sentinel/internal/dataset"
	"github.com/lgpdkit/pii-sentinel/internal/pii"
	"github.com/lgpdkit/pii-sentinel/internal/risk"
	"github.com/lgpdkit/pii-sentinel/internal/websocket"
)

// maxRequestBody caps request payloads at 32 MiB
const maxRequestBody = 32 << 20

// datasetPayload is the wire shape of a tabular dataset
type datasetPayload struct {
	Name    string          `json:"name"`
	Columns []columnPayload `json:"columns"`
}

type columnPayload struct {
	Name   string        `json:"name"`
	Values []interface{} `json:"values"`
}

type scanResponse struct {
	Cached bool            `json:"cached"`
	Result *pii.ScanResult `json:"result"`
}

type anonymizeRequest struct {
	Dataset datasetPayload                    `json:"dataset"`
	Methods map[string]anonymize.MethodConfig `json:"methods"`
	RunID   string                            `json:"run_id,omitempty"`
}

type anonymizeResponse struct {
	Report  *anonymize.Report `json:"report"`
	Dataset datasetPayload    `json:"dataset"`
}

type auditResponse struct {
	*audit.Result
	Dataset datasetPayload `json:"dataset"`
}

type detokenizeRequest struct {
	RunID string `json:"run_id"`
	Token string `json:"token"`
}

type detokenizeResponse struct {
	Token string `json:"token"`
	Value string `json:"value"`
}

// handleScan runs PII detection over the posted dataset
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var payload datasetPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	table, err := buildDataset(payload)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if s.cache != nil {
		fingerprint := cache.Fingerprint(table)
		if cached, ok, err := s.cache.Get(r.Context(), fingerprint); err == nil && ok {
			s.writeJSON(w, http.StatusOK, scanResponse{Cached: true, Result: cached})
			return
		} else if err != nil {
			s.logger.Warn("Scan cache lookup failed", zap.Error(err))
		}
	}

	result := s.detector.Detect(table)
	risk.Annotate(result)

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), cache.Fingerprint(table), result); err != nil {
			s.logger.Warn("Scan cache store failed", zap.Error(err))
		}
	}

	s.wsHub.BroadcastScan(websocket.ScanEvent{
		Source:      result.SourceName,
		RowCount:    result.RowCount,
		Findings:    len(result.Findings),
		RiskSummary: result.RiskSummary,
	})

	s.writeJSON(w, http.StatusOK, scanResponse{Result: result})
}

// handleAnonymize applies the posted method config to the posted dataset
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	table, err := buildDataset(req.Dataset)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	specs, err := anonymize.ParseSpecs(req.Methods)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}
	if len(specs) == 0 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("no anonymization methods supplied"))
		return
	}

	vault, err := s.loadVault(r, req.RunID)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	engine := s.newEngine(vault)
	output, report, err := engine.Apply(table, specs)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}

	if err := s.saveVault(r, req.RunID, engine.Vault()); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.wsHub.BroadcastAnonymization(websocket.AnonymizationEvent{
		Source:        report.SourceName,
		RowCount:      report.RowCount,
		Columns:       len(report.Columns),
		FailedColumns: report.FailedColumns(),
	})

	s.writeJSON(w, http.StatusOK, anonymizeResponse{
		Report:  report,
		Dataset: datasetToPayload(output),
	})
}

// handleAudit runs the scan, anonymize, re-scan loop. When no methods are
// posted, the plan is derived from the initial scan's risk levels.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	table, err := buildDataset(req.Dataset)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	vault, err := s.loadVault(r, req.RunID)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	engine := s.newEngine(vault)
	orch := s.newOrchestrator(engine)

	var specs []anonymize.Spec
	if len(req.Methods) > 0 {
		specs, err = anonymize.ParseSpecs(req.Methods)
		if err != nil {
			s.writeError(w, r, statusForError(err), err)
			return
		}
	} else {
		specs = audit.DefaultPlan(orch.Scan(table))
	}

	result, err := orch.Run(table, specs)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}

	if err := s.saveVault(r, req.RunID, engine.Vault()); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.wsHub.BroadcastScan(websocket.ScanEvent{
		Source:      result.ScanBefore.SourceName,
		RowCount:    result.ScanBefore.RowCount,
		Findings:    len(result.ScanBefore.Findings),
		RiskSummary: result.ScanBefore.RiskSummary,
	})
	s.wsHub.BroadcastAnonymization(websocket.AnonymizationEvent{
		Source:         result.Report.SourceName,
		RowCount:       result.Report.RowCount,
		Columns:        len(result.Report.Columns),
		FailedColumns:  result.Report.FailedColumns(),
		ReductionRatio: result.ReductionRatio,
	})

	s.writeJSON(w, http.StatusOK, auditResponse{
		Result:  result,
		Dataset: datasetToPayload(result.Output),
	})
}

// handleDetokenize resolves a token against a persisted vault snapshot
func (s *Server) handleDetokenize(w http.ResponseWriter, r *http.Request) {
	if s.vaults == nil {
		s.writeError(w, r, http.StatusNotImplemented, fmt.Errorf("vault store is not enabled"))
		return
	}

	var req detokenizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.RunID == "" || req.Token == "" {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("run_id and token are required"))
		return
	}

	vault, err := s.vaults.Load(r.Context(), req.RunID, s.config.Anonymization.TokenPrefix)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	value, err := vault.Detokenize(req.Token)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, detokenizeResponse{Token: req.Token, Value: value})
}

// handleVaultRuns lists run IDs with stored vault snapshots
func (s *Server) handleVaultRuns(w http.ResponseWriter, r *http.Request) {
	if s.vaults == nil {
		s.writeError(w, r, http.StatusNotImplemented, fmt.Errorf("vault store is not enabled"))
		return
	}

	runs, err := s.vaults.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleCacheStats reports scan cache hit rates
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, r, http.StatusNotImplemented, fmt.Errorf("scan cache is not enabled"))
		return
	}

	stats, err := s.cache.GetStats(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// loadVault restores a persisted vault when a run ID is supplied and the
// vault store is enabled; otherwise the engine starts with a fresh vault
func (s *Server) loadVault(r *http.Request, runID string) (*anonymize.TokenVault, error) {
	if runID == "" || s.vaults == nil {
		return nil, nil
	}
	return s.vaults.Load(r.Context(), runID, s.config.Anonymization.TokenPrefix)
}

func (s *Server) saveVault(r *http.Request, runID string, vault *anonymize.TokenVault) error {
	if runID == "" || s.vaults == nil {
		return nil
	}
	return s.vaults.Save(r.Context(), runID, vault)
}

// buildDataset converts a wire payload into a dataset
func buildDataset(payload datasetPayload) (*dataset.Dataset, error) {
	if len(payload.Columns) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}

	name := payload.Name
	if name == "" {
		name = "request"
	}

	ds := dataset.New(name)
	for _, col := range payload.Columns {
		values := make([]dataset.Value, len(col.Values))
		for i, raw := range col.Values {
			values[i] = valueFromJSON(raw)
		}
		if err := ds.AddColumn(col.Name, values); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func valueFromJSON(raw interface{}) dataset.Value {
	switch v := raw.(type) {
	case nil:
		return dataset.Null()
	case float64:
		return dataset.Number(v)
	case string:
		if v == "" {
			return dataset.Null()
		}
		return dataset.String(v)
	case bool:
		if v {
			return dataset.String("true")
		}
		return dataset.String("false")
	default:
		return dataset.String(fmt.Sprintf("%v", v))
	}
}

func datasetToPayload(ds *dataset.Dataset) datasetPayload {
	payload := datasetPayload{Name: ds.Name}
	for _, name := range ds.ColumnNames() {
		column, _ := ds.Column(name)
		values := make([]interface{}, len(column.Values))
		for i, v := range column.Values {
			switch {
			case v.IsNull():
				values[i] = nil
			case v.Kind() == dataset.KindNumber:
				f, _ := v.Float()
				values[i] = f
			default:
				values[i] = v.Text()
			}
		}
		payload.Columns = append(payload.Columns, columnPayload{Name: name, Values: values})
	}
	return payload
}

// decodeJSON reads a JSON body with a size cap
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusForError maps domain error types to HTTP status codes
func statusForError(err error) int {
	var configErr *anonymize.ConfigError
	var saltErr *anonymize.InsecureSaltError
	var tokenErr *anonymize.DetokenizeError

	switch {
	case errors.As(err, &configErr):
		return http.StatusBadRequest
	case errors.As(err, &saltErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &tokenErr):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Warn("Request failed",
		zap.String("request_id", getRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
