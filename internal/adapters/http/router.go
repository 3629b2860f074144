package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/filing-assembler/internal/config"
	"github.com/kirillkom/filing-assembler/internal/core/domain"
	"github.com/kirillkom/filing-assembler/internal/core/ports"
	"github.com/kirillkom/filing-assembler/internal/observability/metrics"
)

const (
	serviceName        = "filing-api"
	multipartMemory    = 32 << 20
	contentTypeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	artifactHashHeader = "X-Artifact-Sha256"
)

type Router struct {
	cfg      config.Config
	intake   ports.MatterIntaker
	packages ports.PackageService
	catalog  ports.ProfileCatalog
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(
	cfg config.Config,
	intake ports.MatterIntaker,
	packages ports.PackageService,
	catalog ports.ProfileCatalog,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:      cfg,
		intake:   intake,
		packages: packages,
		catalog:  catalog,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler assembles the API. The embedded OpenAPI document is part of the
// binary, so a document that fails to load is a build defect.
func (rt *Router) Handler() http.Handler {
	validator, err := newRequestValidator()
	if err != nil {
		panic(err)
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/matters/intake", rt.intakeMatter)
	api.HandleFunc("GET /v1/matters/{matter_id}/readiness", rt.getReadiness)
	api.HandleFunc("GET /v1/matters/{matter_id}/package", rt.getPackage)
	api.HandleFunc("GET /v1/matters/{matter_id}/package/compiled", rt.getCompiledPackage)
	api.HandleFunc("GET /v1/matters/{matter_id}/package/index.xlsx", rt.getRecordIndex)
	api.HandleFunc("GET /v1/catalog/profiles", rt.listProfiles)

	var apiHandler http.Handler = api
	apiHandler = validator.middleware(apiHandler)
	apiHandler = bodyLimitMiddleware(apiHandler, rt.cfg.APIRequestBodyMaxBytes)
	apiHandler = backpressureMiddleware(
		apiHandler,
		rt.cfg.APIBackpressureMaxInFlight,
		time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond,
		rt.recordRejected,
	)
	apiHandler = rateLimitMiddleware(apiHandler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejected)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}
	root.Handle("/v1/", apiHandler)

	var handler http.Handler = root
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) intakeMatter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, codeValidation,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, r, http.StatusBadRequest, codeValidation, "multipart/form-data body is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := intakeRequestFromForm(r.Header.Get(clientIDHeader), r.MultipartForm)
	if err != nil {
		rt.fail(w, r, err)
		return
	}

	resp, err := rt.intake.Intake(r.Context(), req)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func intakeRequestFromForm(clientID string, form *multipart.Form) (domain.IntakeRequest, error) {
	req := domain.IntakeRequest{
		ClientID:             strings.TrimSpace(clientID),
		Forum:                formValue(form, "forum"),
		MatterID:             formValue(form, "matter_id"),
		CompilationProfileID: formValue(form, "compilation_profile_id"),
	}

	fc := &domain.FilingDeadlineContext{
		DecisionDate:   formValue(form, "decision_date"),
		HearingDate:    formValue(form, "hearing_date"),
		ServiceDate:    formValue(form, "service_date"),
		FilingDate:     formValue(form, "filing_date"),
		OverrideReason: formValue(form, "override_reason"),
	}
	if !fc.IsZero() {
		req.FilingContext = fc
	}

	headers := form.File["files"]
	fileIDs := form.Value["file_ids"]
	if len(fileIDs) > 0 && len(fileIDs) != len(headers) {
		return req, domain.Validationf("intake", "file_ids has %d entries for %d files", len(fileIDs), len(headers))
	}

	req.Files = make([]domain.UploadFile, 0, len(headers))
	for i, fh := range headers {
		payload, err := readPart(fh)
		if err != nil {
			return req, domain.WrapError(domain.ErrValidation, "intake", fmt.Errorf("read %q: %w", fh.Filename, err))
		}
		file := domain.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Payload:     payload,
		}
		if len(fileIDs) > 0 {
			file.FileID = strings.TrimSpace(fileIDs[i])
		}
		req.Files = append(req.Files, file)
	}
	return req, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (rt *Router) getReadiness(w http.ResponseWriter, r *http.Request) {
	key, ok := rt.matterKey(w, r)
	if !ok {
		return
	}
	readiness, err := rt.packages.Readiness(r.Context(), key)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readiness)
}

func (rt *Router) getPackage(w http.ResponseWriter, r *http.Request) {
	key, ok := rt.matterKey(w, r)
	if !ok {
		return
	}
	pkg, err := rt.packages.BuildPackage(r.Context(), key)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (rt *Router) getCompiledPackage(w http.ResponseWriter, r *http.Request) {
	key, ok := rt.matterKey(w, r)
	if !ok {
		return
	}
	artifact, err := rt.packages.CompiledArtifact(r.Context(), key)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	if artifact.SHA256 != "" {
		w.Header().Set(artifactHashHeader, artifact.SHA256)
	}
	writeAttachment(w, artifact.ContentType, artifact.Filename, artifact.Bytes)
}

func (rt *Router) getRecordIndex(w http.ResponseWriter, r *http.Request) {
	key, ok := rt.matterKey(w, r)
	if !ok {
		return
	}
	data, err := rt.packages.RecordIndex(r.Context(), key)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeAttachment(w, contentTypeXLSX, attachmentName(key.MatterID)+"_record_index.xlsx", data)
}

type profilesResponse struct {
	Version      string                      `json:"version"`
	Jurisdiction string                      `json:"jurisdiction"`
	Profiles     []domain.CompilationProfile `json:"profiles"`
}

func (rt *Router) listProfiles(w http.ResponseWriter, r *http.Request) {
	forum := strings.TrimSpace(r.URL.Query().Get("forum"))
	if forum != "" && !rt.catalog.HasForum(forum) {
		writeError(w, r, http.StatusBadRequest, codeValidation, fmt.Sprintf("unsupported forum %q", forum))
		return
	}

	profiles := make([]domain.CompilationProfile, 0)
	for _, p := range rt.catalog.Profiles() {
		if forum == "" || p.Forum == forum {
			profiles = append(profiles, p)
		}
	}
	writeJSON(w, http.StatusOK, profilesResponse{
		Version:      rt.catalog.Version(),
		Jurisdiction: rt.catalog.Jurisdiction(),
		Profiles:     profiles,
	})
}

// matterKey binds the matter_id path parameter and the caller's client id.
func (rt *Router) matterKey(w http.ResponseWriter, r *http.Request) (domain.MatterKey, bool) {
	var matterID string
	err := runtime.BindStyledParameterWithOptions("simple", "matter_id", r.PathValue("matter_id"), &matterID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, fmt.Sprintf("invalid matter_id: %v", err))
		return domain.MatterKey{}, false
	}

	key := domain.MatterKey{
		ClientID: strings.TrimSpace(r.Header.Get(clientIDHeader)),
		MatterID: strings.TrimSpace(matterID),
	}
	if err := key.Validate(); err != nil {
		rt.fail(w, r, err)
		return domain.MatterKey{}, false
	}
	return key, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// attachmentName keeps a header-safe subset of a caller-supplied id.
func attachmentName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "matter"
	}
	return b.String()
}
