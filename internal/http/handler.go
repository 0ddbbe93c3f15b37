package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/gapfill"
	"go.ngs.io/tides-analysis/internal/log"
	"go.ngs.io/tides-analysis/internal/usecase"
)

// Handler handles HTTP requests for analyses, predictions and filters.
type Handler struct {
	analysisUC   *usecase.AnalysisUseCase
	predictionUC *usecase.PredictionUseCase
	filterUC     *usecase.FilterUseCase
	maxSamples   int
}

// NewHandler creates a new HTTP handler. maxSamples bounds the records
// accepted in one request; zero disables the check.
func NewHandler(analysisUC *usecase.AnalysisUseCase, predictionUC *usecase.PredictionUseCase, filterUC *usecase.FilterUseCase, maxSamples int) *Handler {
	return &Handler{
		analysisUC:   analysisUC,
		predictionUC: predictionUC,
		filterUC:     filterUC,
		maxSamples:   maxSamples,
	}
}

// SampleBody is one observation.
type SampleBody struct {
	Time      string  `json:"time"`
	Elevation float64 `json:"elevation"`
}

// AnalysisOptionsBody overrides the configured analysis defaults.
type AnalysisOptionsBody struct {
	Rayleigh      *float64 `json:"rayleigh"`
	Trend         *bool    `json:"trend"`
	MissingData   string   `json:"missing_data"`
	Iavg          *int     `json:"iavg"`
	RemoveExtreme *bool    `json:"remove_extreme"`
	Detrend       *bool    `json:"detrend"`
	Infer         *bool    `json:"infer"`
	MaxIterations *int     `json:"max_iterations"`
	Tolerance     *float64 `json:"tolerance"`
}

// AnalysisBody is the body of POST /v1/analyses.
type AnalysisBody struct {
	Station string               `json:"station"`
	Samples []SampleBody         `json:"samples"`
	Options *AnalysisOptionsBody `json:"options"`
}

// ConstituentBody is a harmonic constant supplied inline.
type ConstituentBody struct {
	Name       string  `json:"name"`
	AmplitudeM float64 `json:"amplitude_m"`
	PhaseDeg   float64 `json:"phase_deg"`
}

// PredictionBody is the body of POST /v1/predictions.
type PredictionBody struct {
	StationID    string            `json:"station_id"`
	AnalysisID   string            `json:"analysis_id"`
	Constituents []ConstituentBody `json:"constituents"`
	Z0           float64           `json:"z0"`
	Start        string            `json:"start"`
	End          string            `json:"end"`
	Interval     string            `json:"interval"`
	Reference    string            `json:"reference"`
}

// FilterBody is the body of POST /v1/filters/:name.
type FilterBody struct {
	Samples         []SampleBody `json:"samples"`
	Padding         string       `json:"padding"`
	PassPeriodHours float64      `json:"pass_period_hours"`
	StopPeriodHours float64      `json:"stop_period_hours"`
	ProcessVariance float64      `json:"process_variance"`
	Constituent     string       `json:"constituent"`
	Rayleigh        float64      `json:"rayleigh"`
}

// PostAnalysis handles POST /v1/analyses.
func (h *Handler) PostAnalysis(c *gin.Context) {
	var body AnalysisBody
	if err := bind(c, &body); err != nil {
		respond(c, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	series, err := h.series(body.Samples)
	if err != nil {
		h.fail(c, err)
		return
	}
	opts, err := h.analysisOptions(body.Options)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.analysisUC.Execute(c.Request.Context(), usecase.AnalysisRequest{
		Station: body.Station,
		Series:  series,
		Options: opts,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if result.ID != "" {
		status = http.StatusCreated
		c.Header("Location", "/v1/analyses/"+result.ID)
	}
	respond(c, status, result)
}

// GetAnalysis handles GET /v1/analyses/:id.
func (h *Handler) GetAnalysis(c *gin.Context) {
	result, err := h.analysisUC.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// ListAnalyses handles GET /v1/analyses.
func (h *Handler) ListAnalyses(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respond(c, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = n
	}
	results, err := h.analysisUC.List(c.Request.Context(), c.Query("station"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if results == nil {
		results = []*usecase.AnalysisResult{}
	}
	respond(c, http.StatusOK, gin.H{
		"analyses": results,
		"count":    len(results),
	})
}

// PostPredictions handles POST /v1/predictions.
func (h *Handler) PostPredictions(c *gin.Context) {
	var body PredictionBody
	if err := bind(c, &body); err != nil {
		respond(c, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	req := usecase.PredictionRequest{
		StationID:  body.StationID,
		AnalysisID: body.AnalysisID,
		Z0:         body.Z0,
	}
	for _, k := range body.Constituents {
		req.Constituents = append(req.Constituents, domain.ConstituentParam{
			Name: k.Name, AmplitudeM: k.AmplitudeM, PhaseDeg: k.PhaseDeg,
		})
	}

	// Parse time range.
	if body.Start == "" {
		respond(c, http.StatusBadRequest, errorBody("start parameter is required"))
		return
	}
	if body.End == "" {
		respond(c, http.StatusBadRequest, errorBody("end parameter is required"))
		return
	}
	start, err := time.Parse(time.RFC3339, body.Start)
	if err != nil {
		respond(c, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid start time (expected RFC3339): %v", err)))
		return
	}
	end, err := time.Parse(time.RFC3339, body.End)
	if err != nil {
		respond(c, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid end time (expected RFC3339): %v", err)))
		return
	}
	req.Start = start.UTC()
	req.End = end.UTC()

	if body.Reference != "" {
		ref, err := time.Parse(time.RFC3339, body.Reference)
		if err != nil {
			respond(c, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid reference time (expected RFC3339): %v", err)))
			return
		}
		req.Reference = ref.UTC()
	}

	// Parse interval (default: 10m).
	intervalStr := body.Interval
	if intervalStr == "" {
		intervalStr = "10m"
	}
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		respond(c, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid interval: %v", err)))
		return
	}
	req.Interval = interval

	response, err := h.predictionUC.Execute(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, response)
}

// PostFilter handles POST /v1/filters/:name.
func (h *Handler) PostFilter(c *gin.Context) {
	var body FilterBody
	if err := bind(c, &body); err != nil {
		respond(c, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	series, err := h.series(body.Samples)
	if err != nil {
		h.fail(c, err)
		return
	}
	response, err := h.filterUC.Execute(c.Request.Context(), usecase.FilterRequest{
		Name:            c.Param("name"),
		Series:          series,
		Padding:         body.Padding,
		PassPeriodHours: body.PassPeriodHours,
		StopPeriodHours: body.StopPeriodHours,
		ProcessVariance: body.ProcessVariance,
		Constituent:     body.Constituent,
		Rayleigh:        body.Rayleigh,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, response)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ConstituentListResponse is the response for listing constituents.
type ConstituentListResponse struct {
	Name          string  `json:"name"`
	SpeedDegPerHr float64 `json:"speed_deg_per_hr"`
	MinSpanHours  float64 `json:"min_span_hours"`
	Description   string  `json:"description,omitempty"`
}

// GetConstituentsList returns a detailed list of all constituents.
func (h *Handler) GetConstituentsList(c *gin.Context) {
	constituents := domain.GetAllConstituents()

	// Add descriptions for major constituents.
	descriptions := map[string]string{
		"M2":  "Principal lunar semidiurnal",
		"S2":  "Principal solar semidiurnal",
		"N2":  "Larger lunar elliptic semidiurnal",
		"K2":  "Lunisolar semidiurnal",
		"K1":  "Lunisolar diurnal",
		"O1":  "Principal lunar diurnal",
		"P1":  "Principal solar diurnal",
		"Q1":  "Larger lunar elliptic diurnal",
		"M4":  "Shallow water overtide of M2",
		"M6":  "Shallow water overtide of M2",
		"MK3": "Shallow water terdiurnal",
		"S4":  "Shallow water overtide of S2",
		"MN4": "Shallow water quarter diurnal",
		"MS4": "Shallow water quarter diurnal",
		"Mf":  "Lunisolar fortnightly",
		"Mm":  "Lunar monthly",
		"Ssa": "Solar semiannual",
		"Sa":  "Solar annual",
	}

	response := make([]ConstituentListResponse, len(constituents))
	for i, k := range constituents {
		response[i] = ConstituentListResponse{
			Name:          k.Name,
			SpeedDegPerHr: k.SpeedDegPerHr,
			MinSpanHours:  k.MinSpanHours,
			Description:   descriptions[k.Name],
		}
	}

	respond(c, http.StatusOK, gin.H{
		"constituents":   response,
		"count":          len(response),
		"rayleigh_tiers": domain.RayleighTiers(),
	})
}

func (h *Handler) series(samples []SampleBody) (domain.TimeSeries, error) {
	if len(samples) == 0 {
		return domain.TimeSeries{}, domain.NewInputError("samples", "no samples supplied")
	}
	if h.maxSamples > 0 && len(samples) > h.maxSamples {
		return domain.TimeSeries{}, domain.NewInputError("samples", "%d samples exceed the limit of %d", len(samples), h.maxSamples)
	}
	s := domain.TimeSeries{
		Times:  make([]time.Time, len(samples)),
		Values: make([]float64, len(samples)),
	}
	for i, p := range samples {
		t, err := time.Parse(time.RFC3339, p.Time)
		if err != nil {
			return domain.TimeSeries{}, domain.NewInputError("samples", "sample %d: invalid time %q (expected RFC3339)", i, p.Time)
		}
		s.Times[i] = t.UTC()
		s.Values[i] = p.Elevation
	}
	return s, nil
}

func (h *Handler) analysisOptions(body *AnalysisOptionsBody) (usecase.AnalysisOptions, error) {
	opts := h.analysisUC.Defaults()
	if body == nil {
		return opts, nil
	}
	if body.Rayleigh != nil {
		if *body.Rayleigh <= 0 {
			return opts, domain.NewConfigurationError("rayleigh", fmt.Sprint(*body.Rayleigh), "must be positive")
		}
		opts.Rayleigh = *body.Rayleigh
	}
	if body.Trend != nil {
		opts.Trend = *body.Trend
	}
	if body.MissingData != "" {
		policy, err := gapfill.ParsePolicy(body.MissingData)
		if err != nil {
			return opts, err
		}
		opts.MissingData = policy
	}
	if body.Iavg != nil {
		opts.Iavg = *body.Iavg
	}
	if body.RemoveExtreme != nil {
		opts.RemoveExtreme = *body.RemoveExtreme
	}
	if body.Detrend != nil {
		opts.Detrend = *body.Detrend
	}
	if body.Infer != nil {
		opts.Infer = *body.Infer
	}
	if body.MaxIterations != nil {
		opts.MaxIterations = *body.MaxIterations
	}
	if body.Tolerance != nil {
		opts.Tolerance = *body.Tolerance
	}
	return opts, nil
}

// fail maps err to a status code and writes it.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		inErr  *domain.InputError
		cfgErr *domain.ConfigurationError
		fitErr *domain.FitError
		status int
	)
	switch {
	case errors.As(err, &inErr), errors.As(err, &cfgErr):
		status = http.StatusBadRequest
	case errors.As(err, &fitErr):
		status = http.StatusUnprocessableEntity
	case usecase.IsNotFound(err):
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
		log.Errorw("request failed", "path", c.FullPath(), "error", err)
	}
	respond(c, status, errorBody(err.Error()))
}
