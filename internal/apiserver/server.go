// Package apiserver is the HTTP/WebSocket boundary over internal/jobs and
// internal/streaming: it decodes requests into internal/config shapes, wires
// internal/wiring runners onto the job queue, and serializes job state as
// pkg/types wire structs. Wire framing (HTTP/WS/SSE) lives only here; the
// domain packages it calls know nothing about transport.
package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tokenlab/abm-engine/internal/config"
	"github.com/tokenlab/abm-engine/internal/jobs"
	"github.com/tokenlab/abm-engine/internal/montecarlo"
	"github.com/tokenlab/abm-engine/internal/simulation"
	"github.com/tokenlab/abm-engine/internal/streaming"
	"github.com/tokenlab/abm-engine/internal/wiring"
	"github.com/tokenlab/abm-engine/pkg/types"
	"github.com/tokenlab/abm-engine/pkg/utils"
)

// Config configures the Server.
type Config struct {
	Logger       *zap.Logger
	Queue        *jobs.Queue
	Streamer     *streaming.Streamer
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP/WebSocket API server over a job queue.
type Server struct {
	logger   *zap.Logger
	queue    *jobs.Queue
	streamer *streaming.Streamer
	router   *mux.Router
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	cfg      Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewServer builds a Server and registers its routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:   logger,
		queue:    cfg.Queue,
		streamer: cfg.Streamer,
		router:   mux.NewRouter(),
		cfg:      cfg,
		cancels:  make(map[string]context.CancelFunc),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/simulations", s.handleSubmitSimulation).Methods("POST")
	s.router.HandleFunc("/api/v1/simulations/{id}", s.handleJobStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/simulations/{id}/results", s.handleJobResults).Methods("GET")
	s.router.HandleFunc("/api/v1/simulations/{id}/cancel", s.handleCancelJob).Methods("POST")

	s.router.HandleFunc("/api/v1/montecarlo", s.handleSubmitMonteCarlo).Methods("POST")
	s.router.HandleFunc("/api/v1/montecarlo/{id}", s.handleJobStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/montecarlo/{id}/results", s.handleJobResults).Methods("GET")
	s.router.HandleFunc("/api/v1/montecarlo/{id}/cancel", s.handleCancelJob).Methods("POST")

	s.router.HandleFunc("/api/v1/queue/stats", s.handleQueueStats).Methods("GET")

	s.router.HandleFunc("/ws/jobs/{id}", s.handleJobWebSocket)

	s.router.Handle("/metrics", promhttp.Handler())
}

// Start begins serving HTTP. Blocks until the server stops or errors.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("starting abm api server", zap.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "time": time.Now().Unix()})
}

func toSimulationConfig(req types.SimulationRequest) config.SimulationConfig {
	buckets := make([]config.BucketConfig, 0, len(req.Buckets))
	for _, b := range req.Buckets {
		buckets = append(buckets, config.BucketConfig{
			Name:            b.Name,
			TotalAllocation: b.TotalAllocation,
			TGEPercent:      b.TGEPercent,
			CliffMonths:     b.CliffMonths,
			VestingMonths:   b.VestingMonths,
			Cohort:          b.Cohort,
			HolderCount:     b.HolderCount,
		})
	}
	return config.SimulationConfig{
		Token: config.TokenConfig{
			TotalSupply:              req.TotalSupply,
			InitialPrice:             req.InitialPrice,
			InitialCirculatingSupply: req.InitialCirculatingSupply,
			StartDate:                req.StartDate,
		},
		Buckets: buckets,
		ABM: config.ABMConfig{
			Seed:             req.Seed,
			HorizonMonths:    req.HorizonMonths,
			PricingModel:     string(req.PricingModel),
			EnableStaking:    req.EnableStaking,
			EnableTreasury:   req.EnableTreasury,
			EnableVolume:     req.EnableVolume,
			AgentGranularity: string(req.ScalingStrategy),
			EOE:              config.EOEConfig{HoldingTimeMonths: 6.0, SmoothingFactor: 0.7, MinPrice: 0.01},
			BondingCurve:     config.BondingCurveConfig{InitialPrice: 1.0, InitialSupply: 1_000_000, CurveExponent: 2.0, MinPrice: 0.01},
			IssuanceCurve:    config.IssuanceCurveConfig{InitialPrice: 1.0, MaxSupply: 1_000_000_000, Alpha: 0.5, MinPrice: 0.01},
			Staking:          config.StakingConfig{BaseAPY: 0.12, MaxCapacityPct: 0.5, LockupMonths: 6, APYMultiplierEmpty: 1.5, APYMultiplierFull: 0.5},
			Treasury:         config.TreasuryConfig{InitialBalancePct: 0.15, TransactionFeePct: 0.02, HoldPct: 0.5, LiquidityPct: 0.3, BuybackPct: 0.2, BurnBoughtTokens: true},
			Volume:           config.VolumeConfig{Model: "proportional", BaseDailyVolume: 10_000_000, VolumeMultiplier: 1.0},
		},
	}
}

func (s *Server) handleSubmitSimulation(w http.ResponseWriter, r *http.Request) {
	var req types.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	simCfg := toSimulationConfig(req)
	ctx, cancel := context.WithCancel(context.Background())

	info, err := s.queue.SubmitSimulation(ctx, simCfg, req.HorizonMonths, wiring.JobRunner(simCfg, s.logger))
	if err != nil {
		cancel()
		writeSubmitError(w, err)
		return
	}

	s.mu.Lock()
	s.cancels[info.JobID] = cancel
	s.mu.Unlock()

	writeJSON(w, http.StatusAccepted, jobStatusResponse(*info))
}

func (s *Server) handleSubmitMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req types.MonteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	simCfg := toSimulationConfig(req.Simulation)
	ctx, cancel := context.WithCancel(context.Background())

	mcCfg := montecarlo.Config{
		NumTrials:        req.NumTrials,
		BaseSeed:         req.Simulation.Seed,
		ConfidenceLevels: req.ConfidenceLevels,
		MaxConcurrency:   req.MaxConcurrency,
		Logger:           s.logger,
	}
	orchestrator := montecarlo.NewOrchestrator(mcCfg, wiring.TrialRunner(simCfg, s.logger))

	runner := func(ctx context.Context, onProgress func(current, total int)) (any, error) {
		return orchestrator.Run(ctx, montecarlo.ProgressFunc(onProgress))
	}

	info, err := s.queue.SubmitMonteCarlo(ctx, simCfg, req.NumTrials, runner)
	if err != nil {
		cancel()
		writeSubmitError(w, err)
		return
	}

	s.mu.Lock()
	s.cancels[info.JobID] = cancel
	s.mu.Unlock()

	writeJSON(w, http.StatusAccepted, jobStatusResponse(*info))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, err := s.queue.Status(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse(info))
}

func (s *Server) handleJobResults(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := s.queue.Results(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	switch res := result.(type) {
	case *simulation.Results:
		writeJSON(w, http.StatusOK, toSimulationResponse(res))
	case *montecarlo.Results:
		writeJSON(w, http.StatusOK, toMonteCarloResponse(res))
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// responseDecimalPlaces is the precision token and fiat amounts are rounded
// to before serialization, to keep wire output free of the excess decimal
// noise floating-point-backed market math would otherwise accumulate.
const responseDecimalPlaces = 8

func toCohortResultResponse(c simulation.CohortResult) types.CohortResultResponse {
	return types.CohortResultResponse{
		Cohort:      c.Cohort,
		NumAgents:   c.NumAgents,
		SellTokens:  utils.RoundToDecimalPlaces(c.SellTokens, responseDecimalPlaces),
		StakeTokens: utils.RoundToDecimalPlaces(c.StakeTokens, responseDecimalPlaces),
		HoldTokens:  utils.RoundToDecimalPlaces(c.HoldTokens, responseDecimalPlaces),
	}
}

func toIterationResultResponse(it simulation.IterationResult) types.IterationResultResponse {
	resp := types.IterationResultResponse{
		MonthIndex:        it.MonthIndex,
		Date:              it.Date,
		Price:             utils.RoundToDecimalPlaces(it.Price, responseDecimalPlaces),
		CirculatingSupply: utils.RoundToDecimalPlaces(it.CirculatingSupply, responseDecimalPlaces),
		TotalUnlocked:     utils.RoundToDecimalPlaces(it.TotalUnlocked, responseDecimalPlaces),
		TotalSold:         utils.RoundToDecimalPlaces(it.TotalSold, responseDecimalPlaces),
		TotalStaked:       utils.RoundToDecimalPlaces(it.TotalStaked, responseDecimalPlaces),
		TotalHeld:         utils.RoundToDecimalPlaces(it.TotalHeld, responseDecimalPlaces),
	}
	if len(it.CohortResults) > 0 {
		resp.CohortResults = make(map[string]types.CohortResultResponse, len(it.CohortResults))
		for k, v := range it.CohortResults {
			resp.CohortResults[k] = toCohortResultResponse(v)
		}
	}
	return resp
}

func toSimulationResponse(res *simulation.Results) types.SimulationResponse {
	metrics := make([]types.IterationResultResponse, len(res.GlobalMetrics))
	for i, it := range res.GlobalMetrics {
		metrics[i] = toIterationResultResponse(it)
	}
	return types.SimulationResponse{
		GlobalMetrics:        metrics,
		ExecutionTimeSeconds: res.ExecutionTimeSeconds,
		Warnings:             res.Warnings,
	}
}

func toMetricSnapshotResponse(m montecarlo.MetricSnapshot) types.MetricSnapshotResponse {
	return types.MetricSnapshotResponse{
		MonthIndex:        m.MonthIndex,
		Price:             m.Price,
		CirculatingSupply: m.CirculatingSupply,
		TotalUnlocked:     m.TotalUnlocked,
		TotalSold:         m.TotalSold,
		TotalStaked:       m.TotalStaked,
		TotalHeld:         m.TotalHeld,
	}
}

func toPercentileResponse(p montecarlo.Percentile) types.PercentileResponse {
	snapshots := make([]types.MetricSnapshotResponse, len(p.GlobalMetrics))
	for i, m := range p.GlobalMetrics {
		snapshots[i] = toMetricSnapshotResponse(m)
	}
	return types.PercentileResponse{
		Percentile:    p.Percentile,
		GlobalMetrics: snapshots,
		FinalPrice:    p.FinalPrice,
		TotalSold:     p.TotalSold,
	}
}

func toMonteCarloResponse(res *montecarlo.Results) types.MonteCarloResponse {
	percentiles := make([]types.PercentileResponse, len(res.Percentiles))
	for i, p := range res.Percentiles {
		percentiles[i] = toPercentileResponse(p)
	}
	trajectory := make([]types.MetricSnapshotResponse, len(res.MeanTrajectory))
	for i, m := range res.MeanTrajectory {
		trajectory[i] = toMetricSnapshotResponse(m)
	}
	return types.MonteCarloResponse{
		NumTrials:      len(res.Trials),
		Percentiles:    percentiles,
		MeanTrajectory: trajectory,
		Summary: types.SummaryStatisticsResponse{
			MeanFinalPrice:         res.Summary.MeanFinalPrice,
			StdFinalPrice:          res.Summary.StdFinalPrice,
			MinFinalPrice:          res.Summary.MinFinalPrice,
			MaxFinalPrice:          res.Summary.MaxFinalPrice,
			P10FinalPrice:          res.Summary.P10FinalPrice,
			P50FinalPrice:          res.Summary.P50FinalPrice,
			P90FinalPrice:          res.Summary.P90FinalPrice,
			MeanTotalSold:          res.Summary.MeanTotalSold,
			StdTotalSold:           res.Summary.StdTotalSold,
			CoefficientOfVariation: res.Summary.CoefficientOfVariation,
			MeanMaxDrawdown:        res.Summary.MeanMaxDrawdown,
			WorstMaxDrawdown:       res.Summary.WorstMaxDrawdown,
		},
		ExecutionTimeSeconds: res.ExecutionTimeSeconds,
	}
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err := s.queue.Cancel(id, cancel); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": id, "status": "cancelling"})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats := s.queue.Stats()
	writeJSON(w, http.StatusOK, types.QueueStatsResponse{
		Total: stats.Total, Running: stats.Running, Pending: stats.Pending,
		Completed: stats.Completed, Failed: stats.Failed, Cancelled: stats.Cancelled,
	})
}

// handleJobWebSocket streams one job's progress events to a connected
// client until the job reaches a terminal state or the socket closes.
func (s *Server) handleJobWebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := s.streamer.StreamJob(ctx, id, time.Second)
	for ev := range events {
		payload, err := json.Marshal(eventPayload(ev))
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func eventPayload(ev streaming.Event) map[string]any {
	payload := map[string]any{"kind": ev.Kind}
	if ev.Job != nil {
		payload["job"] = jobStatusResponse(*ev.Job)
	}
	if ev.Err != nil {
		payload["error"] = ev.Err.Error()
	}
	return payload
}

func jobStatusResponse(info jobs.Info) types.JobStatusResponse {
	resp := types.JobStatusResponse{
		JobID:        info.JobID,
		Status:       string(info.Status),
		IsMonteCarlo: info.IsMonteCarlo,
		CurrentMonth: info.CurrentMonth,
		TotalMonths:  info.TotalMonths,
		ProgressPct:  info.ProgressPct(),
		CreatedAt:    info.CreatedAt,
	}
	if !info.StartedAt.IsZero() {
		t := info.StartedAt
		resp.StartedAt = &t
	}
	if !info.CompletedAt.IsZero() {
		t := info.CompletedAt
		resp.CompletedAt = &t
	}
	if info.Err != nil {
		resp.Error = info.Err.Error()
	}
	return resp
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var overCap *jobs.OverCapacityError
	if errors.As(err, &overCap) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
