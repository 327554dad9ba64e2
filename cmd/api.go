package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/hottest"
	"github.com/ldn-newbuild/inventory-cli/internal/ingest"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
)

// newRouter builds the admin API. The pipeline is trusted-internal: the CORS
// policy is permissive because the admin SPA is served from another origin.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", handleIngest(env))
		r.Post("/publish", handlePublish(env))
		r.Post("/rollback", handleRollback(env))
		r.Post("/hot-auto", handleHotAuto(env))
		r.Post("/hot-override", handleHotOverride(env))
		r.Post("/validate-units", handleValidate(env))
		r.Post("/developments", handleUpsertDevelopment(env))
		r.Get("/developments/{devID}", handleGetDevelopment(env))
		r.Get("/developments/{devID}/changelog", handleChangeLog(env))
		r.Get("/developments/{devID}/hottest", handleGetHottest(env))
		r.Get("/developments/{devID}/price-lists", handlePriceLists(env))
		r.Get("/developments/{devID}/anomalies", handleAnomalies(env))
		r.Post("/anomalies/{id}/resolve", handleResolveAnomaly(env))
	})

	return r
}

func handleIngest(env *appEnv) http.HandlerFunc {
	type request struct {
		DevID     string `json:"dev_id"`
		FilePath  string `json:"file_path"`
		URL       string `json:"url"`
		Developer string `json:"developer"`
		Source    string `json:"source"`
		Uploader  string `json:"uploaded_by"`
	}
	type response struct {
		*ingest.Result
		Published bool `json:"published"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}

		result, err := env.Ingest.Ingest(r.Context(), ingest.Request{
			DevID:     req.DevID,
			FilePath:  req.FilePath,
			URL:       req.URL,
			Developer: req.Developer,
			Source:    req.Source,
			Uploader:  req.Uploader,
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}

		resp := response{Result: result}
		if result.Gate.AutoPublish {
			if _, err := env.Merger.Publish(r.Context(), result.PriceList.ID, "auto"); err != nil {
				zap.L().Error("auto publish after ingest",
					zap.String("price_list_id", result.PriceList.ID), zap.Error(err))
			} else {
				resp.Published = true
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handlePublish(env *appEnv) http.HandlerFunc {
	return applyPriceList(func(r *http.Request, id, by string) (any, error) {
		return env.Merger.Publish(r.Context(), id, by)
	})
}

func handleRollback(env *appEnv) http.HandlerFunc {
	return applyPriceList(func(r *http.Request, id, by string) (any, error) {
		return env.Merger.Rollback(r.Context(), id, by)
	})
}

func applyPriceList(apply func(r *http.Request, id, by string) (any, error)) http.HandlerFunc {
	type request struct {
		PriceListID string `json:"price_list_id"`
		By          string `json:"published_by"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PriceListID == "" {
			writeError(w, http.StatusBadRequest, eris.New("price_list_id is required"))
			return
		}
		if req.By == "" {
			req.By = "api"
		}
		result, err := apply(r, req.PriceListID, req.By)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleHotAuto(env *appEnv) http.HandlerFunc {
	type request struct {
		DevID string `json:"dev_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DevID == "" {
			writeError(w, http.StatusBadRequest, eris.New("dev_id is required"))
			return
		}
		h, err := env.Scorer.Refresh(r.Context(), req.DevID)
		if eris.Is(err, hottest.ErrNoEligibleUnits) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

func handleHotOverride(env *appEnv) http.HandlerFunc {
	type request struct {
		DevID  string `json:"dev_id"`
		UnitID string `json:"unit_id"`
		Note   string `json:"note"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DevID == "" || req.UnitID == "" {
			writeError(w, http.StatusBadRequest, eris.New("dev_id and unit_id are required"))
			return
		}
		h, err := env.Scorer.Override(r.Context(), req.DevID, req.UnitID, req.Note)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

func handleValidate(env *appEnv) http.HandlerFunc {
	type request struct {
		DevID string `json:"dev_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DevID == "" {
			writeError(w, http.StatusBadRequest, eris.New("dev_id is required"))
			return
		}
		found, err := env.Validator.Run(r.Context(), req.DevID, nil)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, anomalySummary(found))
	}
}

func handleGetDevelopment(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dev, err := env.Store.GetDevelopment(r.Context(), chi.URLParam(r, "devID"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, dev)
	}
}

func handleChangeLog(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := env.Store.ListChangeLog(r.Context(), chi.URLParam(r, "devID"), limit)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleUpsertDevelopment(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dev model.Development
		if err := json.NewDecoder(r.Body).Decode(&dev); err != nil || dev.ID == "" || dev.Name == "" {
			writeError(w, http.StatusBadRequest, eris.New("id and name are required"))
			return
		}
		if err := env.Store.UpsertDevelopment(r.Context(), dev); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, dev)
	}
}

func handleGetHottest(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devID := chi.URLParam(r, "devID")
		h, err := env.Store.GetHottestUnit(r.Context(), devID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		if h == nil {
			writeError(w, http.StatusNotFound, eris.Errorf("no hottest unit for %s", devID))
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

func handlePriceLists(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lists, err := env.Store.ListPriceLists(r.Context(), chi.URLParam(r, "devID"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		if lists == nil {
			lists = []model.PriceList{}
		}
		writeJSON(w, http.StatusOK, lists)
	}
}

func handleAnomalies(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
		anomalies, err := env.Store.ListAnomalies(r.Context(), chi.URLParam(r, "devID"), unresolvedOnly)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		if anomalies == nil {
			anomalies = []model.UnitAnomaly{}
		}
		writeJSON(w, http.StatusOK, anomalies)
	}
}

// handleResolveAnomaly marks an anomaly reviewed; only a human does this, the
// validator never clears its own findings.
func handleResolveAnomaly(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := env.Store.ResolveAnomaly(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"resolved": id})
	}
}

func statusFor(err error) int {
	if eris.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
