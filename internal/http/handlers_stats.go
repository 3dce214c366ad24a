package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"subtrackr/internal/core"
	"subtrackr/internal/log"
)

const (
	defaultTopN         = 5
	defaultUpcomingDays = 7
	maxForecastMonths   = 60
)

// withStatsCache serves a stats endpoint through the shared byte cache.
// compute receives the full record set and the clock sampled once for the
// whole request.
func (s *Server) withStatsCache(w http.ResponseWriter, r *http.Request, compute func(subs []core.Subscription, now time.Time) (any, error)) {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	if data, ok := s.statsCache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Cache", "hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	subs, err := s.subscriptions.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Stats list failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		respondServiceError(w, err)
		return
	}

	result, err := compute(subs, time.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Stats marshal failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.statsCache.Set(key, data)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type summaryResponse struct {
	MonthlyTotal    float64 `json:"monthlyTotal"`
	YearlyTotal     float64 `json:"yearlyTotal"`
	OneTimeThisYear float64 `json:"oneTimeThisYear"`
	ActiveCount     int     `json:"activeCount"`
	Currency        string  `json:"currency"`
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	s.withStatsCache(w, r, func(subs []core.Subscription, now time.Time) (any, error) {
		sum := core.Summarize(subs, now)
		return summaryResponse{
			MonthlyTotal:    sum.MonthlyTotal,
			YearlyTotal:     sum.YearlyTotal,
			OneTimeThisYear: sum.OneTimeThisYear,
			ActiveCount:     sum.ActiveCount,
			Currency:        core.ReferenceCurrency,
		}, nil
	})
}

type categoryResponse struct {
	Category     string  `json:"category"`
	Count        int     `json:"count"`
	MonthlyTotal float64 `json:"monthlyTotal"`
	Percent      float64 `json:"percent"`
}

func (s *Server) handleStatsCategories(w http.ResponseWriter, r *http.Request) {
	s.withStatsCache(w, r, func(subs []core.Subscription, now time.Time) (any, error) {
		rows := core.CategoryBreakdown(subs)
		out := make([]categoryResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, categoryResponse{
				Category:     row.Category,
				Count:        row.Count,
				MonthlyTotal: row.MonthlyTotal,
				Percent:      row.Percent,
			})
		}
		return out, nil
	})
}

type rankedResponse struct {
	subscriptionJSON
	MonthlyEUR float64 `json:"monthlyEur"`
}

func (s *Server) handleStatsTop(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", defaultTopN)
	s.withStatsCache(w, r, func(subs []core.Subscription, now time.Time) (any, error) {
		ranked := core.TopExpensive(subs, n)
		out := make([]rankedResponse, 0, len(ranked))
		for _, row := range ranked {
			out = append(out, rankedResponse{
				subscriptionJSON: toSubscriptionJSON(row.Subscription),
				MonthlyEUR:       row.MonthlyEUR,
			})
		}
		return out, nil
	})
}

type forecastBucketResponse struct {
	Label       string  `json:"label"`
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Cost        float64 `json:"cost"`
	ActiveCount int     `json:"activeCount"`
}

func (s *Server) handleStatsForecast(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", core.DefaultHorizonMonths)
	if months > maxForecastMonths {
		months = maxForecastMonths
	}
	s.withStatsCache(w, r, func(subs []core.Subscription, now time.Time) (any, error) {
		buckets := core.ProjectMonths(subs, months, now)
		out := make([]forecastBucketResponse, 0, len(buckets))
		for _, b := range buckets {
			out = append(out, forecastBucketResponse{
				Label:       b.Label,
				Year:        b.Year,
				Month:       b.Month,
				Cost:        b.Cost,
				ActiveCount: b.ActiveCount,
			})
		}
		return out, nil
	})
}

func (s *Server) handleStatsUpcoming(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", defaultUpcomingDays)
	s.withStatsCache(w, r, func(subs []core.Subscription, now time.Time) (any, error) {
		return toSubscriptionList(core.UpcomingPayments(subs, days, now)), nil
	})
}

// queryInt reads a positive integer query parameter, falling back to def on
// absence or garbage.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
