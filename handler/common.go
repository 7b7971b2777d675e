// Package handler 任务状态的只读HTTP视图，供看板或者运维工具展示使用
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/TimeWtr/batch_scheduler"
)

// Logging 记录每个请求的方法、路径和耗时
func Logging(logger batch_scheduler.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request handled",
				batch_scheduler.Field{Key: "method", Val: r.Method},
				batch_scheduler.Field{Key: "path", Val: r.URL.Path},
				batch_scheduler.Field{Key: "status", Val: rec.status},
				batch_scheduler.Field{Key: "remote", Val: r.RemoteAddr},
				batch_scheduler.Field{Key: "cost", Val: time.Since(start)})
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}
