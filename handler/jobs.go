package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/TimeWtr/batch_scheduler"
	"github.com/TimeWtr/batch_scheduler/domain"
	"github.com/TimeWtr/batch_scheduler/repository"
	"github.com/gorilla/mux"
)

// JobView 对外展示的任务状态，status为COMPLETED/RUNNING/FAILED文本
type JobView struct {
	JobID          int64           `json:"job_id"`
	JobName        string          `json:"job_name"`
	JobEnabled     bool            `json:"job_enabled"`
	JobCron        string          `json:"job_cron"`
	JobRunLagCheck int64           `json:"job_run_lag_check"`
	Status         string          `json:"status"`
	StatusCode     int             `json:"status_code"`
	JobContent     json.RawMessage `json:"job_content,omitempty"`
	LastUpdatedTs  time.Time       `json:"last_updated_ts"`
}

func NewJobView(j domain.JobDefinition) JobView {
	v := JobView{
		JobID:          j.JobID,
		JobName:        j.JobName,
		JobEnabled:     j.JobEnabled,
		JobCron:        j.JobCron,
		JobRunLagCheck: j.JobRunLagCheck,
		Status:         j.JobStatus.String(),
		StatusCode:     int(j.JobStatus),
		LastUpdatedTs:  j.LastUpdatedTs,
	}
	if j.JobContent != "" && json.Valid([]byte(j.JobContent)) {
		v.JobContent = json.RawMessage(j.JobContent)
	}
	return v
}

type Jobs struct {
	repo   repository.JobRepository
	logger batch_scheduler.Logger
}

// NewRouter 注册只读路由，不提供任何修改任务的接口
func NewRouter(repo repository.JobRepository, logger batch_scheduler.Logger) *mux.Router {
	h := &Jobs{repo: repo, logger: logger}
	router := mux.NewRouter().StrictSlash(true)
	router.Use(Logging(logger))
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/jobs", h.List).Methods(http.MethodGet)
	router.HandleFunc("/jobs/{jobId:[0-9]+}", h.Get).Methods(http.MethodGet)
	return router
}

func (h *Jobs) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.repo.ListAll(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", batch_scheduler.Field{Key: "err", Val: err})
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}

	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, NewJobView(j))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Jobs) Get(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(mux.Vars(r)["jobId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.repo.Get(r.Context(), jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case err != nil:
		h.logger.Error("failed to get job",
			batch_scheduler.Field{Key: "job_id", Val: jobID},
			batch_scheduler.Field{Key: "err", Val: err})
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
	default:
		writeJSON(w, http.StatusOK, NewJobView(job))
	}
}
