package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"go.uber.org/zap"
)

var statusByCode = map[ierr.ErrorCode]int{
	ierr.ErrorCodeInvalidArgument:  http.StatusBadRequest,
	ierr.ErrorCodeNotFound:         http.StatusNotFound,
	ierr.ErrorCodeAlreadyExists:    http.StatusConflict,
	ierr.ErrorCodeUnauthenticated:  http.StatusUnauthorized,
	ierr.ErrorCodePermissionDenied: http.StatusForbidden,
	ierr.ErrorCodeUnavailable:      http.StatusServiceUnavailable,
	ierr.ErrorCodeInternal:         http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *RESTServer) writeError(w http.ResponseWriter, err error) {
	var typed ierr.Error
	if !errors.As(err, &typed) {
		typed = ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
		s.logger.Error("unhandled error in rest handler", zap.Error(err))
	}

	status, ok := statusByCode[typed.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, typed)
}

func errorCode(err error) ierr.ErrorCode {
	var typed ierr.Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return ierr.ErrorCodeInternal
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid request body: "+err.Error()))
	}
	return nil
}

func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid "+name))
	}

	return &value, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid "+name))
	}

	return &value, nil
}

func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid "+name))
	}

	return &value, nil
}

func queryPage(r *http.Request) (skip, limit int64, err error) {
	skipValue, err := queryInt64(r, "skip")
	if err != nil {
		return 0, 0, err
	}
	if skipValue != nil && *skipValue > 0 {
		skip = *skipValue
	}

	limit = 100
	limitValue, err := queryInt64(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	if limitValue != nil && *limitValue > 0 {
		limit = *limitValue
	}

	return skip, limit, nil
}
