package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
	"github.com/maxcoind/kapelukh-backend/internal/topics"
)

type SurveyCreateRequest struct {
	UserID          int64             `json:"user_id" validate:"required,gt=0"`
	FullName        map[string]string `json:"full_name"`
	SuperPowers     []string          `json:"super_powers"`
	BirthDate       string            `json:"birth_date"`
	TraitsToImprove []string          `json:"traits_to_improve"`
	ToBuy           []string          `json:"to_buy"`
	ToSell          []string          `json:"to_sell"`
	Service         string            `json:"service"`
	MaterialGoal    string            `json:"material_goal"`
	SocialGoal      string            `json:"social_goal"`
	SpiritualGoal   string            `json:"spiritual_goal"`
}

type SurveyUpdateRequest struct {
	FullName        map[string]string `json:"full_name,omitempty"`
	SuperPowers     []string          `json:"super_powers,omitempty"`
	BirthDate       *string           `json:"birth_date,omitempty"`
	TraitsToImprove []string          `json:"traits_to_improve,omitempty"`
	ToBuy           []string          `json:"to_buy,omitempty"`
	ToSell          []string          `json:"to_sell,omitempty"`
	Service         *string           `json:"service,omitempty"`
	MaterialGoal    *string           `json:"material_goal,omitempty"`
	SocialGoal      *string           `json:"social_goal,omitempty"`
	SpiritualGoal   *string           `json:"spiritual_goal,omitempty"`
}

type SurveyResponse struct {
	ID              string            `json:"id"`
	UserID          int64             `json:"user_id"`
	FullName        map[string]string `json:"full_name"`
	SuperPowers     []string          `json:"super_powers"`
	BirthDate       string            `json:"birth_date"`
	TraitsToImprove []string          `json:"traits_to_improve"`
	ToBuy           []string          `json:"to_buy"`
	ToSell          []string          `json:"to_sell"`
	Service         string            `json:"service"`
	MaterialGoal    string            `json:"material_goal"`
	SocialGoal      string            `json:"social_goal"`
	SpiritualGoal   string            `json:"spiritual_goal"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func newSurveyResponse(survey model.Survey) SurveyResponse {
	return SurveyResponse{
		ID:              survey.ID,
		UserID:          survey.UserID,
		FullName:        survey.FullName,
		SuperPowers:     survey.SuperPowers,
		BirthDate:       survey.BirthDate,
		TraitsToImprove: survey.TraitsToImprove,
		ToBuy:           survey.ToBuy,
		ToSell:          survey.ToSell,
		Service:         survey.Service,
		MaterialGoal:    survey.MaterialGoal,
		SocialGoal:      survey.SocialGoal,
		SpiritualGoal:   survey.SpiritualGoal,
		CreatedAt:       survey.CreatedAt,
		UpdatedAt:       survey.UpdatedAt,
	}
}

func (s *RESTServer) createSurvey(w http.ResponseWriter, r *http.Request) {
	var req SurveyCreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, err))
		return
	}

	survey, err := s.surveys.Create(r.Context(), model.Survey{
		UserID:          req.UserID,
		FullName:        req.FullName,
		SuperPowers:     req.SuperPowers,
		BirthDate:       req.BirthDate,
		TraitsToImprove: req.TraitsToImprove,
		ToBuy:           req.ToBuy,
		ToSell:          req.ToSell,
		Service:         req.Service,
		MaterialGoal:    req.MaterialGoal,
		SocialGoal:      req.SocialGoal,
		SpiritualGoal:   req.SpiritualGoal,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicSurvey, realtime.EventCreated, survey)

	writeJSON(w, http.StatusCreated, newSurveyResponse(survey))
}

func (s *RESTServer) getSurvey(w http.ResponseWriter, r *http.Request) {
	survey, err := s.surveys.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newSurveyResponse(survey))
}

func (s *RESTServer) getSurveyByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid user id")))
		return
	}

	survey, err := s.surveys.GetByUserID(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newSurveyResponse(survey))
}

func (s *RESTServer) listSurveys(w http.ResponseWriter, r *http.Request) {
	filter := persistence.SurveyFilter{
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: persistence.SortOrder(r.URL.Query().Get("sort_order")),
	}
	var err error
	if filter.Skip, filter.Limit, err = queryPage(r); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.UserID, err = queryInt64(r, "user_id"); err != nil {
		s.writeError(w, err)
		return
	}

	surveys, err := s.surveys.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]SurveyResponse, len(surveys))
	for i, survey := range surveys {
		out[i] = newSurveyResponse(survey)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *RESTServer) updateSurvey(w http.ResponseWriter, r *http.Request) {
	var req SurveyUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	survey, err := s.surveys.Update(r.Context(), mux.Vars(r)["id"], persistence.SurveyUpdate{
		FullName:        req.FullName,
		SuperPowers:     req.SuperPowers,
		BirthDate:       req.BirthDate,
		TraitsToImprove: req.TraitsToImprove,
		ToBuy:           req.ToBuy,
		ToSell:          req.ToSell,
		Service:         req.Service,
		MaterialGoal:    req.MaterialGoal,
		SocialGoal:      req.SocialGoal,
		SpiritualGoal:   req.SpiritualGoal,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicSurvey, realtime.EventUpdated, survey)

	writeJSON(w, http.StatusOK, newSurveyResponse(survey))
}

func (s *RESTServer) deleteSurvey(w http.ResponseWriter, r *http.Request) {
	survey, err := s.surveys.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicSurvey, realtime.EventDeleted, survey)

	w.WriteHeader(http.StatusNoContent)
}

func (s *RESTServer) validateSurvey(w http.ResponseWriter, r *http.Request) {
	if !s.surveyValidator.Available() {
		s.writeError(w, ierr.New(ierr.ErrorCodeUnavailable, errors.New("survey validation is not configured")))
		return
	}

	survey, err := s.surveys.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.surveyValidator.ValidateSurvey(r.Context(), survey)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
