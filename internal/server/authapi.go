package server

import (
	"errors"
	"net/http"

	"github.com/maxcoind/kapelukh-backend/internal/auth"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UserResponse struct {
	Username string `json:"username"`
}

func (s *RESTServer) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, err))
		return
	}

	if !s.credentials.Authenticate(req.Username, req.Password) {
		s.writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("incorrect username or password")))
		return
	}

	pair, err := s.tokens.IssuePair(req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func (s *RESTServer) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, err))
		return
	}

	username, err := s.tokens.Verify(req.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		s.writeError(w, err)
		return
	}

	accessToken, err := s.tokens.Issue(username, auth.TokenTypeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, auth.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    "bearer",
	})
}

func (s *RESTServer) me(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		s.writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("not authenticated")))
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{Username: username})
}
