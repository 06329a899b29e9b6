package controllers

import (
	"net/http"

	"github.com/stockbookhq/stockbook-backend/api/middleware"
	"github.com/stockbookhq/stockbook-backend/api/responses"
	"github.com/stockbookhq/stockbook-backend/api/validators"
	"github.com/stockbookhq/stockbook-backend/internal/invitations"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/logger"
)

// InvitationIssue creates an invitation for an email address.
func InvitationIssue(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitations service unavailable"))
			return
		}

		var body invitations.IssueInvitationInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.ClientIP = middleware.ClientIP(r)

		result, err := svc.Issue(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// InvitationAccept opens the invited email's usage window.
func InvitationAccept(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitations service unavailable"))
			return
		}

		var body invitations.AcceptInvitationInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.ClientIP = middleware.ClientIP(r)

		result, err := svc.Accept(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
