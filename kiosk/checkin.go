package kiosk

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
	"github.com/International-Combat-Archery-Alliance/checkin/decoder"
)

type scanRequest struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (a *API) getCheckin(w http.ResponseWriter, r *http.Request) {
	logger := api.GetLoggerFromCtx(r.Context(), a.logger)

	api.WriteJSON(w, logger, http.StatusOK, viewToApiView(a.workflow.View()))
}

func (a *API) postScans(w http.ResponseWriter, r *http.Request) {
	logger := api.GetLoggerFromCtx(r.Context(), a.logger)

	if a.push == nil {
		api.WriteError(w, logger, http.StatusNotFound, api.NotFound, "This kiosk reads codes from its own scanner")
		return
	}

	var body scanRequest
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		logger.Warn("Invalid body for scan", "error", err)
		api.WriteError(w, logger, http.StatusBadRequest, api.InputValidationError, "Invalid body")
		return
	}
	if (body.Text == "") == (body.Error == "") {
		api.WriteError(w, logger, http.StatusBadRequest, api.InputValidationError, "Exactly one of text or error must be set")
		return
	}

	if body.Error != "" {
		err = a.push.Fail(errors.New(body.Error))
	} else {
		err = a.push.Submit(body.Text)
	}
	if err != nil {
		logger.Warn("Scan was not accepted", "error", err)

		switch {
		case errors.Is(err, decoder.ErrNotScanning):
			api.WriteError(w, logger, http.StatusConflict, api.Conflict, "Not scanning right now")
		case errors.Is(err, decoder.ErrThrottled):
			api.WriteError(w, logger, http.StatusTooManyRequests, api.TooManyRequests, "Scans are arriving faster than the configured frame rate")
		default:
			api.WriteError(w, logger, http.StatusInternalServerError, api.InternalError, "Failed to submit scan")
		}
		return
	}

	api.WriteJSON(w, logger, http.StatusAccepted, viewToApiView(a.workflow.View()))
}

func (a *API) postAttendance(w http.ResponseWriter, r *http.Request) {
	logger := api.GetLoggerFromCtx(r.Context(), a.logger)
	registrationID := r.PathValue("registrationId")

	err := a.workflow.MarkAttendance(r.Context(), registrationID)
	if err != nil {
		var checkinErr *checkin.Error
		if errors.As(err, &checkinErr) {
			switch checkinErr.Reason {
			case checkin.REASON_REGISTRATION_NOT_PENDING:
				api.WriteError(w, logger, http.StatusNotFound, api.NotFound, checkinErr.Message)
				return
			case checkin.REASON_INVALID_STATE, checkin.REASON_MARK_IN_PROGRESS:
				api.WriteError(w, logger, http.StatusConflict, api.Conflict, checkinErr.Message)
				return
			case checkin.REASON_ATTENDANCE_MARK:
				api.WriteError(w, logger, http.StatusBadGateway, api.UpstreamError, "Failed to mark attendance")
				return
			}
		}

		logger.Error("Unexpected error marking attendance", "error", err, "registrationId", registrationID)
		api.WriteError(w, logger, http.StatusInternalServerError, api.InternalError, "Failed to mark attendance")
		return
	}

	api.WriteJSON(w, logger, http.StatusOK, viewToApiView(a.workflow.View()))
}

func (a *API) postScanAnother(w http.ResponseWriter, r *http.Request) {
	logger := api.GetLoggerFromCtx(r.Context(), a.logger)

	err := a.workflow.ScanAnother(r.Context())
	if err != nil {
		var checkinErr *checkin.Error
		if errors.As(err, &checkinErr) {
			switch checkinErr.Reason {
			case checkin.REASON_INVALID_STATE:
				api.WriteError(w, logger, http.StatusConflict, api.Conflict, checkinErr.Message)
				return
			case checkin.REASON_DECODER_LIFECYCLE:
				api.WriteError(w, logger, http.StatusServiceUnavailable, api.Unavailable, "The scanner could not be started")
				return
			}
		}

		logger.Error("Unexpected error resetting the workflow", "error", err)
		api.WriteError(w, logger, http.StatusInternalServerError, api.InternalError, "Failed to scan another")
		return
	}

	api.WriteJSON(w, logger, http.StatusOK, viewToApiView(a.workflow.View()))
}
