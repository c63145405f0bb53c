package backend

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/International-Combat-Archery-Alliance/checkin/attendance"
	"github.com/google/uuid"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  StaffUser `json:"user"`
}

type scanQRRequest struct {
	UserID string `json:"userId"`
}

type scanQRUser struct {
	Name string `json:"name"`
}

type scanQRRegistration struct {
	EventID        string `json:"eventId"`
	EventName      string `json:"eventName"`
	RegistrationID string `json:"registrationId"`
}

type scanQRResponse struct {
	User          scanQRUser           `json:"user"`
	Registrations []scanQRRegistration `json:"registrations"`
}

type markAttendanceRequest struct {
	RegistrationID string `json:"registrationId"`
}

func (a *API) postLogin(w http.ResponseWriter, r *http.Request) {
	logger := api.GetLoggerFromCtx(r.Context(), a.logger)

	var body loginRequest
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		api.WriteError(w, logger, http.StatusBadRequest, api.InputValidationError, "Invalid body")
		return
	}

	token, user, err := a.auth.Login(body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("Failed login attempt", slog.String("email", body.Email))
			api.WriteError(w, logger, http.StatusUnauthorized, api.AuthError, "Invalid email or password")
			return
		}

		logger.Error("Failed to log in", "error", err)
		api.WriteError(w, logger, http.StatusInternalServerError, api.InternalError, "Failed to log in")
		return
	}

	api.WriteJSON(w, logger, http.StatusOK, loginResponse{Token: token, User: user})
}

func (a *API) postScanQR(w http.ResponseWriter, r *http.Request) {
	logger := api.GetLoggerFromCtx(r.Context(), a.logger)

	var body scanQRRequest
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		api.WriteError(w, logger, http.StatusBadRequest, api.InputValidationError, "Invalid body")
		return
	}

	attendeeID, err := uuid.Parse(body.UserID)
	if err != nil {
		logger.Warn("Scanned user id is not a uuid", slog.String("userId", body.UserID))
		api.WriteError(w, logger, http.StatusBadRequest, api.InputValidationError, "userId must be a uuid")
		return
	}

	res, err := attendance.ResolveAttendee(r.Context(), a.db, attendeeID)
	if err != nil {
		writeAttendanceError(w, logger, err, "Failed to look up attendee")
		return
	}

	resp := scanQRResponse{
		User:          scanQRUser{Name: res.Attendee.Name},
		Registrations: make([]scanQRRegistration, 0, len(res.Pending)),
	}
	for _, reg := range res.Pending {
		resp.Registrations = append(resp.Registrations, scanQRRegistration{
			EventID:        reg.EventID.String(),
			EventName:      reg.EventName,
			RegistrationID: reg.ID.String(),
		})
	}

	api.WriteJSON(w, logger, http.StatusOK, resp)
}

func (a *API) postMarkAttendance(w http.ResponseWriter, r *http.Request) {
	logger := api.GetLoggerFromCtx(r.Context(), a.logger)

	var body markAttendanceRequest
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		api.WriteError(w, logger, http.StatusBadRequest, api.InputValidationError, "Invalid body")
		return
	}

	registrationID, err := uuid.Parse(body.RegistrationID)
	if err != nil {
		api.WriteError(w, logger, http.StatusBadRequest, api.InputValidationError, "registrationId must be a uuid")
		return
	}

	reg, err := attendance.MarkAttendance(r.Context(), a.db, registrationID, a.now())
	if err != nil {
		writeAttendanceError(w, logger, err, "Failed to mark attendance")
		return
	}

	staff := ""
	if claims, ok := ClaimsFromCtx(r.Context()); ok {
		staff = claims.Email
	}
	logger.Info("Attendance marked",
		slog.String("registrationId", reg.ID.String()),
		slog.String("eventId", reg.EventID.String()),
		slog.String("markedBy", staff),
	)

	w.WriteHeader(http.StatusNoContent)
}

func writeAttendanceError(w http.ResponseWriter, logger *slog.Logger, err error, fallbackMsg string) {
	var attendanceErr *attendance.Error
	if errors.As(err, &attendanceErr) {
		switch attendanceErr.Reason {
		case attendance.REASON_ATTENDEE_DOES_NOT_EXIST:
			logger.Warn("Attendee not found", "error", err)
			api.WriteError(w, logger, http.StatusNotFound, api.NotFound, "User not found")
			return
		case attendance.REASON_REGISTRATION_DOES_NOT_EXIST:
			logger.Warn("Registration not found", "error", err)
			api.WriteError(w, logger, http.StatusNotFound, api.NotFound, "Registration not found")
			return
		case attendance.REASON_ALREADY_ATTENDED:
			logger.Warn("Registration already checked in", "error", err)
			api.WriteError(w, logger, http.StatusConflict, api.Conflict, "Registration is already checked in")
			return
		case attendance.REASON_VERSION_CONFLICT:
			logger.Warn("Registration was changed concurrently", "error", err)
			api.WriteError(w, logger, http.StatusConflict, api.Conflict, "Registration was changed by someone else, try again")
			return
		case attendance.REASON_TIMEOUT:
			logger.Error("Timed out talking to the database", "error", err)
			api.WriteError(w, logger, http.StatusGatewayTimeout, api.InternalError, fallbackMsg)
			return
		}
	}

	logger.Error(fallbackMsg, "error", err)
	api.WriteError(w, logger, http.StatusInternalServerError, api.InternalError, fallbackMsg)
}
