package auth

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"ular_tangga/internal/adapters"
	errs "ular_tangga/internal/errors"
	"ular_tangga/internal/httpresponse"
	repo "ular_tangga/internal/repository"
	authUC "ular_tangga/internal/usecase/auth"
	"ular_tangga/internal/utils"
)

type AuthHandler struct {
	usecaseHandler *authUC.AuthUsecaseHandler
	log            *zap.SugaredLogger
}

type GuestLoginRequest struct {
	DisplayName string `json:"display_name"`
}

type GuestLoginResponse struct {
	DisplayName string `json:"display_name"`
}

func NewAuthHandler(redis *adapters.AdapterRedis, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		usecaseHandler: authUC.NewAuthUsecaseHandler(
			repo.NewSessionRedisStorage(log, redis.GetClient()),
		),
		log: log,
	}
}

// Login registers a guest display name and sets the sessionID cookie.
func (a *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginData GuestLoginRequest
	if err := utils.DecodeJSONRequest(r, &loginData); err != nil {
		a.log.Error("Login: malformed JSON: ", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: httpresponse.MALFORMEDJSON_errorDesc})
		return
	}

	sessionID, err := a.usecaseHandler.LoginGuest(r.Context(), loginData.DisplayName)
	if err != nil {
		a.log.Error("Login: ", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "sessionID",
		Value:    sessionID,
		Expires:  time.Now().Add(10 * time.Hour),
		Secure:   true,
		HttpOnly: true,
		Path:     "/",
	})

	httpresponse.WriteResponseWithStatus(w, http.StatusOK,
		GuestLoginResponse{DisplayName: loginData.DisplayName})
}

func (a *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("sessionID")
	if err != nil {
		httpresponse.WriteResponseWithStatus(w, http.StatusUnauthorized,
			httpresponse.ErrorResponse{ErrorDescription: errs.ErrSessionNotFound.Error()})
		return
	}

	if err := a.usecaseHandler.LogoutUser(r.Context(), cookie.Value); err != nil {
		httpresponse.WriteResponseWithStatus(w, http.StatusUnauthorized,
			httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:    "sessionID",
		Value:   "",
		Expires: time.Unix(0, 0),
		Path:    "/",
	})
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, "OK")
}

// GetPlayerName resolves the caller's display name from the session cookie.
// An empty string means the caller is not logged in.
func (a *AuthHandler) GetPlayerName(r *http.Request) string {
	cookie, err := r.Cookie("sessionID")
	if err != nil {
		return ""
	}
	name, ok := a.usecaseHandler.WhoAmI(r.Context(), cookie.Value)
	if !ok {
		return ""
	}
	return name
}
