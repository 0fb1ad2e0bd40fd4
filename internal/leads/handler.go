package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/beautylab-site/pkg/logging"
)

const (
	// FormCookie identifies the visitor's form instance.
	FormCookie = "lead_form"

	// ContactAnchor is where browsers land after a form POST.
	ContactAnchor = "/#contact"

	maxFormBytes  = 64 << 10
	formCookieTTL = 30 * 24 * time.Hour
)

// FormView is what the page needs to render the contact section.
type FormView struct {
	State  State
	Errors map[string]string
}

// PageRenderer renders the landing page with the given contact section.
type PageRenderer interface {
	RenderPage(w http.ResponseWriter, r *http.Request, status int, form FormView)
}

// Handler serves the contact form endpoints.
type Handler struct {
	service      *Service
	page         PageRenderer
	secureCookie bool
	logger       *logging.Logger
}

// NewHandler creates a new leads handler. page may be nil when only the JSON
// endpoints are mounted.
func NewHandler(service *Service, page PageRenderer, secureCookie bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:      service,
		page:         page,
		secureCookie: secureCookie,
		logger:       logger.Component("leads.http"),
	}
}

// FormID returns the form instance id from the request cookie, issuing a new
// one when absent or malformed.
func FormID(w http.ResponseWriter, r *http.Request, secure bool) string {
	if c, err := r.Cookie(FormCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     FormCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(formCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// SubmitForm handles POST /contact from the browser form.
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(w, r)
	if err != nil {
		h.logger.Warn("failed to parse contact form", "error", err)
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}

	formID := FormID(w, r, h.secureCookie)
	// the relay call must finish even if the visitor navigates away
	state, err := h.service.Submit(context.WithoutCancel(r.Context()), formID, fields)

	var invalid *ValidationError
	switch {
	case errors.As(err, &invalid):
		if h.page == nil {
			http.Error(w, invalid.Error(), http.StatusUnprocessableEntity)
			return
		}
		state.Fields = fields.Normalize()
		h.page.RenderPage(w, r, http.StatusUnprocessableEntity, FormView{State: state, Errors: invalid.Fields})
		return
	case errors.Is(err, ErrSubmissionInFlight):
		h.logger.Info("submit ignored, submission in flight")
	case err != nil:
		h.logger.Error("contact form submission failed", "error", err)
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	http.Redirect(w, r, ContactAnchor, http.StatusSeeOther)
}

// ResetForm handles POST /contact/reset.
func (h *Handler) ResetForm(w http.ResponseWriter, r *http.Request) {
	formID := FormID(w, r, h.secureCookie)
	if _, err := h.service.Reset(r.Context(), formID); err != nil {
		h.logger.Error("failed to reset contact form", "error", err)
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, ContactAnchor, http.StatusSeeOther)
}

// SubmitResponse is the JSON body of the lead API.
type SubmitResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Status  Status            `json:"status"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// SubmitJSON handles POST /api/leads for script clients.
func (h *Handler) SubmitJSON(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, SubmitResponse{Message: "Invalid form body", Status: StatusIdle})
		return
	}

	formID := FormID(w, r, h.secureCookie)
	state, err := h.service.Submit(context.WithoutCancel(r.Context()), formID, fields)

	var invalid *ValidationError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, SubmitResponse{Status: state.Status, Errors: invalid.Fields})
	case errors.Is(err, ErrSubmissionInFlight):
		writeJSON(w, http.StatusConflict, SubmitResponse{Status: StatusSubmitting})
	case err != nil:
		h.logger.Error("lead api submission failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, SubmitResponse{Message: MessageNetwork, Status: StatusFailed})
	case state.Status == StatusSucceeded:
		writeJSON(w, http.StatusOK, SubmitResponse{Success: true, Status: state.Status})
	default:
		writeJSON(w, http.StatusBadGateway, SubmitResponse{Message: state.Message, Status: state.Status})
	}
}

// GetState handles GET /api/leads.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context(), FormID(w, r, h.secureCookie))
	if err != nil {
		h.logger.Error("failed to load form state", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, SubmitResponse{Status: StatusIdle})
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{
		Success: state.Status == StatusSucceeded,
		Message: state.Message,
		Status:  state.Status,
	})
}

func parseFields(w http.ResponseWriter, r *http.Request) (Fields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return Fields{}, err
	}
	return Fields{
		Name:    r.PostFormValue(FieldName),
		Phone:   r.PostFormValue(FieldPhone),
		Email:   r.PostFormValue(FieldEmail),
		Service: r.PostFormValue(FieldService),
		Message: r.PostFormValue(FieldMessage),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
