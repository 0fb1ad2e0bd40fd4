package leads

import (
	"net/mail"
	"strings"
)

// ServiceCode identifies a procedure the visitor can ask about.
type ServiceCode string

const (
	ServiceBrows         ServiceCode = "brows"
	ServiceLips          ServiceCode = "lips"
	ServiceEyeliner      ServiceCode = "eyeliner"
	ServiceMicroneedling ServiceCode = "microneedling"
	ServiceMeso          ServiceCode = "meso"
	ServiceBotox         ServiceCode = "botox"
	ServiceConsultation  ServiceCode = "consultation"
)

var serviceCodes = []ServiceCode{
	ServiceBrows,
	ServiceLips,
	ServiceEyeliner,
	ServiceMicroneedling,
	ServiceMeso,
	ServiceBotox,
	ServiceConsultation,
}

// ServiceCodes returns the closed set of selectable services in display order.
func ServiceCodes() []ServiceCode {
	out := make([]ServiceCode, len(serviceCodes))
	copy(out, serviceCodes)
	return out
}

// ServiceCodeStrings is ServiceCodes as plain strings.
func ServiceCodeStrings() []string {
	out := make([]string, 0, len(serviceCodes))
	for _, code := range serviceCodes {
		out = append(out, string(code))
	}
	return out
}

// Valid reports whether c belongs to the closed set.
func (c ServiceCode) Valid() bool {
	for _, code := range serviceCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Form field names, shared by the HTML form, the relay payload and snapshots.
const (
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldEmail   = "email"
	FieldService = "service"
	FieldMessage = "message"
)

// Fields are the values a visitor enters in the contact form.
type Fields struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Service string `json:"service"`
	Message string `json:"message,omitempty"`
}

// Normalize trims surrounding whitespace from every field.
func (f Fields) Normalize() Fields {
	return Fields{
		Name:    strings.TrimSpace(f.Name),
		Phone:   strings.TrimSpace(f.Phone),
		Email:   strings.TrimSpace(f.Email),
		Service: strings.TrimSpace(f.Service),
		Message: strings.TrimSpace(f.Message),
	}
}

// IsZero reports whether no field holds a value.
func (f Fields) IsZero() bool {
	return f == Fields{}
}

// Validate applies the same checks a browser enforces for the form: name,
// phone and service are required, email must parse when present, and the
// service must be one of the listed options. Nothing else is checked.
func (f Fields) Validate() error {
	f = f.Normalize()
	errs := make(map[string]string)

	if f.Name == "" {
		errs[FieldName] = MessageRequired
	}
	if f.Phone == "" {
		errs[FieldPhone] = MessageRequired
	}
	if f.Email != "" && !validEmail(f.Email) {
		errs[FieldEmail] = MessageInvalidEmail
	}
	if !ServiceCode(f.Service).Valid() {
		errs[FieldService] = MessageChooseService
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}

func validEmail(raw string) bool {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return false
	}
	// reject display-name forms like "Olena <o@example.com>"
	return addr.Address == raw && strings.Contains(addr.Address, "@")
}

// Values flattens the fields for storage, omitting empty ones.
func (f Fields) Values() map[string]string {
	values := map[string]string{
		FieldName:    f.Name,
		FieldPhone:   f.Phone,
		FieldEmail:   f.Email,
		FieldService: f.Service,
		FieldMessage: f.Message,
	}
	for k, v := range values {
		if v == "" {
			delete(values, k)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// FieldsFromValues is the inverse of Values.
func FieldsFromValues(values map[string]string) Fields {
	return Fields{
		Name:    values[FieldName],
		Phone:   values[FieldPhone],
		Email:   values[FieldEmail],
		Service: values[FieldService],
		Message: values[FieldMessage],
	}
}

// Status is the state of one form instance.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// ParseStatus maps a stored value back to a Status; unknown values read as idle.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusSubmitting, StatusSucceeded, StatusFailed:
		return Status(raw)
	default:
		return StatusIdle
	}
}

// State is what the page renders for a form instance. Message is only set
// when Status is StatusFailed. Fields are retained until a submission succeeds
// or the form is reset.
type State struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Fields  Fields `json:"fields"`
}

// Idle is the initial state.
func Idle() State {
	return State{Status: StatusIdle}
}

// Outcome labels a finished Submit for logs, metrics and the journal.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRejected  Outcome = "rejected"
	OutcomeTransport Outcome = "transport_error"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeInFlight  Outcome = "in_flight"
)
