package leads

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrSubmissionInFlight is returned when Submit is called while the same
	// form instance is still waiting for the relay.
	ErrSubmissionInFlight = errors.New("leads: submission already in flight")

	// ErrInvalidFields is matched by every *ValidationError.
	ErrInvalidFields = errors.New("leads: invalid fields")
)

// Messages shown to the visitor.
const (
	MessageGeneric       = "Щось пішло не так"
	MessageNetwork       = "Помилка мережі. Спробуйте ще раз."
	MessageRequired      = "Заповніть це поле"
	MessageInvalidEmail  = "Введіть коректну адресу email"
	MessageChooseService = "Оберіть послугу зі списку"
)

// ValidationError maps field names to the message shown next to the field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "leads: invalid fields: " + strings.Join(names, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidFields
}
