package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

// Renderer renders small text templates for outbound e-mail.
type Renderer struct{}

// Render compiles the provided template text with strict missing-key semantics.
func (Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("notify: template text required")
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("notify: parse: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: execute: %w", err)
	}
	return buf.String(), nil
}

// LeadEmail is the data behind the studio's new-lead e-mail.
type LeadEmail struct {
	Brand   string
	Name    string
	Phone   string
	Email   string
	Service string
	Message string
}

const leadSubjectTemplate = `{{.Brand}}: нова заявка — {{.Service}}`

const leadBodyTemplate = `Нова заявка з сайту {{.Brand}}

Ім'я: {{.Name}}
Телефон: {{.Phone}}
{{- if .Email}}
Email: {{.Email}}
{{- end}}
Послуга: {{.Service}}
{{- if .Message}}

Повідомлення:
{{.Message}}
{{- end}}
`

// RenderLeadEmail builds the subject and plain text body for a lead.
func RenderLeadEmail(lead LeadEmail) (subject, body string, err error) {
	var r Renderer
	subject, err = r.Render("lead_subject", leadSubjectTemplate, lead)
	if err != nil {
		return "", "", err
	}
	body, err = r.Render("lead_body", leadBodyTemplate, lead)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}
