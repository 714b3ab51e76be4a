package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"

	"github.com/wolfman30/diagnostic-booking-api/internal/results"
)

const categoryReportReady = "report_ready"

var (
	reportReadySubject = template.Must(template.New("report_ready_subject").Option("missingkey=error").Parse(
		`Your {{.TestName}} results are ready`))

	reportReadyText = template.Must(template.New("report_ready_text").Option("missingkey=error").Parse(
		`Hello,

The report for {{.TestName}} is now available.
{{- if .Date}}
Appointment date: {{.Date}}
{{- end}}
{{- if .Link}}

View it here: {{.Link}}
{{- end}}

Thank you for choosing us.
`))

	reportReadyHTML = htmltemplate.Must(htmltemplate.New("report_ready_html").Option("missingkey=error").Parse(
		`<p>Hello,</p>
<p>The report for <strong>{{.TestName}}</strong> is now available.</p>
{{- if .Date}}
<p>Appointment date: {{.Date}}</p>
{{- end}}
{{- if .Link}}
<p><a href="{{.Link}}">View your results</a></p>
{{- end}}
`))
)

type reportReadyData struct {
	TestName string
	Date     string
	Link     string
}

// ReportReadyMessage renders the patient notice for a completed result.
func ReportReadyMessage(result *results.TestResult, siteURL string) (EmailMessage, error) {
	data := reportReadyData{TestName: strings.TrimSpace(result.TestName), Date: result.Date}
	if data.TestName == "" {
		data.TestName = "diagnostic test"
	}
	if siteURL != "" {
		data.Link = siteURL + "/dashboard/results"
	}

	subject, err := render(reportReadySubject, data)
	if err != nil {
		return EmailMessage{}, err
	}
	text, err := render(reportReadyText, data)
	if err != nil {
		return EmailMessage{}, err
	}
	var html bytes.Buffer
	if err := reportReadyHTML.Execute(&html, data); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render %s: %w", reportReadyHTML.Name(), err)
	}

	return EmailMessage{
		To:       result.Email,
		Subject:  subject,
		Text:     text,
		HTML:     html.String(),
		Category: categoryReportReady,
		RefID:    result.ID,
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
