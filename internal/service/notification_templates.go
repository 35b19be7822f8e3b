package service

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// emailTemplate 一类邮件的主题、纯文本与 HTML 模板
type emailTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func newEmailTemplate(name, subject, text, html string) emailTemplate {
	funcs := texttemplate.FuncMap{"percent": formatPercent, "status": passStatus}
	return emailTemplate{
		subject: texttemplate.Must(texttemplate.New(name + "_subject").Funcs(funcs).Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + "_text").Funcs(funcs).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + "_html").Funcs(htmltemplate.FuncMap(funcs)).Parse(html)),
	}
}

func (t emailTemplate) render(data interface{}) (subject, text, html string, err error) {
	var sb, tb, hb bytes.Buffer
	if err = t.subject.Execute(&sb, data); err != nil {
		return
	}
	if err = t.text.Execute(&tb, data); err != nil {
		return
	}
	if err = t.html.Execute(&hb, data); err != nil {
		return
	}
	return sb.String(), tb.String(), hb.String(), nil
}

var invitationTemplate = newEmailTemplate("invitation",
	`Invitation to complete {{.Exam.Title}}`,
	`Hello {{.Candidate.Name}},

You have been invited to complete the online assessment "{{.Exam.Title}}".

Open the link below to start:
{{.Link}}

This link is unique to you and should not be shared with others.
The assessment takes approximately {{.Exam.DurationMinutes}} minutes. Once you start, you must finish it in one session.

Good luck!
`,
	`<html>
  <body>
    <p>Hello {{.Candidate.Name}},</p>
    <p>You have been invited to complete the online assessment <strong>{{.Exam.Title}}</strong>.</p>
    <p><a href="{{.Link}}">{{.Link}}</a></p>
    <p>This link is unique to you and should not be shared with others.</p>
    <p>The assessment takes approximately {{.Exam.DurationMinutes}} minutes. Once you start, you must finish it in one session.</p>
    <p>Good luck!</p>
  </body>
</html>
`)

var resultTemplate = newEmailTemplate("result",
	`Your results for {{.Exam.Title}}`,
	`Hello {{.Candidate.Name}},

Thank you for completing "{{.Exam.Title}}".

Score: {{percent .Result.Score}}
Status: {{status .Result.Passed}}
{{with .Result.Feedback}}
{{.}}
{{end}}
Thank you for your participation.
`,
	`<html>
  <body>
    <p>Hello {{.Candidate.Name}},</p>
    <p>Thank you for completing <strong>{{.Exam.Title}}</strong>.</p>
    <h3>Your results</h3>
    <p>Score: <strong>{{percent .Result.Score}}</strong></p>
    <p>Status: <strong>{{status .Result.Passed}}</strong></p>
    {{with .Result.Feedback}}<p>{{.}}</p>{{end}}
    <p>Thank you for your participation.</p>
  </body>
</html>
`)

var completionTemplate = newEmailTemplate("completion",
	`{{.Candidate.Name}} completed {{.Exam.Title}}`,
	`{{.Candidate.Name}} ({{.Candidate.Email}}) has completed "{{.Exam.Title}}".

Score: {{percent .Result.Score}}
Status: {{status .Result.Passed}}

Review the submission: {{.Link}}
`,
	`<html>
  <body>
    <p><strong>{{.Candidate.Name}}</strong> ({{.Candidate.Email}}) has completed <strong>{{.Exam.Title}}</strong>.</p>
    <p>Score: <strong>{{percent .Result.Score}}</strong></p>
    <p>Status: <strong>{{status .Result.Passed}}</strong></p>
    <p><a href="{{.Link}}">Review the submission</a></p>
  </body>
</html>
`)
