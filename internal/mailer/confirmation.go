package mailer

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Confirmation is the data of a purchase confirmation email.
type Confirmation struct {
	To          string
	Name        string
	Product     string
	Destination string // optional
	DownloadURL string // optional; absent when delivery failed
	BonusURL    string // optional
	PurchaseID  string
}

const confirmationText = `Hi {{.Greeting}},

Thank you for purchasing the {{.Product}}{{if .Destination}} for {{.Destination}}{{end}}.
{{if .DownloadURL}}
Your guide is ready: {{.DownloadURL}}
{{- if .BonusURL}}
Bonus checklist: {{.BonusURL}}
{{- end}}
{{else}}
Your guide is being prepared. We will send the link as soon as it is ready.
{{end}}
Order reference: {{.PurchaseID}}

Safe travels,
Deep Travel Collection
`

const confirmationHTML = `<p>Hi {{.Greeting}},</p>
<p>Thank you for purchasing the <strong>{{.Product}}</strong>{{if .Destination}} for {{.Destination}}{{end}}.</p>
{{if .DownloadURL}}<p><a href="{{.DownloadURL}}">Download your guide</a></p>
{{if .BonusURL}}<p><a href="{{.BonusURL}}">Bonus checklist</a></p>
{{end}}{{else}}<p>Your guide is being prepared. We will send the link as soon as it is ready.</p>
{{end}}<p style="color:#666">Order reference: {{.PurchaseID}}</p>
<p>Safe travels,<br>Deep Travel Collection</p>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("text").Parse(confirmationText))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(confirmationHTML))
)

type confirmationView struct {
	Confirmation
	Greeting string
}

// Message renders the confirmation into an email.
func (c Confirmation) Message() (Message, error) {
	v := confirmationView{Confirmation: c, Greeting: strings.TrimSpace(c.Name)}
	if v.Greeting == "" {
		v.Greeting = "there"
	}

	var text, html strings.Builder
	if err := textTmpl.Execute(&text, v); err != nil {
		return Message{}, err
	}
	if err := htmlTmpl.Execute(&html, v); err != nil {
		return Message{}, err
	}

	subject := "Your " + c.Product
	if c.Destination != "" {
		subject += ": " + c.Destination
	}
	return Message{
		To:      c.To,
		ToName:  c.Name,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
