package generator

import (
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const systemPrompt = `You are a senior travel writer producing printable travel guides.
Formatting rules, follow them exactly:
- Use "#" for the guide title and "##" for section headings, "###" for sub-headings.
- Use "-" for bullet points. Never use "*" or numbered bullets.
- Do not use bold, italics, tables, emoji or code blocks.
- Use plain ASCII punctuation: straight quotes, "-" for dashes.
- Be concrete: name real neighbourhoods, venues, transit lines and typical prices.`

var petSections = []string{
	"Pet-Friendly Lodging",
	"Getting Around With Pets",
	"Parks and Off-Leash Areas",
	"Veterinary Care and Emergencies",
	"Pet-Friendly Dining",
	"Local Rules and Etiquette",
}

var nomadSections = []string{
	"Neighbourhoods for Remote Workers",
	"Coworking and Cafes",
	"Internet and Connectivity",
	"Cost of Living",
	"Visas and Length of Stay",
	"Community and Networking",
}

var titleCaser = cases.Title(language.English)

func documentTitle(req Request) string {
	name := titleCaser.String(strings.TrimSpace(req.Subject.Name))
	switch req.Kind {
	case KindItinerary:
		return fmt.Sprintf("%s: %d-Day Premium Itinerary", name, req.Days)
	case KindPet:
		return name + ": Pet Travel Guide"
	case KindNomad:
		return name + ": Digital Nomad Guide"
	case KindDay:
		return fmt.Sprintf("%s: Day %d", name, req.Day)
	}
	return name
}

type promptData struct {
	Request
	Title    string
	Place    string
	Section  string
	Sections []string
}

func place(s Subject) string {
	parts := []string{s.Name}
	if s.Region != "" {
		parts = append(parts, s.Region)
	}
	if s.Country != "" {
		parts = append(parts, s.Country)
	}
	return strings.Join(parts, ", ")
}

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"join": strings.Join,
	"seq": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	},
}).Parse(`
{{define "highlights"}}{{if .Subject.Highlights}}
Travellers come for: {{join .Subject.Highlights "; "}}.{{end}}{{end}}

{{define "itinerary"}}Write a {{.Days}}-day premium itinerary for {{.Place}}.{{template "highlights" .}}
Start with "# {{.Title}}" and a short overview paragraph.
Then include these sections in order:
{{range seq .Days}}## Day {{.}}
{{end}}## Practical Tips
Each day has Morning, Afternoon and Evening sub-headings with bullet points.{{end}}

{{define "day"}}Write day {{.Day}}{{if .Days}} of a {{.Days}}-day itinerary{{end}} for {{.Place}}.{{template "highlights" .}}
Start with the heading "## Day {{.Day}}" followed by a one-line theme.
Use "### Morning", "### Afternoon" and "### Evening" sub-headings with 3 to 5 bullet points each.
Do not repeat content from other days.{{end}}

{{define "guide"}}Write a {{.Title}} for {{.Place}}.{{template "highlights" .}}
Start with "# {{.Title}}" and a short overview paragraph.
Then include these sections in order, each as a "##" heading:
{{range .Sections}}- {{.}}
{{end}}{{end}}

{{define "section"}}You are writing one section of a {{.Title}} for {{.Place}}.{{template "highlights" .}}
Write only the section "{{.Section}}", starting with the heading "## {{.Section}}".
Use short paragraphs and bullet points; 150 to 250 words.{{end}}
`))

func render(name string, d promptData) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, d); err != nil {
		return "", fmt.Errorf("generator: prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func baseData(req Request) promptData {
	return promptData{Request: req, Title: documentTitle(req), Place: place(req.Subject)}
}

// wholePrompt is the single-completion prompt for req.
func wholePrompt(req Request) (string, error) {
	d := baseData(req)
	switch req.Kind {
	case KindItinerary:
		return render("itinerary", d)
	case KindDay:
		return render("day", d)
	case KindPet:
		d.Sections = petSections
	case KindNomad:
		d.Sections = nomadSections
	}
	return render("guide", d)
}

type chunk struct {
	heading string
	prompt  string
}

// chunksFor splits req into independently generated sections.
func chunksFor(req Request) ([]chunk, error) {
	switch req.Kind {
	case KindDay:
		p, err := wholePrompt(req)
		if err != nil {
			return nil, err
		}
		return []chunk{{heading: fmt.Sprintf("Day %d", req.Day), prompt: p}}, nil
	case KindItinerary:
		out := make([]chunk, 0, req.Days)
		for day := 1; day <= req.Days; day++ {
			dayReq := req
			dayReq.Day = day
			p, err := render("day", baseData(dayReq))
			if err != nil {
				return nil, err
			}
			out = append(out, chunk{heading: fmt.Sprintf("Day %d", day), prompt: p})
		}
		return out, nil
	}

	sections := petSections
	if req.Kind == KindNomad {
		sections = nomadSections
	}
	out := make([]chunk, 0, len(sections))
	for _, s := range sections {
		d := baseData(req)
		d.Section = s
		p, err := render("section", d)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk{heading: s, prompt: p})
	}
	return out, nil
}
