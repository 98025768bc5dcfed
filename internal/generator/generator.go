// Package generator produces guide text by prompting an external LLM.
//
// A Generator turns a Request (what to write, for which destination) into a
// Markdown-like document: '#' headings, '-' bullets and plain paragraphs.
// Structure is requested through the prompt only; the output is sanitized
// for stray emphasis markers and typographic punctuation, not validated.
//
// Three variants share the same prompts:
//
//	basic     one completion for the whole document
//	chunked   one completion per day (itineraries) or per section
//	resilient chunked, retrying a failed chunk once and substituting a
//	          placeholder section, failing only when every chunk fails
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Completer is a single system+user prompt round trip to an LLM.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Kind selects the document to generate.
type Kind string

const (
	KindItinerary Kind = "itinerary"
	KindPet       Kind = "pet"
	KindNomad     Kind = "nomad"
	KindDay       Kind = "day"
)

// Variant names accepted by New.
const (
	VariantBasic     = "basic"
	VariantChunked   = "chunked"
	VariantResilient = "resilient"
)

var (
	ErrEmptyOutput    = errors.New("generator: empty completion")
	ErrAllChunks      = errors.New("generator: every section failed")
	ErrInvalidRequest = errors.New("generator: invalid request")
	ErrUnknownVariant = errors.New("generator: unknown variant")
)

// Subject is the destination a document is about.
type Subject struct {
	ID         string
	Name       string
	Country    string
	Region     string
	Highlights []string
}

// Request describes one document.
type Request struct {
	Kind    Kind
	Subject Subject
	Days    int // itinerary length
	Day     int // KindDay only
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Subject.Name) == "" {
		return fmt.Errorf("%w: destination name required", ErrInvalidRequest)
	}
	switch r.Kind {
	case KindItinerary:
		if r.Days < 1 {
			return fmt.Errorf("%w: days must be >= 1", ErrInvalidRequest)
		}
	case KindDay:
		if r.Day < 1 {
			return fmt.Errorf("%w: day must be >= 1", ErrInvalidRequest)
		}
	case KindPet, KindNomad:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	return nil
}

// Generator produces guide text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New returns the named variant over c.
func New(variant string, c Completer) (Generator, error) {
	switch variant {
	case VariantBasic:
		return &Basic{c: c}, nil
	case VariantChunked:
		return &Chunked{c: c}, nil
	case VariantResilient, "":
		return &Resilient{c: c, Retries: 1}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
}

var tracer = otel.Tracer("generator")

func startSpan(ctx context.Context, variant string, req Request) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("generator.variant", variant),
		attribute.String("generator.kind", string(req.Kind)),
		attribute.String("destination.id", req.Subject.ID),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// complete calls c and sanitizes the result.
func complete(ctx context.Context, c Completer, user string) (string, error) {
	out, err := c.Complete(ctx, systemPrompt, user)
	if err != nil {
		return "", err
	}
	out = Sanitize(out)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// Basic generates the whole document in one completion.
type Basic struct{ c Completer }

func (g *Basic) Generate(ctx context.Context, req Request) (text string, err error) {
	ctx, span := startSpan(ctx, VariantBasic, req)
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return "", err
	}
	prompt, err := wholePrompt(req)
	if err != nil {
		return "", err
	}
	body, err := complete(ctx, g.c, prompt)
	if err != nil {
		return "", err
	}
	return withTitle(req, body), nil
}

// Chunked generates one completion per chunk and concatenates them.
// Any chunk error fails the whole document.
type Chunked struct{ c Completer }

func (g *Chunked) Generate(ctx context.Context, req Request) (text string, err error) {
	ctx, span := startSpan(ctx, VariantChunked, req)
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return "", err
	}
	chunks, err := chunksFor(req)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		body, err := complete(ctx, g.c, ch.prompt)
		if err != nil {
			return "", fmt.Errorf("%s: %w", ch.heading, err)
		}
		parts = append(parts, ensureHeading(ch.heading, body))
	}
	return withTitle(req, strings.Join(parts, "\n\n")), nil
}

// Resilient is Chunked with per-chunk retries and placeholders.
type Resilient struct {
	c       Completer
	Retries int
}

func (g *Resilient) Generate(ctx context.Context, req Request) (text string, err error) {
	ctx, span := startSpan(ctx, VariantResilient, req)
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return "", err
	}
	chunks, err := chunksFor(req)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(chunks))
	failed := 0
	var lastErr error
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var body string
		for attempt := 0; attempt <= g.Retries; attempt++ {
			body, err = complete(ctx, g.c, ch.prompt)
			if err == nil || ctx.Err() != nil {
				break
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			failed++
			lastErr = err
			span.AddEvent("chunk_failed", trace.WithAttributes(attribute.String("chunk", ch.heading)))
			parts = append(parts, placeholder(ch.heading))
			continue
		}
		parts = append(parts, ensureHeading(ch.heading, body))
	}
	if failed == len(chunks) {
		return "", fmt.Errorf("%w: %v", ErrAllChunks, lastErr)
	}
	return withTitle(req, strings.Join(parts, "\n\n")), nil
}

func placeholder(heading string) string {
	return "## " + heading + "\n\nThis section could not be prepared in time. " +
		"Reply to your confirmation email and we will send it separately."
}

// ensureHeading prefixes body with a level-2 heading unless it already
// opens with one.
func ensureHeading(heading, body string) string {
	if strings.HasPrefix(strings.TrimSpace(body), "#") {
		return body
	}
	return "## " + heading + "\n\n" + body
}

func withTitle(req Request, body string) string {
	if strings.HasPrefix(strings.TrimSpace(body), "# ") {
		return body
	}
	return "# " + documentTitle(req) + "\n\n" + body
}
