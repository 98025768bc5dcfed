package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
)

const (
	pageW   = 210.0 // A4, mm
	pageH   = 297.0
	headerH = 14.0
	footerH = 11.0
	ptToMM  = 25.4 / 72

	// fallbackAdvance approximates the average glyph advance of a
	// proportional font as a fraction of the font size.
	fallbackAdvance = 0.55

	bulletGlyph = "\x95" // cp1252 bullet in the core fonts
)

// Options controls the look of rendered guides.
type Options struct {
	Brand      string // left side of the header bar
	Footer     string // left side of the footer bar
	FontFamily string // a core font: Helvetica, Times or Courier
	BodySize   float64
	Margin     float64 // left/right margin, mm
	Accent     [3]int  // header bar and heading colour
}

// DefaultOptions returns the house style.
func DefaultOptions() Options {
	return Options{
		Brand:      "Deep Travel Collection",
		Footer:     "deeptravelcollection.com",
		FontFamily: "Helvetica",
		BodySize:   10.5,
		Margin:     18,
		Accent:     [3]int{22, 78, 99},
	}
}

// Renderer lays out guide text onto A4 pages.
type Renderer struct {
	opts Options
	log  zerolog.Logger
}

// NewRenderer returns a Renderer; zero option fields take defaults.
func NewRenderer(opts Options, log zerolog.Logger) *Renderer {
	def := DefaultOptions()
	if opts.FontFamily == "" {
		opts.FontFamily = def.FontFamily
	}
	if opts.BodySize <= 0 {
		opts.BodySize = def.BodySize
	}
	if opts.Margin <= 0 {
		opts.Margin = def.Margin
	}
	if opts.Accent == ([3]int{}) {
		opts.Accent = def.Accent
	}
	return &Renderer{opts: opts, log: log}
}

// Render parses src and renders it.
func (r *Renderer) Render(src string) ([]byte, error) {
	return r.RenderDocument(Parse(src))
}

// RenderDocument renders doc. Unrenderable characters are folded or
// dropped and failed width measurements fall back to an estimate, so an
// error here means the PDF itself could not be produced.
func (r *Renderer) RenderDocument(doc Document) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf: render panic: %v", rec)
		}
	}()

	o := r.opts
	p := fpdf.New("P", "mm", "A4", "")
	p.SetAutoPageBreak(false, 0)
	p.SetMargins(o.Margin, headerH+8, o.Margin)

	title := ToASCII(doc.Title)
	p.SetTitle(title, false)
	p.SetAuthor(ToASCII(o.Brand), false)
	p.SetCreator("deeptravel-guides", false)

	p.SetHeaderFunc(func() {
		p.SetFillColor(o.Accent[0], o.Accent[1], o.Accent[2])
		p.Rect(0, 0, pageW, headerH, "F")
		p.SetFont(o.FontFamily, "B", 10)
		p.SetTextColor(255, 255, 255)
		p.SetXY(o.Margin, 0)
		p.CellFormat(pageW-2*o.Margin, headerH, ToASCII(o.Brand), "", 0, "LM", false, 0, "")
	})
	p.SetFooterFunc(func() {
		p.SetFillColor(238, 242, 244)
		p.Rect(0, pageH-footerH, pageW, footerH, "F")
		p.SetFont(o.FontFamily, "", 8)
		p.SetTextColor(90, 90, 90)
		p.SetXY(o.Margin, pageH-footerH)
		p.CellFormat(pageW/2, footerH, ToASCII(o.Footer), "", 0, "LM", false, 0, "")
		p.SetXY(pageW/2, pageH-footerH)
		p.CellFormat(pageW/2-o.Margin, footerH, "Page "+strconv.Itoa(p.PageNo()), "", 0, "RM", false, 0, "")
	})

	l := &layout{
		pdf:    p,
		o:      o,
		top:    headerH + 10,
		bottom: pageH - footerH - 8,
		left:   o.Margin,
		right:  pageW - o.Margin,
	}
	p.AddPage()
	l.y = l.top

	if title != "" {
		l.text(title, 20, "B", o.Accent, 0)
		l.y += 4
	}
	for _, s := range doc.Sections {
		if s.Heading != "" {
			l.heading(ToASCII(s.Heading), s.Level)
		}
		for _, b := range s.Blocks {
			l.block(b)
		}
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: output: %w", err)
	}
	if l.fallbacks > 0 {
		r.log.Warn().Int("measure_fallbacks", l.fallbacks).Msg("pdf width measurement fell back to estimates")
	}
	r.log.Debug().Int("pages", p.PageNo()).Int("bytes", buf.Len()).Msg("pdf rendered")
	return buf.Bytes(), nil
}

type layout struct {
	pdf                      *fpdf.Fpdf
	o                        Options
	y                        float64
	top, bottom, left, right float64
	fallbacks                int
}

func lineHeight(size float64) float64 { return size * ptToMM * 1.45 }

func fallbackWidth(s string, size float64) float64 {
	return float64(len(s)) * size * fallbackAdvance * ptToMM
}

// measure returns a width function for the current font. A panic or a
// zero width for visible text counts as a measurement failure.
func (l *layout) measure(size float64) func(string) float64 {
	return func(s string) (w float64) {
		defer func() {
			if rec := recover(); rec != nil {
				l.fallbacks++
				w = fallbackWidth(s, size)
			}
		}()
		w = l.pdf.GetStringWidth(s)
		if w <= 0 && s != "" {
			l.fallbacks++
			w = fallbackWidth(s, size)
		}
		return w
	}
}

// ensure starts a new page when h more millimetres do not fit.
func (l *layout) ensure(h float64) {
	if l.y+h > l.bottom {
		l.pdf.AddPage()
		l.y = l.top
	}
}

// text wraps s at the given size/style and draws it starting at indent.
func (l *layout) text(s string, size float64, style string, color [3]int, indent float64) {
	l.pdf.SetFont(l.o.FontFamily, style, size)
	l.pdf.SetTextColor(color[0], color[1], color[2])
	lh := lineHeight(size)
	x := l.left + indent
	for _, ln := range Wrap(s, l.right-x, l.measure(size)) {
		l.ensure(lh)
		if ln != "" {
			l.pdf.SetXY(x, l.y)
			l.pdf.CellFormat(l.right-x, lh, ln, "", 0, "L", false, 0, "")
		}
		l.y += lh
	}
}

func (l *layout) heading(h string, level int) {
	size := 11.5
	switch level {
	case 1, 2:
		size = 15
	case 3:
		size = 12.5
	}
	lh := lineHeight(size)
	l.y += lh * 0.6
	// keep the heading with at least two body lines
	l.ensure(lh + 2*lineHeight(l.o.BodySize))
	l.text(h, size, "B", l.o.Accent, 0)
	l.y += 1
}

func (l *layout) block(b Block) {
	size := l.o.BodySize
	lh := lineHeight(size)
	ink := [3]int{33, 33, 33}

	switch b.Kind {
	case Spacer:
		l.y += lh
		return
	case Bullet:
		indent := 4 + float64(b.Indent)*5
		textIndent := indent + 4
		l.ensure(lh)
		l.pdf.SetFont(l.o.FontFamily, "", size)
		l.pdf.SetTextColor(l.o.Accent[0], l.o.Accent[1], l.o.Accent[2])
		l.pdf.SetXY(l.left+indent, l.y)
		l.pdf.CellFormat(4, lh, bulletGlyph, "", 0, "L", false, 0, "")
		l.text(ToASCII(b.Text), size, "", ink, textIndent)
		l.y += 0.6
	default:
		l.text(ToASCII(b.Text), size, "", ink, 0)
		l.y += lh * 0.5
	}
}
