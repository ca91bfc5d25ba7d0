package export

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"pinpal/api/internal/store"
)

const (
	minCanvasWidth  = 800
	minCanvasHeight = 600
	canvasPadding   = 16
)

var svgTemplate = template.Must(template.New("board").Parse(
	`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
<title>{{.Name}}</title>
<rect width="100%" height="100%" fill="#ffffff"/>
{{- range .Shapes}}
{{.}}
{{- end}}
</svg>
`))

type svgData struct {
	Width  int64
	Height int64
	Name   string
	Shapes []string
}

// RenderSVG draws the board as an SVG document. Shapes are passed
// newest-first and painted oldest-first so later shapes end up on top.
func RenderSVG(name string, shapes []store.Shape) ([]byte, error) {
	data := svgData{Name: escapeXML(name)}

	for i := len(shapes) - 1; i >= 0; i-- {
		element, err := shapeElement(shapes[i])
		if err != nil {
			return nil, err
		}
		data.Shapes = append(data.Shapes, element)
	}

	width, height := canvasSize(shapes)
	data.Width = width
	data.Height = height

	var buf bytes.Buffer
	if err := svgTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render board svg: %w", err)
	}
	return buf.Bytes(), nil
}

func shapeElement(s store.Shape) (string, error) {
	style := fmt.Sprintf(`stroke=%q stroke-width="%d" fill=%q`,
		escapeXML(s.StrokeColor), s.StrokeWidth, escapeXML(s.FillColor))

	switch s.Type {
	case store.ShapeLine:
		if s.Line == nil {
			return "", fmt.Errorf("shape %d: missing line geometry", s.ID)
		}
		return fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" %s/>`,
			s.Line.X1, s.Line.Y1, s.Line.X2, s.Line.Y2, style), nil
	case store.ShapeRect:
		if s.Rect == nil {
			return "", fmt.Errorf("shape %d: missing rect geometry", s.ID)
		}
		return fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="%d" %s/>`,
			s.Rect.X, s.Rect.Y, s.Rect.Width, s.Rect.Height, style), nil
	case store.ShapeCircle:
		if s.Circle == nil {
			return "", fmt.Errorf("shape %d: missing circle geometry", s.ID)
		}
		return fmt.Sprintf(`<circle cx="%d" cy="%d" r="%s" %s/>`,
			s.Circle.CX, s.Circle.CY, formatRadius(s.Circle.R), style), nil
	default:
		return "", fmt.Errorf("shape %d: unknown type %q", s.ID, s.Type)
	}
}

func canvasSize(shapes []store.Shape) (int64, int64) {
	var width, height int64 = minCanvasWidth, minCanvasHeight
	for _, s := range shapes {
		var right, bottom int64
		switch {
		case s.Line != nil:
			right = max64(s.Line.X1, s.Line.X2)
			bottom = max64(s.Line.Y1, s.Line.Y2)
		case s.Rect != nil:
			right = s.Rect.X + s.Rect.Width
			bottom = s.Rect.Y + s.Rect.Height
		case s.Circle != nil:
			right = s.Circle.CX + int64(s.Circle.R) + 1
			bottom = s.Circle.CY + int64(s.Circle.R) + 1
		}
		right += s.StrokeWidth + canvasPadding
		bottom += s.StrokeWidth + canvasPadding
		if right > width {
			width = right
		}
		if bottom > height {
			height = bottom
		}
	}
	return width, height
}

func formatRadius(r float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", r), ".0")
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
