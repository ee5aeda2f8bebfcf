package timeline

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Style controls the SVG export. It maps directly onto the svg section of
// the YAML configuration.
type Style struct {
	Font struct {
		Family string `yaml:"family"` // Font family for all text elements
		Size   int    `yaml:"size"`   // Base font size in pixels
	} `yaml:"font"`
	Colors struct {
		Background string `yaml:"background"` // SVG background color
		Axis       string `yaml:"axis"`       // Month grid lines and labels
		Today      string `yaml:"today"`      // Today marker line
		Text       string `yaml:"text"`       // Lane titles and bar labels
		Bar        string `yaml:"bar"`        // Plain feature bars
		Control    string `yaml:"control"`    // Control arms
		Variant    string `yaml:"variant"`    // Losing treatment arms
		Winner     string `yaml:"winner"`     // Winning arm
		Launch     string `yaml:"launch"`     // Launch bars
		Summary    string `yaml:"summary"`    // Collapsed summary pills
	} `yaml:"colors"`
	Layout struct {
		MarginTop    int `yaml:"margin_top"`    // Space above the month header
		MarginBottom int `yaml:"margin_bottom"` // Space below the last lane
		MarginLeft   int `yaml:"margin_left"`   // Space left of the lane titles
		MarginRight  int `yaml:"margin_right"`  // Space right of the axis
		LabelWidth   int `yaml:"label_width"`   // Column reserved for lane titles
		HeaderHeight int `yaml:"header_height"` // Month label row
	} `yaml:"layout"`
}

// DefaultStyle returns the built-in export style.
func DefaultStyle() Style {
	var s Style
	s.Font.Family = "Arial, sans-serif"
	s.Font.Size = 12
	s.Colors.Background = "#ffffff"
	s.Colors.Axis = "#d0d7de"
	s.Colors.Today = "#d93025"
	s.Colors.Text = "#333333"
	s.Colors.Bar = "#4285f4"
	s.Colors.Control = "#9aa0a6"
	s.Colors.Variant = "#fbbc04"
	s.Colors.Winner = "#34a853"
	s.Colors.Launch = "#673ab7"
	s.Colors.Summary = "#80868b"
	s.Layout.MarginTop = 20
	s.Layout.MarginBottom = 20
	s.Layout.MarginLeft = 20
	s.Layout.MarginRight = 20
	s.Layout.LabelWidth = 180
	s.Layout.HeaderHeight = 24
	return s
}

// SVG renders the view as a static swimlane chart.
func (v View) SVG(style Style) string {
	axisX := style.Layout.MarginLeft + style.Layout.LabelWidth
	bodyY := style.Layout.MarginTop + style.Layout.HeaderHeight
	width := axisX + int(v.Width) + style.Layout.MarginRight
	height := bodyY + int(v.Height) + style.Layout.MarginBottom

	var svg strings.Builder
	svg.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
<defs>
<style>
.lane-text { font-family: %s; font-size: %dpx; font-weight: bold; fill: %s; }
.bar-text { font-family: %s; font-size: %dpx; fill: #ffffff; }
.axis-text { font-family: %s; font-size: %dpx; fill: %s; }
</style>
</defs>
`, width, height, style.Colors.Background,
		style.Font.Family, style.Font.Size, style.Colors.Text,
		style.Font.Family, style.Font.Size-2,
		style.Font.Family, style.Font.Size-1, style.Colors.Text))

	for _, tick := range v.Months {
		x := axisX + int(tick.X)
		svg.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="1"/>`,
			x, bodyY, x, bodyY+int(v.Height), style.Colors.Axis))
		svg.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="axis-text">%s</text>`,
			x+4, bodyY-6, escapeXML(tick.Label)))
	}

	for _, lane := range v.Lanes {
		laneY := bodyY + int(lane.Top)
		svg.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="1"/>`,
			style.Layout.MarginLeft, laneY+int(lane.Height), axisX+int(v.Width), laneY+int(lane.Height), style.Colors.Axis))
		svg.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="lane-text">%s</text>`,
			style.Layout.MarginLeft, laneY+int(lane.Padding)+style.Font.Size,
			escapeXML(fitText(lane.Title, style.Layout.LabelWidth-8, style.Font.Size))))

		if lane.Summary != nil {
			p := lane.Summary.Placement
			if p.Visible {
				y := laneY + int(lane.Padding)
				h := int(lane.Height - 2*lane.Padding)
				label := fmt.Sprintf("%d variants · %s · ends %s",
					lane.Summary.VariantCount, lane.Summary.PrimaryMetric, lane.Summary.EndDate.Format("Jan 2"))
				drawBar(&svg, axisX+int(p.Left), y, int(p.Width), h, style.Colors.Summary, label, h/2, style.Font.Size-2)
			}
			continue
		}

		for _, b := range lane.Bars {
			if !b.Placement.Visible {
				continue
			}
			y := laneY + int(lane.Padding+b.Offset)
			drawBar(&svg, axisX+int(b.Placement.Left), y, int(b.Placement.Width), int(b.Height),
				barColor(b.Bar, style), barLabel(b.Bar), 4, style.Font.Size-2)
			if b.Placement.TruncatedStart {
				drawTruncationMarker(&svg, axisX+int(b.Placement.Left), y, int(b.Height), true, style)
			}
			if b.Placement.TruncatedEnd {
				drawTruncationMarker(&svg, axisX+int(b.Placement.Left+b.Placement.Width), y, int(b.Height), false, style)
			}
		}
	}

	if v.Today != nil {
		x := axisX + int(*v.Today)
		svg.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`,
			x, bodyY-style.Layout.HeaderHeight/2, x, bodyY+int(v.Height), style.Colors.Today))
	}

	svg.WriteString("</svg>")
	return svg.String()
}

func drawBar(svg *strings.Builder, x, y, w, h int, fill, label string, radius, fontSize int) {
	svg.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="%d" rx="%d" fill="%s"/>`,
		x, y, w, h, radius, fill))
	if label = fitText(label, w-12, fontSize); label != "" {
		svg.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="bar-text">%s</text>`,
			x+6, y+h/2+4, escapeXML(label)))
	}
}

// drawTruncationMarker draws a small chevron on the clipped edge of a bar.
func drawTruncationMarker(svg *strings.Builder, x, y, h int, left bool, style Style) {
	dx := 6
	if left {
		dx = -6
	}
	mid := y + h/2
	svg.WriteString(fmt.Sprintf(`<path d="M%d,%d L%d,%d L%d,%d" stroke="%s" stroke-width="2" fill="none"/>`,
		x, y, x+dx, mid, x, y+h, style.Colors.Today))
}

func barColor(b Bar, style Style) string {
	switch {
	case b.Kind == BarLaunch:
		return style.Colors.Launch
	case b.IsControl:
		return style.Colors.Control
	case b.IsWinner:
		return style.Colors.Winner
	case b.IsVariant:
		return style.Colors.Variant
	default:
		return style.Colors.Bar
	}
}

func barLabel(b Bar) string {
	switch b.Kind {
	case BarVariant:
		return fmt.Sprintf("%s %s · %s", b.VariantName, b.TrafficSplit, b.ComparisonLabel)
	case BarLaunch:
		return fmt.Sprintf("Launch · %s %s", b.MetricLabel, b.ComparisonLabel)
	default:
		return b.Title
	}
}

// estimateTextWidth approximates rendered width: an average glyph is about
// 0.6 of the font size.
func estimateTextWidth(text string, fontSize int) int {
	return int(float64(utf8.RuneCountInString(text)) * float64(fontSize) * 0.6)
}

// fitText shortens text with an ellipsis until it fits maxWidth pixels.
// Text too long for even one character plus the ellipsis becomes empty.
func fitText(text string, maxWidth, fontSize int) string {
	if estimateTextWidth(text, fontSize) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		cut := strings.TrimRight(string(runes[:n]), " ") + "…"
		if estimateTextWidth(cut, fontSize) <= maxWidth {
			return cut
		}
	}
	return ""
}

// escapeXML escapes special XML characters in a string to ensure valid SVG output.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
