package config

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

func applyGraphKey(g *Graph, key, value, path string, lineno int) error {
	switch key {
	case "graph":
		g.NoGraph = strings.EqualFold(value, "no")
	case "graph_args":
		parseGraphArgs(g, value)
	case "graph_vlabel":
		g.VLabel = value
	case "graph_title":
		g.Title = value
	case "graph_order":
		g.Order = value
	case "graph_category":
		g.Category = value
	case "graph_info":
		g.Info = value
	case "graph_scale":
		g.NoScale = strings.EqualFold(value, "no")
	case "graph_height":
		g.Height = atoiOr(value, g.Height)
	case "graph_width":
		g.Width = atoiOr(value, g.Width)
	case "graph_period":
		g.Period = value
	case "graph_total":
		g.Total = value
	case "graph_data_size":
		// schema sizing hint only; nothing to store.
	default:
		logrus.WithFields(logrus.Fields{"path": path, "line": lineno, "key": key}).Debug("skipping unknown graph key")
	}
	return nil
}

func applyCurveKey(c *Curve, key, value, path string, lineno int) error {
	switch key {
	case "label":
		c.Label = value
	case "draw":
		c.Draw = value
	case "color", "colour":
		if v, err := strconv.ParseUint(value, 16, 32); err == nil {
			c.Color = uint32(v)
			c.HasColor = true
		}
	case "graph":
		c.NoGraph = strings.EqualFold(value, "no")
	case "skipdraw":
		if v, err := strconv.ParseInt(value, 0, 64); err == nil && v != 0 {
			c.NoGraph = true
		}
	case "type":
		c.Type = value
	case "info":
		c.Info = value
	case "cdef":
		c.CDef = value
	case "negative":
		c.Negative = value
	case "max":
		c.Max = parseFloatPtr(value)
	case "min":
		c.Min = parseFloatPtr(value)
	case "warning", "warn":
		c.Warning = parseFloatPtr(value)
	case "critical":
		c.Critical = parseFloatPtr(value)
	case "update_rate":
		// accepted for compatibility, unused by the rendering pipeline.
	default:
		logrus.WithFields(logrus.Fields{"path": path, "line": lineno, "key": key}).Debug("skipping unknown data source key")
	}
	return nil
}

// parseGraphArgs tokenizes graph_args the way the CLI flag set it
// mimics would: --base, -l, --lower-limit, --upper-limit,
// --vertical-label each consume the following token as their argument;
// --logarithmic takes none.
func parseGraphArgs(g *Graph, value string) {
	fields := strings.Fields(value)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "--base":
			if i+1 < len(fields) {
				i++
				g.Base = atoiOr(fields[i], g.Base)
			}
		case "-l":
			if i+1 < len(fields) {
				i++
				g.Precision = atoiOr(fields[i], g.Precision)
			}
		case "--lower-limit":
			if i+1 < len(fields) {
				i++
				g.LowerLimit = parseFloatPtr(fields[i])
			}
		case "--upper-limit":
			if i+1 < len(fields) {
				i++
				g.UpperLimit = parseFloatPtr(fields[i])
			}
		case "--vertical-label":
			if i+1 < len(fields) {
				i++
				g.VLabel = fields[i]
			}
		case "--logarithmic":
			g.Logarithmic = true
		}
	}
}

func atoiOr(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloatPtr(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
