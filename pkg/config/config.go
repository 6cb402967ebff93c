// Package config parses a textual config index into an in-memory
// graph/curve table: a line-oriented format whose keys are either bare
// (global directory settings) or hierarchical, naming a
// domain/host/graph/curve quadruple. Once Parse returns, the result is
// read-only and safe to share across rendering workers.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Curve is one data-source column of a Graph. draw/type/label/info/cdef/
// negative are free-form strings the rendering pipeline interprets;
// thresholds are pointers so "unset" is distinguishable from "zero".
type Curve struct {
	Name string

	Label    string
	Draw     string
	Color    uint32
	HasColor bool
	NoGraph  bool
	Type     string
	Info     string
	CDef     string
	Negative string
	Max      *float64
	Min      *float64
	Warning  *float64
	Critical *float64
}

// Graph is one (domain, host, name) entry of the config index, holding
// its curves in declaration order plus presentation options.
type Graph struct {
	Domain, Host, Name string

	NoGraph     bool
	Base        int
	Precision   int
	LowerLimit  *float64
	UpperLimit  *float64
	Logarithmic bool
	VLabel      string
	Title       string
	Order       string
	Category    string
	Info        string
	NoScale     bool
	Height      int
	Width       int
	Period      string
	Total       string

	Curves     []*Curve
	curveIndex map[string]int
}

func (g *Graph) curve(name string) *Curve {
	if g.curveIndex == nil {
		g.curveIndex = make(map[string]int)
	}
	if i, ok := g.curveIndex[name]; ok {
		return g.Curves[i]
	}
	c := &Curve{Name: name}
	g.curveIndex[name] = len(g.Curves)
	g.Curves = append(g.Curves, c)
	return c
}

// Index is the frozen, in-memory result of parsing a config index: the
// global directory defaults and every graph it declared, in first-seen
// order.
type Index struct {
	TmplDir, HtmlDir, DbDir, RunDir, LogDir string

	Graphs     []*Graph
	graphIndex map[string]int
}

func (idx *Index) graph(domain, host, name string) *Graph {
	if idx.graphIndex == nil {
		idx.graphIndex = make(map[string]int)
	}
	key := domain + "\x00" + host + "\x00" + name
	if i, ok := idx.graphIndex[key]; ok {
		return idx.Graphs[i]
	}
	g := &Graph{Domain: domain, Host: host, Name: name}
	idx.graphIndex[key] = len(idx.Graphs)
	idx.Graphs = append(idx.Graphs, g)
	return g
}

// ParseError reports a fatal config-index syntax error at a specific
// line.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Parse reads a textual config index. The first non-blank line must
// declare "version MAJOR.MINOR.PATCH"; only 1.2 and 1.3 are accepted.
// A key line missing its separator is a fatal *ParseError; an
// unrecognized key is ignored and logged at debug level.
func Parse(r io.Reader, path string) (*Index, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	hostTerm, graphTerm, err := readVersionLine(scanner, path)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		TmplDir: "/etc/munin/templates",
		HtmlDir: "/var/www/munin",
		DbDir:   "/var/lib/munin",
		RunDir:  "/var/run/munin",
		LogDir:  "/var/log/munin",
	}

	lineno := 1
	for scanner.Scan() {
		lineno++
		trimmed := strings.TrimLeft(strings.TrimRight(scanner.Text(), "\r"), " \t")
		if trimmed == "" {
			continue
		}

		sp := strings.IndexByte(trimmed, ' ')
		if sp < 0 {
			return nil, &ParseError{Path: path, Line: lineno, Msg: "did not find a SPACE character"}
		}
		key := trimmed[:sp]
		value := strings.TrimLeft(trimmed[sp+1:], " \t")

		if err := applyLine(idx, key, value, hostTerm, graphTerm, path, lineno); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	return idx, nil
}

func readVersionLine(scanner *bufio.Scanner, path string) (hostTerm, graphTerm byte, err error) {
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 || fields[0] != "version" {
			return 0, 0, &ParseError{Path: path, Line: line, Msg: "expected 'version MAJOR.MINOR.PATCH'"}
		}
		ver := fields[1]
		if parts := strings.SplitN(ver, ".", 3); len(parts) >= 2 {
			ver = parts[0] + "." + parts[1]
		}
		switch ver {
		case "1.2":
			return ':', '.', nil
		case "1.3":
			return ';', ';', nil
		default:
			return 0, 0, &ParseError{Path: path, Line: line, Msg: fmt.Sprintf("unsupported datafile version %q", fields[1])}
		}
	}
	return 0, 0, &ParseError{Path: path, Line: 1, Msg: "empty config index"}
}

func applyLine(idx *Index, key, value string, hostTerm, graphTerm byte, path string, lineno int) error {
	if semi := strings.IndexByte(key, ';'); semi >= 0 {
		domain := key[:semi]
		rest := key[semi+1:]

		hostEnd := strings.IndexByte(rest, hostTerm)
		if hostEnd < 0 {
			return &ParseError{Path: path, Line: lineno, Msg: fmt.Sprintf("did not find a %q character after host name", string(hostTerm))}
		}
		host := rest[:hostEnd]
		graphPart := rest[hostEnd+1:]

		switch graphPart {
		case "use_node_name", "address":
			return nil
		}

		lastSep := strings.LastIndexByte(graphPart, graphTerm)
		if lastSep < 0 {
			logrus.WithFields(logrus.Fields{"path": path, "line": lineno, "key": graphPart}).Debug("skipping host key with no graph separator")
			return nil
		}
		graphName := graphPart[:lastSep]
		graphKey := graphPart[lastSep+1:]

		var curveName string
		if !strings.HasPrefix(graphKey, "graph_") {
			if sep := strings.LastIndexByte(graphName, graphTerm); sep >= 0 {
				curveName = graphName[sep+1:]
				graphName = graphName[:sep]
			}
		}

		g := idx.graph(domain, host, graphName)
		if curveName != "" {
			return applyCurveKey(g.curve(curveName), graphKey, value, path, lineno)
		}
		return applyGraphKey(g, graphKey, value, path, lineno)
	}

	switch key {
	case "tmpldir":
		idx.TmplDir = value
	case "htmldir":
		idx.HtmlDir = value
	case "dbdir":
		idx.DbDir = value
	case "rundir":
		idx.RunDir = value
	case "logdir":
		idx.LogDir = value
	default:
		logrus.WithFields(logrus.Fields{"path": path, "line": lineno, "key": key}).Debug("skipping unknown global key")
	}
	return nil
}
