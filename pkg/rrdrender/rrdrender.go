// Package rrdrender is the per-graph rendering pipeline: it resolves
// archive paths from the config-index table, builds aligned sample
// columns across every curve of a graph, hands them to the planner for
// axis/legend statistics, then drives the rasterizer and PNG sink.
package rrdrender

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kylerisse/rrdrender/pkg/archive"
	"github.com/kylerisse/rrdrender/pkg/canvas"
	"github.com/kylerisse/rrdrender/pkg/cdef"
	"github.com/kylerisse/rrdrender/pkg/config"
	"github.com/kylerisse/rrdrender/pkg/plan"
	"github.com/kylerisse/rrdrender/pkg/pngsink"
	"github.com/kylerisse/rrdrender/pkg/raster"
)

// Interval is one of the four render widths this pipeline always
// produces for a graph.
type Interval struct {
	Suffix  string
	Seconds int
}

// Intervals is the fixed day/week/month/year render schedule.
var Intervals = []Interval{
	{Suffix: "day", Seconds: 300},
	{Suffix: "week", Seconds: 1800},
	{Suffix: "month", Seconds: 7200},
	{Suffix: "year", Seconds: 86400},
}

const (
	defaultWidth  = 400
	defaultHeight = 175
	maxDimension  = 2048
)

// Renderer is the frozen, read-only context every worker shares: the
// parsed config index and the database/output directory roots. Nothing
// in Renderer is mutated after New returns, so it is safe to call
// RenderGraph concurrently from many goroutines.
type Renderer struct {
	Index   *config.Index
	DBDir   string
	HTMLDir string
	NoLazy  bool
	Logger  *logrus.Logger
}

// New builds a Renderer from a parsed config index. DBDir/HTMLDir
// default to the index's own DbDir/HtmlDir when empty.
func New(idx *config.Index, logger *logrus.Logger, noLazy bool) *Renderer {
	return &Renderer{
		Index:   idx,
		DBDir:   idx.DbDir,
		HTMLDir: idx.HtmlDir,
		NoLazy:  noLazy,
		Logger:  logger,
	}
}

// curveSuffix maps a data-source type to its one-letter RRA filename
// suffix. An unrecognized type is an error that fails the whole interval
// being loaded; RenderGraph logs it and goes on, so it does not stop the
// run or reach the scheduler.
func curveSuffix(dsType string) (byte, error) {
	switch dsType {
	case "gauge":
		return 'g', nil
	case "derive":
		return 'd', nil
	case "counter":
		return 'c', nil
	case "absolute":
		return 'a', nil
	default:
		return 0, fmt.Errorf("rrdrender: unknown curve type %q", dsType)
	}
}

func archivePath(dbdir, domain, host, graph, curve string, suffix byte) string {
	return filepath.Join(dbdir, domain, fmt.Sprintf("%s-%s-%s-%c.rrd", host, graph, curve, suffix))
}

// outputPath mangles a graph name the way the reference renderer's
// on-disk layout does: dots become dashes so a graph name can't be
// mistaken for a path segment.
func outputPath(htmldir, domain, host, graphName, intervalSuffix string) string {
	mangled := strings.ReplaceAll(graphName, ".", "-")
	return filepath.Join(htmldir, domain, fmt.Sprintf("%s-%s-%s.png", host, mangled, intervalSuffix))
}

// curveEntry is one loaded (or CDEF-only) curve ready for planning.
type curveEntry struct {
	cfg    *config.Curve
	avg    *archive.Iterator
	min    *archive.Iterator
	max    *archive.Iterator
	lastUp int64
	arch   *archive.Archive // closed by renderInterval once drawing is done

	style    plan.DrawStyle
	color    uint32
	negative *curveEntry // resolved negative-mirror reference
}

// RenderGraph runs the full pipeline for one graph across all four
// intervals. Errors found before rendering starts (dimensions out of
// bounds, an unknown graph_order entry) are returned so the scheduler can
// log them and move on to the next job. An error while rendering one
// interval is logged and does not stop the remaining intervals; it is
// not returned.
func (r *Renderer) RenderGraph(g *config.Graph) error {
	if g.NoGraph {
		return nil
	}

	width := g.Width
	if width == 0 {
		width = defaultWidth
	}
	height := g.Height
	if height == 0 {
		height = defaultHeight
	}
	if width > maxDimension || height > maxDimension {
		return fmt.Errorf("rrdrender: graph %s/%s/%s dimensions %dx%d exceed %d", g.Domain, g.Host, g.Name, width, height, maxDimension)
	}

	order, err := orderedCurves(g)
	if err != nil {
		return err
	}

	for _, interval := range Intervals {
		if err := r.renderInterval(g, order, width, height, interval); err != nil {
			r.Logger.WithFields(logrus.Fields{
				"domain": g.Domain, "host": g.Host, "graph": g.Name, "interval": interval.Suffix,
			}).Errorf("render failed: %v", err)
		}
	}
	return nil
}

// orderedCurves returns the graph's visible curves (graph=="no" or
// skipdraw excluded) in rendering order: the graph_order string if one
// was set, else alphabetical by curve name, per §3's "insertion-order
// preserved before sorting, then sorted by order string if present,
// else by curve name".
func orderedCurves(g *config.Graph) ([]*config.Curve, error) {
	visible := make([]*config.Curve, 0, len(g.Curves))
	for _, c := range g.Curves {
		if !c.NoGraph {
			visible = append(visible, c)
		}
	}

	if g.Order == "" {
		sort.Slice(visible, func(i, j int) bool { return visible[i].Name < visible[j].Name })
		return visible, nil
	}

	byName := make(map[string]*config.Curve, len(visible))
	for _, c := range visible {
		byName[c.Name] = c
	}

	ordered := make([]*config.Curve, 0, len(visible))
	seen := make(map[string]bool, len(visible))
	for _, name := range strings.Fields(g.Order) {
		name = strings.TrimSuffix(name, ";")
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("rrdrender: graph_order references unknown curve %q", name)
		}
		ordered = append(ordered, c)
		seen[name] = true
	}
	for _, c := range visible {
		if !seen[c.Name] {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

func drawStyleOf(draw string) plan.DrawStyle {
	switch strings.ToLower(draw) {
	case "area":
		return plan.Area
	case "stack":
		return plan.Stack
	case "areastack":
		return plan.AreaStack
	default:
		return plan.Line
	}
}

func lineWidthOf(draw string) int {
	switch strings.ToLower(draw) {
	case "line2":
		return 2
	case "line3":
		return 3
	default:
		return 1
	}
}

// loadCurves resolves every curve's archive path for one interval — the
// graph's full curve set, not just the visible ones, since a
// negative-mirror reference commonly names a curve that is itself
// hidden (skipdraw) and exists only to be mirrored beneath another
// curve's line. It loads the AVERAGE/MIN/MAX iterators a non-CDEF curve
// needs directly and leaves CDEF curves' iterators nil until
// compileCDEFs fills them in. A missing archive silently drops the
// curve unless it has a CDEF; a corrupt archive drops it with a debug
// diagnostic.
func (r *Renderer) loadCurves(g *config.Graph, interval Interval) ([]*curveEntry, error) {
	entries := make([]*curveEntry, 0, len(g.Curves))
	byName := make(map[string]*curveEntry, len(g.Curves))

	for _, c := range g.Curves {
		entry := &curveEntry{
			cfg:   c,
			style: drawStyleOf(c.Draw),
		}

		if c.CDef == "" {
			suffix, err := curveSuffix(c.Type)
			if err != nil {
				return nil, err
			}
			path := archivePath(r.DBDir, g.Domain, g.Host, g.Name, c.Name, suffix)
			a, err := archive.Parse(path)
			if err == archive.Missing {
				continue
			}
			if err != nil {
				r.Logger.WithFields(logrus.Fields{"path": path}).Debugf("skipping corrupt archive: %v", err)
				continue
			}
			avgIt, err := a.Iter("AVERAGE", interval.Seconds, 0)
			if err != nil {
				a.Close()
				r.Logger.WithFields(logrus.Fields{"path": path}).Debugf("skipping curve: %v", err)
				continue
			}
			minIt, errMin := a.Iter("MIN", interval.Seconds, 0)
			maxIt, errMax := a.Iter("MAX", interval.Seconds, 0)
			if errMin != nil {
				minIt = avgIt
			}
			if errMax != nil {
				maxIt = avgIt
			}
			entry.avg, entry.min, entry.max = avgIt, minIt, maxIt
			entry.lastUp = a.LastUp
			entry.arch = a
		}

		entries = append(entries, entry)
		byName[c.Name] = entry
	}

	for _, entry := range entries {
		if entry.cfg.Negative == "" {
			continue
		}
		neg, ok := byName[entry.cfg.Negative]
		if !ok {
			closeArchives(entries)
			return nil, fmt.Errorf("rrdrender: curve %q negative-mirror references unknown curve %q", entry.cfg.Name, entry.cfg.Negative)
		}
		entry.negative = neg
	}

	return entries, nil
}

func closeArchives(entries []*curveEntry) {
	for _, e := range entries {
		if e.arch != nil {
			e.arch.Close()
		}
	}
}

// compileCDEFs compiles and evaluates every CDEF-bearing curve's
// derived AVERAGE/MIN/MAX iterators, one consolidation-function slot at
// a time so a reference resolves to the matching track of every other
// curve. A compile error drops only that curve.
func compileCDEFs(entries []*curveEntry) {
	byName := make(map[string]*curveEntry, len(entries))
	for _, e := range entries {
		byName[e.cfg.Name] = e
	}
	curveExists := func(name string) bool {
		_, ok := byName[name]
		return ok
	}

	for _, e := range entries {
		if e.cfg.CDef == "" {
			continue
		}
		script, err := cdef.Compile(e.cfg.CDef, curveExists)
		if err != nil {
			e.avg, e.min, e.max = nil, nil, nil
			continue
		}
		e.avg = buildSlot(script, e.cfg.Name, byName, func(c *curveEntry) *archive.Iterator { return c.avg })
		e.min = buildSlot(script, e.cfg.Name, byName, func(c *curveEntry) *archive.Iterator { return c.min })
		e.max = buildSlot(script, e.cfg.Name, byName, func(c *curveEntry) *archive.Iterator { return c.max })
	}
}

func buildSlot(script *cdef.Script, selfName string, byName map[string]*curveEntry, pick func(*curveEntry) *archive.Iterator) *archive.Iterator {
	refs := make(map[string]*archive.Iterator, len(byName))
	for name, e := range byName {
		refs[name] = pick(e)
	}
	return cdef.BuildDerivedIterator(script, selfName, refs)
}

// sampleColumn reads width samples from it, right-aligned to it's own
// newest end: column width-1 is it's most recent sample. A curve with
// fewer rows than width is left-padded with NaN rather than having its
// history stretched, the same newest-end alignment BuildDerivedIterator
// uses to reconcile curves of different lengths.
func sampleColumn(it *archive.Iterator, width int) []float64 {
	out := make([]float64, width)
	for i := range out {
		out[i] = math.NaN()
	}
	if it == nil {
		return out
	}
	available := it.Count() - it.Cursor()
	pad := width - available
	if pad < 0 {
		pad = 0
	}
	first := it.Count() - (width - pad)
	for col := pad; col < width; col++ {
		row := first + (col - pad)
		if row < 0 || row >= it.Count() {
			continue
		}
		out[col] = it.PeekIndex(row)
	}
	return out
}

type plannedCurve struct {
	entry  *curveEntry
	avgCol []float64
	minCol []float64
	maxCol []float64
	stats  *plan.CurveStats
}

func (r *Renderer) renderInterval(g *config.Graph, order []*config.Curve, width, height int, interval Interval) error {
	entries, err := r.loadCurves(g, interval)
	if err != nil {
		return err
	}
	defer closeArchives(entries)
	if len(entries) == 0 {
		return nil
	}
	compileCDEFs(entries)

	byName := make(map[string]*curveEntry, len(entries))
	for _, e := range entries {
		byName[e.cfg.Name] = e
	}

	out := outputPath(r.HTMLDir, g.Domain, g.Host, g.Name, interval.Suffix)
	lastUpdate := mostRecentUpdate(entries)

	if !r.NoLazy && interval.Seconds > 300 {
		if lazy, err := isLazy(out, lastUpdate, interval.Seconds); err == nil && lazy {
			return nil
		}
	}

	// planned holds only the visible curves, in display order; a hidden
	// negative-mirror target is reached through its curveEntry.negative
	// pointer rather than getting its own row or line.
	planned := make([]*plannedCurve, 0, len(order))
	for _, c := range order {
		e, ok := byName[c.Name]
		if !ok {
			continue
		}
		if e.avg == nil && e.min == nil && e.max == nil {
			continue
		}
		pc := &plannedCurve{
			entry:  e,
			avgCol: sampleColumn(e.avg, width),
			minCol: sampleColumn(e.min, width),
			maxCol: sampleColumn(e.max, width),
			stats:  plan.NewCurveStats(),
		}
		for col := 0; col < width; col++ {
			pc.stats.Accumulate(plan.Sample{Avg: pc.avgCol[col], Min: pc.minCol[col], Max: pc.maxCol[col]})
		}
		pc.stats.Finish()
		planned = append(planned, pc)
	}
	if len(planned) == 0 {
		return nil
	}
	assignColors(planned)

	// A negative-mirror target's stats/sample column are needed even
	// though it has no row of its own: materialize them the same way a
	// visible curve's are, keyed by curveEntry so the draw/legend passes
	// below can look them up regardless of visibility.
	mirrorStats := make(map[*curveEntry]*plannedCurve, len(planned))
	for _, pc := range planned {
		if pc.entry.negative == nil {
			continue
		}
		if _, ok := mirrorStats[pc.entry.negative]; ok {
			continue
		}
		neg := pc.entry.negative
		mp := &plannedCurve{
			entry:  neg,
			avgCol: sampleColumn(neg.avg, width),
			minCol: sampleColumn(neg.min, width),
			maxCol: sampleColumn(neg.max, width),
			stats:  plan.NewCurveStats(),
		}
		for col := 0; col < width; col++ {
			mp.stats.Accumulate(plan.Sample{Avg: mp.avgCol[col], Min: mp.minCol[col], Max: mp.maxCol[col]})
		}
		mp.stats.Finish()
		mirrorStats[neg] = mp
	}
	allByEntry := make(map[*curveEntry]*plannedCurve, len(planned)+len(mirrorStats))
	for _, pc := range planned {
		allByEntry[pc.entry] = pc
	}
	for entry, pc := range mirrorStats {
		allByEntry[entry] = pc
	}

	stackBase := make([]float64, width)
	var stackPeak float64
	inputs := make([]plan.RangeInput, 0, len(planned)*2)
	for _, pc := range planned {
		style := pc.entry.style
		peak := 0.0
		if style.IsAreaLike() {
			for col := 0; col < width; col++ {
				v := pc.avgCol[col]
				if math.IsNaN(v) {
					v = 0
				}
				stackBase[col] += v
				if stackBase[col] > peak {
					peak = stackBase[col]
				}
			}
			if peak > stackPeak {
				stackPeak = peak
			}
		}
		inputs = append(inputs, plan.RangeInput{Stats: *pc.stats, Style: style})
		if pc.entry.negative != nil {
			if neg := allByEntry[pc.entry.negative]; neg != nil {
				inputs = append(inputs, plan.RangeInput{Stats: *neg.stats, Style: style, Negative: true, StackPeak: stackPeak})
			}
		}
	}

	upperLimit := math.NaN()
	if g.UpperLimit != nil {
		upperLimit = *g.UpperLimit
	}
	globalMin, globalMax, mode := plan.GlobalRange(inputs, upperLimit)
	if stackPeak > globalMax {
		globalMax = stackPeak
	}

	c := newCanvas(width, height, len(planned)+totalRows(g))
	drawTitle(c, graphTitle(g, interval))
	plotter := &raster.Plotter{
		Canvas: c, OriginX: plotOriginX, OriginY: plotOriginY,
		Width: width, Height: height, GlobalMin: globalMin, GlobalMax: globalMax,
	}

	drawPass0(plotter, planned, mode, stackBase)

	stepSize := plan.StepSize(globalMax-globalMin, height)
	plotter.DrawGrid(stepSize, g.NoScale, lastUpdate, int64(interval.Seconds))
	for _, pc := range planned {
		if pc.entry.style.IsAreaLike() {
			continue
		}
		plotter.PlotLine(pc.avgCol, canvas32(pc.entry.color), lineWidthOf(pc.entry.cfg.Draw), false)
		if pc.entry.negative != nil {
			if neg := allByEntry[pc.entry.negative]; neg != nil {
				plotter.PlotLine(neg.avgCol, canvas32(pc.entry.color), lineWidthOf(pc.entry.cfg.Draw), true)
			}
		}
	}

	drawLegend(plotter, planned, allByEntry, width, height, g)

	if err := os.MkdirAll(filepath.Dir(out), 0775); err != nil {
		r.Logger.WithFields(logrus.Fields{"path": out}).Errorf("could not create output directory: %v", err)
		return nil
	}
	f, err := os.Create(out)
	if err != nil {
		r.Logger.WithFields(logrus.Fields{"path": out}).Errorf("could not create output file: %v", err)
		return nil
	}
	defer f.Close()
	return pngsink.Encode(f, c)
}

func drawPass0(p *raster.Plotter, planned []*plannedCurve, mode plan.AxisMode, stackBase []float64) {
	base := make([]float64, p.Width)
	for _, pc := range planned {
		col := canvas32(pc.entry.color)
		switch {
		case pc.entry.style.IsAreaLike():
			p.PlotArea(pc.avgCol, base, col)
		case mode == plan.MinMaxMode:
			p.PlotMinMax(pc.minCol, pc.maxCol, col, false)
		}
	}
}

func drawLegend(p *raster.Plotter, planned []*plannedCurve, allByEntry map[*curveEntry]*plannedCurve, width, height int, g *config.Graph) {
	x, y := plotOriginX, plotOriginY+height+28
	const columnWidth = 52
	for _, pc := range planned {
		var hasWarn, hasCrit bool
		var warn, crit float64
		if pc.entry.cfg.Warning != nil {
			warn, hasWarn = *pc.entry.cfg.Warning, true
		}
		if pc.entry.cfg.Critical != nil {
			crit, hasCrit = *pc.entry.cfg.Critical, true
		}
		row := raster.LegendRow{
			Swatch:   canvas32(pc.entry.color),
			Label:    pc.entry.cfg.Label,
			Stats:    *pc.stats,
			RowColor: plan.RowColor(pc.stats.Cur, warn, hasWarn, crit, hasCrit),
		}
		if pc.entry.negative != nil {
			if neg := allByEntry[pc.entry.negative]; neg != nil {
				row.Negative = neg.stats
			}
		}
		p.DrawLegendRow(x, y, columnWidth, row)
		y += 13
	}

	if g.Total == "" {
		return
	}

	// Every visible curve contributes unconditionally; a curve with a
	// resolved negative-mirror reference contributes a second time to a
	// separate negative-track accumulator from its mirror's own stats,
	// so the totals row prints as "neg/pos" rather than silently
	// dropping the mirrored curve's traffic.
	total := zeroedStats()
	var negTotal *plan.CurveStats
	for _, pc := range planned {
		accumulateStats(total, pc.stats)
		if pc.entry.negative == nil {
			continue
		}
		neg := allByEntry[pc.entry.negative]
		if neg == nil {
			continue
		}
		if negTotal == nil {
			negTotal = zeroedStats()
		}
		accumulateStats(negTotal, neg.stats)
	}

	p.DrawLegendRow(x, y, columnWidth, raster.LegendRow{Label: g.Total, Stats: *total, Negative: negTotal})
}

func zeroedStats() *plan.CurveStats {
	s := plan.NewCurveStats()
	s.Cur, s.Min, s.Max, s.Avg = 0, 0, 0, 0
	return s
}

func accumulateStats(dst, src *plan.CurveStats) {
	if !math.IsNaN(src.Cur) {
		dst.Cur += src.Cur
	}
	if !math.IsNaN(src.Min) {
		dst.Min += src.Min
	}
	if !math.IsNaN(src.Max) {
		dst.Max += src.Max
	}
	if !math.IsNaN(src.Avg) {
		dst.Avg += src.Avg
	}
}

func assignColors(planned []*plannedCurve) {
	next := 0
	for _, pc := range planned {
		if pc.entry.cfg.HasColor {
			pc.entry.color = pc.entry.cfg.Color
			continue
		}
		pc.entry.color = plan.DefaultPalette[next%len(plan.DefaultPalette)]
		next++
	}
}

func canvas32(c uint32) canvas.Color { return canvas.Color(c) }

func totalRows(g *config.Graph) int {
	if g.Total == "" {
		return 0
	}
	return 1
}

// graphTitle appends the graph's configured period as a parenthetical
// suffix, e.g. "Disk Stats (per second)"; a graph with no period gets the
// interval label instead, e.g. "Disk Stats - day".
func graphTitle(g *config.Graph, interval Interval) string {
	title := g.Title
	if title == "" {
		title = g.Name
	}
	if g.Period != "" {
		return fmt.Sprintf("%s (%s)", title, g.Period)
	}
	return fmt.Sprintf("%s - %s", title, interval.Suffix)
}

func mostRecentUpdate(entries []*curveEntry) time.Time {
	var latest int64
	for _, e := range entries {
		if e.lastUp > latest {
			latest = e.lastUp
		}
	}
	return time.Unix(latest, 0)
}

// isLazy reports whether out's mtime, divided by intervalSeconds, equals
// lastUpdate's own bucket — meaning nothing has changed since the PNG
// was last written, so this render can be skipped entirely.
func isLazy(out string, lastUpdate time.Time, intervalSeconds int) (bool, error) {
	info, err := os.Stat(out)
	if err != nil {
		return false, err
	}
	mtimeBucket := info.ModTime().Unix() / int64(intervalSeconds)
	updateBucket := lastUpdate.Unix() / int64(intervalSeconds)
	return mtimeBucket == updateBucket, nil
}
