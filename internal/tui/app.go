package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dm/gridmon/internal/engine"
	"github.com/dm/gridmon/internal/model"
)

// Reader is the pull side of the snapshot store.
type Reader interface {
	Snapshot() (*model.ClusterSnapshot, bool)
	CacheNames() []model.CacheNameInfo
}

// staleFactor is how many poll intervals may pass without a new snapshot
// before the header reports the view as stale.
const staleFactor = 3

// App is the root Bubble Tea model for the watch dashboard. It never talks
// to the cluster; it re-reads the store on every tick.
type App struct {
	reader       Reader
	pollInterval time.Duration
	target       string

	current  *model.ClusterSnapshot
	baseline *model.ClusterSnapshot
	rates    map[string]float64
	caches   []model.CacheNameInfo
	history  *model.SparklineHistory
	lastGen  uint64

	now func() time.Time

	// Layout
	width, height int

	// UI state
	showHelp    bool
	clusterOnly bool
	page        int
}

// NewApp creates an App reading from r every interval. target describes
// the monitored cluster in the header.
func NewApp(r Reader, interval time.Duration, target string) *App {
	return &App{
		reader:       r,
		pollInterval: interval,
		target:       target,
		history:      model.NewSparklineHistory(0),
		now:          time.Now,
	}
}

// Init implements tea.Model. Reads the store immediately on launch.
func (app *App) Init() tea.Cmd {
	return readCmd(app.reader, true)
}

// Update implements tea.Model.
func (app *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		app.width = msg.Width
		app.height = msg.Height
		app.clampPage()

	case SnapshotMsg:
		app.caches = msg.Caches
		if msg.Snapshot != nil && msg.Snapshot.Generation != app.lastGen {
			app.current = msg.Snapshot
			app.lastGen = msg.Snapshot.Generation
			// The baseline only moves once a rate could be computed, so
			// sub-second refresh rates still compare snapshots far enough apart.
			if app.baseline == nil {
				app.baseline = msg.Snapshot
			} else if rates := engine.CalcCacheRates(app.baseline, msg.Snapshot); rates != nil {
				app.rates = rates
				app.baseline = msg.Snapshot
			}
			app.history.Push(model.PointFromSnapshot(msg.Snapshot, len(msg.Caches)))
		}
		app.clampPage()
		if msg.Scheduled {
			return app, tickCmd(app.pollInterval)
		}

	case TickMsg:
		return app, readCmd(app.reader, true)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return app, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return app, readCmd(app.reader, false)
		case key.Matches(msg, keys.Help):
			app.showHelp = !app.showHelp
		case key.Matches(msg, keys.ClusterOnly):
			app.clusterOnly = !app.clusterOnly
			app.page = 0
		case key.Matches(msg, keys.NextPage):
			app.page++
			app.clampPage()
		case key.Matches(msg, keys.PrevPage):
			if app.page > 0 {
				app.page--
			}
		}
	}

	return app, nil
}

// View implements tea.Model. Renders the full TUI.
func (app *App) View() string {
	var parts []string

	if h := renderHeader(app); h != "" {
		parts = append(parts, h)
	}
	if o := renderOverview(app); o != "" {
		parts = append(parts, o)
	}
	if t := renderCacheTable(app); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, renderFooter(app))

	return strings.Join(parts, "\n")
}

// stale reports whether the displayed snapshot is older than staleFactor
// poll intervals, which happens when no node has answered for a while.
func (app *App) stale() bool {
	if app.current == nil || app.pollInterval <= 0 {
		return false
	}
	return app.now().Sub(app.current.GeneratedAt) > staleFactor*app.pollInterval
}

// visibleCaches returns the caches the table shows, honouring the
// cluster-wide filter.
func (app *App) visibleCaches() []model.CacheNameInfo {
	if !app.clusterOnly {
		return app.caches
	}
	out := make([]model.CacheNameInfo, 0, len(app.caches))
	for _, c := range app.caches {
		if c.ClusterWide {
			out = append(out, c)
		}
	}
	return out
}

func (app *App) pageSize() int {
	// header, overview (3 lines), spacer, table header and footer
	const chrome = 7
	if app.height <= chrome {
		return 10
	}
	return app.height - chrome
}

func (app *App) pageCount() int {
	n := len(app.visibleCaches())
	size := app.pageSize()
	if n == 0 {
		return 1
	}
	return (n + size - 1) / size
}

func (app *App) clampPage() {
	if last := app.pageCount() - 1; app.page > last {
		app.page = last
	}
}

// tickCmd schedules the next read after duration d.
func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// readCmd reads the store. Scheduled reads re-arm the tick; manual
// refreshes do not, so only one tick chain is ever live.
func readCmd(r Reader, scheduled bool) tea.Cmd {
	return func() tea.Msg {
		msg := SnapshotMsg{Scheduled: scheduled}
		if r == nil {
			return msg
		}
		if snap, ok := r.Snapshot(); ok {
			msg.Snapshot = snap
		}
		msg.Caches = r.CacheNames()
		return msg
	}
}
