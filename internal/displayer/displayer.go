package displayer

import (
	"context"
	"fmt"
	"time"

	"obdkit/internal/monitor"
	"obdkit/internal/obd"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Displayer renders the live dashboard and trouble codes of a provider.
type Displayer struct {
	app      *tview.Application
	tabs     *tview.Pages
	provider monitor.Provider
	ctx      context.Context
	cancel   context.CancelFunc
	refresh  time.Duration

	// UI elements cached for updates
	statusText   *tview.TextView
	helpText     *tview.TextView
	adapterText  *tview.TextView
	readingTable *tview.Table
	dtcTable     *tview.Table
	messageText  *tview.TextView
}

func New(provider monitor.Provider, refresh time.Duration) *Displayer {
	ctx, cancel := context.WithCancel(context.Background())
	if refresh <= 0 {
		refresh = time.Second
	}
	return &Displayer{
		app:      tview.NewApplication(),
		tabs:     tview.NewPages(),
		provider: provider,
		ctx:      ctx,
		cancel:   cancel,
		refresh:  refresh,
	}
}

func (d *Displayer) Run() error {
	if err := d.provider.Start(d.ctx); err != nil {
		return err
	}

	d.app.SetRoot(d.layout(), true)
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			d.Shutdown()
			return nil
		case '1':
			d.tabs.SwitchToPage("dashboard")
			return nil
		case '2':
			d.tabs.SwitchToPage("dtc")
			return nil
		case 'c', 'C':
			go d.clearDTC()
			return nil
		}
		return event
	})

	d.update(d.provider.Snapshot())
	go d.refreshLoop()

	return d.app.Run()
}

// layout builds the widgets: a header that stays visible, the pages and
// a message line.
func (d *Displayer) layout() tview.Primitive {
	title := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText("obdkit - OBD-II adapter console")
	d.statusText = tview.NewTextView().SetTextAlign(tview.AlignCenter).SetDynamicColors(true)
	d.helpText = tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText("[1 - Dashboard] [2 - DTC] [c - Clear DTC] [q - Quit]")

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	headerFlex.AddItem(title, 1, 0, false)
	headerFlex.AddItem(d.statusText, 1, 0, false)
	headerFlex.AddItem(d.helpText, 1, 0, false)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	mainFlex.AddItem(headerFlex, 3, 0, false)

	d.tabs.AddPage("dashboard", d.buildDashboard(), true, true)
	d.tabs.AddPage("dtc", d.buildDTC(), true, false)
	mainFlex.AddItem(d.tabs, 0, 1, true)

	d.messageText = tview.NewTextView().SetDynamicColors(true)
	mainFlex.AddItem(d.messageText, 1, 0, false)

	return mainFlex
}

func (d *Displayer) Shutdown() {
	d.cancel()
	d.provider.Stop()
	d.app.Stop()
}

func (d *Displayer) buildDashboard() *tview.Flex {
	d.adapterText = tview.NewTextView().SetDynamicColors(true)
	d.readingTable = tview.NewTable().SetBorders(true)

	flex := tview.NewFlex().SetDirection(tview.FlexRow)
	flex.AddItem(d.adapterText, 2, 0, false)
	flex.AddItem(d.readingTable, 0, 1, false)
	return flex
}

func (d *Displayer) buildDTC() *tview.Table {
	d.dtcTable = tview.NewTable().SetBorders(true)
	return d.dtcTable
}

func header(tbl *tview.Table, names ...string) {
	tbl.Clear()
	for i, n := range names {
		tbl.SetCell(0, i, tview.NewTableCell(n).SetSelectable(false).SetAlign(tview.AlignCenter))
	}
}

func (d *Displayer) clearDTC() {
	ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
	defer cancel()
	msg := "[green]trouble codes cleared[white]"
	if err := d.provider.ClearDTC(ctx); err != nil {
		msg = fmt.Sprintf("[red]clear failed: %v[white]", err)
	}
	snap := d.provider.Snapshot()
	d.app.QueueUpdateDraw(func() {
		d.messageText.SetText(msg)
		d.update(snap)
	})
}

func (d *Displayer) update(s monitor.Snapshot) {
	status := "[red]disconnected[white]"
	switch s.State {
	case obd.StateConnected:
		status = "[green]connected[white]"
	case obd.StateConnecting:
		status = "[yellow]connecting[white]"
	}
	d.statusText.SetText(fmt.Sprintf("Status: %s", status))

	mil := "off"
	if s.MIL {
		mil = "[red]ON[white]"
	}
	d.adapterText.SetText(fmt.Sprintf("Adapter v%d.%d  Battery: %.1f V  MIL: %s  Errors: %d",
		s.Version/10, s.Version%10, s.Voltage, mil, s.Errors))

	header(d.readingTable, "PID", "Name", "Value", "Unit")
	for i, r := range s.Readings {
		d.readingTable.SetCell(i+1, 0, tview.NewTableCell(fmt.Sprintf("%02X", r.PID)))
		d.readingTable.SetCell(i+1, 1, tview.NewTableCell(r.Name))
		d.readingTable.SetCell(i+1, 2, tview.NewTableCell(r.Text()).SetAlign(tview.AlignRight))
		d.readingTable.SetCell(i+1, 3, tview.NewTableCell(r.Unit))
	}

	header(d.dtcTable, "Code", "Description")
	for i, e := range s.DTCs {
		d.dtcTable.SetCell(i+1, 0, tview.NewTableCell(e.Code))
		d.dtcTable.SetCell(i+1, 1, tview.NewTableCell(e.Description))
	}
}

func (d *Displayer) refreshLoop() {
	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			snap := d.provider.Snapshot()
			d.app.QueueUpdateDraw(func() { d.update(snap) })
		}
	}
}
