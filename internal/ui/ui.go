// Package ui implements the interactive dashboard front end. It renders the
// profile table and wires user actions to the store and the tunnel
// controller; controller actions run on background tea commands so blocking
// confirms and the download worker never stall the event loop.
package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cftunnel/internal/appconfig"
	"cftunnel/internal/model"
	"cftunnel/internal/profile"
	"cftunnel/internal/tunnel"
	"cftunnel/internal/util"
)

type tickMsg time.Time

// pumpMsg drives the fast poll of messenger notes, questions, and download
// progress while a controller action is in flight.
type pumpMsg time.Time

// actionDoneMsg reports completion of a background controller action.
type actionDoneMsg struct {
	err error
}

// confirmState is a modal yes/no overlay. Exactly one of reply (a question
// raised by a background action) or onYes (a dashboard-local action) is set.
type confirmState struct {
	title   string
	message string
	reply   chan bool
	onYes   func(m *dashboard) (tea.Model, tea.Cmd)
}

// controller is the slice of the tunnel controller the dashboard drives.
type controller interface {
	Start(i int) error
	Stop(i int) error
	StopAll() error
}

type dashboard struct {
	store *profile.Store
	ctrl  controller
	msgr  *messenger
	cfg   appconfig.Config

	profiles []model.Profile
	sel      int
	status   string
	width    int
	height   int

	form    *profileForm
	confirm *confirmState

	busy        bool
	quitting    bool
	downloading bool
	bar         progress.Model
}

// Run starts the dashboard and blocks until the user quits.
func Run() error {
	cfg, err := appconfig.Load()
	if err != nil {
		cfg = appconfig.Default()
	}
	path, err := appconfig.ProfileFilePath()
	if err != nil {
		return err
	}
	store := profile.NewStore(path)
	msgr := newMessenger()
	if err := store.Load(); err != nil {
		msgr.Error("Config", err.Error())
	}
	ctrl, err := tunnel.NewController(store, msgr, cfg)
	if err != nil {
		return err
	}
	ctrl.SetProgress(msgr.setProgress)

	m := &dashboard{
		store:    store,
		ctrl:     ctrl,
		msgr:     msgr,
		cfg:      cfg,
		profiles: store.All(),
		status:   "Ready. Enter starts or stops the selected tunnel.",
		bar:      progress.New(progress.WithDefaultGradient()),
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func tickCmd(seconds int) tea.Cmd {
	if seconds <= 0 {
		seconds = 2
	}
	return tea.Tick(time.Duration(seconds)*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func pumpCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return pumpMsg(t) })
}

func (m *dashboard) Init() tea.Cmd {
	return tickCmd(m.cfg.UI.RefreshSeconds)
}

func (m *dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.poll()
		return m, tickCmd(m.cfg.UI.RefreshSeconds)
	case pumpMsg:
		m.poll()
		if m.busy {
			return m, pumpCmd()
		}
		return m, nil
	case actionDoneMsg:
		m.busy = false
		m.downloading = false
		m.msgr.resetProgress()
		m.poll()
		m.profiles = m.store.All()
		m.clampSel()
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		}
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

// poll drains messenger notes, promotes a pending question to the confirm
// overlay, and refreshes download progress state.
func (m *dashboard) poll() {
	for _, note := range m.msgr.drainNotes() {
		m.status = note
	}
	if a := m.msgr.takeAsk(); a != nil {
		m.confirm = &confirmState{title: a.title, message: a.message, reply: a.reply}
	}
	if _, _, seen := m.msgr.progress(); seen {
		m.downloading = true
	}
}

func (m *dashboard) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		return m.updateConfirm(msg)
	}
	if m.form != nil {
		return m.updateForm(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		return m.requestQuit()
	case "up", "k":
		if m.sel > 0 {
			m.sel--
		}
		return m, nil
	case "down", "j":
		if m.sel < len(m.profiles)-1 {
			m.sel++
		}
		return m, nil
	case "a":
		if m.busy {
			return m, nil
		}
		m.form = newProfileForm(-1, model.Profile{})
		return m, nil
	case "e":
		if m.busy || len(m.profiles) == 0 {
			return m, nil
		}
		m.form = newProfileForm(m.sel, m.profiles[m.sel])
		return m, nil
	case "d":
		if m.busy || len(m.profiles) == 0 {
			return m, nil
		}
		name := m.profiles[m.sel].Name
		m.confirm = &confirmState{
			title:   "Delete",
			message: fmt.Sprintf("Delete tunnel %s?", name),
			onYes: func(m *dashboard) (tea.Model, tea.Cmd) {
				return m.runAction("deleting "+name+"...", m.deleteCmd(m.sel))
			},
		}
		return m, nil
	case "r":
		if err := m.store.Load(); err != nil {
			m.status = "error: " + err.Error()
		}
		m.profiles = m.store.All()
		m.clampSel()
		return m, nil
	case "enter":
		if m.busy || len(m.profiles) == 0 {
			return m, nil
		}
		p := m.profiles[m.sel]
		if p.Running() {
			return m.runAction("stopping "+p.Name+"...", m.stopCmd(m.sel))
		}
		return m.runAction("starting "+p.Name+"...", m.startCmd(m.sel))
	}
	return m, nil
}

func (m *dashboard) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.confirm
	switch msg.String() {
	case "y", "Y":
		m.confirm = nil
		if c.reply != nil {
			c.reply <- true
			return m, nil
		}
		return c.onYes(m)
	case "n", "N", "esc":
		m.confirm = nil
		if c.reply != nil {
			c.reply <- false
		}
		return m, nil
	}
	return m, nil
}

func (m *dashboard) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.form = nil
		return m, nil
	}
	res, cmd := m.form.update(msg)
	if res == nil {
		return m, cmd
	}

	var err error
	if res.editIdx >= 0 {
		err = m.store.Update(res.editIdx, res.profile)
	} else {
		err = m.store.Add(res.profile)
	}
	if err != nil {
		m.form.errMsg = err.Error()
		return m, nil
	}
	m.form = nil
	if err := m.store.Save(); err != nil {
		m.status = "error: " + err.Error()
	} else {
		m.status = "saved " + res.profile.Name
	}
	m.profiles = m.store.All()
	m.clampSel()
	return m, nil
}

func (m *dashboard) requestQuit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	anyRunning := false
	for _, p := range m.profiles {
		if p.Running() {
			anyRunning = true
			break
		}
	}
	if !anyRunning {
		return m, tea.Quit
	}
	m.confirm = &confirmState{
		title:   "Quit",
		message: "Quit and stop all running tunnels?",
		onYes: func(m *dashboard) (tea.Model, tea.Cmd) {
			m.quitting = true
			return m.runAction("stopping all tunnels...", m.stopAllCmd())
		},
	}
	return m, nil
}

// runAction marks the dashboard busy and dispatches one controller action
// alongside the fast poll. Actions are serialized: keys that would start
// another one are ignored while busy.
func (m *dashboard) runAction(status string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = status
	return m, tea.Batch(cmd, pumpCmd())
}

func (m *dashboard) startCmd(i int) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.ctrl.Start(i)}
	}
}

func (m *dashboard) stopCmd(i int) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.ctrl.Stop(i)}
	}
}

func (m *dashboard) stopAllCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.ctrl.StopAll()}
	}
}

func (m *dashboard) deleteCmd(i int) tea.Cmd {
	return func() tea.Msg {
		p, err := m.store.Get(i)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		if p.Running() {
			if err := m.ctrl.Stop(i); err != nil {
				// The profile is removed regardless; the process may need a
				// manual kill.
				m.msgr.Error("Tunnel", "stop before delete failed: "+err.Error())
			}
		}
		if err := m.store.Remove(i); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{err: m.store.Save()}
	}
}

func (m *dashboard) clampSel() {
	if m.sel >= len(m.profiles) {
		m.sel = len(m.profiles) - 1
	}
	if m.sel < 0 {
		m.sel = 0
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stoppedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (m *dashboard) View() string {
	out := titleStyle.Render("cftunnel") + "\n\n"
	out += m.tableView() + "\n"

	if m.downloading {
		out += m.downloadView() + "\n"
	}
	if m.form != nil {
		out += renderPanel(m.form.title(), m.form.view()) + "\n"
	}
	if m.confirm != nil {
		body := m.confirm.message + "\n\ny = yes, n = no"
		out += renderPanel(m.confirm.title, body) + "\n"
	}

	out += statusStyle.Render(m.status) + "\n"
	out += helpStyle.Render("enter start/stop | a add | e edit | d delete | r reload | q quit")
	return out
}

func (m *dashboard) tableView() string {
	header := fmt.Sprintf("%-20s %-9s %-30s %-11s %-9s %s", "NAME", "PROTOCOL", "HOSTNAME", "LOCAL PORT", "STATUS", "PID")
	out := headerStyle.Render(header) + "\n"
	if len(m.profiles) == 0 {
		return out + helpStyle.Render("  no tunnel profiles; press a to add one") + "\n"
	}
	for i, p := range m.profiles {
		pid := ""
		if p.Running() {
			pid = strconv.Itoa(p.ProcessPID)
		}
		row := fmt.Sprintf("%-20s %-9s %-30s %-11d %-9s %s", p.Name, p.Protocol, p.Hostname, p.LocalPort, p.Status(), util.EmptyDash(pid))
		style := stoppedStyle
		if p.Running() {
			style = runningStyle
		}
		if i == m.sel {
			style = selectedStyle
		}
		out += style.Render(row) + "\n"
	}
	return out
}

func (m *dashboard) downloadView() string {
	downloaded, total, _ := m.msgr.progress()
	if total > 0 {
		percent := float64(downloaded) / float64(total)
		if percent > 1 {
			percent = 1
		}
		return fmt.Sprintf("downloading cloudflared  %s  %d/%d KB", m.bar.ViewAs(percent), downloaded/1024, total/1024)
	}
	return fmt.Sprintf("downloading cloudflared  %d KB (total size unknown)", downloaded/1024)
}

func renderPanel(title, body string) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("214")).
		Padding(0, 1)
	return style.Render(titleStyle.Render(title) + "\n\n" + body)
}
