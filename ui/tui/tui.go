// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package tui is the interactive job dashboard. It shows the tracked batch
// jobs in a table, refreshes their state periodically and supports
// cancelling jobs and copying job ids to the clipboard.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/hpc"
	"github.com/voxaero/meshpilot/internal/i18n"
	"github.com/voxaero/meshpilot/internal/model"
)

var (
	colorSubtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	colorHighlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	colorWhite     = lipgloss.Color("#FFFFFF")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorHighlight).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
)

const refreshInterval = 15 * time.Second

type tickMsg time.Time

type jobsMsg struct {
	jobs []model.Job
	err  error
}

type actionMsg struct {
	text string
	err  error
}

type dashboardModel struct {
	table  table.Model
	jobs   []model.Job
	status string
	err    error
	busy   bool
	height int
}

func newDashboardModel() dashboardModel {
	columns := []table.Column{
		{Title: "ID", Width: 12},
		{Title: "NAME", Width: 24},
		{Title: "PROFILE", Width: 14},
		{Title: "STATUS", Width: 11},
		{Title: "SUBMITTED", Width: 17},
		{Title: "DURATION", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorSubtle).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(colorWhite).
		Background(colorHighlight).
		Bold(false)
	t.SetStyles(s)

	return dashboardModel{table: t}
}

func loadJobs() tea.Msg {
	jobs, err := db.GetAllJobs()
	return jobsMsg{jobs: jobs, err: err}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// cancelJob connects to the job's cluster and cancels it.
func cancelJob(job model.Job) tea.Cmd {
	return func() tea.Msg {
		profile, err := db.GetProfile(job.ProfileName)
		if err != nil {
			return actionMsg{err: err}
		}
		conn, err := hpc.Connect(*profile, "")
		if err != nil {
			return actionMsg{err: err}
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := conn.Cancel(ctx, job.SchedulerID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: i18n.T("hpc.cancelled", job.SchedulerID)}
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(loadJobs, tick())
}

func (m dashboardModel) selectedJob() (model.Job, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.jobs) {
		return model.Job{}, false
	}
	return m.jobs[i], true
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		if msg.Height > 8 {
			m.table.SetHeight(msg.Height - 6)
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(loadJobs, tick())

	case jobsMsg:
		m.err = msg.err
		if msg.err == nil {
			m.jobs = msg.jobs
			m.rebuildRows()
		}
		return m, nil

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = msg.text
		return m, loadJobs

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, loadJobs
		case "c":
			if job, ok := m.selectedJob(); ok && !job.Status.Terminal() && !m.busy {
				m.busy = true
				return m, cancelJob(job)
			}
			return m, nil
		case "y":
			if job, ok := m.selectedJob(); ok {
				if err := clipboard.WriteAll(job.SchedulerID); err != nil {
					m.err = err
				} else {
					m.status = i18n.T("tui.copied")
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *dashboardModel) rebuildRows() {
	rows := make([]table.Row, 0, len(m.jobs))
	for _, j := range m.jobs {
		rows = append(rows, table.Row{
			j.SchedulerID,
			j.Name,
			j.ProfileName,
			string(j.Status),
			j.SubmitTime.Format("2006-01-02 15:04"),
			j.Duration,
		})
	}
	m.table.SetRows(rows)
}

func (m dashboardModel) View() string {
	title := titleStyle.Render(i18n.T("tui.title"))

	help := statusStyle.Render(fmt.Sprintf("q: %s  r: %s  c: %s  y: %s",
		i18n.T("tui.help_quit"),
		i18n.T("tui.help_refresh"),
		i18n.T("tui.help_cancel"),
		i18n.T("tui.help_copy"),
	))

	footer := help
	if m.status != "" {
		footer = statusStyle.Render(m.status) + "\n" + help
	}
	if m.err != nil {
		footer = errStyle.Render(m.err.Error()) + "\n" + help
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, m.table.View(), footer)
}

// Run starts the dashboard and blocks until the user quits.
func Run() {
	p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("dashboard error: %v\n", err)
	}
}
