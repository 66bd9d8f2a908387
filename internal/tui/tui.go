// Package tui implements the interactive registry browser. It is a
// three-screen bubbletea program: repository list, tag list, and tag
// detail, with all registry traffic going through the shared Explorer.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/rex"
	"github.com/meigma/rex/fetch"
	"github.com/meigma/rex/internal/format"
)

type screen int

const (
	screenRepos screen = iota
	screenTags
	screenDetail
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(12)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().Padding(1, 2)
)

// Run starts the interactive browser and blocks until the user quits
// or ctx is canceled.
func Run(ctx context.Context, explorer *rex.Explorer, registry string) error {
	m := newModel(ctx, explorer, registry)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

type reposMsg struct {
	items    []fetch.RepositoryItem
	failures []fetch.Failure
}

type tagsMsg struct {
	repository string
	infos      []fetch.TagInfo
	failures   []fetch.Failure
}

type detailMsg struct {
	info   fetch.TagInfo
	config *ocispec.Image
}

type errMsg struct {
	err error
}

type repoItem struct {
	item fetch.RepositoryItem
}

func (i repoItem) Title() string { return i.item.Name }
func (i repoItem) Description() string {
	return fmt.Sprintf("%d tags", i.item.TagCount)
}
func (i repoItem) FilterValue() string { return i.item.Name }

type tagItem struct {
	info fetch.TagInfo
}

func (i tagItem) Title() string { return i.info.Tag }
func (i tagItem) Description() string {
	parts := []string{
		format.ShortDigest(i.info.Digest),
		format.Bytes(i.info.Size),
	}
	if len(i.info.Platforms) > 0 {
		parts = append(parts, format.Platforms(i.info.Platforms))
	}
	return strings.Join(parts, "  ")
}
func (i tagItem) FilterValue() string { return i.info.Tag }

type model struct {
	ctx      context.Context
	explorer *rex.Explorer
	registry string

	screen  screen
	repos   list.Model
	tags    list.Model
	spin    spinner.Model
	loading bool
	status  string

	repository string
	detail     *fetch.TagInfo
	config     *ocispec.Image

	width  int
	height int
}

func newModel(ctx context.Context, explorer *rex.Explorer, registry string) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	repos := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	repos.Title = registry
	repos.SetShowStatusBar(false)

	tags := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	tags.SetShowStatusBar(false)

	return model{
		ctx:      ctx,
		explorer: explorer,
		registry: registry,
		repos:    repos,
		tags:     tags,
		spin:     sp,
		loading:  true,
	}
}

// Init implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.loadRepos())
}

// Update implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.repos.SetSize(msg.Width, msg.Height-2)
		m.tags.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case tea.KeyMsg:
		// Don't intercept keys while the list filter input is active.
		if m.screen == screenRepos && m.repos.FilterState() == list.Filtering {
			break
		}
		if m.screen == screenTags && m.tags.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			return m.back()
		case "enter":
			return m.forward()
		case "r":
			return m.refresh()
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case reposMsg:
		m.loading = false
		m.status = failureStatus(msg.failures)
		items := make([]list.Item, 0, len(msg.items))
		for _, it := range msg.items {
			items = append(items, repoItem{item: it})
		}
		return m, m.repos.SetItems(items)

	case tagsMsg:
		m.loading = false
		m.status = failureStatus(msg.failures)
		m.tags.Title = m.registry + "/" + msg.repository
		items := make([]list.Item, 0, len(msg.infos))
		for _, info := range msg.infos {
			items = append(items, tagItem{info: info})
		}
		return m, m.tags.SetItems(items)

	case detailMsg:
		m.loading = false
		info := msg.info
		m.detail = &info
		m.config = msg.config
		m.screen = screenDetail
		return m, nil

	case errMsg:
		m.loading = false
		m.status = errorStyle.Render(msg.err.Error())
		return m, nil
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenRepos:
		m.repos, cmd = m.repos.Update(msg)
	case screenTags:
		m.tags, cmd = m.tags.Update(msg)
	case screenDetail:
	}
	return m, cmd
}

// View implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) View() string {
	var body string
	switch m.screen {
	case screenRepos:
		body = m.repos.View()
	case screenTags:
		body = m.tags.View()
	case screenDetail:
		body = m.detailView()
	}

	footer := statusStyle.Render("enter: open  esc: back  r: refresh  q: quit")
	if m.loading {
		footer = m.spin.View() + " fetching..."
	} else if m.status != "" {
		footer = m.status
	}
	return body + "\n" + footer
}

func (m model) detailView() string {
	if m.detail == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.registry+"/"+m.detail.Repository+":"+m.detail.Tag) + "\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("Digest", m.detail.Digest.String())
	row("Media type", m.detail.MediaType)
	row("Size", format.Bytes(m.detail.Size))
	if len(m.detail.Platforms) > 0 {
		row("Platforms", format.Platforms(m.detail.Platforms))
	}
	row("Created", format.Age(m.detail.Created))
	if m.config != nil {
		if m.config.Author != "" {
			row("Author", m.config.Author)
		}
		if len(m.config.Config.Entrypoint) > 0 {
			row("Entrypoint", strings.Join(m.config.Config.Entrypoint, " "))
		}
		if len(m.config.Config.Cmd) > 0 {
			row("Cmd", strings.Join(m.config.Config.Cmd, " "))
		}
		if m.config.Created != nil {
			row("Built", m.config.Created.UTC().Format(time.RFC3339))
		}
	}
	return detailStyle.Render(b.String())
}

func (m model) back() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenDetail:
		m.screen = screenTags
	case screenTags:
		m.screen = screenRepos
	case screenRepos:
		return m, tea.Quit
	}
	m.status = ""
	return m, nil
}

func (m model) forward() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenRepos:
		item, ok := m.repos.SelectedItem().(repoItem)
		if !ok {
			return m, nil
		}
		m.repository = item.item.Name
		m.screen = screenTags
		m.loading = true
		m.status = ""
		return m, tea.Batch(m.spin.Tick, m.loadTags(m.repository))
	case screenTags:
		item, ok := m.tags.SelectedItem().(tagItem)
		if !ok {
			return m, nil
		}
		m.loading = true
		m.status = ""
		return m, tea.Batch(m.spin.Tick, m.loadDetail(item.info))
	case screenDetail:
	}
	return m, nil
}

func (m model) refresh() (tea.Model, tea.Cmd) {
	m.loading = true
	m.status = ""
	switch m.screen {
	case screenTags, screenDetail:
		m.screen = screenTags
		return m, tea.Batch(m.spin.Tick, m.loadTags(m.repository))
	default:
		return m, tea.Batch(m.spin.Tick, m.loadRepos())
	}
}

func (m model) loadRepos() tea.Cmd {
	return func() tea.Msg {
		items, failures, err := m.explorer.FetchRepositories(m.ctx, m.registry)
		if err != nil {
			return errMsg{err: err}
		}
		return reposMsg{items: items, failures: failures}
	}
}

func (m model) loadTags(repository string) tea.Cmd {
	return func() tea.Msg {
		infos, failures, err := m.explorer.FetchAllTags(m.ctx, m.registry, repository)
		if err != nil {
			return errMsg{err: err}
		}
		return tagsMsg{repository: repository, infos: infos, failures: failures}
	}
}

func (m model) loadDetail(info fetch.TagInfo) tea.Cmd {
	return func() tea.Msg {
		ref := m.registry + "/" + info.Repository + ":" + info.Tag
		cfg, err := m.explorer.Config(m.ctx, ref, "")
		if err != nil {
			// Details still render without a config.
			return detailMsg{info: info}
		}
		return detailMsg{info: info, config: &cfg}
	}
}

func failureStatus(failures []fetch.Failure) string {
	if len(failures) == 0 {
		return ""
	}
	return errorStyle.Render(fmt.Sprintf("%d fetch(es) failed", len(failures)))
}
