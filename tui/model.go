package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second to update the expiry countdown.
type tickMsg time.Time

// state represents the current phase of the session flow.
type state int

const (
	stateInit       state = iota
	stateRefreshing       // exchanging the refresh token
	stateLoggingIn        // credentials submitted
	stateProfile          // confirming the principal
	stateCalling          // resource call in flight
	stateSuccess          // all done
	stateError            // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the session TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	app       string
	email     string
	callPath  string
	summary   Summary
	expiresAt time.Time
	remaining time.Duration
	errMsg    string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles, defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	stylePrincipalBox = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("228")).
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("228")).
				Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.remaining = max(time.Until(m.expiresAt), 0)
		if m.remaining > 0 {
			return m, tickAfterSecond()
		}
		return m, nil

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── Session flow messages ────────────────────────────────────────────────

	case MsgBanner:
		m.app = msg.App
		return m, nil

	case MsgSessionRestored:
		m.summary = msg.Summary
		m.addStatus(statusOK, "Found existing session for "+displayName(msg.Summary))
		return m, nil

	case MsgSessionMissing:
		m.addStatus(statusInfo, "No existing session, logging in")
		return m, nil

	case MsgTokenExpired:
		m.addStatus(statusWarn, "Access token expired")
		m.state = stateRefreshing
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		m.addStatus(statusInfo, "Refreshing access token...")
		return m, nil

	case MsgRefreshOK:
		m.addStatus(statusOK, "Token refreshed successfully")
		return m, nil

	case MsgRefreshFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed: %v", msg.Err))
		return m, nil

	case MsgLoggingIn:
		m.email = msg.Email
		m.state = stateLoggingIn
		return m, nil

	case MsgLoginOK:
		m.summary = msg.Summary
		m.state = stateProfile
		m.addStatus(statusOK, "Logged in as "+displayName(msg.Summary)+" (unverified)")
		return m, nil

	case MsgProfileConfirmed:
		m.summary = msg.Summary
		m.addStatus(statusOK, "Profile confirmed")
		return m, nil

	case MsgProfileFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Profile fetch failed: %v", msg.Err))
		return m, nil

	case MsgSessionSaved:
		m.addStatus(statusOK, "Session saved to "+msg.Path)
		return m, nil

	case MsgCallingAPI:
		m.callPath = msg.Path
		m.state = stateCalling
		return m, nil

	case MsgAPICallOK:
		m.addStatus(statusOK, "API call to "+msg.Path+" successful")
		return m, nil

	case MsgAPICallFailed:
		m.addStatus(statusWarn, fmt.Sprintf("API call failed: %v", msg.Err))
		return m, nil

	case MsgAccessTokenRejected:
		m.addStatus(statusWarn, "Access token rejected (401), refreshing...")
		return m, nil

	case MsgTokenRefreshedRetrying:
		m.addStatus(statusOK, "Token refreshed, retried API call")
		return m, nil

	case MsgReAuthRequired:
		m.addStatus(statusWarn, "Session expired, re-authenticating...")
		return m, nil

	case MsgLoggedOut:
		if msg.Err != nil {
			m.addStatus(statusWarn, fmt.Sprintf("Server logout failed: %v", msg.Err))
		}
		m.addStatus(statusOK, "Logged out, local session cleared")
		return m, nil

	case MsgDone:
		m.summary = msg.Summary
		m.expiresAt = time.Now().Add(msg.Summary.ExpiresIn)
		m.remaining = msg.Summary.ExpiresIn
		m.state = stateSuccess
		if m.remaining > 0 {
			return m, tickAfterSecond()
		}
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown while the flow is in progress.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  " + m.title() + "  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing access token...\n")

	case stateLoggingIn:
		b.WriteString(m.spinner.View())
		b.WriteString(" Logging in as " + m.email + "...\n")

	case stateProfile:
		b.WriteString(m.spinner.View())
		b.WriteString(" Confirming profile...\n")

	case stateCalling:
		b.WriteString(m.spinner.View())
		b.WriteString(" Calling " + m.callPath + "...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Restoring session...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown once the flow completes.
func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ Session ready"))
	b.WriteString("\n\n")

	b.WriteString(stylePrincipalBox.Render("  " + displayName(m.summary) + "  "))
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("ID:           "))
	b.WriteString(m.summary.ID + "\n")

	b.WriteString(styleBold.Render("Status:       "))
	b.WriteString(m.summary.Status + "\n")

	if m.summary.Role != "" {
		b.WriteString(styleBold.Render("Role:         "))
		b.WriteString(m.summary.Role + "\n")
	}

	b.WriteString(styleBold.Render("Verified:     "))
	if m.summary.Confirmed {
		b.WriteString(styleOK.Render("yes") + "\n")
	} else {
		b.WriteString(styleWarn.Render("no (from token claims)") + "\n")
	}

	b.WriteString(styleBold.Render("Access Token: "))
	b.WriteString(m.summary.TokenPreview + "...\n")

	b.WriteString(styleBold.Render("Expires In:   "))
	b.WriteString(formatDuration(m.remaining) + "\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Session failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) title() string {
	if m.app == "" {
		return "Portal Session"
	}
	return "Portal Session · " + m.app
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// tickAfterSecond returns a command that fires tickMsg after one second.
func tickAfterSecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
