// Package adminui implements the interactive allow-list TUI using Bubble Tea.
package adminui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/adminapi"
)

// state represents the current screen in the admin UI.
type state int

const (
	stateLogin state = iota
	stateUsers
	stateNewUser
)

// Model holds all UI state for the allow-list TUI.
type Model struct {
	client *adminapi.Client
	addr   string

	st  state
	err string

	pass textinput.Model

	users   []adminapi.User
	userLst list.Model

	newEmail   textinput.Model
	newName    textinput.Model
	newIsAdmin bool
}

// New constructs a UI model and initializes inputs and lists.
func New(client *adminapi.Client, addr string) Model {
	pass := textinput.New()
	pass.Placeholder = "Operator passcode"
	pass.EchoMode = textinput.EchoPassword
	pass.Focus()
	pass.Prompt = "Passcode: "

	lst := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	lst.Title = "Allowed users"

	m := Model{client: client, st: stateLogin, pass: pass, userLst: lst}
	m.addr = redactAddr(addr)

	m.newEmail = textinput.New()
	m.newEmail.Placeholder = "user@umich.edu"
	m.newEmail.Prompt = "Email: "
	m.newName = textinput.New()
	m.newName.Placeholder = "optional"
	m.newName.Prompt = "Name: "

	return m
}

// Init returns the initial command for the Bubble Tea runtime.
func (m Model) Init() tea.Cmd {
	return nil
}

type errMsg string
type usersMsg []adminapi.User
type okMsg struct{}

// Update routes messages based on UI state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.userLst.SetSize(msg.Width-4, msg.Height-8)
		return m, nil
	case errMsg:
		m.err = string(msg)
		return m, nil
	case usersMsg:
		m.users = []adminapi.User(msg)
		items := make([]list.Item, 0, len(m.users))
		for _, u := range m.users {
			items = append(items, userItem(u))
		}
		m.userLst.SetItems(items)
		m.err = ""
		return m, nil
	case okMsg:
		m.err = ""
		if m.st == stateLogin {
			m.st = stateUsers
			return m, refreshUsersCmd(m.client)
		}
		return m, nil
	}

	switch m.st {
	case stateLogin:
		var cmd tea.Cmd
		m.pass, cmd = m.pass.Update(msg)
		if k, ok := msg.(tea.KeyMsg); ok {
			switch k.String() {
			case "enter":
				pw := m.pass.Value()
				m.pass.SetValue("")
				return m, tea.Batch(cmd, loginCmd(m.client, pw))
			case "ctrl+c", "q":
				return m, tea.Quit
			}
		}
		return m, cmd

	case stateUsers:
		var cmd tea.Cmd
		m.userLst, cmd = m.userLst.Update(msg)
		if k, ok := msg.(tea.KeyMsg); ok {
			switch k.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "r":
				return m, refreshUsersCmd(m.client)
			case "n":
				m.st = stateNewUser
				m.err = ""
				m.newEmail.SetValue("")
				m.newName.SetValue("")
				m.newIsAdmin = false
				m.newEmail.Focus()
				return m, nil
			case "a":
				u, ok := m.selectedUser()
				if !ok {
					return m, nil
				}
				return m, setAdminCmd(m.client, u.Email, !u.IsAdmin)
			case "d":
				u, ok := m.selectedUser()
				if !ok {
					return m, nil
				}
				return m, removeUserCmd(m.client, u.Email)
			}
		}
		return m, cmd

	case stateNewUser:
		return m.updateNewUser(msg)
	default:
		return m, nil
	}
}

// View renders the current screen as a string.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString("Dacroq admin")
	if m.addr != "" {
		b.WriteString(" (" + m.addr + ")")
	}
	b.WriteString("\n\n")

	switch m.st {
	case stateLogin:
		b.WriteString("Login\n")
		b.WriteString(m.pass.View())
		b.WriteString("\n\n")
		b.WriteString("Enter to login. q to quit.\n")
	case stateUsers:
		b.WriteString(m.userLst.View())
		b.WriteString("\n")
		b.WriteString("Keys: n=new a=toggle-admin d=delete r=refresh q=quit\n")
	case stateNewUser:
		b.WriteString("Add user\n\n")
		b.WriteString(m.newEmail.View() + "\n")
		b.WriteString(m.newName.View() + "\n")
		b.WriteString(fmt.Sprintf("Admin: %v (toggle with alt+a)\n\n", m.newIsAdmin))
		b.WriteString("Enter=save  esc=back\n")
	}

	if m.err != "" {
		b.WriteString("\nError: " + m.err + "\n")
	}

	return b.String()
}

type userItem adminapi.User

func (u userItem) Title() string { return u.Email }
func (u userItem) Description() string {
	role := "user"
	if u.IsAdmin {
		role = "admin"
	}
	desc := role
	if u.Name != "" {
		desc = u.Name + " " + role
	}
	if u.LastLogin != "" {
		desc += " last login " + u.LastLogin
	}
	return desc
}
func (u userItem) FilterValue() string { return u.Email }

// selectedUser returns the currently highlighted user list entry.
func (m *Model) selectedUser() (adminapi.User, bool) {
	if m.userLst.SelectedItem() == nil {
		return adminapi.User{}, false
	}
	if it, ok := m.userLst.SelectedItem().(userItem); ok {
		return adminapi.User(it), true
	}
	return adminapi.User{}, false
}

func loginCmd(c *adminapi.Client, passcode string) tea.Cmd {
	return func() tea.Msg {
		if err := c.Login(passcode); err != nil {
			return errMsg(err.Error())
		}
		return okMsg{}
	}
}

func refreshUsersCmd(c *adminapi.Client) tea.Cmd {
	return func() tea.Msg {
		users, err := c.ListUsers()
		if err != nil {
			return errMsg(err.Error())
		}
		return usersMsg(users)
	}
}

func addUserCmd(c *adminapi.Client, email, name string, isAdmin bool) tea.Cmd {
	return func() tea.Msg {
		users, err := c.AddUser(email, name, isAdmin)
		if err != nil {
			return errMsg(err.Error())
		}
		return usersMsg(users)
	}
}

func setAdminCmd(c *adminapi.Client, email string, isAdmin bool) tea.Cmd {
	return func() tea.Msg {
		users, err := c.SetAdmin(email, isAdmin)
		if err != nil {
			return errMsg(err.Error())
		}
		return usersMsg(users)
	}
}

func removeUserCmd(c *adminapi.Client, email string) tea.Cmd {
	return func() tea.Msg {
		users, err := c.RemoveUser(email)
		if err != nil {
			return errMsg(err.Error())
		}
		return usersMsg(users)
	}
}

// updateNewUser handles input while adding an allow-list entry.
func (m Model) updateNewUser(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.st = stateUsers
			return m, refreshUsersCmd(m.client)
		case "alt+a":
			m.newIsAdmin = !m.newIsAdmin
			return m, nil
		case "enter":
			email := strings.TrimSpace(m.newEmail.Value())
			name := strings.TrimSpace(m.newName.Value())
			m.st = stateUsers
			return m, addUserCmd(m.client, email, name, m.newIsAdmin)
		}
	}

	// Focus order: email -> name
	var cmd tea.Cmd
	if m.newEmail.Focused() {
		m.newEmail, cmd = m.newEmail.Update(msg)
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "tab" {
			m.newEmail.Blur()
			m.newName.Focus()
		}
		return m, cmd
	}
	m.newName, cmd = m.newName.Update(msg)
	return m, cmd
}

func redactAddr(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.Scheme + "://" + u.Host
}

// RequireInsecureByDefault reports whether the addr targets localhost,
// where a self-signed TLS setup is the norm.
func RequireInsecureByDefault(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
