package configuring

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ucibridge/infrastructure/PAL/bridge_configuration"
)

// step is one wizard question. An empty answer takes the default; validate
// runs on the effective value.
type step struct {
	prompt   string
	def      string
	validate func(string) error
}

type model struct {
	steps     []step
	index     int
	input     textinput.Model
	answers   []string
	errText   string
	cancelled bool
}

func newModel(steps []step) *model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = steps[0].def
	input.Focus()
	input.CharLimit = 256
	input.Width = 48

	return &model{
		steps:   steps,
		input:   input,
		answers: make([]string, 0, len(steps)),
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				value = m.steps[m.index].def
			}
			if validate := m.steps[m.index].validate; validate != nil {
				if validateErr := validate(value); validateErr != nil {
					m.errText = validateErr.Error()
					return m, nil
				}
			}
			m.errText = ""
			m.answers = append(m.answers, value)
			m.index++
			if m.index >= len(m.steps) {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.input.Placeholder = m.steps[m.index].def
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	if m.index >= len(m.steps) || m.cancelled {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Chess UCI Bridge setup (%d/%d)\n\n", m.index+1, len(m.steps))
	fmt.Fprintf(&b, "%s\n%s\n", m.steps[m.index].prompt, m.input.View())
	if m.errText != "" {
		fmt.Fprintf(&b, "\n%s\n", m.errText)
	}
	b.WriteString("\n(enter accepts, empty answer takes the default, esc aborts)\n")
	return b.String()
}

// Wizard collects a minimal working configuration interactively and persists
// it through the configuration manager.
type Wizard struct {
	manager bridge_configuration.BridgeConfigurationManager
}

func NewWizard(manager bridge_configuration.BridgeConfigurationManager) *Wizard {
	return &Wizard{manager: manager}
}

func (w *Wizard) Run() error {
	steps := []step{
		{prompt: "Listen address", def: "0.0.0.0"},
		{prompt: "Engine executable path", validate: validateExecutable},
		{prompt: "Engine name (empty derives from the file name)", def: ""},
		{prompt: "Engine port", def: "9999", validate: validatePort},
		{prompt: "Maximum concurrent connections", def: "5", validate: validatePositive},
		{prompt: "Trusted subnet (empty disables the trust filter)", def: "", validate: validateOptionalCIDR},
		{prompt: "Auth token (empty generates one)", def: ""},
	}

	m := newModel(steps)
	finished, runErr := tea.NewProgram(m).Run()
	if runErr != nil {
		return fmt.Errorf("setup wizard failed: %w", runErr)
	}
	result, ok := finished.(*model)
	if !ok || result.cancelled || len(result.answers) < len(steps) {
		return fmt.Errorf("setup aborted")
	}

	return w.apply(result.answers)
}

func (w *Wizard) apply(answers []string) error {
	host, enginePath, engineName := answers[0], answers[1], answers[2]
	if engineName == "" {
		base := filepath.Base(enginePath)
		engineName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	port, _ := strconv.Atoi(answers[3])
	maxConnections, _ := strconv.Atoi(answers[4])
	subnet := answers[5]
	token := answers[6]
	if token == "" {
		generated, tokenErr := GenerateToken()
		if tokenErr != nil {
			return tokenErr
		}
		token = generated
	}

	cfg := bridge_configuration.NewDefaultConfiguration()
	cfg.Host = host
	cfg.Engines = map[string]bridge_configuration.EngineDetails{
		engineName: {Path: enginePath, Port: port},
	}
	cfg.MaxConnections = maxConnections
	cfg.TrustedSources = []string{}
	cfg.TrustedSubnets = []string{}
	cfg.AuthToken = token
	if subnet != "" {
		cfg.TrustedSubnets = []string{subnet}
	} else {
		cfg.EnableTrustedSources = false
	}

	if writeErr := w.manager.Write(*cfg); writeErr != nil {
		return fmt.Errorf("failed to persist configuration: %w", writeErr)
	}

	fmt.Printf("Configuration written. Engine %q on %s:%d, auth token %s\n",
		engineName, host, port, token)
	return nil
}

// GenerateToken returns a cryptographically random 64-hex-character secret.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, randErr := rand.Read(buf); randErr != nil {
		return "", fmt.Errorf("failed to generate token: %w", randErr)
	}
	return hex.EncodeToString(buf), nil
}

func validateExecutable(value string) error {
	info, statErr := os.Stat(value)
	if statErr != nil {
		return fmt.Errorf("path does not exist: %s", value)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory: %s", value)
	}
	return nil
}

func validatePort(value string) error {
	port, parseErr := strconv.Atoi(value)
	if parseErr != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be an integer in 1..65535")
	}
	return nil
}

func validatePositive(value string) error {
	n, parseErr := strconv.Atoi(value)
	if parseErr != nil || n < 1 {
		return fmt.Errorf("value must be a positive integer")
	}
	return nil
}

func validateOptionalCIDR(value string) error {
	if value == "" {
		return nil
	}
	if _, parseErr := netip.ParsePrefix(value); parseErr != nil {
		return fmt.Errorf("not a valid CIDR network: %s", value)
	}
	return nil
}
