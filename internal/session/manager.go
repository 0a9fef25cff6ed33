// Package session owns the lifecycle of the two engine fronts: connection
// state, login, automatic re-login after a drop, and the identity captured at
// login time (front/session IDs, trading day, starting order ref).
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"terminal-core/internal/errs"
	"terminal-core/internal/events"
	"terminal-core/pkg/config"
	"terminal-core/pkg/ctp"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/log"
)

// State is the session lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateLoggingIn
	StateLoggedIn
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateLoggingIn:
		return "logging_in"
	case StateLoggedIn:
		return "logged_in"
	case StateError:
		return "error"
	}
	return "unknown"
}

// maxBackoff caps the reconnect delay regardless of attempt count.
const maxBackoff = 60 * time.Second

type loginAttempt struct {
	done chan error
}

// Manager drives both fronts through the session state machine. Callback
// handlers (HandleFrontConnected and friends) are invoked by the gateway
// dispatcher on the engine callback thread and must stay fast.
type Manager struct {
	mu  sync.Mutex
	cfg *config.Config
	md  ctp.MarketAPI
	td  ctp.TraderAPI
	bus *events.Bus

	state       State
	started     bool
	mdUp, tdUp  bool
	mdIn, tdIn  bool
	connectedCh chan struct{}

	creds       ctp.ReqUserLogin
	haveCreds   bool
	autoRelogin bool
	attempt     *loginAttempt

	frontID     int
	sessionID   int
	tradingDay  string
	maxOrderRef string

	onRelogin func()
}

// NewManager wires a session manager over the two front APIs.
func NewManager(cfg *config.Config, md ctp.MarketAPI, td ctp.TraderAPI, bus *events.Bus) *Manager {
	return &Manager{
		cfg:         cfg,
		md:          md,
		td:          td,
		bus:         bus,
		state:       StateDisconnected,
		connectedCh: make(chan struct{}),
	}
}

// SetReloginHook installs a callback run after a successful automatic
// re-login, used to replay market-data subscriptions.
func (m *Manager) SetReloginHook(fn func()) {
	m.mu.Lock()
	m.onRelogin = fn
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsLoggedIn reports whether both fronts completed login.
func (m *Manager) IsLoggedIn() bool { return m.State() == StateLoggedIn }

// TradingDay returns the trading day captured at login.
func (m *Manager) TradingDay() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tradingDay
}

// Identity returns the front and session IDs captured at login.
func (m *Manager) Identity() (frontID, sessionID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frontID, m.sessionID
}

// MaxOrderRef returns the engine's starting order ref for this session.
func (m *Manager) MaxOrderRef() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxOrderRef
}

// Connect registers the fronts and blocks until both report connected or ctx
// expires. Calling it again while connected returns immediately.
func (m *Manager) Connect(ctx context.Context) error {
	if m.cfg.MdFrontAddr == "" || m.cfg.TraderFrontAddr == "" {
		return errs.New(errs.KindConfig, "%s", i18n.T("config.missing_front"))
	}

	m.mu.Lock()
	if !m.started {
		m.started = true
		m.state = StateConnecting
		m.md.RegisterFront(m.cfg.MdFrontAddr)
		m.td.RegisterFront(m.cfg.TraderFrontAddr)
		m.md.Init()
		m.td.Init()
	}
	ch := m.connectedCh
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.KindTimeout, ctx.Err(), "%s", i18n.T("session.connect_timeout"))
	}
}

// ConnectWithRetry calls Connect with the configured per-attempt timeout and
// retries on failure with capped exponential backoff. onRetry, when set, is
// told about each scheduled retry.
func (m *Manager) ConnectWithRetry(ctx context.Context, onRetry func(attempt int, wait time.Duration)) error {
	base := m.cfg.ReconnectInterval()
	for attempt := 0; ; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout())
		err := m.Connect(cctx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errs.Wrap(errs.KindTimeout, ctx.Err(), "%s", i18n.T("session.connect_timeout"))
		}
		if attempt >= m.cfg.MaxReconnectAttempts {
			return err
		}
		wait := base << attempt
		if wait > maxBackoff {
			wait = maxBackoff
		}
		if onRetry != nil {
			onRetry(attempt+1, wait)
		}
		log.Warn("connect failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return errs.Wrap(errs.KindTimeout, ctx.Err(), "%s", i18n.T("session.connect_timeout"))
		}
	}
}

// Login authenticates both fronts and blocks until the session reaches
// LoggedIn, a front rejects the login, or ctx expires.
func (m *Manager) Login(ctx context.Context, creds ctp.ReqUserLogin) error {
	m.mu.Lock()
	switch m.state {
	case StateLoggedIn:
		m.mu.Unlock()
		return nil
	case StateConnected:
	default:
		st := m.state
		m.mu.Unlock()
		return errs.New(errs.KindState, "%s", i18n.T("session.not_connected", st.String()))
	}
	m.state = StateLoggingIn
	m.creds = creds
	m.haveCreds = true
	att := &loginAttempt{done: make(chan error, 1)}
	m.attempt = att
	m.mu.Unlock()

	if rc := m.md.ReqUserLogin(&creds); rc != 0 {
		return m.failAttempt(att, errs.New(errs.KindNetwork, "%s", i18n.T("session.request_rejected", rc)))
	}
	if rc := m.td.ReqUserLogin(&creds); rc != 0 {
		return m.failAttempt(att, errs.New(errs.KindNetwork, "%s", i18n.T("session.request_rejected", rc)))
	}

	select {
	case err := <-att.done:
		return err
	case <-ctx.Done():
		return m.failAttempt(att, errs.Wrap(errs.KindTimeout, ctx.Err(), "%s", i18n.T("session.login_timeout")))
	}
}

// failAttempt rolls the state machine back to Connected and resolves the
// pending attempt exactly once.
func (m *Manager) failAttempt(att *loginAttempt, err error) error {
	m.mu.Lock()
	if m.state == StateLoggingIn {
		m.state = StateConnected
	}
	if m.attempt == att {
		m.attempt = nil
	}
	m.mu.Unlock()
	select {
	case att.done <- err:
	default:
	}
	return err
}

// HandleFrontConnected records a front coming up. When both fronts are up the
// session becomes Connected; after an involuntary drop of a logged-in session
// the cached credentials are replayed automatically.
func (m *Manager) HandleFrontConnected(front events.Front) {
	m.mu.Lock()
	switch front {
	case events.FrontMarket:
		m.mdUp = true
	case events.FrontTrader:
		m.tdUp = true
	}
	bothUp := m.mdUp && m.tdUp
	relogin := false
	if bothUp && (m.state == StateConnecting || m.state == StateDisconnected) {
		m.state = StateConnected
		close(m.connectedCh)
		relogin = m.autoRelogin && m.haveCreds
		if relogin {
			m.autoRelogin = false
			m.state = StateLoggingIn
		}
	}
	creds := m.creds
	m.mu.Unlock()

	m.bus.Publish(events.New(events.TypeConnected, events.ConnectionPayload{Front: front}))

	if relogin {
		log.Info("front restored, replaying login")
		go func() {
			if rc := m.md.ReqUserLogin(&creds); rc != 0 {
				log.Error("re-login request rejected", zap.Int("code", rc), zap.String("front", "market"))
			}
			if rc := m.td.ReqUserLogin(&creds); rc != 0 {
				log.Error("re-login request rejected", zap.Int("code", rc), zap.String("front", "trader"))
			}
		}()
	}
}

// HandleFrontDisconnected records a front drop. The engine reconnects on its
// own, so the session moves back to Connecting and waits for the fronts to
// come up again.
func (m *Manager) HandleFrontDisconnected(front events.Front, reason int) {
	m.mu.Lock()
	switch front {
	case events.FrontMarket:
		m.mdUp, m.mdIn = false, false
	case events.FrontTrader:
		m.tdUp, m.tdIn = false, false
	}
	if m.state == StateLoggedIn || m.state == StateLoggingIn {
		m.autoRelogin = true
	}
	if m.state != StateDisconnected {
		m.state = StateConnecting
		m.connectedCh = make(chan struct{})
	}
	m.mu.Unlock()

	log.Warn("front disconnected", zap.String("front", string(front)), zap.Int("reason", reason))
	m.bus.Publish(events.New(events.TypeDisconnected, events.ConnectionPayload{Front: front, Reason: reason}))
}

// HandleLoginResponse processes a front's login answer. The trader front is
// authoritative for session identity.
func (m *Manager) HandleLoginResponse(front events.Front, rsp *ctp.RspUserLogin, info *ctp.RspInfo) {
	if info.Failed() {
		err := errs.FromAPICode(info.ErrorID, ctp.DecodeText(info.ErrorMsg))
		m.mu.Lock()
		att := m.attempt
		m.attempt = nil
		if m.state == StateLoggingIn {
			m.state = StateConnected
		}
		m.mu.Unlock()

		log.Error("login failed", zap.String("front", string(front)), zap.Error(err))
		m.bus.Publish(events.New(events.TypeLoginFailed, events.LoginPayload{
			Front:   front,
			Code:    info.ErrorID,
			Message: err.Error(),
		}))
		if att != nil {
			select {
			case att.done <- err:
			default:
			}
		}
		return
	}

	m.mu.Lock()
	switch front {
	case events.FrontMarket:
		m.mdIn = true
	case events.FrontTrader:
		m.tdIn = true
		if rsp != nil {
			m.frontID = rsp.FrontID
			m.sessionID = rsp.SessionID
			m.tradingDay = rsp.TradingDay
			m.maxOrderRef = rsp.MaxOrderRef
		}
	}
	complete := m.mdIn && m.tdIn
	var att *loginAttempt
	var hook func()
	if complete {
		m.state = StateLoggedIn
		att = m.attempt
		m.attempt = nil
		if att == nil {
			hook = m.onRelogin
		}
	}
	tradingDay, frontID, sessionID := m.tradingDay, m.frontID, m.sessionID
	m.mu.Unlock()

	if !complete {
		return
	}
	log.Info("session logged in",
		zap.String("trading_day", tradingDay),
		zap.Int("front_id", frontID),
		zap.Int("session_id", sessionID))
	m.bus.Publish(events.New(events.TypeLoginSuccess, events.LoginPayload{
		Front:      front,
		TradingDay: tradingDay,
		FrontID:    frontID,
		SessionID:  sessionID,
	}))
	if att != nil {
		select {
		case att.done <- nil:
		default:
		}
	}
	if hook != nil {
		go hook()
	}
}

// Disconnect releases both fronts and moves to Disconnected. Credentials are
// kept so a later Connect/Login can reuse them.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.started {
		m.md.Release()
		m.td.Release()
	}
	m.started = false
	m.state = StateDisconnected
	m.mdUp, m.tdUp, m.mdIn, m.tdIn = false, false, false, false
	m.autoRelogin = false
	m.connectedCh = make(chan struct{})
	m.mu.Unlock()
}

// Reset is Disconnect plus forgetting credentials and session identity.
func (m *Manager) Reset() {
	m.Disconnect()
	m.mu.Lock()
	m.creds = ctp.ReqUserLogin{}
	m.haveCreds = false
	m.frontID, m.sessionID = 0, 0
	m.tradingDay, m.maxOrderRef = "", ""
	m.mu.Unlock()
}
