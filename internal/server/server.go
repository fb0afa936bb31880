package server

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eaescob/go-ircd/internal/audit"
	"github.com/eaescob/go-ircd/internal/authz"
	"github.com/eaescob/go-ircd/internal/broadcast"
	"github.com/eaescob/go-ircd/internal/capability"
	"github.com/eaescob/go-ircd/internal/class"
	"github.com/eaescob/go-ircd/internal/config"
	"github.com/eaescob/go-ircd/internal/peering"
	"github.com/eaescob/go-ircd/internal/ratelimit"
	"github.com/eaescob/go-ircd/internal/rehash"
	"github.com/eaescob/go-ircd/internal/replies"
	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

// Server wires every component into one running daemon: the Database, the
// Broadcast Engine, the Authorization Model, the Capability registry, the
// Rate Limiter, the Class Tracker, the Statistics & Audit sink, the
// Server-to-Server Engine, the Rehash Service, and the reply Catalogue
// (spec §4.9).
type Server struct {
	cfg *config.Config

	db         *store.Store
	classes    *class.Tracker
	throttle   *class.Throttle
	authzModel *authz.Model
	capRegistry *capability.Registry
	limiter    *ratelimit.Limiter
	auditLog   *audit.Logger
	counters   *audit.Counters
	replies    *replies.Catalogue
	bans       *BanList
	peers      *peering.Manager
	linkAuth   *peering.LinkAuthenticator
	peerAuthz  *peering.Authorizer
	reconnect  *peering.Scheduler
	rehashSvc  *rehash.Service
	tlsStore   *rehash.TLSStore
	motdStore  *rehash.MOTDStore
	broadcaster *broadcast.Engine
	dispatcher *Dispatcher

	mu          sync.Mutex
	listeners   []net.Listener
	conns       map[uuid.UUID]*Connection
	shutdown    chan struct{}
	startedAt   time.Time

	// eg supervises the accept/timing/broadcast loops started by Start, so
	// Stop has a single join point instead of guessing how long teardown
	// takes. Each tracked goroutine already exits on its own once shutdown
	// is closed and the listeners are closed out from under it.
	eg *errgroup.Group
}

// New constructs a Server from a validated configuration. It does not
// start listening; call Start for that.
func New(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("server: invalid config: %w", err)
	}

	now := time.Now()

	auditLevel := audit.LevelDebug
	switch strings.ToLower(cfg.Logging.AuditMinLevel) {
	case "info":
		auditLevel = audit.LevelInfo
	case "warning":
		auditLevel = audit.LevelWarning
	}
	auditLogger := audit.NewLogger(log, cfg.Logging.AuditEnabled, auditLevel)

	s := &Server{
		cfg: cfg,
		db: store.New(store.Config{
			NickCacheTTL:      cfg.Database.NickCacheTTL,
			NickCacheCapacity: cfg.Database.NickCacheCapacity,
			ChannelCacheTTL:   cfg.Database.ChannelCacheTTL,
			DNSCacheTTL:       cfg.Database.DNSCacheTTL,
			WhowasDepth:       cfg.Database.WhowasDepth,
			WhowasRetention:   cfg.Database.WhowasRetention,
		}),
		classes: class.NewTracker(classesFromConfig(cfg.Classes), allowBlocksFromConfig(cfg.Security.AllowBlocks), cfg.Security.DefaultClass),
		throttle: class.NewThrottle(class.ThrottleConfig{
			MaxConnectionsPerIP: cfg.Modules.Settings.ThrottleMaxConnectionsPerIP,
			TimeWindow:          cfg.Modules.Settings.ThrottleTimeWindow,
			InitialThrottle:     cfg.Modules.Settings.ThrottleInitial,
			StageFactor:         cfg.Modules.Settings.ThrottleStageFactor,
			MaxStages:           cfg.Modules.Settings.ThrottleMaxStages,
		}),
		capRegistry: capability.NewRegistry(),
		limiter:     ratelimit.New(ratelimit.DefaultConfig()),
		auditLog:    auditLogger,
		counters:    audit.NewCounters(now),
		replies:     replies.NewCatalogue(),
		bans:        NewBanList(),
		peers:       peering.NewManager(),
		reconnect:   peering.NewScheduler(),
		tlsStore:    rehash.NewTLSStore(),
		motdStore:   rehash.NewMOTDStore(),
		dispatcher:  NewDispatcher(),
		conns:       make(map[uuid.UUID]*Connection),
		shutdown:    make(chan struct{}),
		startedAt:   now,
		eg:          &errgroup.Group{},
	}

	s.authzModel = authz.New(operatorsFromConfig(cfg.Network.Operators), s.auditLog.Emit)
	s.linkAuth = peering.NewLinkAuthenticator(cfg.Network.Links, s.auditLog.Emit)
	s.peerAuthz = peering.NewAuthorizer(s.auditLog.Emit)
	s.rehashSvc = rehash.New(rehash.Targets{Tracker: s.classes, Authz: s.authzModel, TLSStore: s.tlsStore, MOTD: s.motdStore}, s.auditLog.Emit)
	s.broadcaster = broadcast.New(s, 256)
	s.capRegistry.RegisterCapabilityExtension(standardCapabilities{})

	s.registerCoreHandlers()
	return s, nil
}

// Resolve implements broadcast.RecipientResolver over the live connection
// table, using the Database for channel/user-set targets.
func (s *Server) Resolve(t broadcast.Target) []broadcast.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []broadcast.Recipient
	switch t.Kind {
	case broadcast.TargetAllUsers:
		for _, c := range s.conns {
			if c.getUser() != nil {
				out = append(out, c)
			}
		}
	case broadcast.TargetChannel:
		ch, ok := s.db.GetChannel(t.ChannelName)
		if !ok {
			return nil
		}
		for id := range ch.Members {
			if c := s.connForUser(id); c != nil {
				out = append(out, c)
			}
		}
	case broadcast.TargetUserSet:
		for _, id := range t.UserIDs {
			if c := s.connForUser(id); c != nil {
				out = append(out, c)
			}
		}
	case broadcast.TargetOperatorsOnly:
		for _, c := range s.conns {
			if u := c.getUser(); u != nil && u.IsOperator {
				out = append(out, c)
			}
		}
	case broadcast.TargetPattern:
		for _, u := range s.db.SearchUsers(t.Pattern) {
			if c := s.connForUser(u.ID); c != nil {
				out = append(out, c)
			}
		}
	case broadcast.TargetPeerServers:
		// peers are driven through peering.Manager.Propagate, not the
		// connection table; nothing to resolve here.
	}
	return out
}

func (s *Server) connForUser(id uuid.UUID) *Connection {
	for _, c := range s.conns {
		if u := c.getUser(); u != nil && u.ID == id {
			return c
		}
	}
	return nil
}

// Start opens a listener for every configured port and begins accepting
// connections. TLS ports load the configured certificate or fall back to a
// freshly generated self-signed one.
func (s *Server) Start() error {
	for _, port := range s.cfg.Connection.Ports {
		addr := net.JoinHostPort(port.BindAddress, strconv.Itoa(port.Port))
		if port.TLS {
			tlsCfg, err := s.tlsConfigFor(port)
			if err != nil {
				return err
			}
			ln, err := tls.Listen("tcp", addr, tlsCfg)
			if err != nil {
				return fmt.Errorf("server: tls listen %s: %w", addr, err)
			}
			s.listeners = append(s.listeners, ln)
			s.eg.Go(func() error { s.acceptLoop(ln); return nil })
		} else {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("server: listen %s: %w", addr, err)
			}
			s.listeners = append(s.listeners, ln)
			s.eg.Go(func() error { s.acceptLoop(ln); return nil })
		}
	}
	s.eg.Go(func() error { s.timingLoop(); return nil })
	s.eg.Go(func() error { s.broadcaster.Run(); return nil })
	go s.connectConfiguredPeers()
	return nil
}

// Stop closes every listener and disconnects live connections, then waits
// for the accept/timing/broadcast loops to notice and exit.
func (s *Server) Stop() error {
	close(s.shutdown)
	s.broadcaster.Stop()
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
	s.mu.Lock()
	for _, c := range s.conns {
		c.sendLine((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: server shutting down"}}).Bytes())
		c.close()
	}
	s.mu.Unlock()
	return s.eg.Wait()
}

func (s *Server) tlsConfigFor(port config.Port) (*tls.Config, error) {
	if cert := s.tlsStore.Current(); cert != nil {
		return &tls.Config{Certificates: []tls.Certificate{*cert}, MinVersion: tls.VersionTLS12}, nil
	}
	if port.CertPath != "" && port.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(port.CertPath, port.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("server: load tls cert: %w", err)
		}
		return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
	}
	cert, err := s.generateSelfSignedCert()
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{*cert}, MinVersion: tls.VersionTLS12}, nil
}

// generateSelfSignedCert produces an ephemeral certificate for TLS ports
// configured without an explicit cert/key pair.
func (s *Server) generateSelfSignedCert() (*tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("server: generate key: %w", err)
	}
	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("server: generate serial: %w", err)
	}
	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{s.cfg.Server.Name}, CommonName: s.cfg.Server.Name},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{s.cfg.Server.Name},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("server: create certificate: %w", err)
	}
	return &tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}

// proxyConn preserves bytes already peeked off the wire while probing for a
// PROXY protocol header.
type proxyConn struct {
	net.Conn
	reader *bufio.Reader
}

func (p *proxyConn) Read(b []byte) (int, error) { return p.reader.Read(b) }

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				continue
			}
		}
		go s.handleAccept(conn)
	}
}

// handleAccept runs the Connection Lifecycle's acceptance phase: optional
// PROXY protocol unwrap, throttle check, ban check, class assignment, then
// hands off to the registration read loop.
func (s *Server) handleAccept(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}

	if s.cfg.Security.AllowBlocks != nil {
		conn, ip = s.maybeUnwrapProxy(conn, ip)
	}

	now := time.Now()
	if !s.throttle.Allow(ip, now) {
		audit.ThrottledIPsTotal.Inc()
		s.counters.ThrottledIPs++
		conn.Write((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: connection throttled"}}).Bytes())
		conn.Close()
		return
	}

	if entry, banned := s.bans.Matches("*!*@"+ip, now); banned {
		conn.Write((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: " + entry.Reason}}).Bytes())
		conn.Close()
		return
	}

	cls, block, err := s.classes.Assign(remoteAddr, ip)
	if err != nil {
		conn.Write((&wire.Message{Command: "ERROR", Params: []string{"Closing Link: no matching connection class"}}).Bytes())
		conn.Close()
		return
	}

	c := newConnection(conn, uuid.New(), ip, remoteAddr, cls.MaxSendQBytes, cls.MaxRecvQBytes, now)
	c.class = cls
	c.allowBlock = block

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.counters.TotalConnections++

	defer func() {
		s.classes.Release(cls, block, remoteAddr, ip)
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
	}()

	s.readLoop(c)
}

// maybeUnwrapProxy peeks for a "PROXY ..." header and, if present, rewrites
// the client's observed address to the one the header carries.
func (s *Server) maybeUnwrapProxy(conn net.Conn, fallbackIP string) (net.Conn, string) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	reader := bufio.NewReader(conn)
	header, err := reader.Peek(5)
	if err != nil || string(header) != "PROXY" {
		return &proxyConn{Conn: conn, reader: reader}, fallbackIP
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return &proxyConn{Conn: conn, reader: reader}, fallbackIP
	}
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) >= 5 && fields[0] == "PROXY" {
		return &proxyConn{Conn: conn, reader: reader}, fields[2]
	}
	return &proxyConn{Conn: conn, reader: reader}, fallbackIP
}

// readLoop accumulates inbound bytes into the RecvQueue, extracts complete
// lines, and dispatches each one. It returns when the socket closes,
// running the cleanup phase of the Connection Lifecycle on exit.
func (s *Server) readLoop(c *Connection) {
	defer s.cleanupConnection(c)

	buf := make([]byte, 4096)
	for {
		c.conn.SetReadDeadline(time.Now().Add(s.readTimeoutFor(c)))
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.recvQ.Append(buf[:n])
			c.timing.Touch(time.Now())
			for _, line := range c.recvQ.Lines() {
				if line == "" {
					continue
				}
				s.handleLine(c, line)
				if c.currentState() == connClosing {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) readTimeoutFor(c *Connection) time.Duration {
	if c.class != nil && c.class.ConnectionTimeout > 0 {
		return c.class.ConnectionTimeout
	}
	return 5 * time.Minute
}

func (s *Server) handleLine(c *Connection, line string) {
	msg, err := wire.Parse(line)
	if err != nil {
		return
	}
	if rewritten, drop := s.capRegistry.Preprocess(line); drop {
		_ = rewritten
		return
	}

	verb := strings.ToUpper(msg.Command)
	if c.currentState() != connRegistered && !preRegistrationAllowed(verb) {
		c.sendLine((&wire.Message{Command: wire.ERR_NOTREGISTERED, Params: []string{"*", "You have not registered"}}).Bytes())
		return
	}

	if c.isPeer {
		s.handlePeerLine(c, msg, []byte(line+"\r\n"))
		s.counters.RecordCommand(verb, len(line), true)
		return
	}

	u := c.getUser()
	res := s.dispatcher.Dispatch(s, c, u, msg)
	switch res.Outcome {
	case ErrorOutcome:
		nick := "*"
		if u != nil {
			nick = u.Nick
		}
		c.sendLine((&wire.Message{Command: res.Numeric, Params: []string{nick, res.Text}}).Bytes())
	}

	bytesLen := len(line)
	remote := c.isPeer
	s.counters.RecordCommand(verb, bytesLen, remote)
}

var preRegVerbs = map[string]bool{
	"CAP": true, "PASS": true, "NICK": true, "USER": true, "SERVER": true,
	"AUTHENTICATE": true, "PING": true, "QUIT": true, "ERROR": true,
}

func preRegistrationAllowed(verb string) bool { return preRegVerbs[verb] }

// cleanupConnection runs the Connection Lifecycle's teardown. For a peer
// link it unregisters the peer and audits LinkLost; users from that server
// are not moved to NetSplit and no QUITs are sent for them. For a client it
// removes the user from channels, clears operator status, records WHOWAS
// history, removes the user from the Database and broadcasts QUIT. Class
// counters are released by handleAccept once readLoop returns.
func (s *Server) cleanupConnection(c *Connection) {
	c.setState(connClosing)
	c.close()
	s.limiter.Forget(c.id)

	if c.isPeer {
		s.peers.Unregister(c.peerName)
		s.auditLog.Emit("LinkLost", c.peerName, s.cfg.Server.Name, c.remoteIP, "SERVER", "connection closed", nil)
		return
	}

	u := c.getUser()
	if u == nil {
		return
	}
	now := time.Now()
	_, affected := s.db.RemoveUserFromAllChannels(u.ID)
	s.authzModel.ClearOperatorStatus(u)
	s.db.AddToHistory(u, now)
	_, _ = s.db.RemoveUser(u.ID, now)
	s.capRegistry.NotifyDisconnect(u.ID.String())

	quitMsg := (&wire.Message{
		Prefix:  u.Nick + "!" + u.Username + "@" + u.Host,
		Command: "QUIT",
		Params:  []string{"Client disconnected"},
	}).Bytes()
	for _, ch := range affected {
		s.broadcaster.Enqueue(broadcast.Item{
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, ChannelName: ch},
			Payload:  quitMsg,
			Priority: broadcast.Normal,
		})
	}
}
