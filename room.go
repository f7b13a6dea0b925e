// Buzzbox quiz rooms
//
// One participant acts as moderator, the rest race to buzz in on a
// question revealed one character at a time. Each room owns a single
// Session state machine, mutated only by the room's hub goroutine: the
// hub's inbound channel serializes every command and buzz attempt into
// one total order, which is what makes buzz arbitration deterministic
// under concurrent submission.
//
// Features:
// - Single WebSocket endpoint; rooms addressed in message payloads
// - Creator becomes moderator; identity survives reconnects via cookie
// - Question text streamed rune by rune at a configurable pace
// - First buzz serialized by the hub wins; later attempts get too_late
// - Authoritative state replayed to every (re)joining client
// - Rooms reaped after a configurable idle timeout
// - Optional grace period before a moderator-less room is closed
// - In-browser QR button to share a room link, backed by go-qrcode

package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1024
)

// Role of a participant within a room.
type Role string

const (
	RoleModerator  Role = "moderator"
	RoleContestant Role = "contestant"
)

// Participant is a contestant currently on the roster. The moderator is
// tracked separately and never appears here.
type Participant struct {
	Identity string
	Name     string
	Role     Role
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	identity string
	hub      *Hub
	mgr      *RoomManager
}

type inboundMsg struct {
	client *Client
	msg    ClientMessage
}

// Hub owns one room: its clients, roster, session and scoreboard. All
// room state below the mutex-guarded timestamps is touched only from
// the run loop.
type Hub struct {
	id  string
	cfg *Config
	mgr *RoomManager

	clients       map[*Client]bool
	participants  map[string]*Participant
	moderatorID   string
	moderatorName string
	session       *Session
	board         *Scoreboard

	inbound  chan inboundMsg
	unreg    chan *Client
	shutdown chan struct{}
	done     chan struct{}

	// Armed timer channels for the run loop select; nil when inactive.
	streamCh <-chan time.Time
	graceCh  <-chan time.Time

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time

	closing bool
}

func newHub(roomID, creatorIdentity, creatorName string, mgr *RoomManager) *Hub {
	now := mgr.clock.Now()
	return &Hub{
		id:            roomID,
		cfg:           mgr.cfg,
		mgr:           mgr,
		clients:       make(map[*Client]bool),
		participants:  make(map[string]*Participant),
		moderatorID:   creatorIdentity,
		moderatorName: creatorName,
		session:       newSession(mgr.questions),
		board:         newScoreboard(),
		inbound:       make(chan inboundMsg, 64),
		unreg:         make(chan *Client),
		shutdown:      make(chan struct{}, 1),
		done:          make(chan struct{}),
		createdAt:     now,
		lastActive:    now,
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case m := <-h.inbound:
			h.touch()
			h.dispatch(m)
		case c := <-h.unreg:
			h.touch()
			h.handleUnregister(c)
		case <-h.streamCh:
			h.handleStreamTick()
		case <-h.graceCh:
			h.handleGraceExpired()
		case <-h.shutdown:
			h.closing = true
		}

		if h.closing {
			h.teardown()
			return
		}
	}
}

// enqueue hands a client command to the run loop, or reports the room
// gone so callers racing a close never block on a dead hub.
func (h *Hub) enqueue(c *Client, msg ClientMessage) error {
	select {
	case h.inbound <- inboundMsg{client: c, msg: msg}:
		return nil
	case <-h.done:
		return errRoomClosed
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

// requestShutdown asks the run loop to tear the room down. Used by the
// registry's idle reaper.
func (h *Hub) requestShutdown() {
	select {
	case h.shutdown <- struct{}{}:
	default:
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = h.mgr.clock.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) dispatch(m inboundMsg) {
	c := m.client

	switch m.msg.Type {
	case "create_room", "join_room":
		if m.msg.RoomID != "" && m.msg.RoomID != h.id {
			h.errorTo(c, errActionNotAllowed)
			return
		}
		// The creator's initial create_room arrives before admission;
		// from anyone already in the room the id is necessarily taken.
		if m.msg.Type == "create_room" && h.clients[c] {
			h.errorTo(c, errRoomAlreadyExists)
			return
		}
		h.handleJoin(c, m.msg)
	case "leave_room":
		h.handleLeave(c)
	case "buzz":
		h.handleBuzz(c)
	case "next_question":
		h.handleAdvance(c)
	case "wrong":
		h.handleWrong(c)
	case "resume":
		h.handleResume(c)
	case "timeout":
		h.handleTimeout(c)
	case "judge":
		h.handleJudge(c)
	case "clear_display":
		h.handleClearDisplay(c)
	case "end_game":
		h.handleEndGame(c)
	case "close_room":
		h.handleClose(c)
	default:
		// ignore unknown types
	}
}

// handleJoin covers creation, late joins and reconnects alike: joining
// under a known identity restores the prior role and score without
// duplicating roster entries.
func (h *Hub) handleJoin(c *Client, msg ClientMessage) {
	name := strings.TrimSpace(msg.Name)
	if name == "" || c.identity == "" {
		h.errorTo(c, errValidation)
		return
	}

	isMaster := c.identity == h.moderatorID
	if isMaster {
		h.moderatorName = name
		h.graceCh = nil
	} else {
		if p, ok := h.participants[c.identity]; ok {
			p.Name = name
		} else {
			h.participants[c.identity] = &Participant{
				Identity: c.identity,
				Name:     name,
				Role:     RoleContestant,
			}
		}
		h.board.Ensure(c.identity, name)
	}

	h.clients[c] = true

	h.sendTo(c, JoinedMessage{Type: "joined"})
	h.sendTo(c, RoleMessage{Type: "role", IsMaster: isMaster})
	h.sendTo(c, MasterInfoMessage{Type: "master_info", Name: h.moderatorName})
	h.replay(c, isMaster)
	h.broadcastPlayers()

	log.Debug().Str("room", h.id).Str("name", name).Bool("moderator", isMaster).Msg("participant joined")
}

// replay sends the authoritative snapshot to one client so it converges
// to the room's current view without replaying history.
func (h *Hub) replay(c *Client, isMaster bool) {
	snap := h.session.Snapshot()

	if snap.HasQuestion {
		h.sendTo(c, CounterMessage{Type: "counter", Cur: snap.Round})
		h.sendTo(c, SyncDisplayMessage{
			Type:     "sync_display",
			Question: snap.RevealedQuestion,
			Answer:   snap.RevealedAnswer,
		})

		if snap.ActiveResponder != "" {
			h.sendTo(c, BuzzedMessage{Type: "buzzed", Name: h.displayName(snap.ActiveResponder)})
		} else {
			h.sendTo(c, EnableBuzzMessage{Type: "enable_buzz", Enabled: !snap.BuzzLocked})
		}
	} else {
		h.sendTo(c, CounterMessage{Type: "counter", Cur: 0})
	}

	if snap.AllAsked {
		h.sendTo(c, EnableEndMessage{Type: "enable_end"})
	}

	if isMaster {
		h.sendTo(c, SyncStateMessage{Type: "sync_state", Phase: snap.Phase})
	}

	if snap.Phase == PhaseFinished {
		ranking, empty := h.board.Ranking()
		h.sendTo(c, FinalMessage{Type: "final", Ranking: ranking, Empty: empty})
	}
}

// handleLeave removes a contestant from the roster. Only legal before
// the first question; the moderator must close the room instead, so a
// moderator leave is a silent no-op. The scoreboard entry survives.
func (h *Hub) handleLeave(c *Client) {
	if c.identity == h.moderatorID {
		return
	}
	if _, ok := h.participants[c.identity]; !ok {
		return
	}
	if h.session.Snapshot().Round >= 1 {
		h.errorTo(c, errActionNotAllowed)
		return
	}

	delete(h.participants, c.identity)

	for cl := range h.clients {
		if cl.identity == c.identity {
			h.evict(cl)
		}
	}

	h.broadcastPlayers()

	log.Debug().Str("room", h.id).Str("identity", c.identity).Msg("participant left")
}

func (h *Hub) handleBuzz(c *Client) {
	if c.identity == h.moderatorID {
		h.errorTo(c, errActionNotAllowed)
		return
	}
	if _, ok := h.participants[c.identity]; !ok {
		h.errorTo(c, errActionNotAllowed)
		return
	}

	if err := h.session.Buzz(c.identity); err != nil {
		h.errorTo(c, err)
		return
	}

	h.streamCh = nil
	h.broadcast(BuzzedMessage{Type: "buzzed", Name: h.displayName(c.identity)})
	h.broadcast(EnableBuzzMessage{Type: "enable_buzz", Enabled: false})
	h.syncMaster()
}

func (h *Hub) handleAdvance(c *Client) {
	if !h.requireModerator(c) {
		return
	}

	if err := h.session.AdvanceQuestion(); err != nil {
		h.errorTo(c, err)
		return
	}

	h.broadcast(CounterMessage{Type: "counter", Cur: h.session.Snapshot().Round})
	h.broadcast(EnableBuzzMessage{Type: "enable_buzz", Enabled: true})
	h.syncMaster()

	// The first increment goes out right away, the rest on the clock.
	h.emitNextChar()
	h.armStream()
}

func (h *Hub) handleWrong(c *Client) {
	if !h.requireModerator(c) {
		return
	}

	if err := h.session.MarkWrong(); err != nil {
		h.errorTo(c, err)
		return
	}

	h.broadcast(ClearBuzzedMessage{Type: "clear_buzzed"})
	h.syncMaster()
}

func (h *Hub) handleResume(c *Client) {
	if !h.requireModerator(c) {
		return
	}

	if err := h.session.ResumeAsking(); err != nil {
		h.errorTo(c, err)
		return
	}

	h.broadcast(EnableBuzzMessage{Type: "enable_buzz", Enabled: true})
	h.syncMaster()

	h.emitNextChar()
	h.armStream()
}

func (h *Hub) handleTimeout(c *Client) {
	if !h.requireModerator(c) {
		return
	}

	if err := h.session.TimeoutQuestion(); err != nil {
		h.errorTo(c, err)
		return
	}

	h.streamCh = nil
	h.broadcast(EnableBuzzMessage{Type: "enable_buzz", Enabled: false})
	h.broadcast(ClearBuzzedMessage{Type: "clear_buzzed"})
	h.syncMaster()
}

func (h *Hub) handleJudge(c *Client) {
	if !h.requireModerator(c) {
		return
	}

	awarded, last, err := h.session.MarkCorrect()
	if err != nil {
		h.errorTo(c, err)
		return
	}

	if awarded != "" {
		h.board.Award(awarded, 1)
	}

	h.streamCh = nil

	snap := h.session.Snapshot()
	h.broadcast(RevealMessage{
		Type:     "reveal",
		Question: snap.RevealedQuestion,
		Answer:   snap.RevealedAnswer,
	})
	h.broadcastPlayers()
	h.broadcast(EnableBuzzMessage{Type: "enable_buzz", Enabled: false})
	h.broadcast(ClearBuzzedMessage{Type: "clear_buzzed"})

	if last {
		h.broadcast(EnableEndMessage{Type: "enable_end"})
	}

	h.syncMaster()
}

func (h *Hub) handleClearDisplay(c *Client) {
	if !h.requireModerator(c) {
		return
	}

	if err := h.session.ClearDisplay(); err != nil {
		h.errorTo(c, err)
		return
	}

	h.broadcast(ClearDisplayMessage{Type: "clear_display"})
	h.syncMaster()
}

func (h *Hub) handleEndGame(c *Client) {
	if !h.requireModerator(c) {
		return
	}

	if err := h.session.EndGame(); err != nil {
		h.errorTo(c, err)
		return
	}

	ranking, empty := h.board.Ranking()
	h.broadcast(FinalMessage{Type: "final", Ranking: ranking, Empty: empty})
	h.syncMaster()

	log.Info().Str("room", h.id).Int("contestants", h.board.Len()).Msg("game ended")
}

func (h *Hub) handleClose(c *Client) {
	if !h.requireModerator(c) {
		return
	}

	h.closing = true
}

// handleStreamTick reveals the next rune of the question text. A buzz
// disarms the timer, so a tick never races an accepted buzz.
func (h *Hub) handleStreamTick() {
	h.streamCh = nil
	h.emitNextChar()
	h.armStream()
}

func (h *Hub) emitNextChar() {
	if c, ok := h.session.RevealNext(); ok {
		h.broadcast(CharMessage{Type: "char", C: c})
	}
}

func (h *Hub) armStream() {
	if h.session.HasMoreText() {
		h.streamCh = h.mgr.clock.After(h.cfg.charInterval)
	} else {
		h.streamCh = nil
	}
}

// handleUnregister drops one connection. Identities persist: a
// disconnect never removes a participant from the roster or the
// scoreboard, so reconnecting restores role and score.
func (h *Hub) handleUnregister(c *Client) {
	if !h.clients[c] {
		return
	}

	delete(h.clients, c)
	close(c.send)

	if h.hasClient(c.identity) {
		return
	}

	if c.identity == h.moderatorID {
		// Moderator disconnect does not auto-close the room; an
		// operator-configured grace period may.
		if h.cfg.moderatorGrace > 0 {
			h.graceCh = h.mgr.clock.After(h.cfg.moderatorGrace)
			log.Info().Str("room", h.id).Dur("grace", h.cfg.moderatorGrace).Msg("moderator disconnected")
		}
		return
	}

	if h.session.ReleaseBuzz(c.identity) {
		h.broadcast(ClearBuzzedMessage{Type: "clear_buzzed"})
		h.broadcast(EnableBuzzMessage{Type: "enable_buzz", Enabled: true})
		h.syncMaster()
		h.armStream()
	}
}

func (h *Hub) handleGraceExpired() {
	h.graceCh = nil

	if h.hasClient(h.moderatorID) {
		return
	}

	log.Info().Str("room", h.id).Msg("moderator grace period expired, closing room")
	h.closing = true
}

func (h *Hub) teardown() {
	h.broadcast(RoomClosedMessage{Type: "room_closed"})

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}

	h.mgr.remove(h.id, h)

	log.Info().Str("room", h.id).Msg("room closed")
}

func (h *Hub) requireModerator(c *Client) bool {
	if c.identity != h.moderatorID {
		h.errorTo(c, errActionNotAllowed)
		return false
	}
	return true
}

func (h *Hub) hasClient(identity string) bool {
	for c := range h.clients {
		if c.identity == identity {
			return true
		}
	}
	return false
}

func (h *Hub) displayName(identity string) string {
	if p, ok := h.participants[identity]; ok {
		return p.Name
	}
	for _, e := range h.board.Snapshot() {
		if e.Identity == identity {
			return e.Name
		}
	}
	return ""
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

// sendTo delivers to a current member. A full buffer evicts the client
// so one stalled consumer never blocks the room; sends aimed at a
// client that has already been evicted fall through here instead of
// hitting its closed channel.
func (h *Hub) sendTo(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.evict(c)
	}
}

func (h *Hub) evict(c *Client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) errorTo(c *Client, err error) {
	h.sendTo(c, ErrorMessage{Type: "error_msg", Message: err.Error()})
}

// broadcastPlayers sends the contestant roster with scores to every
// member. The moderator is never listed.
func (h *Hub) broadcastPlayers() {
	players := make(map[string]PlayerInfo, len(h.participants))
	for id, p := range h.participants {
		players[id] = PlayerInfo{
			Name:  p.Name,
			Score: h.board.Score(id),
		}
	}

	h.broadcast(PlayersMessage{Type: "players", Players: players})
}

func (h *Hub) syncMaster() {
	msg := SyncStateMessage{Type: "sync_state", Phase: h.session.Snapshot().Phase}
	for c := range h.clients {
		if c.identity == h.moderatorID {
			h.sendTo(c, msg)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const participantCookieName = "buzzbox_id"

// getOrSetParticipantID reads the identity cookie, minting a fresh uuid
// when absent. A client-supplied identity in the join payload overrides
// it, so identity survives reconnects from other devices too.
func getOrSetParticipantID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(participantCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     participantCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func serveWS(cfg *Config, mgr *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		identity := getOrSetParticipantID(w, r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			identity: identity,
			mgr:      mgr,
		}

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.hub != nil {
			c.hub.unregister(c)
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))

		if c.hub == nil {
			c.handleUnjoined(msg)
			continue
		}

		if err := c.hub.enqueue(c, msg); err != nil {
			return
		}
	}
}

// handleUnjoined routes the only commands legal before room entry.
// Until the client is attached to a hub, its send channel is still
// owned here, so replying directly is safe.
func (c *Client) handleUnjoined(msg ClientMessage) {
	switch msg.Type {
	case "create_room", "join_room":
		if msg.Identity != "" {
			c.identity = msg.Identity
		}

		roomID := strings.TrimSpace(msg.RoomID)
		if roomID == "" || strings.TrimSpace(msg.Name) == "" {
			c.send <- ErrorMessage{Type: "error_msg", Message: errValidation.Error()}
			return
		}

		var (
			hub *Hub
			err error
		)
		if msg.Type == "create_room" {
			hub, err = c.mgr.create(roomID, c.identity, strings.TrimSpace(msg.Name))
		} else {
			hub, err = c.mgr.lookup(roomID)
		}
		if err == nil {
			err = hub.enqueue(c, msg)
		}
		if err != nil {
			c.send <- ErrorMessage{Type: "error_msg", Message: err.Error()}
			return
		}

		c.hub = hub
	default:
		c.send <- ErrorMessage{Type: "error_msg", Message: errValidation.Error()}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// qrHandler generates a PNG QR code linking to a room.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomid")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../rooms/:roomid/qr; strip the suffix to get the base URL.
	base := strings.TrimSuffix(r.URL.Path, "/rooms/"+roomID+"/qr")

	url := scheme + "://" + r.Host + base + "/?room=" + roomID

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
