package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/config"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/mesh"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/peer"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/room"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/signaling"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/ui"
)

// shortIDLen is how many id characters are shown next to chat lines so
// reactions and receipts can reference them without pasting full UUIDs.
const shortIDLen = 8

func LoadConfig(opts config.Options) (*Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return &Config{cfg}, nil
}

// Config wraps the loaded configuration so commands share one type.
type Config struct {
	*config.Config
}

// NewCoordinator wires the relay client and WebRTC transport factory into a
// mesh coordinator.
func NewCoordinator(cfg *Config, displayName string) *mesh.Coordinator {
	client := signaling.NewClient(cfg.WebSocketURL)
	factory := func() (peer.Transport, error) {
		return peer.NewPionTransport(cfg.Config)
	}
	return mesh.New(cfg.Config, displayName, client, factory)
}

// session holds the interactive loop's bookkeeping: short ids for messages
// so /react and /seen stay typeable.
type session struct {
	coord  *mesh.Coordinator
	msgIDs map[string]string // short id -> full message id
}

// RunSession drives the interactive chat loop until the user quits, the
// room dissolves, or the local participant is kicked.
func RunSession(coord *mesh.Coordinator) error {
	defer coord.Close()

	s := &session{coord: coord, msgIDs: make(map[string]string)}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	ui.PrintInfo("Type a message and press enter. Commands: /who /pending /approve /reject /kick /react /seen /quit")

	notes := coord.Notifications()
	for {
		select {
		case n, ok := <-notes:
			if !ok {
				return nil
			}
			if stop := s.handleNote(n); stop {
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				coord.LeaveRoom()
				return nil
			}
			stop, err := s.handleLine(line)
			if err != nil {
				ui.PrintError(err.Error())
			}
			if stop {
				return nil
			}
		}
	}
}

func (s *session) handleNote(n room.Notification) bool {
	switch note := n.(type) {
	case room.ParticipantJoined:
		ui.PrintSystemf("%s joined the room", note.Participant.DisplayName)
	case room.ParticipantLeft:
		ui.PrintSystemf("%s %s", s.name(note.DisplayName, note.ID), leaveText(note.Reason))
	case room.ParticipantKicked:
		ui.PrintSystemf("%s was removed by the creator", s.name(note.DisplayName, note.ID))
	case room.SelfKicked:
		ui.PrintError("You were removed from the room by the creator")
		return true
	case room.MessageReceived:
		short := s.remember(note.MessageID)
		ui.PrintChat(note.DisplayName, fmt.Sprintf("%s %s", note.Content, ui.MutedStyle.Render("["+short+"]")))
	case room.TypingChanged:
		if note.Active {
			ui.PrintSystemf("%s is typing...", s.displayName(note.ID))
		}
	case room.ReactionAdded:
		ui.PrintSystemf("%s reacted %s to [%s]", s.displayName(note.SenderID), note.Reaction, shorten(note.MessageID))
	case room.MessageSeen:
		ui.PrintSystemf("[%s] seen by %s", shorten(note.MessageID), s.displayName(note.SenderID))
	case room.RoomSynced:
		if note.RoomName != "" {
			ui.PrintSystemf("Room: %s", note.RoomName)
		}
	case room.JoinRequestReceived:
		ui.PrintWarningf("%s wants to join. /approve %s or /reject %s",
			note.Request.DisplayName, note.Request.RequesterID, note.Request.RequesterID)
	case room.JoinResolved:
		if note.RequesterID == s.coord.SelfID() {
			if note.Approved {
				ui.PrintSuccess("You were admitted to the room")
			} else {
				ui.PrintError("Your join request was declined")
				return true
			}
		} else if !note.Approved {
			ui.PrintSystemf("Join request %s declined", shorten(note.RequesterID))
		}
	}
	return false
}

func (s *session) handleLine(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		short, err := s.sendChat(line)
		if err != nil {
			return false, err
		}
		ui.PrintChat("you", fmt.Sprintf("%s %s", line, ui.MutedStyle.Render("["+short+"]")))
		return false, nil
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/leave":
		s.coord.LeaveRoom()
		return true, nil
	case "/who":
		snap, err := s.coord.Snapshot()
		if err != nil {
			return false, err
		}
		fmt.Println(ui.RosterView(snap))
	case "/pending":
		snap, err := s.coord.Snapshot()
		if err != nil {
			return false, err
		}
		fmt.Println(ui.PendingView(snap))
	case "/approve":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /approve <requester-id>")
		}
		id, err := s.resolvePending(args[0])
		if err != nil {
			return false, err
		}
		return false, s.coord.Approve(id)
	case "/reject":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /reject <requester-id>")
		}
		id, err := s.resolvePending(args[0])
		if err != nil {
			return false, err
		}
		return false, s.coord.Reject(id)
	case "/kick":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /kick <name-or-id>")
		}
		id, err := s.resolveParticipant(args[0])
		if err != nil {
			return false, err
		}
		return false, s.coord.Kick(id)
	case "/react":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: /react <message-id> <reaction>")
		}
		full, ok := s.msgIDs[args[0]]
		if !ok {
			full = args[0]
		}
		return false, s.coord.React(full, args[1])
	case "/seen":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /seen <message-id>")
		}
		full, ok := s.msgIDs[args[0]]
		if !ok {
			full = args[0]
		}
		return false, s.coord.MarkSeen(full)
	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
	return false, nil
}

func (s *session) sendChat(content string) (string, error) {
	id, err := s.coord.SendChat(content)
	if err != nil {
		return "", err
	}
	return s.remember(id), nil
}

// remember indexes a message id under its short form.
func (s *session) remember(id string) string {
	short := shorten(id)
	s.msgIDs[short] = id
	return short
}

// displayName resolves a participant id to a name via the current snapshot.
func (s *session) displayName(id string) string {
	snap, err := s.coord.Snapshot()
	if err == nil {
		if p, ok := snap.Participants[id]; ok && p.DisplayName != "" {
			return p.DisplayName
		}
	}
	return shorten(id)
}

func (s *session) name(displayName, id string) string {
	if displayName != "" {
		return displayName
	}
	return shorten(id)
}

// resolveParticipant matches an exact id, an id prefix, or a display name
// against the roster.
func (s *session) resolveParticipant(arg string) (string, error) {
	snap, err := s.coord.Snapshot()
	if err != nil {
		return "", err
	}
	for id, p := range snap.Participants {
		if id == arg || strings.HasPrefix(id, arg) || p.DisplayName == arg {
			return id, nil
		}
	}
	return "", fmt.Errorf("no participant matching %q", arg)
}

// resolvePending matches an exact id or id prefix against pending requests.
func (s *session) resolvePending(arg string) (string, error) {
	snap, err := s.coord.Snapshot()
	if err != nil {
		return "", err
	}
	for id := range snap.Pending {
		if id == arg || strings.HasPrefix(id, arg) {
			return id, nil
		}
	}
	return "", fmt.Errorf("no pending request matching %q", arg)
}

func shorten(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func leaveText(reason room.LeaveReason) string {
	switch reason {
	case room.LeaveReasonGoodbye:
		return "left the room"
	case room.LeaveReasonTimeout:
		return "timed out"
	case room.LeaveReasonDisconnected:
		return "disconnected"
	default:
		return "left the room"
	}
}
