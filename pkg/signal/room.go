package signal

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/presence"
)

var adjectives = []string{
	"QUICK", "LAZY", "HAPPY", "CALM", "BRAVE",
	"BRIGHT", "COOL", "DARK", "EAGER", "FAIR",
	"GENTLE", "GRAND", "GREAT", "GREEN", "BLUE",
	"RED", "GOLD", "SILVER", "WARM", "WILD",
	"BOLD", "CLEAN", "CLEAR", "CRISP", "DEEP",
	"FAST", "FINE", "FRESH", "GOOD", "HIGH",
	"KIND", "LIGHT", "LOUD", "MILD", "NEAT",
	"NICE", "PLAIN", "PROUD", "PURE", "RICH",
	"SAFE", "SHARP", "SLIM", "SMART", "SOFT",
	"SWEET", "TALL", "TRUE", "VAST", "WISE",
}

var nouns = []string{
	"STAGE", "ATRIUM", "GALLERY", "LOBBY", "HALL",
	"STUDIO", "TERRACE", "GARDEN", "PLAZA", "TOWER",
	"HARBOR", "BRIDGE", "ARCADE", "CLOISTER", "DOME",
	"FOYER", "LOFT", "PAVILION", "ROTUNDA", "VAULT",
	"TREE", "LAKE", "MOON", "STAR", "WAVE",
	"WIND", "FLAME", "FROST", "PEAK", "CAVE",
	"DAWN", "DUSK", "MIST", "RAIN", "SNOW",
	"STORM", "BEACH", "CLIFF", "DELTA", "GROVE",
	"HILL", "MARSH", "MESA", "OASIS", "PLAIN",
	"RIDGE", "SHORE", "TRAIL", "VALE", "WOODS",
}

var (
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
	rngMu sync.Mutex
)

// GenerateRoomCode creates a memorable room code in ADJECTIVE-NOUN-NN format
func GenerateRoomCode() string {
	rngMu.Lock()
	defer rngMu.Unlock()
	adj := adjectives[rng.Intn(len(adjectives))]
	noun := nouns[rng.Intn(len(nouns))]
	num := rng.Intn(100)
	return fmt.Sprintf("%s-%s-%02d", adj, noun, num)
}

// NormalizeRoomCode ensures consistent formatting (uppercase, trimmed)
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateRoomCode checks if a room code has valid format
func ValidateRoomCode(code string) bool {
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		return false
	}
	return len(parts[0]) > 0 && len(parts[1]) > 0 && len(parts[2]) > 0
}

// Room holds the connected clients and the replicated state of a meeting
type Room struct {
	code     string
	clients  map[*Client]bool
	members  map[string]*Client
	presence map[string]presence.Record
	states   map[string]livestate.State
	mu       sync.RWMutex
}

func newRoom(code string) *Room {
	return &Room{
		code:     code,
		clients:  make(map[*Client]bool),
		members:  make(map[string]*Client),
		presence: make(map[string]presence.Record),
		states:   make(map[string]livestate.State),
	}
}

// snapshot copies the replicated content. Caller holds room.mu.
func (r *Room) snapshot() *Snapshot {
	snap := &Snapshot{
		Presence: make([]presence.Record, 0, len(r.presence)),
		States:   make([]livestate.State, 0, len(r.states)),
	}
	for _, rec := range r.presence {
		snap.Presence = append(snap.Presence, rec)
	}
	for _, s := range r.states {
		snap.States = append(snap.States, s)
	}
	sort.Slice(snap.Presence, func(i, j int) bool {
		return snap.Presence[i].ParticipantID < snap.Presence[j].ParticipantID
	})
	sort.Slice(snap.States, func(i, j int) bool {
		return snap.States[i].Key < snap.States[j].Key
	})
	return snap
}

// broadcast queues msg for every client except skip. Caller holds room.mu.
func (r *Room) broadcast(msg Message, skip *Client) {
	for c := range r.clients {
		if c == skip {
			continue
		}
		c.enqueue(msg)
	}
}

// releaseFlags clears every raised flag last written by participantID and
// fans the cleared states out. Caller holds r.mu.
func (r *Room) releaseFlags(participantID string) []string {
	var released []string
	for key, st := range r.states {
		if !st.Value || st.Writer != participantID {
			continue
		}
		st.Value = false
		st.Revision++
		r.states[key] = st
		released = append(released, key)
		r.broadcast(Message{Type: TypeState, State: &st}, nil)
	}
	sort.Strings(released)
	return released
}
