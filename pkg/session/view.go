package session

import (
	"time"

	"github.com/tomaslejdung/stagesync/pkg/control"
	"github.com/tomaslejdung/stagesync/pkg/ink"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// AvatarView is a remote participant as drawn on the stage
type AvatarView struct {
	ParticipantID string
	Name          string
	Picture       string
	Online        bool
	Pose          scene.Pose
}

// View is a read-only copy of the session state for rendering. It is
// rebuilt after every dispatched event.
type View struct {
	Room             string
	Self             string
	Name             string
	Camera           scene.Pose
	Mode             control.Mode
	Controller       string
	CanToggleControl bool
	Inking           bool
	CanToggleInking  bool
	PenColor         string
	FPS              float64
	SampleInterval   time.Duration
	Strokes          []ink.Stroke
	Avatars          []AvatarView
	Disconnected     bool
}

// View returns the latest published view
func (s *Session) View() View {
	return *s.view.Load()
}

func (s *Session) publishView() {
	canvas := s.inking.Canvas()
	v := &View{
		Room:             s.room,
		Self:             s.self,
		Name:             s.channel.Local().DisplayName,
		Camera:           s.surface.CameraPose(),
		Mode:             s.arbiter.Mode(),
		Controller:       s.arbiter.Controller(),
		CanToggleControl: s.arbiter.CanToggle(),
		Inking:           s.inking.Enabled(),
		CanToggleInking:  s.inking.CanToggle(),
		PenColor:         canvas.PenColor(),
		FPS:              s.cfg.FPS,
		SampleInterval:   s.cfg.SampleInterval,
		Strokes:          canvas.Strokes(),
		Disconnected:     s.disconnected,
	}

	for _, id := range s.avatars.IDs() {
		e, _ := s.avatars.Get(id)
		rec := s.channel.Record(id)
		head, _ := s.surface.NodePose(e.Head)
		name := rec.DisplayName
		if name == "" {
			name = id
		}
		v.Avatars = append(v.Avatars, AvatarView{
			ParticipantID: id,
			Name:          name,
			Picture:       rec.Picture,
			Online:        rec.State == presence.Online,
			Pose:          head,
		})
	}
	s.view.Store(v)
}
