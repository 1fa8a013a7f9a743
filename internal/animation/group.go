package animation

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"math"
	"sort"
)

// ErrNoAnimations is returned when a group has no members to query.
var ErrNoAnimations = errors.New("animation group has no animations")

// Screenshot is one decoded screencast frame.
type Screenshot struct {
	Data []byte
}

// Image decodes the frame as JPEG.
func (s Screenshot) Image() (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(s.Data))
}

// Group is a set of animations that started at the same instant.
type Group struct {
	model      *Model
	id         string
	animations []*Animation
	paused     bool

	frames      []string
	screenshots []Screenshot
}

func newGroup(m *Model, id string, animations []*Animation) *Group {
	return &Group{model: m, id: id, animations: animations}
}

func (g *Group) ID() string { return g.id }

// Animations returns the current members. The slice is replaced, never
// mutated, when the group is merged with a newer equivalent group.
func (g *Group) Animations() []*Animation { return g.animations }

func (g *Group) Paused() bool { return g.paused }

func (g *Group) animationIDs() []string {
	ids := make([]string, len(g.animations))
	for i, a := range g.animations {
		ids[i] = a.id
	}
	return ids
}

// StartTime is the common start time of the members.
func (g *Group) StartTime() float64 {
	if len(g.animations) == 0 {
		return 0
	}
	return g.animations[0].startTime
}

// FiniteDuration is the longest finite duration among the members.
func (g *Group) FiniteDuration() float64 {
	var longest float64
	for _, a := range g.animations {
		longest = math.Max(longest, a.FiniteDuration())
	}
	return longest
}

// SeekTo moves every member to the given time.
func (g *Group) SeekTo(t float64) {
	m := g.model
	ids := g.animationIDs()
	m.fire("seekAnimations", func(ctx context.Context) error {
		return m.gateway.SeekAnimations(ctx, ids, t)
	})
}

// TogglePause pauses or resumes the group. Repeating the current state is a
// no-op and sends nothing.
func (g *Group) TogglePause(paused bool) {
	if g.paused == paused {
		return
	}
	g.paused = paused
	m := g.model
	ids := g.animationIDs()
	m.fire("setPaused", func(ctx context.Context) error {
		return m.gateway.SetPaused(ctx, ids, paused)
	})
}

// CurrentTime queries the live time of the member that ends last.
func (g *Group) CurrentTime(ctx context.Context) (float64, error) {
	if !g.model.enabled {
		return 0, ErrNotEnabled
	}
	if len(g.animations) == 0 {
		return 0, ErrNoAnimations
	}
	longest := g.animations[0]
	for _, a := range g.animations[1:] {
		if a.EndTime() > longest.EndTime() {
			longest = a
		}
	}
	return g.model.gateway.CurrentTime(ctx, longest.id)
}

// Release removes the group from the model and lets the page discard its
// animations.
func (g *Group) Release() {
	m := g.model
	m.removeGroup(g.id)
	ids := g.animationIDs()
	m.fire("releaseAnimations", func(ctx context.Context) error {
		return m.gateway.ReleaseAnimations(ctx, ids)
	})
}

func (g *Group) signature() []string {
	keys := make([]string, len(g.animations))
	for i, a := range g.animations {
		keys[i] = a.identityKey()
	}
	sort.Strings(keys)
	return keys
}

// matches reports whether other is the same set of animations restarted.
func (g *Group) matches(other *Group) bool {
	if len(g.animations) != len(other.animations) {
		return false
	}
	a, b := g.signature(), other.signature()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// update takes over the members of a newer matching group and releases the
// old members.
func (g *Group) update(other *Group) {
	old := g.animationIDs()
	m := g.model
	m.fire("releaseAnimations", func(ctx context.Context) error {
		return m.gateway.ReleaseAnimations(ctx, old)
	})
	g.animations = other.animations
}

func (g *Group) addScreenshot(frame string) {
	g.frames = append(g.frames, frame)
}

// DrainScreenshots decodes the frames received since the previous drain,
// appends them to Screenshots and returns them. Undecodable frames are
// dropped.
func (g *Group) DrainScreenshots() []Screenshot {
	if len(g.frames) == 0 {
		return nil
	}
	fresh := make([]Screenshot, 0, len(g.frames))
	for _, f := range g.frames {
		data, err := base64.StdEncoding.DecodeString(f)
		if err != nil {
			g.model.log.Warn("dropping undecodable screencast frame", "group", g.id, "error", err)
			continue
		}
		fresh = append(fresh, Screenshot{Data: data})
	}
	g.frames = nil
	g.screenshots = append(g.screenshots, fresh...)
	return fresh
}

// Screenshots returns every frame drained so far.
func (g *Group) Screenshots() []Screenshot { return g.screenshots }
