package core

import "time"

// Keyframe is one keyframe of an animation effect.
type Keyframe struct {
	Offset float64 `json:"offset"`
	Easing string  `json:"easing"`
}

// AnimationSnapshot freezes the state of one animation when its group was
// recorded.
type AnimationSnapshot struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	CSSID        string  `json:"cssId,omitempty"`
	PlayState    string  `json:"playState"`
	PlaybackRate float64 `json:"playbackRate"`
	StartTime    float64 `json:"startTime"`
	CurrentTime  float64 `json:"currentTime"`

	Delay          float64 `json:"delay"`
	EndDelay       float64 `json:"endDelay"`
	Duration       float64 `json:"duration"`
	IterationStart float64 `json:"iterationStart"`
	// Iterations is a count, "infinite" or "unshowable".
	Iterations     string  `json:"iterations"`
	Direction      string  `json:"direction"`
	Fill           string  `json:"fill"`
	Easing         string  `json:"easing"`
	BackendNodeID  int64   `json:"backendNodeId"`
	FiniteDuration float64 `json:"finiteDuration"`
	// EndTime is zero when Infinite is set.
	EndTime  float64 `json:"endTime"`
	Infinite bool    `json:"infinite"`

	KeyframesName string     `json:"keyframesName,omitempty"`
	Keyframes     []Keyframe `json:"keyframes,omitempty"`
}

// GroupRecord is emitted every time a group starts or restarts.
type GroupRecord struct {
	SessionID      string              `json:"sessionId"`
	GroupID        string              `json:"groupId"`
	StartTime      float64             `json:"startTime"`
	FiniteDuration float64             `json:"finiteDuration"`
	Merged         bool                `json:"merged"`
	Paused         bool                `json:"paused"`
	Animations     []AnimationSnapshot `json:"animations"`
	RecordedAt     time.Time           `json:"recordedAt"`
}

// ScreenshotBatch carries the JPEG frames captured for a group.
type ScreenshotBatch struct {
	SessionID  string    `json:"sessionId"`
	GroupID    string    `json:"groupId"`
	Frames     [][]byte  `json:"frames"`
	CapturedAt time.Time `json:"capturedAt"`
}
