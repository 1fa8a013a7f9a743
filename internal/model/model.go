package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&AnimationGroup{},
	&AnimationRow{},
	&Screenshot{},
	&PageReset{},
}

////////////////////////
// SESSION MODELS
////////////////////////

// Session is one recording against one debugging target
type Session struct {
	gorm.Model
	SessionID string       `json:"sessionId" gorm:"size:36;uniqueIndex"`
	TargetURL string       `json:"targetUrl" gorm:"size:2048"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   sql.NullTime `json:"endedAt"`
}

func (*Session) TableName() string {
	return "sessions"
}

// PageReset marks a point where the page discarded every group
type PageReset struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_pagereset_session_id"`
	Reason    string    `json:"reason" gorm:"size:32"`
	At        time.Time `json:"at"`
}

func (*PageReset) TableName() string {
	return "page_resets"
}

////////////////////////
// ANIMATION MODELS
////////////////////////

// AnimationGroup is one GroupStarted notification. A merge into an existing
// group produces a new row with Merged set.
type AnimationGroup struct {
	gorm.Model
	SessionID      string         `json:"sessionId" gorm:"size:36;index:idx_animationgroup_session_id"`
	GroupID        string         `json:"groupId" gorm:"size:64;index:idx_animationgroup_group_id"`
	StartTime      float64        `json:"startTime"`
	FiniteDuration float64        `json:"finiteDuration"`
	Merged         bool           `json:"merged"`
	Paused         bool           `json:"paused"`
	RecordedAt     time.Time      `json:"recordedAt" gorm:"index:idx_animationgroup_recorded_at"`
	Animations     []AnimationRow `json:"animations" gorm:"foreignKey:GroupRowID;constraint:OnDelete:CASCADE"`
}

func (*AnimationGroup) TableName() string {
	return "animation_groups"
}

// Keyframe is stored inline as JSON on its animation row
type Keyframe struct {
	Offset float64 `json:"offset"`
	Easing string  `json:"easing"`
}

// AnimationRow is one member of a recorded group
type AnimationRow struct {
	ID             uint                          `json:"id" gorm:"primarykey"`
	GroupRowID     uint                          `json:"groupRowId" gorm:"index:idx_animationrow_group_row_id"`
	AnimationID    string                        `json:"animationId" gorm:"size:64"`
	Name           string                        `json:"name" gorm:"size:255"`
	Type           string                        `json:"type" gorm:"size:32"`
	CSSID          string                        `json:"cssId" gorm:"size:64"`
	PlayState      string                        `json:"playState" gorm:"size:32"`
	PlaybackRate   float64                       `json:"playbackRate"`
	StartTime      float64                       `json:"startTime"`
	CurrentTime    float64                       `json:"currentTime"`
	Delay          float64                       `json:"delay"`
	EndDelay       float64                       `json:"endDelay"`
	Duration       float64                       `json:"duration"`
	IterationStart float64                       `json:"iterationStart"`
	Iterations     string                        `json:"iterations" gorm:"size:32"`
	Direction      string                        `json:"direction" gorm:"size:32"`
	Fill           string                        `json:"fill" gorm:"size:16"`
	Easing         string                        `json:"easing" gorm:"size:255"`
	BackendNodeID  int64                         `json:"backendNodeId"`
	FiniteDuration float64                       `json:"finiteDuration"`
	EndTime        float64                       `json:"endTime"`
	Infinite       bool                          `json:"infinite"`
	KeyframesName  string                        `json:"keyframesName" gorm:"size:255"`
	Keyframes      datatypes.JSONSlice[Keyframe] `json:"keyframes"`
}

func (*AnimationRow) TableName() string {
	return "animation_rows"
}

////////////////////////
// CAPTURE MODELS
////////////////////////

// Screenshot is one JPEG frame captured while a group was running
type Screenshot struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	SessionID  string    `json:"sessionId" gorm:"size:36;index:idx_screenshot_session_group"`
	GroupID    string    `json:"groupId" gorm:"size:64;index:idx_screenshot_session_group"`
	GroupRowID uint      `json:"groupRowId"`
	Seq        int       `json:"seq"`
	CapturedAt time.Time `json:"capturedAt"`
	Data       []byte    `json:"-"`
}

func (*Screenshot) TableName() string {
	return "screenshots"
}
