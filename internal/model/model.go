package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Resolution{},
	&StatusChange{},
}

// Session is one run of the tracker between start and stop.
type Session struct {
	gorm.Model
	Name             string         `json:"name" gorm:"size:200"`
	StartTime        time.Time      `json:"startTime" gorm:"index:idx_session_start"`
	EndTime          *time.Time     `json:"endTime"`
	ExtensionVersion string         `json:"extensionVersion" gorm:"size:64"`
	Settings         datatypes.JSON `json:"settings"` // indicator and detector settings at start

	Resolutions   []Resolution
	StatusChanges []StatusChange
}

func (*Session) TableName() string {
	return "sessions"
}

// Resolution is one consumed attack/hitsplat pair.
type Resolution struct {
	ID            uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time `json:"time"`
	SessionID     uint      `json:"sessionId" gorm:"index:idx_resolution_session_id"`
	Session       Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	AttackTick    int       `json:"attackTick" gorm:"index:idx_resolution_attack_tick"`
	HitTick       int       `json:"hitTick"`
	VictimName    string    `json:"victimName" gorm:"size:64"`
	Bucket        string    `json:"bucket" gorm:"size:32"`
	Distance      int       `json:"distance"`
	RawDelay      int       `json:"rawDelay"`
	Delay         int       `json:"delay"`
	ExpectedDelay int       `json:"expectedDelay"`
	Outcome       string    `json:"outcome" gorm:"size:16;index:idx_resolution_outcome"`
	Status        string    `json:"status" gorm:"size:16"`

	AttackerPosition geom.Point      `json:"attackerPosition"` // tile, plane in Z
	VictimPosition   geom.Point      `json:"victimPosition"`
	Path             geom.LineString `json:"path"` // attacker to victim
}

func (*Resolution) TableName() string {
	return "resolutions"
}

// StatusChange is one transition of the published status.
type StatusChange struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_statuschange_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick      int       `json:"tick"`
	From      string    `json:"from" gorm:"size:16"`
	To        string    `json:"to" gorm:"size:16"`
	Reason    string    `json:"reason" gorm:"size:64"`
}

func (*StatusChange) TableName() string {
	return "status_changes"
}
