package models

import "time"

// Instrument tags stored on linked_anomalies.automaton.
const (
	AutomatonTelescope        = "Telescope"
	AutomatonWeatherSatellite = "WeatherSatellite"
	AutomatonRover            = "Rover"
	AutomatonTelescopeSolar   = "TelescopeSolar"
)

// Profile is the player identity row. Created at account setup and mutated by
// profile updates; the gameplay engine never deletes it.
type Profile struct {
	ID           string    `gorm:"column:id;primaryKey;size:64;not null"`
	Username     string    `gorm:"column:username;size:190"`
	ReferralCode *string   `gorm:"column:referral_code;size:32;uniqueIndex"`
	Location     *int64    `gorm:"column:location"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Classification records one player assessment of an anomaly. Immutable once
// created; each row contributes one stardust unit to its author's balance.
type Classification struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Author             string    `gorm:"column:author;size:64;not null;index:idx_classifications_author"`
	Anomaly            *int64    `gorm:"column:anomaly;index"`
	ClassificationType string    `gorm:"column:classificationtype;size:64;not null"`
	Content            string    `gorm:"column:content;type:text"`
	Configuration      string    `gorm:"column:classification_configuration;type:text"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Classification) TableName() string {
	return "classifications"
}

// Anomaly is a catalogued object (planet, cloud, sunspot, mineral-bearing
// body). Read-only from the gameplay engine's perspective.
type Anomaly struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	AnomalyType   string `gorm:"column:anomalytype;size:64"`
	Content       string `gorm:"column:content;size:320"`
	Configuration string `gorm:"column:configuration;type:text"`
}

func (Anomaly) TableName() string {
	return "anomalies"
}

// LinkedAnomaly associates a player, an anomaly and a deployed instrument.
// A non-null classification reference marks the link as resolved.
type LinkedAnomaly struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Author           string    `gorm:"column:author;size:64;not null;index:idx_linked_author_automaton,priority:1"`
	AnomalyID        int64     `gorm:"column:anomaly_id;not null"`
	Automaton        string    `gorm:"column:automaton;size:32;not null;index:idx_linked_author_automaton,priority:2"`
	Date             time.Time `gorm:"column:date;not null"`
	ClassificationID *int64    `gorm:"column:classification_id"`
	Unlocked         bool      `gorm:"column:unlocked;not null;default:false"`
}

func (LinkedAnomaly) TableName() string {
	return "linked_anomalies"
}

// Researched is the append-only unlock ledger. A row existing means that tech
// was purchased or granted; row count per tech_type is the sole source of
// truth for ownership.
type Researched struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:64;not null;index:idx_researched_user"`
	TechType  string    `gorm:"column:tech_type;size:64;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Researched) TableName() string {
	return "researched"
}

// MineralDeposit is a discovered extraction site. Its configuration quantity
// fields being zero is the durable already-extracted marker.
type MineralDeposit struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Owner         string    `gorm:"column:owner;size:64;not null;index:idx_deposits_owner"`
	Discovery     *int64    `gorm:"column:discovery"`
	Configuration string    `gorm:"column:mineral_configuration;type:text;not null"`
	Location      string    `gorm:"column:location;size:190"`
	RoverName     string    `gorm:"column:rover_name;size:190"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (MineralDeposit) TableName() string {
	return "mineral_deposits"
}

// MineralInventoryEntry is the append-only ledger of extraction events.
type MineralInventoryEntry struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      string    `gorm:"column:user_id;size:64;not null;index:idx_inventory_user"`
	DepositID   int64     `gorm:"column:deposit_id;not null"`
	MineralType string    `gorm:"column:mineral_type;size:64;not null"`
	Quantity    float64   `gorm:"column:quantity;not null"`
	Purity      float64   `gorm:"column:purity;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (MineralInventoryEntry) TableName() string {
	return "user_mineral_inventory"
}

// SurveyReward is an external bonus source contributing additively to the
// stardust balance.
type SurveyReward struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:64;not null;index"`
	Points    int64     `gorm:"column:points;not null"`
	Source    string    `gorm:"column:source;size:190"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SurveyReward) TableName() string {
	return "survey_rewards"
}

// Referral records that a new player signed up with someone's referral code.
// The code owner earns a fixed stardust bonus per row.
type Referral struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Referree     string    `gorm:"column:referree;size:64;not null"`
	ReferralCode string    `gorm:"column:referral_code;size:32;not null;index:idx_referrals_code"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Referral) TableName() string {
	return "referrals"
}

// Vote is a social artifact on a classification; not counted toward stardust.
type Vote struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID           string    `gorm:"column:user_id;size:64;not null"`
	ClassificationID int64     `gorm:"column:classification_id;not null;index"`
	Value            int       `gorm:"column:value;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Vote) TableName() string {
	return "votes"
}

// Comment is a social artifact on a classification.
type Comment struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Author           string    `gorm:"column:author;size:64;not null"`
	ClassificationID int64     `gorm:"column:classification_id;not null;index"`
	Content          string    `gorm:"column:content;type:text"`
	Category         string    `gorm:"column:category;size:64"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Comment) TableName() string {
	return "comments"
}
