package types

import "time"

type Role string

const (
	RoleExecutive  Role = "executive"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleExecutive, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Domain       string    `json:"domain,omitempty"`
	SupervisorID string    `json:"supervisor_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ScoreStructure string

const (
	StructureMultiDimension ScoreStructure = "multi_dimension"
	StructureSubscore       ScoreStructure = "subscore"
)

// SchemaDefinition describes how a product's analysis results are shaped.
// Scale is [min, max]; only max participates in rendering.
type SchemaDefinition struct {
	ScoreStructure   ScoreStructure `json:"score_structure"`
	Dimensions       []string       `json:"dimensions,omitempty"`
	Subscores        []string       `json:"subscores,omitempty"`
	Scale            [2]float64     `json:"scale"`
	HasPhotoAnalysis bool           `json:"has_photo_analysis"`
}

func (s SchemaDefinition) ScaleMax() float64 { return s.Scale[1] }

type UIConfig struct {
	Charts []string `json:"charts,omitempty"`
	Colors struct {
		Primary   string `json:"primary"`
		Secondary string `json:"secondary"`
	} `json:"colors"`
	DashboardLayout string `json:"dashboard_layout,omitempty"`
}

type Product struct {
	ID        string           `json:"id"`
	Name      string           `json:"product"`
	Domain    string           `json:"domain"`
	Brand     string           `json:"brand"`
	Schema    SchemaDefinition `json:"schema_definition"`
	UI        UIConfig         `json:"ui_config"`
	CreatedAt time.Time        `json:"created_at"`
}

// Conversation is one evaluated sales interaction. TotalScore and Status are
// the nullable top-level columns; when set they win over the payload.
type Conversation struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"product_id"`
	ExecutiveID    string         `json:"executive_id"`
	Transcript     string         `json:"transcript"`
	Timestamp      time.Time      `json:"conversation_timestamp"`
	Analysis       Analysis       `json:"analysis_result"`
	TotalScore     *float64       `json:"total_score,omitempty"`
	Status         *string        `json:"status,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ExecutiveEmail string         `json:"executive_email,omitempty"`
}
