package models

type InstructRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=market trading"`
	Instruct string `json:"instruct" validate:"required,max=2000"`
}

type TriggerRequest struct {
	Type        string `json:"type" validate:"required,oneof=UPDATE_RATE UPDATE_INSIGHT UPDATE_PORTFOLIO UPDATE_HOLDING"`
	Description string `json:"description" default:"manual trigger" validate:"max=200"`
}

type ListRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
	// Since is RFC3339 or unix seconds; older rows are skipped.
	Since string `query:"since" json:"since"`
}
