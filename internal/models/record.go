package models

import "time"

type RecordKind string

const (
	KindProject  RecordKind = "project"
	KindEngineer RecordKind = "engineer"
)

// RecordKindFor returns the record variant extracted for a category.
func RecordKindFor(c Category) (RecordKind, bool) {
	switch c {
	case CategoryProject:
		return KindProject, true
	case CategoryEngineer:
		return KindEngineer, true
	}
	return "", false
}

// Record is implemented only by ProjectRecord and EngineerRecord.
type Record interface {
	Kind() RecordKind
	RequiredFields() []string
	record()
}

// ProjectRecord is a project posting extracted from a mail.
type ProjectRecord struct {
	Title               string   `json:"title"`
	ClientCompany       string   `json:"client_company,omitempty"`
	PartnerCompany      string   `json:"partner_company,omitempty"`
	Description         string   `json:"description,omitempty"`
	DetailDescription   string   `json:"detail_description,omitempty"`
	Skills              []string `json:"skills,omitempty"`
	KeyTechnologies     string   `json:"key_technologies,omitempty"`
	Location            string   `json:"location,omitempty"`
	WorkType            string   `json:"work_type,omitempty"`
	StartDate           string   `json:"start_date,omitempty"`
	Duration            string   `json:"duration,omitempty"`
	ApplicationDeadline string   `json:"application_deadline,omitempty"`
	Budget              string   `json:"budget,omitempty"`
	DesiredBudget       string   `json:"desired_budget,omitempty"`
	JapaneseLevel       string   `json:"japanese_level,omitempty"`
	Experience          string   `json:"experience,omitempty"`
	ForeignerAccepted   *bool    `json:"foreigner_accepted,omitempty"`
	FreelancerAccepted  *bool    `json:"freelancer_accepted,omitempty"`
	InterviewCount      string   `json:"interview_count,omitempty"`
	Processes           []string `json:"processes,omitempty"`
	MaxCandidates       *int     `json:"max_candidates,omitempty"`
	ManagerName         string   `json:"manager_name,omitempty"`
	ManagerEmail        string   `json:"manager_email,omitempty"`
}

func (*ProjectRecord) Kind() RecordKind         { return KindProject }
func (*ProjectRecord) RequiredFields() []string { return []string{"title"} }
func (*ProjectRecord) record()                  {}

// EngineerRecord is an engineer profile extracted from a mail or resume.
type EngineerRecord struct {
	Name                  string   `json:"name"`
	Email                 string   `json:"email,omitempty"`
	Phone                 string   `json:"phone,omitempty"`
	Gender                string   `json:"gender,omitempty"`
	Age                   string   `json:"age,omitempty"`
	Nationality           string   `json:"nationality,omitempty"`
	NearestStation        string   `json:"nearest_station,omitempty"`
	Education             string   `json:"education,omitempty"`
	ArrivalYearJapan      string   `json:"arrival_year_japan,omitempty"`
	Certifications        []string `json:"certifications,omitempty"`
	Skills                []string `json:"skills,omitempty"`
	TechnicalKeywords     []string `json:"technical_keywords,omitempty"`
	Experience            string   `json:"experience,omitempty"`
	WorkScope             string   `json:"work_scope,omitempty"`
	WorkExperience        string   `json:"work_experience,omitempty"`
	JapaneseLevel         string   `json:"japanese_level,omitempty"`
	EnglishLevel          string   `json:"english_level,omitempty"`
	Availability          string   `json:"availability,omitempty"`
	CurrentStatus         string   `json:"current_status,omitempty"`
	PreferredWorkStyle    []string `json:"preferred_work_style,omitempty"`
	PreferredLocations    []string `json:"preferred_locations,omitempty"`
	DesiredRateMin        *int     `json:"desired_rate_min,omitempty"`
	DesiredRateMax        *int     `json:"desired_rate_max,omitempty"`
	OvertimeAvailable     *bool    `json:"overtime_available,omitempty"`
	BusinessTripAvailable *bool    `json:"business_trip_available,omitempty"`
	SelfPromotion         string   `json:"self_promotion,omitempty"`
	Remarks               string   `json:"remarks,omitempty"`
	Recommendation        string   `json:"recommendation,omitempty"`
	SourceFilename        string   `json:"source_filename,omitempty"`
}

func (*EngineerRecord) Kind() RecordKind         { return KindEngineer }
func (*EngineerRecord) RequiredFields() []string { return []string{"name"} }
func (*EngineerRecord) record()                  {}

type ContentSource string

const (
	SourceBody       ContentSource = "body"
	SourceAttachment ContentSource = "attachment"
)

// ExtractionResult carries one extracted record. Record is nil when the
// providers failed; Valid is false whenever the record is missing or
// incomplete.
type ExtractionResult struct {
	ID               string        `json:"id"`
	MessageID        string        `json:"message_id"`
	Kind             RecordKind    `json:"kind"`
	Record           Record        `json:"record,omitempty"`
	Source           ContentSource `json:"source"`
	Filename         string        `json:"filename,omitempty"`
	Provider         string        `json:"provider,omitempty"`
	FallbackUsed     bool          `json:"fallback_used"`
	Valid            bool          `json:"valid"`
	MissingFields    []string      `json:"missing_fields,omitempty"`
	ValidationErrors []string      `json:"validation_errors,omitempty"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Outcome is everything produced for one message.
type Outcome struct {
	Message     Message            `json:"message"`
	Verdict     Verdict            `json:"verdict"`
	Extractions []ExtractionResult `json:"extractions,omitempty"`
}
