package provider

import (
	"fmt"

	"github.com/xaenox/mailsift/internal/models"
)

const classificationSystem = `You classify business email for an IT staffing company.
Pick exactly one category:
- project_related: a project or job posting looking for engineers
- engineer_related: an introduction of an engineer, a resume or a skill sheet
- other: anything else (seminars, newsletters, notices)

Answer with a JSON object only:
{"category": "project_related|engineer_related|other", "confidence": 0.0-1.0, "reasoning": "short reason"}`

const projectSystem = `Extract the project posting from the email into a JSON object with these keys:
title (required), client_company, partner_company, description, detail_description,
skills (array), key_technologies, location, work_type, start_date, duration,
application_deadline, budget, desired_budget, japanese_level, experience,
foreigner_accepted (bool), freelancer_accepted (bool), interview_count, processes (array),
max_candidates (int), manager_name, manager_email.
Dates use YYYY-MM-DD. Omit keys you cannot find. Answer with the JSON object only.`

const engineerSystem = `Extract the engineer profile from the text into a JSON object with these keys:
name (required), email, phone, gender, age, nationality, nearest_station, education,
arrival_year_japan, certifications (array), skills (array), technical_keywords (array),
experience, work_scope, work_experience, japanese_level, english_level, availability,
current_status, preferred_work_style (array), preferred_locations (array),
desired_rate_min (int, 10k JPY), desired_rate_max (int, 10k JPY), overtime_available (bool),
business_trip_available (bool), self_promotion, remarks, recommendation.
gender is one of 男性, 女性, 回答しない. japanese_level and english_level are one of
ネイティブレベル, ビジネスレベル, 日常会話レベル, 不問.
Omit keys you cannot find. Answer with the JSON object only.`

// Prompt returns the system and user prompt for a task.
func Prompt(task models.TaskType, p Payload) (system, user string) {
	switch task {
	case models.TaskClassification:
		return classificationSystem, "Email:\n" + p.Content
	case models.TaskAttachment:
		return extractionSystem(p.Kind), fmt.Sprintf("Attachment %s:\n%s", p.Filename, p.Content)
	default:
		return extractionSystem(p.Kind), "Email:\n" + p.Content
	}
}

func extractionSystem(kind models.RecordKind) string {
	if kind == models.KindEngineer {
		return engineerSystem
	}
	return projectSystem
}
