package types

import "strings"

// User roles
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

// Client lifecycle status values
type LifecycleStatus string

const (
	LifecycleLead   LifecycleStatus = "LEAD"
	LifecycleActive LifecycleStatus = "ACTIVE"
	LifecyclePast   LifecycleStatus = "PAST"
	LifecycleLost   LifecycleStatus = "LOST"
)

// Client weightage values
type Weightage string

const (
	WeightageVIP         Weightage = "VIP"
	WeightageRegular     Weightage = "REGULAR"
	WeightageOneTime     Weightage = "ONE_TIME"
	WeightageLowPriority Weightage = "LOW_PRIORITY"
)

// Relationship level values
type RelationshipLevel string

const (
	RelationshipWeak   RelationshipLevel = "WEAK"
	RelationshipWarm   RelationshipLevel = "WARM"
	RelationshipStrong RelationshipLevel = "STRONG"
)

// Client source values
type ClientSource string

const (
	SourceReferral     ClientSource = "Referral"
	SourceWebsite      ClientSource = "Website"
	SourceColdOutreach ClientSource = "Cold_outreach"
	SourceOther        ClientSource = "Other"
)

// History action types
type HistoryAction string

const (
	HistoryCreated          HistoryAction = "CREATED"
	HistoryStatusChanged    HistoryAction = "STATUS_CHANGED"
	HistoryWeightageChanged HistoryAction = "WEIGHTAGE_CHANGED"
	HistoryOwnerChanged     HistoryAction = "OWNER_CHANGED"
	HistoryArchived         HistoryAction = "ARCHIVED"
	HistoryNotesUpdated     HistoryAction = "NOTES_UPDATED"
	HistoryRiskMarked       HistoryAction = "RISK_MARKED"
)

// Task status values
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// Task priority values
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

// Valid values for validation
var ValidRoles = []Role{RoleAdmin, RoleEmployee}

var ValidLifecycleStatuses = []LifecycleStatus{
	LifecycleLead, LifecycleActive, LifecyclePast, LifecycleLost,
}

var ValidWeightages = []Weightage{
	WeightageVIP, WeightageRegular, WeightageOneTime, WeightageLowPriority,
}

var ValidRelationshipLevels = []RelationshipLevel{
	RelationshipWeak, RelationshipWarm, RelationshipStrong,
}

var ValidSources = []ClientSource{
	SourceReferral, SourceWebsite, SourceColdOutreach, SourceOther,
}

var ValidTaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskDone}

var ValidTaskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh}

// Helper functions for validation
func IsValidRole(role Role) bool {
	return contains(ValidRoles, role)
}

func IsValidLifecycleStatus(status LifecycleStatus) bool {
	return contains(ValidLifecycleStatuses, status)
}

func IsValidWeightage(weightage Weightage) bool {
	return contains(ValidWeightages, weightage)
}

func IsValidRelationshipLevel(level RelationshipLevel) bool {
	return contains(ValidRelationshipLevels, level)
}

func IsValidSource(source ClientSource) bool {
	return contains(ValidSources, source)
}

func IsValidTaskStatus(status TaskStatus) bool {
	return contains(ValidTaskStatuses, status)
}

func IsValidTaskPriority(priority TaskPriority) bool {
	return contains(ValidTaskPriorities, priority)
}

// NormalizeEmail is the case-insensitive key used for email uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
