// Package domain re-exports the persisted model types so callers can import
// a single package under the conventional `types` alias.
package domain

import (
	"github.com/buildwise/takeoff-backend/internal/domain/catalog"
	"github.com/buildwise/takeoff-backend/internal/domain/rules"
	"github.com/buildwise/takeoff-backend/internal/domain/runs"
)

const (
	CategoryLevelDomain     = catalog.LevelDomain
	CategoryLevelTradeGroup = catalog.LevelTradeGroup
	CategoryLevelWorkItem   = catalog.LevelWorkItem
)

type CategoryNode = catalog.CategoryNode
type MaterialMaster = catalog.MaterialMaster
type BuildingProfile = catalog.BuildingProfile
type ProfileFactor = catalog.ProfileFactor

type RuleSet = rules.RuleSet
type ConversionRule = rules.ConversionRule
type WasteFactor = rules.WasteFactor
type RuleType = rules.RuleType

const (
	RuleTypeUnit      = rules.RuleTypeUnit
	RuleTypeDensity   = rules.RuleTypeDensity
	RuleTypeAssembly  = rules.RuleTypeAssembly
	RuleTypeWaste     = rules.RuleTypeWaste
	RuleTypePackaging = rules.RuleTypePackaging
	RuleTypeScenario  = rules.RuleTypeScenario
)

type CalculationRun = runs.CalculationRun
type BreakdownLine = runs.BreakdownLine
type RunStatus = runs.RunStatus
type FailReason = runs.FailReason
type ItemError = runs.ItemError
type MaterialTotal = runs.MaterialTotal
type LineTrace = runs.LineTrace

const (
	RunStatusPending = runs.RunStatusPending
	RunStatusRunning = runs.RunStatusRunning
	RunStatusSuccess = runs.RunStatusSuccess
	RunStatusPartial = runs.RunStatusPartial
	RunStatusFailed  = runs.RunStatusFailed

	FailReasonTimeout     = runs.FailReasonTimeout
	FailReasonCancelled   = runs.FailReasonCancelled
	FailReasonPersistence = runs.FailReasonPersistence
	FailReasonAllItems    = runs.FailReasonAllItems
)
