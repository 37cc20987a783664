// Package runbook defines the compiled execution plan types shared by the
// compiler, the runbook store, and the execution gate. internal/compiler
// is the production code path that builds CompiledStep values, but every
// field of CompiledStep is exported, so this package does not stop other
// packages (tests included) from constructing steps themselves.
package runbook

import (
	"time"

	"github.com/google/uuid"

	"github.com/runbookd/runbookd/internal/observability"
)

// ExecutionMode selects how a step is dispatched by the step executor.
type ExecutionMode int

const (
	Sync ExecutionMode = iota
	Async
)

// CompiledStep is one verb call lowered by the compiler. It has no
// unexported fields and no constructor; any package can build one.
type CompiledStep struct {
	StepID        uuid.UUID
	Sentence      string
	Verb          string
	Dsl           string
	Args          map[string]any
	DependsOn     []uuid.UUID
	ExecutionMode ExecutionMode
	WriteSet      []string // sorted entity-id strings, for lock ordering
}

// CompiledRunbookID identifies one compiled runbook.
type CompiledRunbookID = uuid.UUID

// StatusKind enumerates a compiled runbook's lifecycle tag.
type StatusKind int

const (
	StatusCompiled StatusKind = iota
	StatusExecuting
	StatusParked
	StatusCompleted
	StatusFailed
)

func (k StatusKind) String() string {
	switch k {
	case StatusCompiled:
		return "Compiled"
	case StatusExecuting:
		return "Executing"
	case StatusParked:
		return "Parked"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ParkReasonKind enumerates why a runbook parked.
type ParkReasonKind int

const (
	AwaitingCallback ParkReasonKind = iota
	AwaitingApproval
	AwaitingTime
)

// ParkReason describes why execution suspended and what resumes it.
type ParkReason struct {
	Kind           ParkReasonKind
	CorrelationKey string    // AwaitingCallback, AwaitingApproval
	Deadline       time.Time // AwaitingTime
}

// StepCursor pins resume position: index for iteration, step_id for identity.
type StepCursor struct {
	Index  int
	StepID uuid.UUID
}

// Status is the compiled runbook's current lifecycle state, carrying the
// payload that belongs to its tag.
type Status struct {
	Kind StatusKind

	CurrentStep int        // Executing
	Reason      ParkReason // Parked
	Cursor      StepCursor // Parked
	At          time.Time  // Completed
	Err         string     // Failed
	FailedStep  *StepCursor // Failed
}

// ReplayEnvelope captures everything needed to deterministically
// re-execute a compiled runbook from its original input.
type ReplayEnvelope struct {
	OriginalInput  string
	ValidatorVersion string
	RegistryHash   string
	PackSnapshot   map[string]string // pack_id -> status at compile time
	ResolvedContext map[string]any
	TraceContext   observability.TraceContext
}

// CompiledRunbook is the compiler's output: a DAG of steps plus everything
// the gate needs to execute, resume, or replay it.
type CompiledRunbook struct {
	ID        CompiledRunbookID
	SessionID string
	Version   int
	Steps     []CompiledStep
	Status    Status
	Envelope  ReplayEnvelope
}

// NewStepID mints a fresh step identifier; exposed so the compiler (the
// only legitimate caller) does not need its own uuid import.
func NewStepID() uuid.UUID { return uuid.New() }

// NewRunbookID mints a fresh compiled runbook identifier.
func NewRunbookID() uuid.UUID { return uuid.New() }
