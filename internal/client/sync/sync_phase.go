package sync

import "fmt"

// Phase identifies a step of the sync pipeline. Phases run in declaration
// order and never go backwards.
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseQueryCapabilities
	PhaseProcessLocallyDeleted
	PhasePrepareDirty
	PhaseUploadDirty
	PhaseCheckSyncState
	PhaseListLocal
	PhaseListRemote
	PhaseCompareLocalRemote
	PhaseDownloadRemote
	PhasePostProcess
	PhaseSaveSyncState
)

var phaseNames = [...]string{
	"Prepare",
	"QueryCapabilities",
	"ProcessLocallyDeleted",
	"PrepareDirty",
	"UploadDirty",
	"CheckSyncState",
	"ListLocal",
	"ListRemote",
	"CompareLocalRemote",
	"DownloadRemote",
	"PostProcess",
	"SaveSyncState",
}

var phaseLabels = [...]string{
	"preparing synchronization",
	"querying server capabilities",
	"processing locally deleted entries",
	"preparing locally changed entries",
	"uploading locally changed entries",
	"checking sync state",
	"listing local entries",
	"listing remote entries",
	"comparing local and remote entries",
	"downloading remote entries",
	"post-processing",
	"saving sync state",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Label is the human readable description used in notifications.
func (p Phase) Label() string {
	if p < 0 || int(p) >= len(phaseLabels) {
		return "synchronizing"
	}
	return phaseLabels[p]
}
