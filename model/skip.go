package model

import "fmt"

// Stage names the step at which a unit of work was skipped.
type Stage string

const (
	StageList   Stage = "list"
	StageSelect Stage = "select"
	StageSearch Stage = "search"
	StageFetch  Stage = "fetch"
	StageParse  Stage = "parse"
	StagePart   Stage = "part"
	StageRender Stage = "render"
)

// Skip records a unit of work that was dropped without aborting the run.
type Skip struct {
	Stage  Stage
	Folder string
	ID     string
	// Part is the MIME part path ("1.2") for StagePart skips.
	Part string
	Err  error
}

func (s Skip) Error() string {
	switch {
	case s.Part != "":
		return fmt.Sprintf("%s %s/%s part %s: %v", s.Stage, s.Folder, s.ID, s.Part, s.Err)
	case s.ID != "":
		return fmt.Sprintf("%s %s/%s: %v", s.Stage, s.Folder, s.ID, s.Err)
	default:
		return fmt.Sprintf("%s %s: %v", s.Stage, s.Folder, s.Err)
	}
}

func (s Skip) Unwrap() error {
	return s.Err
}
