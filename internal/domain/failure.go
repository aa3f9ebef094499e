package domain

import "errors"

type FailureKind string

const (
	FailureConfigFetch FailureKind = "config-fetch-failed"
	FailureNoDisk      FailureKind = "no-disk-found"
	FailureTimeout     FailureKind = "timeout"
	FailureTask        FailureKind = "task-failed"
	FailureNotFound    FailureKind = "not-found"
	FailureCancelled   FailureKind = "cancelled"
	FailureRemote      FailureKind = "remote-call-failed"
)

type Stage string

const (
	StageIssueClone Stage = "issue-clone"
	StageAwaitClone Stage = "await-clone"
	StageNetwork    Stage = "configure-network"
	StageResources  Stage = "apply-resources"
	StageStart      Stage = "start"
	StageStatus     Stage = "status"
	StageConfirm    Stage = "confirm"
	StageStop       Stage = "stop"
	StageDelete     Stage = "delete"
)

// Failure is the outcome of a component or workflow stage that did not
// succeed. Err holds the remote error, if any.
type Failure struct {
	Kind   FailureKind
	Stage  Stage
	Detail string
	Err    error
}

func NewFailure(kind FailureKind, detail string, err error) *Failure {
	return &Failure{Kind: kind, Detail: detail, Err: err}
}

func (f *Failure) Error() string {
	msg := string(f.Kind)
	if f.Stage != "" {
		msg = string(f.Stage) + ": " + msg
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AtStage tags err with the workflow stage it happened in. Errors that are
// not a Failure become a remote-call failure.
func AtStage(stage Stage, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		tagged := *f
		tagged.Stage = stage
		return &tagged
	}
	return &Failure{Kind: FailureRemote, Stage: stage, Err: err}
}

func IsKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

func KindOf(err error) (FailureKind, bool) {
	var f *Failure
	if !errors.As(err, &f) {
		return "", false
	}
	return f.Kind, true
}

func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return t.Kind == f.Kind && (t.Stage == "" || t.Stage == f.Stage)
}

var ErrCancelled = &Failure{Kind: FailureCancelled}
