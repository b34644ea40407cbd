package protocol

import (
	"fmt"
	"strings"

	"github.com/viant/artifex/internal/yml"
)

// Version 1: one checksum per task encoded as "ALG:hex", upper-case state
// names, no chunk size and no signature.

type envelopeV1 struct {
	Version    int           `yaml:"version"`
	Kind       string        `yaml:"kind"`
	Assignment *assignmentV1 `yaml:"assignment,omitempty"`
	Status     *statusV1     `yaml:"status,omitempty"`
}

type assignmentV1 struct {
	ID    string    `yaml:"id"`
	Tasks []*taskV1 `yaml:"tasks"`
}

type taskV1 struct {
	TaskID        string `yaml:"taskId"`
	Resource      string `yaml:"resource"`
	Dir           string `yaml:"dir,omitempty"`
	DispatcherURL string `yaml:"dispatcherUrl,omitempty"`
	ProcessorID   string `yaml:"processorId,omitempty"`
	Nullable      bool   `yaml:"nullable,omitempty"`
	Checksum      string `yaml:"checksum,omitempty"`
}

type statusV1 struct {
	ProcessorID string      `yaml:"processorId,omitempty"`
	Reports     []*reportV1 `yaml:"reports"`
}

type reportV1 struct {
	TaskID string `yaml:"taskId"`
	State  string `yaml:"state"`
	Error  string `yaml:"error,omitempty"`
}

// defaultChecksumAlgorithm applies to v1 checksums without algorithm prefix
const defaultChecksumAlgorithm = "SHA256"

var v1States = map[string]string{
	"NONE":        "created",
	"ASSIGNED":    "dispatched",
	"IN_PROGRESS": "processing",
	"CHECKING":    "verifying",
	"OK":          "finished",
	"ERROR":       "error",
}

func decodeV1(node *yml.Node) (interface{}, error) {
	ret := &envelopeV1{}
	if err := node.Decode(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func upgradeV1(value interface{}) (interface{}, error) {
	in, ok := value.(*envelopeV1)
	if !ok {
		return nil, fmt.Errorf("expected %T, got %T", in, value)
	}
	out := &envelopeV2{Version: 2, Kind: in.Kind}
	if in.Assignment != nil {
		out.Assignment = &assignmentV2{ID: in.Assignment.ID}
		for _, task := range in.Assignment.Tasks {
			if task == nil {
				return nil, fmt.Errorf("empty task")
			}
			upgraded := &taskV2{
				TaskID:        task.TaskID,
				Resource:      task.Resource,
				Dir:           task.Dir,
				DispatcherURL: task.DispatcherURL,
				ProcessorID:   task.ProcessorID,
				Nullable:      task.Nullable,
			}
			if task.Checksum != "" {
				algorithm, value := splitChecksum(task.Checksum)
				upgraded.Checksums = map[string]string{algorithm: value}
			}
			out.Assignment.Tasks = append(out.Assignment.Tasks, upgraded)
		}
	}
	if in.Status != nil {
		out.Status = &statusV2{ProcessorID: in.Status.ProcessorID}
		for _, report := range in.Status.Reports {
			if report == nil {
				return nil, fmt.Errorf("empty report")
			}
			state, ok := v1States[strings.ToUpper(report.State)]
			if !ok {
				return nil, fmt.Errorf("unknown v1 state %q", report.State)
			}
			out.Status.Reports = append(out.Status.Reports, &reportV2{TaskID: report.TaskID, State: state, Error: report.Error})
		}
	}
	return out, nil
}

func splitChecksum(checksum string) (string, string) {
	if index := strings.IndexByte(checksum, ':'); index != -1 {
		return strings.ToUpper(checksum[:index]), checksum[index+1:]
	}
	return defaultChecksumAlgorithm, checksum
}
